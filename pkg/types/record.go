package types

import "time"

// Record is a single submitted memory plus its metadata and delivery state.
// Content, Owner, ID and CreatedAt never change after creation; the scheduler
// owns every mutation of the delivery fields once a record is pending.
type Record struct {
	// Core identification fields
	ID        string    `json:"id"`                 // UUID assigned at creation
	Owner     string    `json:"owner"`              // Submitting user or family
	Title     string    `json:"title,omitempty"`    // Optional heading shown in deliveries and the book
	Content   string    `json:"content"`            // Raw text (transcribed if audio)
	Source    Source    `json:"source"`             // text or audio
	Filename  string    `json:"filename,omitempty"` // Original upload name for audio memories
	CreatedAt time.Time `json:"created_at"`

	// Delivery target
	Recipient string `json:"recipient,omitempty"` // Free-form recipient (name, address, channel)
	Message   string `json:"message,omitempty"`   // Optional note delivered alongside the memory

	// Delivery state machine
	DeliveryAt       *time.Time    `json:"delivery_at,omitempty"`
	DeliveryState    DeliveryState `json:"delivery_state"`
	DeliveredAt      *time.Time    `json:"delivered_at,omitempty"`
	DeliveryError    string        `json:"delivery_error,omitempty"`
	DeliveryAttempts int           `json:"delivery_attempts"`

	// Version is bumped by the store on every successful update.
	Version int64 `json:"version"`

	// Report is attached once analysis completes and never recomputed.
	Report *AnalysisReport `json:"report,omitempty"`
}

// Source describes where a memory's text came from.
type Source string

const (
	SourceText  Source = "text"
	SourceAudio Source = "audio"
)

// IsScheduled reports whether the record carries a delivery date.
func (r *Record) IsScheduled() bool {
	return r.DeliveryAt != nil && !r.DeliveryAt.IsZero()
}

// IsDue reports whether the record is pending and its delivery date has passed.
func (r *Record) IsDue(now time.Time) bool {
	return r.DeliveryState == DeliveryPending && r.IsScheduled() && !r.DeliveryAt.After(now)
}

// Clone returns a deep copy of the record. Stores hand out clones so callers
// cannot mutate shared state behind the compare-and-set boundary.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.DeliveryAt != nil {
		t := *r.DeliveryAt
		c.DeliveryAt = &t
	}
	if r.DeliveredAt != nil {
		t := *r.DeliveredAt
		c.DeliveredAt = &t
	}
	c.Report = r.Report.Clone()
	return &c
}
