// Package delivery defines the Channel capability the scheduler delivers
// through and its variants: an append-only log, Slack, Discord and a Redis
// stream for downstream e-mail/SMS workers.
//
// Variants are selected by configuration in New; callers never inspect the
// concrete type.
package delivery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/scrypster/lifecache/pkg/types"
)

// Channel delivers one due record to its recipient.
type Channel interface {
	// Name identifies the channel in logs and errors.
	Name() string

	// Deliver sends rec and its report. Failures are returned as *DeliveryError.
	Deliver(ctx context.Context, rec *types.Record, report *types.AnalysisReport) error
}

// DeliveryError reports a channel failure for one record.
type DeliveryError struct {
	Channel  string
	RecordID string
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery via %s failed for %s: %v", e.Channel, e.RecordID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// wrapError attaches channel context to err unless it already carries it.
func wrapError(channel string, rec *types.Record, err error) error {
	if err == nil {
		return nil
	}
	if de, ok := err.(*DeliveryError); ok {
		return de
	}
	id := ""
	if rec != nil {
		id = rec.ID
	}
	return &DeliveryError{Channel: channel, RecordID: id, Err: err}
}

// Func adapts a function to the Channel interface.
type Func struct {
	ChannelName string
	Fn          func(ctx context.Context, rec *types.Record, report *types.AnalysisReport) error
}

// Name implements Channel.
func (f Func) Name() string {
	if f.ChannelName == "" {
		return "func"
	}
	return f.ChannelName
}

// Deliver implements Channel.
func (f Func) Deliver(ctx context.Context, rec *types.Record, report *types.AnalysisReport) error {
	return wrapError(f.Name(), rec, f.Fn(ctx, rec, report))
}

// Payload is the structured form of a delivery shared by all variants.
type Payload struct {
	RecordID        string    `json:"record_id"`
	Owner           string    `json:"owner"`
	Title           string    `json:"title,omitempty"`
	Recipient       string    `json:"recipient,omitempty"`
	Message         string    `json:"message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	DeliveryAt      time.Time `json:"delivery_at"`
	DominantEmotion string    `json:"dominant_emotion,omitempty"`
	Themes          []string  `json:"themes,omitempty"`
	Summary         []string  `json:"summary,omitempty"`
}

// NewPayload builds the payload for rec. report may be nil.
func NewPayload(rec *types.Record, report *types.AnalysisReport) Payload {
	p := Payload{
		RecordID:  rec.ID,
		Owner:     rec.Owner,
		Title:     rec.Title,
		Recipient: rec.Recipient,
		Message:   rec.Message,
		CreatedAt: rec.CreatedAt,
	}
	if rec.DeliveryAt != nil {
		p.DeliveryAt = *rec.DeliveryAt
	}
	if report != nil {
		p.DominantEmotion = report.DominantEmotion
		p.Themes = report.ThemeTags
		p.Summary = report.Summary
	}
	return p
}

// Text renders the payload as a short chat message.
func (p Payload) Text() string {
	var b strings.Builder
	to := p.Recipient
	if to == "" {
		to = "you"
	}
	fmt.Fprintf(&b, "A LifeCache memory from %s for %s, written %s.", p.Owner, to, p.CreatedAt.Format("January 2, 2006"))
	if p.Title != "" {
		fmt.Fprintf(&b, "\n*%s*", p.Title)
	}
	if p.Message != "" {
		fmt.Fprintf(&b, "\n> %s", p.Message)
	}
	if len(p.Summary) > 0 {
		fmt.Fprintf(&b, "\n\n%s", strings.Join(p.Summary, " "))
	}
	if p.DominantEmotion != "" && p.DominantEmotion != types.NeutralEmotion {
		fmt.Fprintf(&b, "\n\nMood: %s", p.DominantEmotion)
	}
	return b.String()
}
