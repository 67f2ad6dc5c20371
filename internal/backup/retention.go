package backup

import (
	"fmt"
	"os"
	"time"
)

const day = 24 * time.Hour

// Retention is how many snapshots to keep in each age tier. Snapshots
// older than a year are always pruned.
type Retention struct {
	Hourly  int // younger than a day (default: 24)
	Daily   int // one to seven days old (default: 7)
	Weekly  int // one week to thirty days old (default: 4)
	Monthly int // thirty days to a year old (default: 12)
}

// DefaultRetention keeps a day of hourly snapshots and a year of monthly ones.
func DefaultRetention() Retention {
	return Retention{Hourly: 24, Daily: 7, Weekly: 4, Monthly: 12}
}

func (r Retention) withDefaults() Retention {
	d := DefaultRetention()
	if r.Hourly <= 0 {
		r.Hourly = d.Hourly
	}
	if r.Daily <= 0 {
		r.Daily = d.Daily
	}
	if r.Weekly <= 0 {
		r.Weekly = d.Weekly
	}
	if r.Monthly <= 0 {
		r.Monthly = d.Monthly
	}
	return r
}

type tier struct {
	maxAge time.Duration
	keep   int
}

func (r Retention) tiers() []tier {
	return []tier{
		{maxAge: day, keep: r.Hourly},
		{maxAge: 7 * day, keep: r.Daily},
		{maxAge: 30 * day, keep: r.Weekly},
		{maxAge: 365 * day, keep: r.Monthly},
	}
}

// expired returns the snapshots the policy drops at now. snapshots must be
// sorted newest first; the newest snapshots of each tier are kept.
func (r Retention) expired(snapshots []Snapshot, now time.Time) []Snapshot {
	tiers := r.tiers()
	kept := make([]int, len(tiers))

	var drop []Snapshot
	for _, s := range snapshots {
		age := now.Sub(s.TakenAt)
		idx := -1
		for i, t := range tiers {
			if age < t.maxAge {
				idx = i
				break
			}
		}
		if idx == -1 || kept[idx] >= tiers[idx].keep {
			drop = append(drop, s)
			continue
		}
		kept[idx]++
	}
	return drop
}

// prune removes the snapshots in dir that r no longer keeps at now and
// returns how many were removed. Removal continues past individual failures.
func prune(dir string, r Retention, now time.Time) (int, error) {
	snapshots, err := listSnapshots(dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	var lastErr error
	for _, s := range r.expired(snapshots, now) {
		if err := os.Remove(s.Path); err != nil {
			lastErr = err
			continue
		}
		removed++
	}
	if lastErr != nil {
		return removed, fmt.Errorf("failed to delete some snapshots: %w", lastErr)
	}
	return removed, nil
}

// diskUsage returns the total size of snapshots.
func diskUsage(snapshots []Snapshot) int64 {
	var total int64
	for _, s := range snapshots {
		total += s.Size
	}
	return total
}
