package types_test

import (
	"testing"
	"time"

	"github.com/scrypster/lifecache/pkg/types"
)

func TestValidDeliveryStates(t *testing.T) {
	for _, state := range []types.DeliveryState{"unscheduled", "pending", "delivered", "failed"} {
		if !types.IsValidDeliveryState(state) {
			t.Errorf("Expected %s to be valid delivery state", state)
		}
	}

	for _, state := range []types.DeliveryState{"", "scheduled", "delivering"} {
		if types.IsValidDeliveryState(state) {
			t.Errorf("Expected %q to be invalid delivery state", state)
		}
	}
}

func TestDeliveryTransitions(t *testing.T) {
	cases := []struct {
		from, to types.DeliveryState
		valid    bool
	}{
		{types.DeliveryUnscheduled, types.DeliveryPending, true},
		{types.DeliveryUnscheduled, types.DeliveryDelivered, false},
		{types.DeliveryPending, types.DeliveryDelivered, true},
		{types.DeliveryPending, types.DeliveryFailed, true},
		{types.DeliveryPending, types.DeliveryUnscheduled, false},
		{types.DeliveryDelivered, types.DeliveryPending, false},
		{types.DeliveryDelivered, types.DeliveryFailed, false},
		{types.DeliveryFailed, types.DeliveryDelivered, false},
		{types.DeliveryFailed, types.DeliveryPending, true},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			if got := types.IsValidDeliveryTransition(tc.from, tc.to); got != tc.valid {
				t.Errorf("IsValidDeliveryTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.valid)
			}
		})
	}
}

func TestRecordIsDue(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	pending := &types.Record{DeliveryAt: &past, DeliveryState: types.DeliveryPending}
	if !pending.IsDue(now) {
		t.Error("pending record with past delivery date should be due")
	}

	atNow := &types.Record{DeliveryAt: &now, DeliveryState: types.DeliveryPending}
	if !atNow.IsDue(now) {
		t.Error("delivery_at == now should be due")
	}

	later := &types.Record{DeliveryAt: &future, DeliveryState: types.DeliveryPending}
	if later.IsDue(now) {
		t.Error("future delivery date should not be due")
	}

	unscheduled := &types.Record{DeliveryState: types.DeliveryUnscheduled}
	if unscheduled.IsDue(now) {
		t.Error("record without delivery date is never due")
	}

	delivered := &types.Record{DeliveryAt: &past, DeliveryState: types.DeliveryDelivered}
	if delivered.IsDue(now) {
		t.Error("delivered record is never due")
	}
}

func TestRecordCloneIsDeep(t *testing.T) {
	at := time.Now()
	rec := &types.Record{
		ID:         "r1",
		DeliveryAt: &at,
		Report: &types.AnalysisReport{
			EmotionScores: map[string]float64{"joy": 1},
			Summary:       []string{"a"},
		},
	}

	c := rec.Clone()
	c.Report.EmotionScores["joy"] = 0
	c.Report.Summary[0] = "b"
	*c.DeliveryAt = at.Add(time.Hour)

	if rec.Report.EmotionScores["joy"] != 1 || rec.Report.Summary[0] != "a" {
		t.Error("Clone shared report state with the original")
	}
	if !rec.DeliveryAt.Equal(at) {
		t.Error("Clone shared delivery_at with the original")
	}
}
