package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scrypster/lifecache/pkg/types"
)

func withScores(id string, scores map[string]float64) *types.Record {
	return &types.Record{ID: id, Report: &types.AnalysisReport{EmotionScores: scores}}
}

func TestCosineDistance(t *testing.T) {
	a := map[string]float64{"joy": 1, "sorrow": 0}
	assert.InDelta(t, 0, CosineDistance(a, map[string]float64{"joy": 0.5}), 1e-9)
	assert.InDelta(t, 1, CosineDistance(a, map[string]float64{"sorrow": 1}), 1e-9)
	assert.Equal(t, 1.0, CosineDistance(a, map[string]float64{}))
}

func TestRankByEmotion(t *testing.T) {
	records := []*types.Record{
		withScores("sad", map[string]float64{"sorrow": 1}),
		{ID: "unanalyzed"},
		withScores("happy", map[string]float64{"joy": 0.9, "love": 0.1}),
		withScores("mixed", map[string]float64{"joy": 0.5, "sorrow": 0.5}),
	}

	got := RankByEmotion(records, map[string]float64{"joy": 1, "love": 0, "sorrow": 0}, 2)
	if assert.Len(t, got, 2) {
		assert.Equal(t, "happy", got[0].ID)
		assert.Equal(t, "mixed", got[1].ID)
	}

	all := RankByEmotion(records, map[string]float64{"sorrow": 1}, 0)
	assert.Len(t, all, 3)
	assert.Equal(t, "sad", all[0].ID)
}
