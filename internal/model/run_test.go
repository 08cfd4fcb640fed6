package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition_LegalEdges(t *testing.T) {
	legal := [][2]RunStatus{
		{RunStatusUploaded, RunStatusProcessing},
		{RunStatusProcessing, RunStatusUploaded},
		{RunStatusProcessing, RunStatusReviewReady},
		{RunStatusProcessing, RunStatusFailed},
		{RunStatusProcessing, RunStatusNoData},
		{RunStatusReviewReady, RunStatusFinalizing},
		{RunStatusFinalizing, RunStatusCompleted},
		{RunStatusFinalizing, RunStatusFailed},
	}
	for _, edge := range legal {
		assert.True(t, CanTransition(edge[0], edge[1]), "%s -> %s should be legal", edge[0], edge[1])
	}
}

func TestCanTransition_NoResurrectionFromTerminal(t *testing.T) {
	terminals := []RunStatus{RunStatusCompleted, RunStatusFailed, RunStatusNoData}
	all := []RunStatus{
		RunStatusUploaded, RunStatusProcessing, RunStatusReviewReady,
		RunStatusFinalizing, RunStatusCompleted, RunStatusFailed, RunStatusNoData,
	}
	for _, from := range terminals {
		assert.True(t, from.IsTerminal())
		for _, to := range all {
			assert.False(t, CanTransition(from, to), "%s -> %s must be illegal", from, to)
		}
	}
}

func TestCanTransition_NoSkippingReview(t *testing.T) {
	assert.False(t, CanTransition(RunStatusUploaded, RunStatusReviewReady))
	assert.False(t, CanTransition(RunStatusUploaded, RunStatusCompleted))
	assert.False(t, CanTransition(RunStatusReviewReady, RunStatusCompleted))
	assert.False(t, CanTransition(RunStatusCompleted, RunStatusProcessing))
}
