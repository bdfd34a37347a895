package engagement

import (
	"testing"
	"time"

	"github.com/mikey/inbox-intel/internal/config"
	"github.com/mikey/inbox-intel/internal/core"
	"github.com/stretchr/testify/assert"
)

func testScoringConfig() config.ScoringConfig {
	cfg := config.NewFromViper(config.NewEmptyViper())
	return cfg.GetScoring()
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func TestScoreNoHistoryFloor(t *testing.T) {
	scorer := NewScorerAt(testScoringConfig(), fixedNow)

	assert.Equal(t, 0.1, scorer.Score(nil))
	assert.Equal(t, 0.1, scorer.Score(&core.Contact{Email: "new@example.com"}))
}

func TestScoreAllTermsCapped(t *testing.T) {
	now := fixedNow()
	scorer := NewScorerAt(testScoringConfig(), func() time.Time { return now })

	// 60 outbound messages caps frequency at 0.5, a send today gives full
	// recency 0.3, and a 400-day span caps the span term at 0.2.
	contact := &core.Contact{
		Email:         "partner@acme.com",
		OutboundCount: 60,
		LastOutbound:  now,
		FirstOutbound: now.AddDate(0, 0, -400),
	}

	assert.InDelta(t, 1.0, scorer.Score(contact), 0.0001)
}

func TestScorePartialTerms(t *testing.T) {
	now := fixedNow()
	scorer := NewScorerAt(testScoringConfig(), func() time.Time { return now })

	contact := &core.Contact{
		Email:         "colleague@acme.com",
		OutboundCount: 10,
		LastOutbound:  now.AddDate(0, 0, -73), // 73/365 = 0.2 of the window
		FirstOutbound: now.AddDate(0, 0, -146),
	}

	// frequency 10/50 = 0.2, recency 0.3*(1-0.2) = 0.24, span 73/365*0.2 = 0.04
	assert.InDelta(t, 0.48, scorer.Score(contact), 0.001)
}

func TestScoreRecencyFullyDecayed(t *testing.T) {
	now := fixedNow()
	scorer := NewScorerAt(testScoringConfig(), func() time.Time { return now })

	contact := &core.Contact{
		Email:         "old@acme.com",
		OutboundCount: 5,
		LastOutbound:  now.AddDate(0, 0, -500),
		FirstOutbound: now.AddDate(0, 0, -500),
	}

	// frequency 0.1, recency floored at 0, span 0
	assert.InDelta(t, 0.1, scorer.Score(contact), 0.001)
}

func TestTierBoundaries(t *testing.T) {
	scorer := NewScorer(testScoringConfig())

	assert.Equal(t, core.Tier1, scorer.TierFor(0.71))
	assert.Equal(t, core.Tier2, scorer.TierFor(0.7)) // boundary is exclusive
	assert.Equal(t, core.Tier2, scorer.TierFor(0.31))
	assert.Equal(t, core.TierLast, scorer.TierFor(0.3))
	assert.Equal(t, core.TierLast, scorer.TierFor(0.1))
}

func TestFrequencyClassFor(t *testing.T) {
	now := fixedNow()
	scorer := NewScorerAt(testScoringConfig(), func() time.Time { return now })

	tests := []struct {
		name     string
		outbound int
		spanDays int
		want     core.FrequencyClass
	}{
		{"daily", 30, 20, core.FrequencyDaily},
		{"weekly", 10, 50, core.FrequencyWeekly},
		{"monthly", 4, 100, core.FrequencyMonthly},
		{"occasional", 2, 300, core.FrequencyOccasional},
		{"no history", 0, 0, core.FrequencyOccasional},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &core.Contact{
				OutboundCount: tt.outbound,
				LastOutbound:  now,
				FirstOutbound: now.AddDate(0, 0, -tt.spanDays),
			}
			assert.Equal(t, tt.want, scorer.FrequencyClassFor(c))
		})
	}
}
