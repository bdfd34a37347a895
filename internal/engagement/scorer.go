package engagement

import (
	"time"

	"github.com/mikey/inbox-intel/internal/config"
	"github.com/mikey/inbox-intel/internal/core"
)

// Scorer computes a continuous engagement score and discrete tier for a
// contact from its outbound-message history. Scoring is idempotent and
// re-derivable from raw history at any time.
type Scorer struct {
	cfg config.ScoringConfig
	now func() time.Time
}

// NewScorer creates a new engagement scorer
func NewScorer(cfg config.ScoringConfig) *Scorer {
	return &Scorer{
		cfg: cfg,
		now: time.Now,
	}
}

// NewScorerAt creates a scorer with a fixed clock, used by tests
func NewScorerAt(cfg config.ScoringConfig, now func() time.Time) *Scorer {
	return &Scorer{
		cfg: cfg,
		now: now,
	}
}

// Score computes the engagement score for a contact in [0,1].
// The score is the sum of three independently capped terms: outbound
// frequency, recency of last outbound message, and relationship span.
// Contacts with no outbound history get a fixed floor, never zero.
func (s *Scorer) Score(c *core.Contact) float64 {
	if c == nil || c.OutboundCount == 0 {
		return s.cfg.NoHistoryFloor
	}

	now := s.now()

	frequency := float64(c.OutboundCount) / s.cfg.FrequencyDivisor
	if frequency > s.cfg.FrequencyCap {
		frequency = s.cfg.FrequencyCap
	}

	daysSinceLast := now.Sub(c.LastOutbound).Hours() / 24
	recency := s.cfg.RecencyWeight - (daysSinceLast/s.cfg.RecencyWindowDays)*s.cfg.RecencyWeight
	if recency < 0 {
		recency = 0
	}

	spanDays := c.LastOutbound.Sub(c.FirstOutbound).Hours() / 24
	span := spanDays / s.cfg.SpanWindowDays * s.cfg.SpanWeight
	if span > s.cfg.SpanWeight {
		span = s.cfg.SpanWeight
	}

	return frequency + recency + span
}

// TierFor maps a score onto a discrete tier
func (s *Scorer) TierFor(score float64) core.Tier {
	switch {
	case score > s.cfg.Tier1Threshold:
		return core.Tier1
	case score > s.cfg.Tier2Threshold:
		return core.Tier2
	default:
		return core.TierLast
	}
}

// FrequencyClassFor buckets a contact's outbound rate over its span
func (s *Scorer) FrequencyClassFor(c *core.Contact) core.FrequencyClass {
	if c.OutboundCount == 0 {
		return core.FrequencyOccasional
	}
	spanDays := c.LastOutbound.Sub(c.FirstOutbound).Hours() / 24
	if spanDays < 1 {
		spanDays = 1
	}
	perDay := float64(c.OutboundCount) / spanDays
	switch {
	case perDay >= 1:
		return core.FrequencyDaily
	case perDay >= 1.0/7:
		return core.FrequencyWeekly
	case perDay >= 1.0/30:
		return core.FrequencyMonthly
	default:
		return core.FrequencyOccasional
	}
}
