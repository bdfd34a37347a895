package engagement

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mikey/inbox-intel/internal/core"
	"github.com/mikey/inbox-intel/internal/keywords"
	"go.uber.org/zap"
)

// TierStore is the in-memory per-user mapping from contact identity to tier.
// It is lazily populated from outbound history on first access and cached for
// the lifetime of the store instance. Triage and UI-facing tier queries must
// consult the same instance so both get identical answers.
type TierStore struct {
	store     core.RecordStore
	scorer    *Scorer
	extractor *keywords.Extractor
	logger    *zap.Logger

	mu       sync.RWMutex
	contacts map[string]map[string]*core.Contact
}

// NewTierStore creates a new tier store
func NewTierStore(store core.RecordStore, scorer *Scorer, extractor *keywords.Extractor, logger *zap.Logger) *TierStore {
	return &TierStore{
		store:     store,
		scorer:    scorer,
		extractor: extractor,
		logger:    logger,
		contacts:  make(map[string]map[string]*core.Contact),
	}
}

// Lookup returns the contact record for a sender, computing the user's
// contact map on first access
func (t *TierStore) Lookup(ctx context.Context, userID, senderEmail string) (*core.Contact, bool) {
	byUser, err := t.forUser(ctx, userID)
	if err != nil {
		t.logger.Warn("Failed to build contact tiers",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, false
	}

	contact, ok := byUser[normalizeAddress(senderEmail)]
	return contact, ok
}

// Contacts returns all scored contacts for a user, highest score first
func (t *TierStore) Contacts(ctx context.Context, userID string) ([]core.Contact, error) {
	byUser, err := t.forUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]core.Contact, 0, len(byUser))
	for _, c := range byUser {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EngagementScore != out[j].EngagementScore {
			return out[i].EngagementScore > out[j].EngagementScore
		}
		return out[i].Email < out[j].Email
	})
	return out, nil
}

// Invalidate drops the cached contact map for a user, forcing recomputation
// on the next access
func (t *TierStore) Invalidate(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.contacts, userID)
}

func (t *TierStore) forUser(ctx context.Context, userID string) (map[string]*core.Contact, error) {
	t.mu.RLock()
	byUser, ok := t.contacts[userID]
	t.mu.RUnlock()
	if ok {
		return byUser, nil
	}

	built, err := t.build(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Replace wholesale under the lock so a rebuild is atomic per user.
	t.mu.Lock()
	t.contacts[userID] = built
	t.mu.Unlock()

	t.logger.Debug("Built contact tier map",
		zap.String("user_id", userID),
		zap.Int("contacts", len(built)))

	return built, nil
}

// build scans the user's full history and derives one scored contact per
// correspondent address
func (t *TierStore) build(ctx context.Context, userID string) (map[string]*core.Contact, error) {
	outbound, err := t.store.GetMessages(ctx, userID, core.MessageFilter{OutboundOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to load outbound history: %w", err)
	}
	inbound, err := t.store.GetMessages(ctx, userID, core.MessageFilter{InboundOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to load inbound history: %w", err)
	}

	contacts := make(map[string]*core.Contact)

	for _, msg := range outbound {
		for _, rcpt := range msg.To {
			addr := normalizeAddress(rcpt)
			if addr == "" {
				continue
			}
			c, ok := contacts[addr]
			if !ok {
				c = &core.Contact{
					Email:         addr,
					FirstOutbound: msg.SentAt,
					LastOutbound:  msg.SentAt,
				}
				contacts[addr] = c
			}
			c.OutboundCount++
			if msg.SentAt.Before(c.FirstOutbound) {
				c.FirstOutbound = msg.SentAt
			}
			if msg.SentAt.After(c.LastOutbound) {
				c.LastOutbound = msg.SentAt
			}
			c.Topics = mergeTopics(c.Topics, t.extractor.Extract(msg.Subject))
		}
	}

	for _, msg := range inbound {
		addr := normalizeAddress(msg.From)
		if c, ok := contacts[addr]; ok {
			c.InboundCount++
		}
	}

	for _, c := range contacts {
		c.EngagementScore = t.scorer.Score(c)
		c.Tier = t.scorer.TierFor(c.EngagementScore)
		c.Frequency = t.scorer.FrequencyClassFor(c)
	}

	return contacts, nil
}

func mergeTopics(existing, extra []string) []string {
	for _, topic := range extra {
		seen := false
		for _, have := range existing {
			if have == topic {
				seen = true
				break
			}
		}
		if !seen {
			existing = append(existing, topic)
		}
	}
	return existing
}

// normalizeAddress lowers and trims an address; contact identity is the
// normalized form
func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(strings.ToLower(addr))
	if start := strings.LastIndex(addr, "<"); start >= 0 {
		if end := strings.Index(addr[start:], ">"); end > 0 {
			addr = addr[start+1 : start+end]
		}
	}
	return addr
}
