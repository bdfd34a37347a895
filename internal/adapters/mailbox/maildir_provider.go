package mailbox

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mikey/inbox-intel/internal/adapters/ingest"
	"github.com/mikey/inbox-intel/internal/core"
	"github.com/mikey/inbox-intel/internal/utils"
	"go.uber.org/zap"
)

const previewSize = 200

// MaildirProvider reads a directory of RFC822 files as a mailbox. Each
// file is one message; the filesystem modification time stands in for
// receipt time when the Date header is missing.
type MaildirProvider struct {
	dir    string
	text   *utils.TextProcessor
	logger *zap.Logger
}

// NewMaildirProvider creates a mailbox provider over a directory of .eml files
func NewMaildirProvider(dir string, text *utils.TextProcessor, logger *zap.Logger) *MaildirProvider {
	return &MaildirProvider{
		dir:    dir,
		text:   text,
		logger: logger,
	}
}

// ListRecent returns handles to messages received since the given time
func (p *MaildirProvider) ListRecent(ctx context.Context, user *core.User, since time.Time, limit int) ([]core.MessageRef, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read mailbox directory: %w", err)
	}

	type candidate struct {
		name    string
		modTime time.Time
	}
	candidates := make([]candidate, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".eml") && !strings.HasSuffix(name, ".msg") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !since.IsZero() && info.ModTime().Before(since) {
			continue
		}
		candidates = append(candidates, candidate{name: name, modTime: info.ModTime()})
	}

	// Newest first, matching the record-store message ordering.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	refs := make([]core.MessageRef, 0, len(candidates))
	for _, c := range candidates {
		refs = append(refs, core.MessageRef{ID: c.name, Folder: p.dir})
	}

	p.logger.Debug("Listed mailbox messages",
		zap.String("dir", p.dir),
		zap.Int("count", len(refs)))

	return refs, nil
}

// FetchFull retrieves the decoded message for a handle
func (p *MaildirProvider) FetchFull(ctx context.Context, ref core.MessageRef) (*core.Message, error) {
	path := filepath.Join(ref.Folder, filepath.Base(ref.ID))
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read message file: %w", err)
	}

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message %s: %w", ref.ID, err)
	}

	textContent, err := ingest.ExtractText(parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text from %s: %w", ref.ID, err)
	}

	sentAt := time.Now()
	if date, err := parsed.Header.Date(); err == nil {
		sentAt = date
	}

	body := p.text.SanitizeUTF8(textContent)
	msg := &core.Message{
		ID:          ref.ID,
		From:        addressOf(parsed.Header.Get("From")),
		To:          addressListOf(parsed.Header.Get("To")),
		Subject:     parsed.Header.Get("Subject"),
		Body:        body,
		BodyPreview: p.text.Preview(body, previewSize),
		SentAt:      sentAt,
	}

	return msg, nil
}

func addressOf(header string) string {
	if addr, err := mail.ParseAddress(header); err == nil {
		return addr.Address
	}
	return strings.TrimSpace(header)
}

func addressListOf(header string) []string {
	if header == "" {
		return nil
	}
	addrs, err := mail.ParseAddressList(header)
	if err != nil {
		return []string{strings.TrimSpace(header)}
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Address)
	}
	return out
}
