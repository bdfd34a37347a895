package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/mikey/inbox-intel/internal/adapters/ingest"
	"github.com/mikey/inbox-intel/internal/adapters/store"
	"github.com/mikey/inbox-intel/internal/core"
	"github.com/mikey/inbox-intel/internal/di"
	"github.com/mikey/inbox-intel/internal/utils"
	"go.uber.org/zap"
)

func main() {
	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run executes one CLI invocation with all dependencies injected
func run(
	flags *di.CLIFlags,
	logger *zap.Logger,
	memStore *store.MemoryStore,
	mailboxProvider core.MailboxProvider,
	service *core.IntelligenceService,
	llmClient core.LLMClient,
	text *utils.TextProcessor,
) error {
	defer logger.Sync()

	if flags.UserEmail == "" {
		return fmt.Errorf("the -user flag is required")
	}

	ctx := context.Background()
	user := memStore.AddUser(flags.UserEmail, "")

	defer func() {
		if closer, ok := llmClient.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				logger.Error("Failed to close LLM client", zap.Error(err))
			}
		}
	}()

	switch flags.Mode {
	case "triage":
		return runTriage(ctx, flags, logger, memStore, user, service, text)
	case "intel":
		return runIntel(ctx, flags, logger, memStore, user, mailboxProvider, service)
	default:
		return fmt.Errorf("unsupported mode: %s", flags.Mode)
	}
}

// runTriage classifies a single message read from a file or stdin
func runTriage(
	ctx context.Context,
	flags *di.CLIFlags,
	logger *zap.Logger,
	memStore *store.MemoryStore,
	user *core.User,
	service *core.IntelligenceService,
	text *utils.TextProcessor,
) error {
	var reader io.Reader
	if flags.InputFile != "" {
		file, err := os.Open(flags.InputFile)
		if err != nil {
			return fmt.Errorf("failed to open input file %s: %w", flags.InputFile, err)
		}
		defer file.Close()
		reader = file
		logger.Info("Reading message from file", zap.String("file", flags.InputFile))
	} else {
		reader = os.Stdin
		logger.Info("Reading message from stdin")
	}

	raw, err := io.ReadAll(bufio.NewReader(reader))
	if err != nil {
		return fmt.Errorf("failed to read message: %w", err)
	}

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to parse message: %w", err)
	}

	textContent, err := ingest.ExtractText(parsed)
	if err != nil {
		return fmt.Errorf("failed to extract text content: %w", err)
	}

	sentAt := time.Now()
	if date, err := parsed.Header.Date(); err == nil {
		sentAt = date
	}

	body := text.SanitizeUTF8(textContent)
	msg := &core.Message{
		From:        parsed.Header.Get("From"),
		To:          strings.Split(parsed.Header.Get("To"), ","),
		Subject:     parsed.Header.Get("Subject"),
		Body:        body,
		BodyPreview: text.Preview(body, 200),
		SentAt:      sentAt,
	}
	if _, err := memStore.SaveMessage(ctx, user.ID, msg); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	fmt.Printf("\n=== Message Summary ===\n")
	fmt.Printf("From: %s\n", msg.From)
	fmt.Printf("To: %s\n", strings.Join(msg.To, ", "))
	fmt.Printf("Subject: %s\n", msg.Subject)
	fmt.Printf("Body length: %d bytes\n", len(msg.Body))

	startTime := time.Now()
	decision := service.Classify(ctx, user.ID, msg)
	duration := time.Since(startTime)

	fmt.Printf("\n=== Triage Decision ===\n")
	fmt.Printf("Action: %s\n", decision.Action)
	fmt.Printf("Confidence: %s\n", decision.Confidence)
	fmt.Printf("Priority: %.4f\n", decision.Priority)
	fmt.Printf("Estimated cost: %d tokens\n", decision.EstimatedCost)
	fmt.Printf("Reason: %s\n", decision.Reason)
	fmt.Printf("Processing time: %v\n", duration)

	return nil
}

// runIntel loads a mailbox directory and runs the full synthesis pipeline
func runIntel(
	ctx context.Context,
	flags *di.CLIFlags,
	logger *zap.Logger,
	memStore *store.MemoryStore,
	user *core.User,
	mailboxProvider core.MailboxProvider,
	service *core.IntelligenceService,
) error {
	if flags.MailboxDir == "" {
		return fmt.Errorf("the -mailbox flag is required in intel mode")
	}

	refs, err := mailboxProvider.ListRecent(ctx, user, time.Time{}, 0)
	if err != nil {
		return fmt.Errorf("failed to list mailbox: %w", err)
	}

	loaded := 0
	for _, ref := range refs {
		msg, err := mailboxProvider.FetchFull(ctx, ref)
		if err != nil {
			logger.Warn("Skipping unreadable message",
				zap.String("ref", ref.ID),
				zap.Error(err))
			continue
		}
		msg.Outbound = strings.EqualFold(msg.From, user.Email)
		if _, err := memStore.SaveMessage(ctx, user.ID, msg); err != nil {
			logger.Warn("Failed to save message", zap.String("ref", ref.ID), zap.Error(err))
			continue
		}
		loaded++
	}
	logger.Info("Loaded mailbox",
		zap.String("dir", flags.MailboxDir),
		zap.Int("messages", loaded))

	startTime := time.Now()
	result, err := service.GenerateStrategicIntelligence(ctx, user.Email, flags.ForceRefresh)
	if err != nil {
		return fmt.Errorf("failed to generate intelligence: %w", err)
	}
	duration := time.Since(startTime)

	fmt.Printf("\n=== Intelligence Brief for %s ===\n", result.UserEmail)
	fmt.Printf("%s\n", result.Brief.ExecutiveSummary)

	printRecommendations("Immediate Actions", result.Brief.ImmediateActions)
	printRecommendations("Short-Term Actions", result.Brief.ShortTermActions)
	printContexts("Opportunities", result.Brief.Opportunities)
	printContexts("Risks", result.Brief.Risks)
	printContexts("Key Relationships", result.Brief.KeyRelationships)
	printContexts("Active Projects", result.Brief.ActiveProjects)

	fmt.Printf("\n=== Pipeline Stages ===\n")
	for _, st := range result.Stages {
		if st.Reason != "" {
			fmt.Printf("%-16s %s (%s)\n", st.Stage, st.State, st.Reason)
		} else {
			fmt.Printf("%-16s %s\n", st.Stage, st.State)
		}
	}
	fmt.Printf("\nGenerated in %v (from cache: %t)\n", duration, result.FromCache)

	return nil
}

func printRecommendations(title string, recs []core.StrategicRecommendation) {
	if len(recs) == 0 {
		return
	}
	fmt.Printf("\n--- %s ---\n", title)
	for _, rec := range recs {
		fmt.Printf("[%s] %s\n", rec.Urgency, rec.Title)
		if rec.Description != "" {
			fmt.Printf("    %s\n", rec.Description)
		}
	}
}

func printContexts(title string, contexts []core.BusinessContext) {
	if len(contexts) == 0 {
		return
	}
	fmt.Printf("\n--- %s ---\n", title)
	for _, c := range contexts {
		fmt.Printf("%s (priority %.2f)\n", c.Name, c.PriorityScore)
		if c.Description != "" {
			fmt.Printf("    %s\n", c.Description)
		}
	}
}
