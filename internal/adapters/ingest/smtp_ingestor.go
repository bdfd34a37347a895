package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/inbox-intel/internal/config"
	"github.com/mikey/inbox-intel/internal/core"
	"github.com/mikey/inbox-intel/internal/utils"
	"go.uber.org/zap"
)

const previewSize = 200

// SMTPIngestor accepts messages from an MTA as a content filter, records
// them for the owning user, stamps the triage decision as headers and
// relays the message onward.
type SMTPIngestor struct {
	store      core.RecordStore
	classifier core.MessageClassifier
	text       *utils.TextProcessor
	logger     *zap.Logger
	cfg        config.IngestConfig
	server     *smtp.Server
}

// NewSMTPIngestor creates a new SMTP ingestor
func NewSMTPIngestor(
	store core.RecordStore,
	classifier core.MessageClassifier,
	text *utils.TextProcessor,
	cfg config.IngestConfig,
	logger *zap.Logger,
) *SMTPIngestor {
	return &SMTPIngestor{
		store:      store,
		classifier: classifier,
		text:       text,
		cfg:        cfg,
		logger:     logger,
	}
}

// Start starts the SMTP ingestion service
func (f *SMTPIngestor) Start() error {
	f.server = smtp.NewServer(&smtpBackend{ingestor: f})

	f.server.Addr = f.cfg.ListenAddress
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024 // 30MB
	f.server.MaxRecipients = 50
	f.server.AllowInsecureAuth = true

	f.logger.Info("SMTP ingestor starting", zap.String("address", f.cfg.ListenAddress))

	go func() {
		if err := f.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				f.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop stops the SMTP ingestion service
func (f *SMTPIngestor) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ingest records an inbound message for a user and returns its triage
// decision. Unknown recipients are not an error; the message is simply
// passed through undecided.
func (f *SMTPIngestor) ingest(ctx context.Context, recipient string, msg *core.Message) (*core.ProcessingDecision, error) {
	user, err := f.store.GetUser(ctx, strings.ToLower(recipient))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	if _, err := f.store.SaveMessage(ctx, user.ID, msg); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	decision := f.classifier.Classify(ctx, user.ID, msg)
	return &decision, nil
}

// relay sends the processed message onward to the upstream MTA
func (f *SMTPIngestor) relay(sender string, recipients []string, emailData []byte) error {
	relayAddr := fmt.Sprintf("%s:%d", f.cfg.RelayAddress, f.cfg.RelayPort)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", relayAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to relay: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
		} else {
			recipientOK = true
		}
	}
	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}

	if _, err := wc.Write(emailData); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	ingestor *SMTPIngestor
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{
		ingestor:   b.ingestor,
		recipients: make([]string, 0),
	}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	ingestor   *SMTPIngestor
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// AuthPlain handles PLAIN authentication (not needed for ingestion)
func (s *smtpSession) AuthPlain(_ []byte) error {
	return smtp.ErrAuthUnsupported
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data handles the email data
func (s *smtpSession) Data(r io.Reader) error {
	rawData, err := io.ReadAll(r)
	if err != nil {
		s.ingestor.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	rawDataCopy := make([]byte, len(rawData))
	copy(rawDataCopy, rawData)

	parsed, err := mail.ReadMessage(bytes.NewReader(rawData))
	if err != nil {
		s.ingestor.logger.Error("Failed to parse email message", zap.Error(err))
		return err
	}

	textContent, err := ExtractText(parsed)
	if err != nil {
		s.ingestor.logger.Error("Failed to extract text content", zap.Error(err))
		return err
	}

	sentAt := time.Now()
	if date, err := parsed.Header.Date(); err == nil {
		sentAt = date
	}

	body := s.ingestor.text.SanitizeUTF8(textContent)
	msg := &core.Message{
		From:        s.sender,
		To:          s.recipients,
		Subject:     parsed.Header.Get("Subject"),
		Body:        body,
		BodyPreview: s.ingestor.text.Preview(body, previewSize),
		SentAt:      sentAt,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// One decision per delivery; the first recipient that resolves to a
	// known user owns the message record.
	var decision *core.ProcessingDecision
	for _, recipient := range s.recipients {
		d, err := s.ingestor.ingest(ctx, recipient, msg)
		if err != nil {
			s.ingestor.logger.Error("Failed to ingest message",
				zap.Error(err),
				zap.String("recipient", recipient),
				zap.String("sender", s.sender))
			continue
		}
		if d != nil {
			decision = d
			break
		}
	}

	var modifiedEmail bytes.Buffer

	if decision != nil {
		fmt.Fprintf(&modifiedEmail, "%s: %s\r\n", s.ingestor.cfg.ActionHeader, decision.Action)
		fmt.Fprintf(&modifiedEmail, "%s: %.4f\r\n", s.ingestor.cfg.PriorityHeader, decision.Priority)
		fmt.Fprintf(&modifiedEmail, "%s: %s\r\n", s.ingestor.cfg.ReasonHeader, sanitizeHeaderValue(decision.Reason))
	}

	for key, values := range parsed.Header {
		for _, value := range values {
			fmt.Fprintf(&modifiedEmail, "%s: %s\r\n", key, value)
		}
	}
	fmt.Fprintf(&modifiedEmail, "\r\n")

	// Preserve the original body bytes so MIME parts and attachments
	// survive the rewrite.
	bodyStartIndex := bytes.Index(rawDataCopy, []byte("\r\n\r\n"))
	if bodyStartIndex == -1 {
		bodyStartIndex = bytes.Index(rawDataCopy, []byte("\n\n"))
		if bodyStartIndex == -1 {
			modifiedEmail.WriteString(body)
		} else {
			modifiedEmail.Write(rawDataCopy[bodyStartIndex+2:])
		}
	} else {
		modifiedEmail.Write(rawDataCopy[bodyStartIndex+4:])
	}

	if s.ingestor.cfg.RelayEnabled {
		if err := s.ingestor.relay(s.sender, s.recipients, modifiedEmail.Bytes()); err != nil {
			s.ingestor.logger.Error("Failed to relay message",
				zap.Error(err),
				zap.String("sender", s.sender))
			return err
		}
	}

	logFields := []zap.Field{
		zap.String("from", s.sender),
		zap.Strings("to", s.recipients),
	}
	if decision != nil {
		logFields = append(logFields,
			zap.String("action", string(decision.Action)),
			zap.Float64("priority", decision.Priority))
	}
	s.ingestor.logger.Info("Ingested message", logFields...)

	return nil
}

// Logout handles SMTP logout (not needed for ingestion)
func (s *smtpSession) Logout() error {
	return nil
}

// sanitizeHeaderValue strips CR/LF so a triage reason cannot inject headers
func sanitizeHeaderValue(v string) string {
	v = strings.ReplaceAll(v, "\r", " ")
	v = strings.ReplaceAll(v, "\n", " ")
	return v
}
