/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package notify implements notification delivery to external channels.
// The alert manager hands alerts and escalations to a router, which fans
// them out to the console, a local log file, generic webhooks, SMTP,
// chat rooms, or a NATS subject.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/kmattern/basewatch/internal/alerts"
	"github.com/kmattern/basewatch/internal/shared/security"
	"github.com/kmattern/basewatch/internal/shared/signing"
)

// Channel is the interface for all notification backends.
type Channel interface {
	// Send delivers one alert or escalation. Returns an error if delivery
	// fails.
	Send(ctx context.Context, kind alerts.NotificationKind, alert *alerts.Alert) error

	// Type returns the channel type name.
	Type() string
}

// payload is the JSON body shared by the webhook and NATS channels.
type payload struct {
	ID        string       `json:"id"`
	Event     string       `json:"event"`
	Timestamp string       `json:"timestamp"`
	Alert     alerts.Alert `json:"alert"`
}

func eventName(kind alerts.NotificationKind) string {
	if kind == alerts.KindEscalation {
		return "alert.escalated"
	}
	return "alert.raised"
}

func marshalPayload(kind alerts.NotificationKind, a *alerts.Alert) []byte {
	outbound := *a
	outbound.Message = security.Sanitize(outbound.Message)
	body, _ := json.Marshal(payload{
		ID:        a.ID,
		Event:     eventName(kind),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Alert:     outbound,
	})
	return body
}

func subjectLine(kind alerts.NotificationKind, a *alerts.Alert) string {
	if kind == alerts.KindEscalation {
		return fmt.Sprintf("[ESCALATED %s] %s", strings.ToUpper(string(a.Severity)), a.Message)
	}
	return fmt.Sprintf("[%s] %s", strings.ToUpper(string(a.Severity)), a.Message)
}

// --- Console ---

// ConsoleChannel writes alerts to the process log.
type ConsoleChannel struct {
	logger *zap.Logger
}

// NewConsoleChannel creates a console notification channel.
func NewConsoleChannel(logger *zap.Logger) *ConsoleChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleChannel{logger: logger}
}

func (c *ConsoleChannel) Type() string { return "console" }

func (c *ConsoleChannel) Send(_ context.Context, kind alerts.NotificationKind, a *alerts.Alert) error {
	msg := a.Message
	if kind == alerts.KindEscalation {
		msg = fmt.Sprintf("escalated to %s: %s", a.Severity, a.Message)
	}

	fields := []zap.Field{
		zap.String("alert_id", a.ID),
		zap.String("type", string(a.Type)),
		zap.String("severity", string(a.Severity)),
		zap.Int("count", a.Count),
	}
	if a.Path != "" {
		fields = append(fields, zap.String("path", a.Path))
	}

	switch a.Severity {
	case alerts.SeverityCritical:
		c.logger.Error(msg, fields...)
	case alerts.SeverityHigh:
		c.logger.Warn(msg, fields...)
	default:
		c.logger.Info(msg, fields...)
	}
	return nil
}

// --- File ---

// FileChannel appends alerts as JSON lines to a date-stamped log file.
type FileChannel struct {
	Dir     string
	MaxSize int64

	mu sync.Mutex
}

// NewFileChannel creates a file notification channel. Files rotate when
// they exceed maxSize bytes.
func NewFileChannel(dir string, maxSize int64) *FileChannel {
	if maxSize <= 0 {
		maxSize = 10 << 20
	}
	return &FileChannel{Dir: dir, MaxSize: maxSize}
}

func (f *FileChannel) Type() string { return "file" }

type fileLine struct {
	TS        string `json:"ts"`
	Kind      string `json:"kind"`
	ID        string `json:"id"`
	Key       string `json:"key"`
	Type      string `json:"type"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	Path      string `json:"path,omitempty"`
	Count     int    `json:"count"`
	Escalated bool   `json:"escalated"`
}

func (f *FileChannel) Send(_ context.Context, kind alerts.NotificationKind, a *alerts.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return fmt.Errorf("create alert log dir: %w", err)
	}

	now := time.Now().UTC()
	path := filepath.Join(f.Dir, fmt.Sprintf("basewatch-alerts-%s.log", now.Format("2006-01-02")))
	if err := f.rotateIfNeeded(path, now); err != nil {
		return err
	}

	line, err := json.Marshal(fileLine{
		TS:        now.Format(time.RFC3339),
		Kind:      string(kind),
		ID:        a.ID,
		Key:       a.Key,
		Type:      string(a.Type),
		Severity:  string(a.Severity),
		Message:   a.Message,
		Path:      a.Path,
		Count:     a.Count,
		Escalated: a.Escalated,
	})
	if err != nil {
		return fmt.Errorf("marshal alert line: %w", err)
	}

	fh, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open alert log: %w", err)
	}
	defer fh.Close()

	if _, err := fh.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write alert log: %w", err)
	}
	return nil
}

// rotateIfNeeded moves an oversized log aside under a timestamped name so
// the next write starts a fresh file.
func (f *FileChannel) rotateIfNeeded(path string, now time.Time) error {
	info, err := os.Stat(path)
	if err != nil || info.Size() < f.MaxSize {
		return nil
	}

	ext := filepath.Ext(path)
	rotated := fmt.Sprintf("%s-%s%s", path[:len(path)-len(ext)], now.Format("150405"), ext)
	if err := os.Rename(path, rotated); err != nil {
		return fmt.Errorf("rotate alert log: %w", err)
	}
	return nil
}

// --- Webhook ---

// WebhookChannel sends JSON alerts to any HTTP endpoint. When a secret is
// configured, payloads carry an HMAC-SHA256 signature header.
type WebhookChannel struct {
	URL    string
	DryRun bool

	signer *signing.Signer
	client *http.Client
	log    logr.Logger
}

// NewWebhookChannel creates a webhook notification channel.
func NewWebhookChannel(url, secret string, dryRun bool, log logr.Logger) *WebhookChannel {
	w := &WebhookChannel{
		URL:    url,
		DryRun: dryRun,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
	if secret != "" {
		w.signer = signing.NewSigner([]byte(secret))
	}
	return w
}

func (w *WebhookChannel) Type() string { return "webhook" }

func (w *WebhookChannel) Send(ctx context.Context, kind alerts.NotificationKind, a *alerts.Alert) error {
	body := marshalPayload(kind, a)

	if w.DryRun {
		w.log.Info("dry run: skipping webhook delivery", "url", w.URL, "alert_id", a.ID)
		return nil
	}

	// One retry. Transient endpoint hiccups should not surface as a lost
	// notification.
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
		if lastErr = w.post(ctx, body); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (w *WebhookChannel) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.signer != nil {
		req.Header.Set(signing.Header, w.signer.Sign(body))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// --- Email ---

// EmailChannel sends notifications via SMTP.
type EmailChannel struct {
	Host     string
	Port     int
	From     string
	To       []string
	Username string
	Password string
	DryRun   bool

	log logr.Logger
}

// NewEmailChannel creates an email notification channel.
func NewEmailChannel(host string, port int, from string, to []string, username, password string, dryRun bool, log logr.Logger) *EmailChannel {
	return &EmailChannel{
		Host:     host,
		Port:     port,
		From:     from,
		To:       to,
		Username: username,
		Password: password,
		DryRun:   dryRun,
		log:      log,
	}
}

func (e *EmailChannel) Type() string { return "email" }

func (e *EmailChannel) Send(_ context.Context, kind alerts.NotificationKind, a *alerts.Alert) error {
	subject := fmt.Sprintf("[Basewatch] %s", security.Sanitize(subjectLine(kind, a)))
	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\n\nFile: %s\nType: %s\nOccurrences: %d\nFirst seen: %s\nLast seen: %s",
		e.From,
		strings.Join(e.To, ","),
		subject,
		security.Sanitize(a.Message),
		a.Path,
		a.Type,
		a.Count,
		a.FirstSeen.Format(time.RFC3339),
		a.LastSeen.Format(time.RFC3339),
	)

	if e.DryRun {
		e.log.Info("dry run: skipping email delivery", "to", strings.Join(e.To, ","), "alert_id", a.ID)
		return nil
	}

	addr := fmt.Sprintf("%s:%d", e.Host, e.Port)
	var auth smtp.Auth
	if e.Username != "" {
		auth = smtp.PlainAuth("", e.Username, e.Password, e.Host)
	}

	if err := smtp.SendMail(addr, auth, e.From, e.To, []byte(body)); err != nil {
		return fmt.Errorf("email send: %w", err)
	}
	return nil
}

// --- Chat ---

// ChatChannel posts alerts to a Slack-compatible incoming webhook.
type ChatChannel struct {
	WebhookURL string
	DryRun     bool

	client *http.Client
	log    logr.Logger
}

// NewChatChannel creates a chat notification channel.
func NewChatChannel(webhookURL string, dryRun bool, log logr.Logger) *ChatChannel {
	return &ChatChannel{
		WebhookURL: webhookURL,
		DryRun:     dryRun,
		client:     &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

func (c *ChatChannel) Type() string { return "chat" }

func (c *ChatChannel) Send(ctx context.Context, kind alerts.NotificationKind, a *alerts.Alert) error {
	text := fmt.Sprintf("*%s*", security.Sanitize(subjectLine(kind, a)))
	if a.Path != "" {
		text += fmt.Sprintf("\nFile: `%s`", a.Path)
	}
	if a.Count > 1 {
		text += fmt.Sprintf("\nSeen %d times since %s", a.Count, a.FirstSeen.Format(time.RFC3339))
	}

	if c.DryRun {
		c.log.Info("dry run: skipping chat delivery", "url", c.WebhookURL, "alert_id", a.ID)
		return nil
	}

	body, _ := json.Marshal(map[string]interface{}{"text": text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("chat send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chat returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// --- NATS ---

// natsPublisher is the part of nats.Conn the channel uses.
type natsPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// NATSChannel publishes alerts to a per-severity NATS subject.
type NATSChannel struct {
	SubjectPrefix string
	DryRun        bool

	conn natsPublisher
	log  logr.Logger
}

// NewNATSChannel creates a NATS notification channel on an established
// connection.
func NewNATSChannel(conn *nats.Conn, subjectPrefix string, dryRun bool, log logr.Logger) *NATSChannel {
	if subjectPrefix == "" {
		subjectPrefix = "basewatch.alerts"
	}
	return &NATSChannel{
		SubjectPrefix: subjectPrefix,
		DryRun:        dryRun,
		conn:          conn,
		log:           log,
	}
}

func (n *NATSChannel) Type() string { return "nats" }

func (n *NATSChannel) Send(_ context.Context, kind alerts.NotificationKind, a *alerts.Alert) error {
	subject := fmt.Sprintf("%s.%s", n.SubjectPrefix, a.Severity)

	if n.DryRun {
		n.log.Info("dry run: skipping nats publish", "subject", subject, "alert_id", a.ID)
		return nil
	}

	msg := nats.NewMsg(subject)
	msg.Header.Set("x-alert-id", a.ID)
	msg.Header.Set("x-alert-type", string(a.Type))
	msg.Header.Set("x-severity", string(a.Severity))
	msg.Data = marshalPayload(kind, a)

	if err := n.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Close closes the underlying connection when the channel owns one.
func (n *NATSChannel) Close() {
	if nc, ok := n.conn.(*nats.Conn); ok && nc != nil {
		nc.Close()
	}
}
