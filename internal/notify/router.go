/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package notify

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/kmattern/basewatch/internal/alerts"
	"github.com/kmattern/basewatch/internal/config"
	"github.com/kmattern/basewatch/internal/shared/ratelimit"
	"github.com/kmattern/basewatch/internal/telemetry"
)

// Router fans alerts out to every configured channel. It implements the
// alert manager's Notifier contract: one Delivery per channel, failures
// isolated so a dead endpoint cannot mute the others.
type Router struct {
	channels []Channel
	limiter  *ratelimit.Limiter
	log      logr.Logger
}

// NewRouter creates a notification router.
func NewRouter(channels []Channel, limiter *ratelimit.Limiter, log logr.Logger) *Router {
	return &Router{channels: channels, limiter: limiter, log: log}
}

// Notify sends the alert to all channels and reports per-channel outcomes.
// A rate-limited alert is dropped before any channel is attempted.
func (r *Router) Notify(ctx context.Context, kind alerts.NotificationKind, alert *alerts.Alert) []alerts.Delivery {
	if len(r.channels) == 0 {
		return nil
	}

	if r.limiter != nil {
		decision := r.limiter.Allow(alert.Key, kind == alerts.KindEscalation)
		if !decision.Allowed {
			r.log.Info("notification rate-limited", "alert_id", alert.ID, "reason", decision.Reason)
			return nil
		}
	}

	deliveries := make([]alerts.Delivery, 0, len(r.channels))
	for _, ch := range r.channels {
		_, span := telemetry.StartDispatchSpan(ctx, ch.Type())
		err := ch.Send(ctx, kind, alert)
		if err != nil {
			r.log.Error(err, "notification failed", "channel", ch.Type(), "alert_id", alert.ID)
			telemetry.EndDispatchSpan(span, false, err.Error())
		} else {
			r.log.V(1).Info("notification sent", "channel", ch.Type(), "alert_id", alert.ID, "kind", string(kind))
			telemetry.EndDispatchSpan(span, true, "")
		}
		deliveries = append(deliveries, alerts.Delivery{Channel: ch.Type(), Err: err})
	}
	return deliveries
}

// ChannelTypes lists the configured channel type names.
func (r *Router) ChannelTypes() []string {
	types := make([]string, 0, len(r.channels))
	for _, ch := range r.channels {
		types = append(types, ch.Type())
	}
	return types
}

// LimiterStats exposes rate limiter counters for the status endpoint.
// The second return is false when no limiter is configured.
func (r *Router) LimiterStats() (ratelimit.Stats, bool) {
	if r.limiter == nil {
		return ratelimit.Stats{}, false
	}
	return r.limiter.GetStats(), true
}

// Close releases channel resources, such as the NATS connection.
func (r *Router) Close() {
	for _, ch := range r.channels {
		if closer, ok := ch.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}

// FromConfig builds a router with the channel set named in the
// notification config. Channels requiring endpoints fail construction when
// those endpoints are missing rather than failing on first send.
func FromConfig(cfg config.NotificationConfig, logger *zap.Logger) (*Router, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := zapr.NewLogger(logger.Named("notify"))

	var channels []Channel
	for _, name := range cfg.Channels {
		switch name {
		case "console":
			channels = append(channels, NewConsoleChannel(logger.Named("alert")))
		case "file":
			dir := cfg.FileDir
			if dir == "" {
				dir = "alert-logs"
			}
			channels = append(channels, NewFileChannel(dir, cfg.FileMaxSize))
		case "webhook":
			if cfg.Webhook.URL == "" {
				return nil, fmt.Errorf("webhook channel enabled without notifications.webhook.url")
			}
			channels = append(channels, NewWebhookChannel(cfg.Webhook.URL, cfg.Webhook.Secret, cfg.DryRun, log))
		case "email":
			if cfg.Email.Host == "" || len(cfg.Email.To) == 0 {
				return nil, fmt.Errorf("email channel enabled without notifications.email host and recipients")
			}
			channels = append(channels, NewEmailChannel(
				cfg.Email.Host, cfg.Email.Port, cfg.Email.From, cfg.Email.To,
				cfg.Email.Username, cfg.Email.Password, cfg.DryRun, log))
		case "chat":
			if cfg.Chat.WebhookURL == "" {
				return nil, fmt.Errorf("chat channel enabled without notifications.chat.webhook_url")
			}
			channels = append(channels, NewChatChannel(cfg.Chat.WebhookURL, cfg.DryRun, log))
		case "nats":
			if cfg.NATS.URL == "" {
				return nil, fmt.Errorf("nats channel enabled without notifications.nats.url")
			}
			conn, err := nats.Connect(cfg.NATS.URL,
				nats.Name("basewatch"),
				nats.MaxReconnects(-1),
			)
			if err != nil {
				return nil, fmt.Errorf("connect nats: %w", err)
			}
			channels = append(channels, NewNATSChannel(conn, cfg.NATS.SubjectPrefix, cfg.DryRun, log))
		default:
			return nil, fmt.Errorf("unknown notification channel %q", name)
		}
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimitPerHour > 0 {
		limiter = ratelimit.NewLimiter(ratelimit.Config{
			MaxPerHourPerKey: cfg.RateLimitPerHour,
			MaxPerHour:       cfg.RateLimitPerHour * 10,
			EscalationBurst:  cfg.RateLimitPerHour,
		})
	}

	return NewRouter(channels, limiter, log), nil
}
