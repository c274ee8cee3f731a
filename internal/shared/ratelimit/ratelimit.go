/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package ratelimit throttles notification delivery. A file that flaps
// between good and bad states can fire the same alert dozens of times an
// hour; the limiter keeps that from flooding chat rooms and inboxes while
// still letting escalations through.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Config configures notification rate limiting.
type Config struct {
	// MaxPerHour caps total notifications per hour. Zero disables the cap.
	MaxPerHour int

	// MaxPerHourPerKey caps notifications per alert key per hour.
	// Zero disables the cap.
	MaxPerHourPerKey int

	// EscalationBurst allows escalations this many sends past MaxPerHour.
	EscalationBurst int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxPerHour:       120,
		MaxPerHourPerKey: 20,
		EscalationBurst:  10,
	}
}

// Decision represents whether a send is allowed and why not.
type Decision struct {
	Allowed bool
	Reason  string
}

// Limiter tracks recent sends in a sliding one-hour window.
type Limiter struct {
	config Config

	mu      sync.Mutex
	history []sendRecord
}

type sendRecord struct {
	key  string
	time time.Time
}

// NewLimiter creates a rate limiter.
func NewLimiter(cfg Config) *Limiter {
	return &Limiter{config: cfg}
}

// Allow checks whether a notification for the given alert key is permitted
// and records it when it is.
func (l *Limiter) Allow(key string, escalation bool) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.prune(now)

	if l.config.MaxPerHourPerKey > 0 {
		keyCount := l.countKey(key)
		if keyCount >= l.config.MaxPerHourPerKey {
			return Decision{
				Allowed: false,
				Reason:  fmt.Sprintf("per-alert rate limit reached (%d sends in last hour, max %d)", keyCount, l.config.MaxPerHourPerKey),
			}
		}
	}

	if l.config.MaxPerHour > 0 {
		max := l.config.MaxPerHour
		if escalation {
			max += l.config.EscalationBurst
		}
		if len(l.history) >= max {
			return Decision{
				Allowed: false,
				Reason:  fmt.Sprintf("global rate limit reached (%d sends in last hour, max %d)", len(l.history), max),
			}
		}
	}

	l.history = append(l.history, sendRecord{key: key, time: now})
	return Decision{Allowed: true}
}

// Stats returns current limiter state (for the status endpoint).
type Stats struct {
	SentLastHour int
	ByKey        map[string]int
}

// GetStats returns current limiter statistics.
func (l *Limiter) GetStats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(time.Now())

	byKey := make(map[string]int)
	for _, rec := range l.history {
		byKey[rec.key]++
	}
	return Stats{
		SentLastHour: len(l.history),
		ByKey:        byKey,
	}
}

// prune removes records older than 1 hour.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-1 * time.Hour)
	i := 0
	for i < len(l.history) && l.history[i].time.Before(cutoff) {
		i++
	}
	if i > 0 {
		l.history = l.history[i:]
	}
}

// countKey counts sends for this key in the history window.
func (l *Limiter) countKey(key string) int {
	n := 0
	for _, rec := range l.history {
		if rec.key == key {
			n++
		}
	}
	return n
}
