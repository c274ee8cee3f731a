/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package metrics defines Prometheus metrics for the monitor.
//
// All metrics register with the default registry and are served on the
// API server's /metrics endpoint.
//
// Metric naming follows Prometheus conventions:
//   - basewatch_ prefix for all custom metrics
//   - _total suffix for counters
//   - _seconds suffix for duration histograms
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// WatchEventsTotal counts raw change events by source and kind.
	WatchEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basewatch_watch_events_total",
			Help: "Total file change events by source (fsnotify, poll, rescan) and kind.",
		},
		[]string{"source", "kind"},
	)

	// DebounceCoalescedTotal counts change events absorbed by debouncing.
	DebounceCoalescedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "basewatch_debounce_coalesced_total",
			Help: "Total change events coalesced into an already-pending analysis.",
		},
	)

	// AnalysesTotal counts file analyses by outcome.
	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basewatch_analyses_total",
			Help: "Total file analyses by outcome (analyzed, unchanged, dropped, error, read_error).",
		},
		[]string{"outcome"},
	)

	// AnalysisDurationSeconds is a histogram of single-file analysis time.
	AnalysisDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "basewatch_analysis_duration_seconds",
			Help:    "Duration of single-file analyses in seconds.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// AlertsTotal counts alerts raised by type and severity.
	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basewatch_alerts_total",
			Help: "Total alerts raised by type and severity.",
		},
		[]string{"type", "severity"},
	)

	// AlertDuplicatesTotal counts raw alerts absorbed into an active alert.
	AlertDuplicatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "basewatch_alert_duplicates_total",
			Help: "Total raw alerts deduplicated into an existing active alert.",
		},
	)

	// EscalationsTotal counts severity promotions by resulting severity.
	EscalationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basewatch_escalations_total",
			Help: "Total alert escalations by resulting severity.",
		},
		[]string{"severity"},
	)

	// NotificationsTotal counts notification deliveries by channel and outcome.
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basewatch_notifications_total",
			Help: "Total notification deliveries by channel and outcome (ok, error).",
		},
		[]string{"channel", "outcome"},
	)

	// ActiveAlerts is the number of currently active alerts.
	ActiveAlerts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "basewatch_active_alerts",
			Help: "Number of currently active alerts.",
		},
	)

	// WatchedFiles is the number of files with a cached assessment.
	WatchedFiles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "basewatch_watched_files",
			Help: "Number of files with a current assessment.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		WatchEventsTotal,
		DebounceCoalescedTotal,
		AnalysesTotal,
		AnalysisDurationSeconds,
		AlertsTotal,
		AlertDuplicatesTotal,
		EscalationsTotal,
		NotificationsTotal,
		ActiveAlerts,
		WatchedFiles,
	)
}

// RecordWatchEvent records one raw change event.
func RecordWatchEvent(source, kind string) {
	WatchEventsTotal.WithLabelValues(source, kind).Inc()
}

// RecordCoalesced records a change event absorbed by the debouncer.
func RecordCoalesced() {
	DebounceCoalescedTotal.Inc()
}

// RecordAnalysis records one analysis attempt and its duration.
func RecordAnalysis(outcome string, duration time.Duration) {
	AnalysesTotal.WithLabelValues(outcome).Inc()
	if outcome == "analyzed" {
		AnalysisDurationSeconds.Observe(duration.Seconds())
	}
}

// RecordAlert records a newly raised alert.
func RecordAlert(alertType, severity string) {
	AlertsTotal.WithLabelValues(alertType, severity).Inc()
}

// RecordDuplicate records a deduplicated raw alert.
func RecordDuplicate() {
	AlertDuplicatesTotal.Inc()
}

// RecordEscalation records a severity promotion.
func RecordEscalation(severity string) {
	EscalationsTotal.WithLabelValues(severity).Inc()
}

// RecordNotification records one channel delivery outcome.
func RecordNotification(channel string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	NotificationsTotal.WithLabelValues(channel, outcome).Inc()
}
