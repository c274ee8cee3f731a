/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package baseline holds the web-platform feature table the analyzer
// classifies source files against. A table maps feature IDs to their
// availability status (widely, newly, limited) plus the source patterns
// that betray their use. Tables ship built in, load from YAML files, and
// distribute as OCI artifacts ("baseline packs").
package baseline

import (
	"fmt"
	"sort"
	"strings"
)

// Status is the availability classification of a web feature.
type Status string

const (
	// StatusWidely marks features supported across all major engines for
	// long enough to use without guards.
	StatusWidely Status = "widely"
	// StatusNewly marks features that reached cross-engine support recently.
	StatusNewly Status = "newly"
	// StatusLimited marks features missing from at least one major engine.
	StatusLimited Status = "limited"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusWidely, StatusNewly, StatusLimited:
		return true
	}
	return false
}

// Feature is one entry in the baseline table.
type Feature struct {
	ID       string   `yaml:"id" json:"id"`
	Name     string   `yaml:"name" json:"name"`
	Status   Status   `yaml:"status" json:"status"`
	Since    string   `yaml:"since,omitempty" json:"since,omitempty"`
	Patterns []string `yaml:"patterns" json:"patterns"`
	Hint     string   `yaml:"hint,omitempty" json:"hint,omitempty"`
}

// Validate checks that the feature entry is usable.
func (f Feature) Validate() error {
	if strings.TrimSpace(f.ID) == "" {
		return fmt.Errorf("feature missing id")
	}
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("feature %s: missing name", f.ID)
	}
	if !f.Status.Valid() {
		return fmt.Errorf("feature %s: invalid status %q", f.ID, f.Status)
	}
	if len(f.Patterns) == 0 {
		return fmt.Errorf("feature %s: no patterns", f.ID)
	}
	for _, p := range f.Patterns {
		if p == "" {
			return fmt.Errorf("feature %s: empty pattern", f.ID)
		}
	}
	return nil
}

// Table is a set of features keyed by ID.
type Table struct {
	Version  string
	features map[string]Feature
}

// NewTable creates an empty table.
func NewTable(version string) *Table {
	return &Table{Version: version, features: make(map[string]Feature)}
}

// Add inserts or replaces a feature after validating it.
func (t *Table) Add(f Feature) error {
	if err := f.Validate(); err != nil {
		return err
	}
	t.features[f.ID] = f
	return nil
}

// Lookup returns the feature with the given ID.
func (t *Table) Lookup(id string) (Feature, bool) {
	f, ok := t.features[id]
	return f, ok
}

// Features returns all entries sorted by ID.
func (t *Table) Features() []Feature {
	out := make([]Feature, 0, len(t.features))
	for _, f := range t.features {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of features in the table.
func (t *Table) Len() int {
	return len(t.features)
}

// Merge overlays other onto t. Entries in other win on ID conflicts, so a
// loaded table can override built-in classifications.
func (t *Table) Merge(other *Table) {
	if other == nil {
		return
	}
	for id, f := range other.features {
		t.features[id] = f
	}
	if other.Version != "" {
		t.Version = other.Version
	}
}

// Default returns the built-in feature table. Statuses track the public
// baseline data as of the version stamp; override entries with a loaded
// table when they drift.
func Default() *Table {
	t := NewTable("2026-08")
	for _, f := range defaultFeatures {
		// Entries are static; validation failures here are programmer error.
		if err := t.Add(f); err != nil {
			panic(err)
		}
	}
	return t
}

var defaultFeatures = []Feature{
	{
		ID: "css-has", Name: ":has() selector", Status: StatusWidely, Since: "2023-12",
		Patterns: []string{":has("},
	},
	{
		ID: "css-container-queries", Name: "Container queries", Status: StatusWidely, Since: "2023-02",
		Patterns: []string{"@container", "container-type:", "container-type :"},
	},
	{
		ID: "css-subgrid", Name: "Subgrid", Status: StatusWidely, Since: "2023-09",
		Patterns: []string{"subgrid"},
	},
	{
		ID: "css-nesting", Name: "CSS nesting", Status: StatusNewly, Since: "2023-12",
		Patterns: []string{"&:hover", "& >", "& +"},
		Hint:     "Flatten nested rules or run them through a preprocessor for older engines.",
	},
	{
		ID: "css-property-at-rule", Name: "@property", Status: StatusNewly, Since: "2024-07",
		Patterns: []string{"@property"},
		Hint:     "Registered custom properties fall back silently; declare plain custom properties too.",
	},
	{
		ID: "css-text-wrap-balance", Name: "text-wrap: balance", Status: StatusNewly, Since: "2024-03",
		Patterns: []string{"text-wrap"},
	},
	{
		ID: "css-anchor-positioning", Name: "Anchor positioning", Status: StatusLimited,
		Patterns: []string{"anchor-name", "position-anchor", "anchor("},
		Hint:     "Anchor positioning is missing outside Chromium; use a positioning library as fallback.",
	},
	{
		ID: "html-dialog", Name: "<dialog> element", Status: StatusWidely, Since: "2022-03",
		Patterns: []string{"<dialog", "showModal("},
	},
	{
		ID: "html-popover", Name: "Popover API", Status: StatusNewly, Since: "2024-04",
		Patterns: []string{"popovertarget", "showPopover("},
		Hint:     "Include the popover polyfill until the since date clears your support window.",
	},
	{
		ID: "js-structured-clone", Name: "structuredClone()", Status: StatusWidely, Since: "2022-03",
		Patterns: []string{"structuredClone("},
	},
	{
		ID: "js-array-at", Name: "Array.prototype.at()", Status: StatusWidely, Since: "2022-03",
		Patterns: []string{".at(-"},
	},
	{
		ID: "js-top-level-await", Name: "Top-level await", Status: StatusWidely, Since: "2021-08",
		Patterns: []string{"await import("},
	},
	{
		ID: "js-import-maps", Name: "Import maps", Status: StatusWidely, Since: "2023-03",
		Patterns: []string{`type="importmap"`},
	},
	{
		ID: "js-promise-with-resolvers", Name: "Promise.withResolvers()", Status: StatusNewly, Since: "2024-03",
		Patterns: []string{"Promise.withResolvers("},
		Hint:     "A three-line shim covers engines older than the since date.",
	},
	{
		ID: "js-array-from-async", Name: "Array.fromAsync()", Status: StatusNewly, Since: "2024-01",
		Patterns: []string{"Array.fromAsync("},
	},
	{
		ID: "api-clipboard", Name: "Async Clipboard API", Status: StatusWidely, Since: "2023-06",
		Patterns: []string{"navigator.clipboard"},
	},
	{
		ID: "api-offscreen-canvas", Name: "OffscreenCanvas", Status: StatusWidely, Since: "2023-03",
		Patterns: []string{"OffscreenCanvas"},
	},
	{
		ID: "api-view-transitions", Name: "View Transitions", Status: StatusLimited,
		Patterns: []string{"startViewTransition"},
		Hint:     "Guard with 'document.startViewTransition?.' and treat the transition as progressive enhancement.",
	},
	{
		ID: "api-urlpattern", Name: "URLPattern", Status: StatusLimited,
		Patterns: []string{"new URLPattern"},
		Hint:     "Ship the urlpattern-polyfill or route with a userland matcher.",
	},
	{
		ID: "api-webgpu", Name: "WebGPU", Status: StatusLimited,
		Patterns: []string{"navigator.gpu"},
		Hint:     "WebGPU needs feature detection and a WebGL fallback path.",
	},
	{
		ID: "api-navigation", Name: "Navigation API", Status: StatusLimited,
		Patterns: []string{"navigation.navigate(", "navigation.addEventListener"},
		Hint:     "Keep History API handling alongside the Navigation API.",
	},
	{
		ID: "api-scheduler-post-task", Name: "scheduler.postTask()", Status: StatusLimited,
		Patterns: []string{"scheduler.postTask("},
		Hint:     "Fall back to setTimeout scheduling where scheduler is undefined.",
	},
}
