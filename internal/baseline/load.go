/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package baseline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// document is the YAML wire shape of a baseline table.
type document struct {
	Version  string    `yaml:"version"`
	Features []Feature `yaml:"features"`
}

// Parse decodes a YAML baseline document into a table.
func Parse(data []byte) (*Table, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse baseline: %w", err)
	}
	if len(doc.Features) == 0 {
		return nil, fmt.Errorf("baseline document has no features")
	}

	t := NewTable(doc.Version)
	for _, f := range doc.Features {
		if err := t.Add(f); err != nil {
			return nil, fmt.Errorf("baseline entry: %w", err)
		}
	}
	return t, nil
}

// LoadFile reads a baseline table from a YAML file.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read baseline: %w", err)
	}
	return Parse(data)
}

// Save writes the table as a YAML document with restrictive permissions.
func (t *Table) Save(path string) error {
	data, err := t.MarshalYAML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write baseline: %w", err)
	}
	return nil
}

// MarshalYAML renders the table as a YAML document.
func (t *Table) MarshalYAML() ([]byte, error) {
	doc := document{Version: t.Version, Features: t.Features()}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal baseline: %w", err)
	}
	return data, nil
}
