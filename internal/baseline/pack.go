/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package baseline

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Media types for baseline pack artifacts.
const (
	ArtifactType     = "application/vnd.basewatch.baseline.v1"
	MediaTypeConfig  = "application/vnd.basewatch.baseline.manifest.v1+json"
	MediaTypeContent = "application/vnd.basewatch.baseline.content.v1+tar+gzip"
)

const tableFileName = "baseline.yaml"

// Manifest describes a packed baseline table. Serialized as the artifact's
// config blob so registries can surface it without pulling content.
type Manifest struct {
	Version  string    `json:"version"`
	Features int       `json:"features"`
	Files    []string  `json:"files"`
	PackedAt time.Time `json:"packedAt"`
}

// Packed is a baseline table ready for registry push.
type Packed struct {
	Manifest Manifest
	Config   []byte // JSON manifest blob
	Content  []byte // tar+gzip with baseline.yaml
}

// Pack serializes the table into a registry-pushable artifact.
func Pack(t *Table) (*Packed, error) {
	if t == nil || t.Len() == 0 {
		return nil, fmt.Errorf("pack baseline: empty table")
	}

	tableData, err := t.MarshalYAML()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	hdr := &tar.Header{
		Name:    tableFileName,
		Mode:    0644,
		Size:    int64(len(tableData)),
		ModTime: time.Now().UTC(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return nil, fmt.Errorf("tar header: %w", err)
	}
	if _, err := tw.Write(tableData); err != nil {
		return nil, fmt.Errorf("tar write: %w", err)
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("tar close: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}

	manifest := Manifest{
		Version:  t.Version,
		Features: t.Len(),
		Files:    []string{tableFileName},
		PackedAt: time.Now().UTC(),
	}
	config, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}

	return &Packed{Manifest: manifest, Config: config, Content: buf.Bytes()}, nil
}

// Unpack extracts a baseline table from pack content bytes.
func Unpack(content []byte) (*Table, error) {
	gz, err := gzip.NewReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("gzip open: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("tar read: %w", err)
		}
		if hdr.Name != tableFileName {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", hdr.Name, err)
		}
		return Parse(data)
	}
	return nil, fmt.Errorf("pack has no %s", tableFileName)
}
