/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package baseline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/content/memory"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"
)

// Ref locates a baseline pack in an OCI registry.
type Ref struct {
	Registry string
	Path     string
	Tag      string
	Digest   string
}

// ParseRef parses "registry/path[:tag][@digest]" into a Ref.
func ParseRef(raw string) (*Ref, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "oci://"))
	if raw == "" {
		return nil, fmt.Errorf("empty baseline ref")
	}

	var digest string
	if at := strings.Index(raw, "@"); at >= 0 {
		digest = raw[at+1:]
		raw = raw[:at]
	}

	var tag string
	if colon := strings.LastIndex(raw, ":"); colon > strings.LastIndex(raw, "/") {
		tag = raw[colon+1:]
		raw = raw[:colon]
	}

	slash := strings.Index(raw, "/")
	if slash < 0 {
		return nil, fmt.Errorf("baseline ref %q: missing repository path", raw)
	}

	return &Ref{
		Registry: raw[:slash],
		Path:     raw[slash+1:],
		Tag:      tag,
		Digest:   digest,
	}, nil
}

// String renders the ref in registry/path:tag form.
func (r *Ref) String() string {
	s := fmt.Sprintf("%s/%s", r.Registry, r.Path)
	if r.Tag != "" {
		s += ":" + r.Tag
	}
	if r.Digest != "" {
		s += "@" + r.Digest
	}
	return s
}

// RegistryClient pushes and pulls baseline packs from OCI registries.
type RegistryClient struct {
	// PlainHTTP allows insecure registries (for dev/test).
	PlainHTTP bool
	// Username for registry auth (anonymous if empty).
	Username string
	// Password for registry auth.
	Password string
}

// NewRegistryClient creates a client for OCI registry operations.
func NewRegistryClient() *RegistryClient {
	return &RegistryClient{}
}

// WithAuth sets credentials for registry authentication.
func (rc *RegistryClient) WithAuth(username, password string) *RegistryClient {
	rc.Username = username
	rc.Password = password
	return rc
}

// WithPlainHTTP enables HTTP (non-TLS) for dev registries.
func (rc *RegistryClient) WithPlainHTTP(plain bool) *RegistryClient {
	rc.PlainHTTP = plain
	return rc
}

// PushResult holds the outcome of pushing a baseline pack.
type PushResult struct {
	Ref      string `json:"ref"`
	Digest   string `json:"digest"`
	Features int    `json:"features"`
	Size     int64  `json:"size"`
}

// PullResult holds the outcome of pulling a baseline pack.
type PullResult struct {
	Ref      string `json:"ref"`
	Digest   string `json:"digest"`
	Version  string `json:"version,omitempty"`
	Features int    `json:"features,omitempty"`
}

// Push packs the table and pushes it to the registry at ref.
func (rc *RegistryClient) Push(ctx context.Context, t *Table, ref *Ref) (*PushResult, error) {
	packed, err := Pack(t)
	if err != nil {
		return nil, err
	}

	// Assemble the artifact in a memory store, then copy it out in one go.
	store := memory.New()

	configDesc, err := oras.PushBytes(ctx, store, MediaTypeConfig, packed.Config)
	if err != nil {
		return nil, fmt.Errorf("stage manifest blob: %w", err)
	}
	contentDesc, err := oras.PushBytes(ctx, store, MediaTypeContent, packed.Content)
	if err != nil {
		return nil, fmt.Errorf("stage content blob: %w", err)
	}

	manifestDesc, err := oras.PackManifest(ctx, store, oras.PackManifestVersion1_1, ArtifactType, oras.PackManifestOptions{
		ConfigDescriptor: &configDesc,
		Layers:           []ocispec.Descriptor{contentDesc},
	})
	if err != nil {
		return nil, fmt.Errorf("pack manifest: %w", err)
	}

	tag := ref.Tag
	if tag == "" {
		tag = "latest"
	}
	if err := store.Tag(ctx, manifestDesc, tag); err != nil {
		return nil, fmt.Errorf("tag manifest: %w", err)
	}

	repo, err := rc.repository(ref)
	if err != nil {
		return nil, fmt.Errorf("connect registry: %w", err)
	}

	copied, err := oras.Copy(ctx, store, tag, repo, tag, oras.DefaultCopyOptions)
	if err != nil {
		return nil, fmt.Errorf("push to registry: %w", err)
	}

	return &PushResult{
		Ref:      ref.String(),
		Digest:   copied.Digest.String(),
		Features: packed.Manifest.Features,
		Size:     contentDesc.Size,
	}, nil
}

// Pull fetches a baseline pack from the registry and decodes its table.
func (rc *RegistryClient) Pull(ctx context.Context, ref *Ref) (*Table, *PullResult, error) {
	repo, err := rc.repository(ref)
	if err != nil {
		return nil, nil, fmt.Errorf("connect registry: %w", err)
	}

	pullRef := ref.Tag
	if ref.Digest != "" {
		pullRef = ref.Digest
	}
	if pullRef == "" {
		pullRef = "latest"
	}

	store := memory.New()
	manifestDesc, err := oras.Copy(ctx, repo, pullRef, store, pullRef, oras.DefaultCopyOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("pull from registry: %w", err)
	}

	manifestData, err := content.FetchAll(ctx, store, manifestDesc)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch manifest: %w", err)
	}

	var manifest ocispec.Manifest
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		return nil, nil, fmt.Errorf("parse manifest: %w", err)
	}

	var packContent []byte
	for _, layer := range manifest.Layers {
		if layer.MediaType != MediaTypeContent {
			continue
		}
		packContent, err = content.FetchAll(ctx, store, layer)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch content layer: %w", err)
		}
		break
	}
	if packContent == nil {
		return nil, nil, fmt.Errorf("no baseline content layer in %s", ref)
	}

	table, err := Unpack(packContent)
	if err != nil {
		return nil, nil, err
	}

	result := &PullResult{
		Ref:      ref.String(),
		Digest:   manifestDesc.Digest.String(),
		Version:  table.Version,
		Features: table.Len(),
	}
	if manifest.Config.Size > 0 {
		if configData, err := content.FetchAll(ctx, store, manifest.Config); err == nil {
			var m Manifest
			if json.Unmarshal(configData, &m) == nil && m.Version != "" {
				result.Version = m.Version
			}
		}
	}

	return table, result, nil
}

func (rc *RegistryClient) repository(ref *Ref) (*remote.Repository, error) {
	repo, err := remote.NewRepository(fmt.Sprintf("%s/%s", ref.Registry, ref.Path))
	if err != nil {
		return nil, err
	}

	repo.PlainHTTP = rc.PlainHTTP

	if rc.Username != "" {
		repo.Client = &auth.Client{
			Client: retry.DefaultClient,
			Credential: auth.StaticCredential(ref.Registry, auth.Credential{
				Username: rc.Username,
				Password: rc.Password,
			}),
		}
	}

	return repo, nil
}
