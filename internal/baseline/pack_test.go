/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package baseline

import "testing"

func TestPackUnpack(t *testing.T) {
	table := Default()

	packed, err := Pack(table)
	if err != nil {
		t.Fatalf("Pack error: %v", err)
	}
	if packed.Manifest.Features != table.Len() {
		t.Errorf("manifest features = %d, want %d", packed.Manifest.Features, table.Len())
	}
	if len(packed.Content) == 0 {
		t.Fatal("expected content bytes")
	}

	got, err := Unpack(packed.Content)
	if err != nil {
		t.Fatalf("Unpack error: %v", err)
	}
	if got.Len() != table.Len() {
		t.Fatalf("unpacked %d features, want %d", got.Len(), table.Len())
	}
	f, ok := got.Lookup("css-container-queries")
	if !ok {
		t.Fatal("expected css-container-queries to survive the pack")
	}
	if f.Status != StatusWidely {
		t.Errorf("status = %q, want widely", f.Status)
	}
}

func TestPackEmptyTable(t *testing.T) {
	if _, err := Pack(NewTable("x")); err == nil {
		t.Error("expected error packing empty table")
	}
	if _, err := Pack(nil); err == nil {
		t.Error("expected error packing nil table")
	}
}

func TestUnpackRejectsGarbage(t *testing.T) {
	if _, err := Unpack([]byte("not a gzip stream")); err == nil {
		t.Error("expected error for non-gzip content")
	}
}
