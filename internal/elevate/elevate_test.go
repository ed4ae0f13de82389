// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

package elevate

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"keron/internal/types"
)

func TestWritePayloadRoundTrips(t *testing.T) {
	op := types.PlannedOperation{ID: 7, Manifest: "m.lua", Action: types.CommandRun}
	path, err := writePayload(op)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(path)

	got, err := ReadPayload(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != op.ID || got.Manifest != op.Manifest || got.Action != op.Action {
		t.Errorf("got %+v, want %+v", got, op)
	}
}

func TestElevatedCommandFindsPosixHelper(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix-only helper resolution")
	}
	dir := t.TempDir()
	script := "#!/bin/sh\nexit 0\n"
	if err := os.WriteFile(filepath.Join(dir, "doas"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	orig := lookPath
	lookPath = func(name string) (string, error) {
		if name == "doas" {
			return filepath.Join(dir, "doas"), nil
		}
		return "", os.ErrNotExist
	}
	defer func() { lookPath = orig }()

	cmd, err := elevatedCommand(context.Background(), "/usr/bin/keron", "/tmp/payload.json")
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Args[0] != filepath.Join(dir, "doas") {
		t.Errorf("expected doas to be selected, got %v", cmd.Args)
	}
}

func TestElevatedCommandErrorsWithoutHelper(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix-only helper resolution")
	}
	orig := lookPath
	lookPath = func(name string) (string, error) { return "", os.ErrNotExist }
	defer func() { lookPath = orig }()

	if _, err := elevatedCommand(context.Background(), "/usr/bin/keron", "/tmp/payload.json"); err == nil {
		t.Fatal("expected error when no escalation helper is available")
	}
}
