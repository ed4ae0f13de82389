// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

package secret

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// shimBinary writes a tiny shell script called name onto a temp PATH
// directory that prints output regardless of its arguments.
func shimBinary(t *testing.T, name, output string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shim uses a POSIX shebang script")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\necho \"" + output + "\"\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestResolverPPScheme(t *testing.T) {
	binDir := shimBinary(t, "pass-cli", "proton-user")
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	r := NewResolver()
	got, err := r.Resolve(context.Background(), "pp://Personal/test/username")
	if err != nil {
		t.Fatal(err)
	}
	if got != "proton-user" {
		t.Errorf("got %q, want %q", got, "proton-user")
	}
}

func TestResolverUnsupportedScheme(t *testing.T) {
	r := NewResolver()
	_, err := r.Resolve(context.Background(), "vault://secret/foo")
	if err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}

func TestResolverInvalidURI(t *testing.T) {
	r := NewResolver()
	_, err := r.Resolve(context.Background(), "://nope")
	if err == nil {
		t.Fatal("expected error for invalid URI")
	}
}
