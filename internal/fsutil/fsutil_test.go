// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExistsRegularFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	probe, err := Exists(p)
	if err != nil {
		t.Fatal(err)
	}
	if !probe.Exists || probe.IsSymlink {
		t.Fatalf("got %+v", probe)
	}
}

func TestExistsMissing(t *testing.T) {
	dir := t.TempDir()
	probe, err := Exists(filepath.Join(dir, "nope"))
	if err != nil {
		t.Fatal(err)
	}
	if probe.Exists {
		t.Fatalf("expected missing, got %+v", probe)
	}
}

func TestExistsDanglingSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "missing-target")
	link := filepath.Join(dir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}
	probe, err := Exists(link)
	if err != nil {
		t.Fatal(err)
	}
	if !probe.Exists || !probe.IsSymlink || !probe.Dangling {
		t.Fatalf("expected dangling symlink to report as existing, got %+v", probe)
	}
}

func TestSymlinkPointsTo(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(src, link); err != nil {
		t.Fatal(err)
	}
	ok, err := SymlinkPointsTo(link, src)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("expected symlink to point to src")
	}

	other := filepath.Join(dir, "other.txt")
	if err := os.WriteFile(other, []byte("y"), 0o644); err != nil {
		t.Fatal(err)
	}
	ok, err = SymlinkPointsTo(link, other)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("expected symlink not to point to other")
	}
}
