// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

// Package fsutil provides lexical path normalisation, existence probes
// that treat dangling symlinks as present, and symlink-target equivalence
// — the small set of filesystem primitives the planner and applier share.
package fsutil

import (
	"os"
	"path/filepath"
)

// Normalize resolves p to an absolute, lexically cleaned path without
// touching the filesystem (no symlink resolution, no existence check).
func Normalize(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// Probe describes what Exists found at a path.
type Probe struct {
	// Exists is true if lstat succeeded — a dangling symlink still counts.
	Exists bool
	// IsSymlink is true if the path itself is a symlink (dangling or not).
	IsSymlink bool
	// Dangling is true if IsSymlink is true and the target doesn't resolve.
	Dangling bool
	// Info is the lstat result; nil if Exists is false.
	Info os.FileInfo
}

// Exists lstats path, reporting a dangling symlink as existing (since the
// planner needs to know "there's something here" independent of whether
// its target resolves).
func Exists(path string) (Probe, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Probe{}, nil
		}
		return Probe{}, err
	}
	p := Probe{Exists: true, Info: info}
	if info.Mode()&os.ModeSymlink != 0 {
		p.IsSymlink = true
		if _, statErr := os.Stat(path); statErr != nil {
			p.Dangling = true
		}
	}
	return p, nil
}

// SymlinkTarget reads the raw target of a symlink at path.
func SymlinkTarget(path string) (string, error) {
	return os.Readlink(path)
}

// SymlinkPointsTo reports whether the symlink at path resolves
// (lexically, not via the filesystem) to the same location as want.
func SymlinkPointsTo(path, want string) (bool, error) {
	target, err := os.Readlink(path)
	if err != nil {
		return false, err
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	wantAbs, err := Normalize(want)
	if err != nil {
		return false, err
	}
	targetAbs, err := Normalize(target)
	if err != nil {
		return false, err
	}
	return targetAbs == wantAbs, nil
}
