// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

// Package discovery walks a source directory for manifest scripts.
package discovery

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"keron/internal/kerr"
)

// Find recursively walks root for *.lua files, returning their canonical,
// absolute paths in lexicographic order. root must exist and be a
// directory.
func Find(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, kerr.Wrap(kerr.KindDiscovery, root, "source directory not found", err)
	}
	if !info.IsDir() {
		return nil, kerr.New(kerr.KindDiscovery, root+" is not a directory")
	}

	var found []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".lua" {
			return nil
		}
		canonical, err := filepath.EvalSymlinks(path)
		if err != nil {
			return err
		}
		found = append(found, canonical)
		return nil
	})
	if err != nil {
		return nil, kerr.Wrap(kerr.KindDiscovery, root, "failed to walk source directory", err)
	}

	sort.Strings(found)
	return found, nil
}
