// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

package types

// ManifestSpec is the evaluated form of one manifest script. It is
// produced once by the evaluator and treated as immutable thereafter.
type ManifestSpec struct {
	// Path is the canonical absolute path of the script that produced this spec.
	Path string

	// DependsOn lists dependency paths, resolved relative to the script's
	// own directory, in declaration order.
	DependsOn []string

	// Resources is the ordered list of declared resources, in declaration order.
	Resources []Resource
}
