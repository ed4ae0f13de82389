// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

// Package types holds the core data structures shared across keron's
// evaluator, planner, applier and report renderer.
package types

import (
	"encoding/json"
	"fmt"
)

// ResourceKind discriminates the four declarable resource variants.
type ResourceKind int

const (
	// ResourceLink declares a symlink from a source to an absolute destination.
	ResourceLink ResourceKind = iota
	// ResourceTemplate declares a rendered text file at an absolute destination.
	ResourceTemplate
	// ResourcePackage declares the desired install state of a named package.
	ResourcePackage
	// ResourceCommand declares a one-shot binary invocation.
	ResourceCommand
)

// String renders a human-readable resource kind name, used by the report renderer.
func (k ResourceKind) String() string {
	switch k {
	case ResourceLink:
		return "link"
	case ResourceTemplate:
		return "template"
	case ResourcePackage:
		return "package"
	case ResourceCommand:
		return "command"
	default:
		return "unknown"
	}
}

// MarshalJSON renders a ResourceKind as its snake_case name rather than
// its underlying int, so wire payloads (including the ones elevate hands
// to a re-invoked process) name the resource kind instead of an ordinal
// that would silently shift if the const block were ever reordered.
func (k ResourceKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON parses a ResourceKind back from its snake_case name.
func (k *ResourceKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "link":
		*k = ResourceLink
	case "template":
		*k = ResourceTemplate
	case "package":
		*k = ResourcePackage
	case "command":
		*k = ResourceCommand
	default:
		return fmt.Errorf("unknown resource kind %q", name)
	}
	return nil
}

// PackageState is the desired install state of a Package resource.
type PackageState string

const (
	// PackagePresent requests the package be installed.
	PackagePresent PackageState = "present"
	// PackageAbsent requests the package be removed.
	PackageAbsent PackageState = "absent"
)

// Resource is a tagged variant over Link, Template, Package and Command.
// Exactly one of Link/Template/Package/Command is non-nil, selected by Kind.
type Resource struct {
	Kind ResourceKind `json:"resource"`

	Link     *LinkResource     `json:"link,omitempty"`
	Template *TemplateResource `json:"template,omitempty"`
	Package  *PackageResource  `json:"package,omitempty"`
	Command  *CommandResource  `json:"command,omitempty"`
}

// LinkResource declares a symlink.
type LinkResource struct {
	// Src is resolved against the owning manifest's directory; may be relative.
	Src string `json:"src"`
	// Dest must be absolute and lexically normalised.
	Dest    string `json:"dest"`
	Force   bool   `json:"force"`
	Mkdirs  bool   `json:"mkdirs"`
	Elevate bool   `json:"elevate"`
}

// TemplateResource declares a rendered text file.
type TemplateResource struct {
	Src  string `json:"src"`
	Dest string `json:"dest"`
	// Vars is an ordered map of variable bindings; Go maps don't preserve
	// iteration order so VarOrder carries declaration order separately.
	Vars     map[string]string `json:"vars"`
	VarOrder []string          `json:"var_order"`
	Force    bool              `json:"force"`
	Mkdirs   bool              `json:"mkdirs"`
	Elevate  bool              `json:"elevate"`
}

// PackageResource declares a single package's desired state.
type PackageResource struct {
	Name         string       `json:"name"`
	ProviderHint string       `json:"provider_hint,omitempty"`
	State        PackageState `json:"state"`
	Elevate      bool         `json:"elevate"`
}

// CommandResource declares a one-shot command invocation.
type CommandResource struct {
	Binary  string   `json:"binary"`
	Args    []string `json:"args"`
	Elevate bool     `json:"elevate"`
}

// Clone returns a deep copy of the resource, used when a PlannedOperation
// embeds a snapshot of the resource that produced it.
func (r Resource) Clone() Resource {
	out := Resource{Kind: r.Kind}
	switch r.Kind {
	case ResourceLink:
		if r.Link != nil {
			l := *r.Link
			out.Link = &l
		}
	case ResourceTemplate:
		if r.Template != nil {
			t := *r.Template
			t.Vars = make(map[string]string, len(r.Template.Vars))
			for k, v := range r.Template.Vars {
				t.Vars[k] = v
			}
			t.VarOrder = append([]string(nil), r.Template.VarOrder...)
			out.Template = &t
		}
	case ResourcePackage:
		if r.Package != nil {
			p := *r.Package
			out.Package = &p
		}
	case ResourceCommand:
		if r.Command != nil {
			c := *r.Command
			c.Args = append([]string(nil), r.Command.Args...)
			out.Command = &c
		}
	}
	return out
}

// Elevate reports whether the underlying resource requested privilege escalation.
func (r Resource) Elevate() bool {
	switch r.Kind {
	case ResourceLink:
		return r.Link != nil && r.Link.Elevate
	case ResourceTemplate:
		return r.Template != nil && r.Template.Elevate
	case ResourcePackage:
		return r.Package != nil && r.Package.Elevate
	case ResourceCommand:
		return r.Command != nil && r.Command.Elevate
	default:
		return false
	}
}
