// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

// Package secret implements the secret-URI resolver: a pure mapping from
// a "scheme://path" URI to an external binary invocation that prints the
// plaintext secret on stdout. keron ships a small registry of scheme
// handlers, capturing the external process's stdout/stderr into buffers
// rather than streaming them, and lets callers register more.
package secret

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"sort"
	"strings"

	"keron/internal/kerr"
)

// Handler maps one URI scheme to an external binary invocation.
type Handler interface {
	// Binary is the executable this handler shells out to, used for the
	// "CLI missing" diagnostic before the handler is even invoked.
	Binary() string
	// Resolve returns the plaintext secret for the given URI.
	Resolve(ctx context.Context, u *url.URL) (string, error)
}

// Resolver resolves "scheme://path" secret URIs via a registry of
// per-scheme handlers.
type Resolver struct {
	handlers map[string]Handler
}

// NewResolver returns a Resolver pre-populated with the pass-cli-backed
// "pp" scheme handler used throughout keron's own test fixtures and
// documentation examples.
func NewResolver() *Resolver {
	r := &Resolver{handlers: make(map[string]Handler)}
	r.Register("pp", &passCLIHandler{binary: "pass-cli"})
	return r
}

// Register installs (or replaces) the handler for a scheme.
func (r *Resolver) Register(scheme string, h Handler) {
	r.handlers[scheme] = h
}

// Resolve parses uri and delegates to the registered handler for its scheme.
func (r *Resolver) Resolve(ctx context.Context, uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", kerr.Wrap(kerr.KindSecret, uri, "invalid secret URI", err)
	}
	if u.Scheme == "" {
		return "", kerr.New(kerr.KindSecret, fmt.Sprintf("secret URI %q has no scheme", uri))
	}
	h, ok := r.handlers[u.Scheme]
	if !ok {
		return "", kerr.New(kerr.KindSecret, fmt.Sprintf("unsupported secret scheme %q", u.Scheme))
	}
	if _, err := exec.LookPath(h.Binary()); err != nil {
		return "", kerr.Wrap(kerr.KindSecret, uri, fmt.Sprintf("secret CLI %q not found in $PATH", h.Binary()), err)
	}
	value, err := h.Resolve(ctx, u)
	if err != nil {
		return "", kerr.Wrap(kerr.KindSecret, uri, "secret resolution failed", err)
	}
	return value, nil
}

// Schemes returns the sorted list of registered scheme names, used for
// diagnostics and tests.
func (r *Resolver) Schemes() []string {
	out := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// passCLIHandler resolves "pp://Vault/path/to/entry" style URIs by
// invoking a pass-manager-style CLI with the host+path as a single
// lookup argument, matching the shimmed "pass-cli" binary used in
// keron's end-to-end secret-redaction test.
type passCLIHandler struct {
	binary string
}

func (h *passCLIHandler) Binary() string { return h.binary }

func (h *passCLIHandler) Resolve(ctx context.Context, u *url.URL) (string, error) {
	entry := strings.TrimPrefix(u.Host+u.Path, "/")
	cmd := exec.CommandContext(ctx, h.binary, "show", entry)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return "", fmt.Errorf("%s: %s", err, strings.TrimSpace(stderr.String()))
		}
		return "", err
	}
	return strings.TrimRight(stdout.String(), "\n"), nil
}
