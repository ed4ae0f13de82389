// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

// Package render implements the Mustache-style template renderer: {{var}}
// substitution plus two built-in functions, env() and secret(), which
// also record their results in the run's sensitive-value set. It builds
// on stdlib text/template: its {{ }} delimiter syntax already covers the
// substitution needed here, so no third-party mustache engine is pulled in.
package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"text/template"

	"keron/internal/kerr"
	"keron/internal/secret"
	"keron/internal/sensitive"
)

// Renderer renders template bodies against a variable map, recording
// env()/secret() results into a shared Sensitive set. A single Renderer
// may be invoked concurrently from planner worker goroutines, since
// text/template.Execute is safe for concurrent use on a parsed template
// and func map invocations only touch the mutex-guarded Sensitive set.
type Renderer struct {
	Secrets   *secret.Resolver
	Sensitive *sensitive.Set
}

// New returns a Renderer backed by the given secret resolver and
// sensitive-value set.
func New(resolver *secret.Resolver, sens *sensitive.Set) *Renderer {
	return &Renderer{Secrets: resolver, Sensitive: sens}
}

// Render parses and executes body (the template source) against vars,
// reporting env()/secret() calls into r.Sensitive.
//
// The substitution syntax is bare {{varname}}, Mustache-style, rather
// than Go template's dotted {{.varname}}: mustacheToField rewrites every
// occurrence of a declared variable's bare placeholder before handing the
// body to text/template, so {{env "NAME"}} and {{secret "uri"}} keep
// their native Go-template call syntax while plain variables stay
// Mustache-shaped.
func (r *Renderer) Render(ctx context.Context, name, body string, vars map[string]string) (string, error) {
	funcs := template.FuncMap{
		"env": func(key string) (string, error) {
			v, ok := os.LookupEnv(key)
			if !ok {
				return "", fmt.Errorf("environment variable %q is not set", key)
			}
			r.Sensitive.Add(v)
			return v, nil
		},
		"secret": func(uri string) (string, error) {
			v, err := r.Secrets.Resolve(ctx, uri)
			if err != nil {
				return "", err
			}
			r.Sensitive.Add(v)
			return v, nil
		},
	}

	tpl, err := template.New(name).Funcs(funcs).Parse(mustacheToField(body, vars))
	if err != nil {
		return "", kerr.Wrap(kerr.KindManifestEval, name, "failed to parse template", err)
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, vars); err != nil {
		return "", kerr.Wrap(kerr.KindApply, name, "failed to render template", err)
	}
	return buf.String(), nil
}

// mustacheToField rewrites every literal "{{key}}" occurrence, for each
// key declared in vars, into Go template's "{{.key}}" field-access form.
// It leaves every other "{{...}}" action (function calls, whitespace
// variants) untouched.
func mustacheToField(body string, vars map[string]string) string {
	out := body
	for key := range vars {
		out = strings.ReplaceAll(out, "{{"+key+"}}", "{{."+key+"}}")
	}
	return out
}
