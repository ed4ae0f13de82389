// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

// Package eval implements the manifest evaluator: a sandboxed Lua
// interpreter host (github.com/yuin/gopher-lua) that executes one
// manifest script and collects a types.ManifestSpec plus the sensitive
// values any env()/secret() calls touched. The interpreter's ambient
// authority is deliberately narrow — no io, os, package/require or debug
// libraries are loaded, so a manifest cannot open a file or spawn a
// process except through the declared resource functions below.
package eval

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"keron/internal/kerr"
	"keron/internal/pathutil"
	"keron/internal/secret"
	"keron/internal/sensitive"
	"keron/internal/types"
)

// blockedGlobals are base-library entry points capable of dynamic code
// loading or introspection; OpenBase registers them, so we nil them back
// out immediately after opening the library.
var blockedGlobals = []string{"load", "loadstring", "loadfile", "dofile", "collectgarbage"}

// legacyNames are rejected with a migration hint rather than left
// undefined, so manifest authors get an actionable error instead of
// "attempt to call a nil value".
var legacyNames = map[string]string{
	"package": "install_packages(manager, names, opts)",
	"pkg":     "install_packages(manager, names, opts)",
}

// Evaluator evaluates manifest scripts into types.ManifestSpec values.
type Evaluator struct {
	Secrets *secret.Resolver
}

// New returns an Evaluator backed by the given secret resolver.
func New(resolver *secret.Resolver) *Evaluator {
	return &Evaluator{Secrets: resolver}
}

// Result is the output of evaluating one manifest script.
type Result struct {
	Spec      *types.ManifestSpec
	Sensitive *sensitive.Set
}

// Evaluate reads and executes the script at path (which must already be
// canonical and absolute) and returns its ManifestSpec and any sensitive
// values it surfaced.
func (e *Evaluator) Evaluate(ctx context.Context, path string) (*Result, error) {
	canonical, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil, kerr.Wrap(kerr.KindManifestEval, path, "failed to canonicalize manifest path", err)
	}

	body, err := os.ReadFile(canonical)
	if err != nil {
		return nil, kerr.Wrap(kerr.KindManifestEval, canonical, "failed to read manifest", err)
	}

	b := &builder{
		scriptPath: canonical,
		scriptDir:  filepath.Dir(canonical),
		sensitive:  sensitive.New(),
		secrets:    e.Secrets,
		ctx:        ctx,
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	for _, open := range []lua.LGFunction{lua.OpenBase, lua.OpenTable, lua.OpenString, lua.OpenMath} {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(open), NRet: 0, Protect: true}); err != nil {
			return nil, kerr.Wrap(kerr.KindManifestEval, canonical, "failed to initialize sandbox", err)
		}
	}
	for _, name := range blockedGlobals {
		L.SetGlobal(name, lua.LNil)
	}

	b.registerBuiltins(L)

	if err := L.DoString(string(body)); err != nil {
		return nil, kerr.Wrap(kerr.KindManifestEval, canonical, "manifest script failed", err)
	}

	return &Result{
		Spec: &types.ManifestSpec{
			Path:      canonical,
			DependsOn: b.deps,
			Resources: b.resources,
		},
		Sensitive: b.sensitive,
	}, nil
}

// builder accumulates a ManifestSpec as Lua callbacks fire. It is mutated
// exclusively from the single goroutine driving the interpreter (per
// design note §9), so it needs no internal locking of its own; only the
// shared sensitive.Set (which may also be touched by concurrent template
// rendering elsewhere in the run) is itself synchronized.
type builder struct {
	scriptPath string
	scriptDir  string
	deps       []string
	resources  []types.Resource
	sensitive  *sensitive.Set
	secrets    *secret.Resolver
	ctx        context.Context
}

func (b *builder) resolveRelative(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Clean(filepath.Join(b.scriptDir, p))
}

func (b *builder) registerBuiltins(L *lua.LState) {
	L.SetGlobal("depends_on", L.NewFunction(b.luaDependsOn))
	L.SetGlobal("link", L.NewFunction(b.luaLink))
	L.SetGlobal("template", L.NewFunction(b.luaTemplate))
	L.SetGlobal("install_packages", L.NewFunction(b.luaInstallPackages))
	L.SetGlobal("cmd", L.NewFunction(b.luaCmd))
	L.SetGlobal("env", L.NewFunction(b.luaEnv))
	L.SetGlobal("secret", L.NewFunction(b.luaSecret))
	L.SetGlobal("is_linux", L.NewFunction(b.luaIsOS("linux")))
	L.SetGlobal("is_macos", L.NewFunction(b.luaIsOS("darwin")))
	L.SetGlobal("is_windows", L.NewFunction(b.luaIsOS("windows")))

	for name, hint := range legacyNames {
		name, hint := name, hint
		L.SetGlobal(name, L.NewFunction(func(L *lua.LState) int {
			L.RaiseError("%q is no longer supported; use %s instead", name, hint)
			return 0
		}))
	}

	global := L.NewTable()
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		global.RawSetString("HOME", lua.LString(home))
	}
	L.SetGlobal("global", global)
}

func (b *builder) luaDependsOn(L *lua.LState) int {
	p := L.CheckString(1)
	b.deps = append(b.deps, b.resolveRelative(p))
	return 0
}

func (b *builder) luaLink(L *lua.LState) int {
	src := L.CheckString(1)
	dest := L.CheckString(2)
	opts := L.OptTable(3, L.NewTable())

	destPath, err := pathutil.NewDestPath(dest)
	if err != nil {
		L.RaiseError("link(): %v", err)
		return 0
	}

	res := types.Resource{
		Kind: types.ResourceLink,
		Link: &types.LinkResource{
			Src:     b.resolveRelative(src),
			Dest:    destPath.String(),
			Force:   boolOpt(opts, "force"),
			Mkdirs:  boolOpt(opts, "mkdirs"),
			Elevate: boolOpt(opts, "elevate"),
		},
	}
	b.resources = append(b.resources, res)
	return 0
}

func (b *builder) luaTemplate(L *lua.LState) int {
	src := L.CheckString(1)
	dest := L.CheckString(2)
	opts := L.OptTable(3, L.NewTable())

	destPath, err := pathutil.NewDestPath(dest)
	if err != nil {
		L.RaiseError("template(): %v", err)
		return 0
	}

	vars := make(map[string]string)
	var order []string
	if varsVal := opts.RawGetString("vars"); varsVal.Type() == lua.LTTable {
		varsTable := varsVal.(*lua.LTable)
		varsTable.ForEach(func(k, v lua.LValue) {
			key := k.String()
			vars[key] = v.String()
			order = append(order, key)
		})
	}

	res := types.Resource{
		Kind: types.ResourceTemplate,
		Template: &types.TemplateResource{
			Src:      b.resolveRelative(src),
			Dest:     destPath.String(),
			Vars:     vars,
			VarOrder: order,
			Force:    boolOpt(opts, "force"),
			Mkdirs:   boolOpt(opts, "mkdirs"),
			Elevate:  boolOpt(opts, "elevate"),
		},
	}
	b.resources = append(b.resources, res)
	return 0
}

func (b *builder) luaInstallPackages(L *lua.LState) int {
	manager := L.CheckString(1)
	namesTable := L.CheckTable(2)
	opts := L.OptTable(3, L.NewTable())

	if opts.RawGetString("provider") != lua.LNil {
		L.RaiseError("install_packages(): option \"provider\" is reserved; use the manager argument instead")
		return 0
	}

	state := types.PackagePresent
	if stateVal := opts.RawGetString("state"); stateVal.Type() == lua.LTString {
		switch stateVal.String() {
		case "present":
			state = types.PackagePresent
		case "absent":
			state = types.PackageAbsent
		default:
			L.RaiseError("install_packages(): invalid state %q, must be \"present\" or \"absent\"", stateVal.String())
			return 0
		}
	}
	elevate := boolOpt(opts, "elevate")

	n := namesTable.Len()
	if n == 0 {
		L.RaiseError("install_packages(): names must be a non-empty list of non-empty strings")
		return 0
	}
	for i := 1; i <= n; i++ {
		nameVal := namesTable.RawGetInt(i)
		name := strings.TrimSpace(nameVal.String())
		if name == "" {
			L.RaiseError("install_packages(): package name at index %d must not be empty", i)
			return 0
		}
		b.resources = append(b.resources, types.Resource{
			Kind: types.ResourcePackage,
			Package: &types.PackageResource{
				Name:         name,
				ProviderHint: strings.TrimSpace(manager),
				State:        state,
				Elevate:      elevate,
			},
		})
	}
	return 0
}

func (b *builder) luaCmd(L *lua.LState) int {
	binary := L.CheckString(1)
	var args []string
	if argsVal := L.Get(2); argsVal.Type() == lua.LTTable {
		argsTable := argsVal.(*lua.LTable)
		for i := 1; i <= argsTable.Len(); i++ {
			args = append(args, argsTable.RawGetInt(i).String())
		}
	}
	opts := L.OptTable(3, L.NewTable())

	b.resources = append(b.resources, types.Resource{
		Kind: types.ResourceCommand,
		Command: &types.CommandResource{
			Binary:  binary,
			Args:    args,
			Elevate: boolOpt(opts, "elevate"),
		},
	})
	return 0
}

func (b *builder) luaEnv(L *lua.LState) int {
	if L.GetTop() != 1 {
		L.RaiseError("env(): expects exactly one argument")
		return 0
	}
	name := L.CheckString(1)
	value, ok := os.LookupEnv(name)
	if !ok {
		L.RaiseError("env(): environment variable %q is not set", name)
		return 0
	}
	b.sensitive.Add(value)
	L.Push(lua.LString(value))
	return 1
}

func (b *builder) luaSecret(L *lua.LState) int {
	if L.GetTop() != 1 {
		L.RaiseError("secret(): expects exactly one argument")
		return 0
	}
	uri := L.CheckString(1)
	value, err := b.secrets.Resolve(b.ctx, uri)
	if err != nil {
		L.RaiseError("secret(): %v", err)
		return 0
	}
	b.sensitive.Add(value)
	L.Push(lua.LString(value))
	return 1
}

func (b *builder) luaIsOS(goos string) lua.LGFunction {
	return func(L *lua.LState) int {
		L.Push(lua.LBool(runtime.GOOS == goos))
		return 1
	}
}

func boolOpt(opts *lua.LTable, key string) bool {
	return lua.LVAsBool(opts.RawGetString(key))
}
