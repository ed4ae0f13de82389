// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

// Package elevate re-invokes the current binary under a privilege
// escalation helper to apply a single operation that requested elevate =
// true. The child process runs the hidden "__apply-op" subcommand,
// reading the operation back from a one-shot JSON payload file rather
// than re-parsing manifests, so the elevated process only ever sees the
// one operation it was asked to perform.
package elevate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"keron/internal/kerr"
	"keron/internal/types"
)

// posixHelpers are tried in order; run0 (systemd's successor to sudo) is
// preferred when present, falling back to doas, then sudo.
var posixHelpers = []string{"run0", "doas", "sudo"}

// lookPath is a package-level indirection so tests can shim $PATH.
var lookPath = exec.LookPath

// Run re-invokes the current executable under a privilege escalation
// helper to apply op, streaming the child's stdout/stderr to the parent's.
func Run(ctx context.Context, op types.PlannedOperation) error {
	self, err := os.Executable()
	if err != nil {
		return kerr.Wrap(kerr.KindApply, op.Manifest, "failed to resolve current executable for elevation", err)
	}

	payloadPath, err := writePayload(op)
	if err != nil {
		return err
	}
	defer os.Remove(payloadPath)

	cmd, err := elevatedCommand(ctx, self, payloadPath)
	if err != nil {
		return kerr.Wrap(kerr.KindApply, op.Manifest, "failed to locate a privilege escalation helper", err)
	}

	cmd.Env = append(os.Environ(),
		"KERON_ELEVATED_CHILD=1",
		fmt.Sprintf("KERON_INVOKING_UID=%d", os.Getuid()),
		fmt.Sprintf("KERON_INVOKING_GID=%d", os.Getgid()),
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Run(); err != nil {
		return kerr.Wrap(kerr.KindApply, op.Manifest, fmt.Sprintf("elevated operation #%d failed", op.ID), err)
	}
	return nil
}

// writePayload serialises op to a uniquely-named file under the OS temp
// directory; the name embeds the operation id, this process's pid and the
// current nanosecond timestamp so concurrent runs never collide.
func writePayload(op types.PlannedOperation) (string, error) {
	body, err := json.Marshal(op)
	if err != nil {
		return "", kerr.Wrap(kerr.KindApply, op.Manifest, "failed to serialize elevated operation payload", err)
	}
	name := fmt.Sprintf("keron-op-%d-%d-%d.json", op.ID, os.Getpid(), time.Now().UnixNano())
	path := filepath.Join(os.TempDir(), name)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		return "", kerr.Wrap(kerr.KindApply, op.Manifest, "failed to write elevated operation payload", err)
	}
	return path, nil
}

// ReadPayload reads back the operation written by writePayload; used by
// the hidden __apply-op subcommand.
func ReadPayload(path string) (types.PlannedOperation, error) {
	var op types.PlannedOperation
	body, err := os.ReadFile(path)
	if err != nil {
		return op, kerr.Wrap(kerr.KindApply, path, "failed to read elevated operation payload", err)
	}
	if err := json.Unmarshal(body, &op); err != nil {
		return op, kerr.Wrap(kerr.KindApply, path, "failed to parse elevated operation payload", err)
	}
	return op, nil
}

func elevatedCommand(ctx context.Context, self, payloadPath string) (*exec.Cmd, error) {
	if runtime.GOOS == "windows" {
		script := fmt.Sprintf(
			"Start-Process -FilePath '%s' -ArgumentList '__apply-op','--op-file','%s' -Verb RunAs -Wait",
			self, payloadPath,
		)
		return exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script), nil
	}

	for _, helper := range posixHelpers {
		if path, err := lookPath(helper); err == nil {
			return exec.CommandContext(ctx, path, self, "__apply-op", "--op-file", payloadPath), nil
		}
	}
	return nil, fmt.Errorf("none of %v found on $PATH", posixHelpers)
}
