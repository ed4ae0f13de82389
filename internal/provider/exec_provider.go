// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

package provider

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// runCapture shells out to binary with args, capturing stdout/stderr into
// in-memory buffers rather than streaming them, and returns stdout
// trimmed of its trailing newline.
func runCapture(ctx context.Context, binary string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return "", fmt.Errorf("%s %s: %w: %s", binary, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("%s %s: %w", binary, strings.Join(args, " "), err)
	}
	return strings.TrimRight(stdout.String(), "\n"), nil
}

// run shells out, discarding stdout, for commands whose exit code alone
// is the signal (install/remove).
func run(ctx context.Context, binary string, args ...string) error {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("%s %s: %w: %s", binary, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("%s %s: %w", binary, strings.Join(args, " "), err)
	}
	return nil
}

// execProvider is a Provider implemented by shelling out to binary,
// shared by the brew, apt, winget and cargo backends below; each only
// supplies its own argv shapes and installed-check semantics.
type execProvider struct {
	name       string
	binary     string
	isInstalFn func(ctx context.Context, binary, name string) (bool, error)
	bulkFn     func(ctx context.Context, binary string, names []string) (map[string]bool, error)
	installFn  func(ctx context.Context, binary, name string) error
	removeFn   func(ctx context.Context, binary, name string) error
}

func (p *execProvider) Name() string { return p.name }

func (p *execProvider) Detect() bool {
	_, err := lookPath(p.binary)
	return err == nil
}

func (p *execProvider) IsInstalled(ctx context.Context, name string) (bool, error) {
	return p.isInstalFn(ctx, p.binary, name)
}

func (p *execProvider) InstalledPackages(ctx context.Context, names []string) (map[string]bool, error) {
	return p.bulkFn(ctx, p.binary, names)
}

func (p *execProvider) Install(ctx context.Context, name string) error {
	return p.installFn(ctx, p.binary, name)
}

func (p *execProvider) Remove(ctx context.Context, name string) error {
	return p.removeFn(ctx, p.binary, name)
}

func newBrewProvider() Provider {
	return &execProvider{
		name:   "brew",
		binary: "brew",
		isInstalFn: func(ctx context.Context, binary, name string) (bool, error) {
			out, err := runCapture(ctx, binary, "list", "--versions", name)
			if err != nil {
				return false, nil
			}
			return out != "", nil
		},
		bulkFn: func(ctx context.Context, binary string, names []string) (map[string]bool, error) {
			out, err := runCapture(ctx, binary, "list", "--versions")
			if err != nil {
				return nil, err
			}
			installed := make(map[string]bool, len(names))
			for _, line := range strings.Split(out, "\n") {
				fields := strings.Fields(line)
				if len(fields) > 0 {
					installed[fields[0]] = true
				}
			}
			result := make(map[string]bool, len(names))
			for _, name := range names {
				result[name] = installed[name]
			}
			return result, nil
		},
		installFn: func(ctx context.Context, binary, name string) error {
			return run(ctx, binary, "install", name)
		},
		removeFn: func(ctx context.Context, binary, name string) error {
			return run(ctx, binary, "uninstall", name)
		},
	}
}

func newAptProvider() Provider {
	return &execProvider{
		name:   "apt",
		binary: "dpkg-query",
		isInstalFn: func(ctx context.Context, binary, name string) (bool, error) {
			out, err := runCapture(ctx, binary, "-W", "-f=${Status}", name)
			if err != nil {
				return false, nil
			}
			return strings.Contains(out, "install ok installed"), nil
		},
		bulkFn: func(ctx context.Context, binary string, names []string) (map[string]bool, error) {
			out, err := runCapture(ctx, binary, "-W", "-f=${Package} ${Status}\n")
			if err != nil {
				return nil, err
			}
			installed := make(map[string]bool, len(names))
			for _, line := range strings.Split(out, "\n") {
				if !strings.Contains(line, "install ok installed") {
					continue
				}
				fields := strings.Fields(line)
				if len(fields) > 0 {
					installed[fields[0]] = true
				}
			}
			result := make(map[string]bool, len(names))
			for _, name := range names {
				result[name] = installed[name]
			}
			return result, nil
		},
		installFn: func(ctx context.Context, binary, name string) error {
			return run(ctx, "apt-get", "install", "-y", name)
		},
		removeFn: func(ctx context.Context, binary, name string) error {
			return run(ctx, "apt-get", "remove", "-y", name)
		},
	}
}

func newWingetProvider() Provider {
	return &execProvider{
		name:   "winget",
		binary: "winget",
		isInstalFn: func(ctx context.Context, binary, name string) (bool, error) {
			out, err := runCapture(ctx, binary, "list", "--id", name, "-e", "--accept-source-agreements")
			if err != nil {
				return false, nil
			}
			return strings.Contains(out, name), nil
		},
		bulkFn: func(ctx context.Context, binary string, names []string) (map[string]bool, error) {
			out, err := runCapture(ctx, binary, "list", "--accept-source-agreements")
			if err != nil {
				return nil, err
			}
			result := make(map[string]bool, len(names))
			for _, name := range names {
				result[name] = strings.Contains(out, name)
			}
			return result, nil
		},
		installFn: func(ctx context.Context, binary, name string) error {
			return run(ctx, binary, "install", "--id", name, "-e", "--silent", "--accept-source-agreements", "--accept-package-agreements")
		},
		removeFn: func(ctx context.Context, binary, name string) error {
			return run(ctx, binary, "uninstall", "--id", name, "-e", "--silent")
		},
	}
}

func newCargoProvider() Provider {
	return &execProvider{
		name:   "cargo",
		binary: "cargo",
		isInstalFn: func(ctx context.Context, binary, name string) (bool, error) {
			out, err := runCapture(ctx, binary, "install", "--list")
			if err != nil {
				return false, err
			}
			for _, line := range strings.Split(out, "\n") {
				if strings.HasPrefix(line, name+" ") {
					return true, nil
				}
			}
			return false, nil
		},
		bulkFn: func(ctx context.Context, binary string, names []string) (map[string]bool, error) {
			out, err := runCapture(ctx, binary, "install", "--list")
			if err != nil {
				return nil, err
			}
			lines := strings.Split(out, "\n")
			result := make(map[string]bool, len(names))
			for _, name := range names {
				found := false
				for _, line := range lines {
					if strings.HasPrefix(line, name+" ") {
						found = true
						break
					}
				}
				result[name] = found
			}
			return result, nil
		},
		installFn: func(ctx context.Context, binary, name string) error {
			return run(ctx, binary, "install", name)
		},
		removeFn: func(ctx context.Context, binary, name string) error {
			return run(ctx, binary, "uninstall", name)
		},
	}
}
