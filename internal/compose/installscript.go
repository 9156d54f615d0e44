package compose

import (
	"fmt"
	"strings"
	"time"
)

// InstallScript accumulates the shell commands the composer can't bake into
// the tarball: per-file ownership/permissions, copy steps, and download
// steps (spec §4.5 steps 5-7). Rendered output is prepended with a hostname
// guard and appended with a completion log line.
type InstallScript struct {
	systemName string
	retries    int
	delay      time.Duration
	lines      []string
}

// NewInstallScript starts an install script addressed to systemName; it
// refuses to run on any other host.
func NewInstallScript(systemName string, retries int, delay time.Duration) *InstallScript {
	return &InstallScript{systemName: systemName, retries: retries, delay: delay}
}

// AddOwnership appends a chown/chmod pair for a staged path.
func (s *InstallScript) AddOwnership(destPath, owner, group, octal string) {
	s.lines = append(s.lines,
		fmt.Sprintf("chown %s:%s %q", owner, group, destPath),
		fmt.Sprintf("chmod %s %q", octal, destPath),
	)
}

// AddCopy appends a copy step: source is the File's target field, dest is
// its on-host path (spec §4.5 "copy" file type).
func (s *InstallScript) AddCopy(source, dest string) {
	s.lines = append(s.lines, fmt.Sprintf("cp %q %q", source, dest))
}

// AddDownload appends a download step with the configured retry policy:
// retries+1 attempts in all, a fixed delay after each failed attempt, and a
// fail-soft log line if every attempt fails (spec §4.5 "download" file type
// is the only automatically-retried path in the whole design, per §7).
func (s *InstallScript) AddDownload(url, dest string) {
	attempts := s.retries + 1
	delaySecs := int(s.delay / time.Second)
	s.lines = append(s.lines, fmt.Sprintf(
		`ok=0; for i in $(seq 1 %d); do if curl -fsSL %q -o %q; then ok=1; break; fi; sleep %d; done; [ "$ok" = 1 ] || echo "scs: download failed: %s"`,
		attempts, url, dest, delaySecs, url,
	))
}

// Render produces the final script: a hostname guard, the accumulated
// steps in the order they were added, and a completion line (spec §4.5
// step 7).
func (s *InstallScript) Render() []byte {
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString("set -e\n")
	fmt.Fprintf(&b, "if [ \"$(hostname)\" != %q ]; then\n", s.systemName)
	fmt.Fprintf(&b, "  echo \"scs: refusing to install: this release is for %s\" >&2\n", s.systemName)
	b.WriteString("  exit 1\n")
	b.WriteString("fi\n")
	for _, line := range s.lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "echo \"scs: install complete for %s\"\n", s.systemName)
	return []byte(b.String())
}
