// Package audit implements the release auditor (spec §4.6): it generates a
// reference release for a system, fetches the same paths from the live
// host through a pluggable transport, and compares content by digest.
package audit

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/alitto/pond"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/sirupsen/logrus"

	"github.com/opsconf/scs/internal/compose"
	"github.com/opsconf/scs/internal/config"
	"github.com/opsconf/scs/internal/scserr"
)

// Fetcher retrieves remotePath from host and returns its content, as a
// pluggable interface rather than a hardcoded remote-copy binary.
type Fetcher interface {
	Fetch(ctx context.Context, host, remotePath string) (io.ReadCloser, error)
}

// SCPFetcher shells out to a configured command template via
// exec.Command("/bin/bash", "-c", ...).
type SCPFetcher struct {
	Template string // e.g. "scp {host}:{remotePath} {localPath}"
}

// Fetch runs the templated command, writing the remote file to a temp path
// and streaming it back; the caller is responsible for closing the result.
func (f SCPFetcher) Fetch(ctx context.Context, host, remotePath string) (io.ReadCloser, error) {
	tmp, err := os.CreateTemp("", "scs-audit-fetch-")
	if err != nil {
		return nil, err
	}
	localPath := tmp.Name()
	tmp.Close()

	cmdLine := strings.NewReplacer(
		"{host}", host,
		"{remotePath}", remotePath,
		"{localPath}", localPath,
	).Replace(f.Template)

	cmd := exec.CommandContext(ctx, "/bin/bash", "-c", cmdLine)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(localPath)
		return nil, scserr.Wrap(scserr.TransportFailed, err, "fetching %s:%s: %s", host, remotePath, out)
	}

	content, err := os.Open(localPath)
	if err != nil {
		os.Remove(localPath)
		return nil, err
	}
	return &removeOnCloseFile{File: content, path: localPath}, nil
}

type removeOnCloseFile struct {
	*os.File
	path string
}

func (f *removeOnCloseFile) Close() error {
	err := f.File.Close()
	os.Remove(f.path)
	return err
}

// Status classifies one audited path's comparison outcome.
type Status int

const (
	StatusMatch Status = iota
	StatusMissing
	StatusMismatch
	StatusSkippedEmpty
)

func (s Status) String() string {
	switch s {
	case StatusMatch:
		return "match"
	case StatusMissing:
		return "missing"
	case StatusMismatch:
		return "mismatch"
	case StatusSkippedEmpty:
		return "skipped (empty reference)"
	}
	return "unknown"
}

// Outcome is the per-file result of one audit run.
type Outcome struct {
	Path   string
	Status Status
}

// Report is the full audit result for a system (spec §4.6 "Result").
type Report struct {
	System   string
	Outcomes []Outcome
}

// Success reports whether every compared file matched.
func (r Report) Success() bool {
	for _, o := range r.Outcomes {
		if o.Status == StatusMissing || o.Status == StatusMismatch {
			return false
		}
	}
	return true
}

// Decision is the operator's choice when a file differs (spec §4.6: "view
// side-by-side, view unified diff, or skip").
type Decision int

const (
	DecisionSkip Decision = iota
	DecisionViewSideBySide
	DecisionViewUnifiedDiff
)

// Prompter acquires the operator's decision for a mismatched file; kept
// separate from the comparison logic so tests can supply a fixed sequence
// of answers instead of reading stdin (mirrors the spec §4.7 design note of
// separating input acquisition from business logic).
type Prompter interface {
	Choose(path string) (Decision, error)
}

// Auditor drives one audit run: compose a reference release, fetch the
// live host's copy of every referenced path, and compare.
type Auditor struct {
	logger   *logrus.Logger
	cfg      config.Config
	composer *compose.Composer
	fetcher  Fetcher
	prompter Prompter
	pool     *pond.WorkerPool
}

// New constructs an Auditor. fetcher and prompter are injected so the
// composer's pipeline, the transport, and the interactive prompt can each be
// faked independently in tests.
func New(logger *logrus.Logger, cfg config.Config, composer *compose.Composer, fetcher Fetcher, prompter Prompter) *Auditor {
	return &Auditor{
		logger:   logger,
		cfg:      cfg,
		composer: composer,
		fetcher:  fetcher,
		prompter: prompter,
		pool:     pond.New(10, 0, pond.MinWorkers(2)),
	}
}

// Close stops the auditor's worker pool.
func (a *Auditor) Close() { a.pool.StopAndWait() }

// Run composes a release for system, extracts it into a scratch reference
// tree, and compares every non-empty file against the live host (spec
// §4.6). host addresses the system being audited for the configured
// transport (typically the system's own name or IP).
func (a *Auditor) Run(ctx context.Context, system, host string) (Report, error) {
	archivePath, err := a.composer.Compose(system)
	if err != nil {
		return Report{}, err
	}
	defer os.Remove(archivePath)

	refDir, err := os.MkdirTemp(a.cfg.ScratchDir, "audit-ref-")
	if err != nil {
		return Report{}, scserr.Wrap(scserr.InvalidInput, err, "creating audit scratch directory")
	}
	defer os.RemoveAll(refDir)

	paths, err := extractReferenceTree(archivePath, refDir)
	if err != nil {
		return Report{}, err
	}
	sort.Strings(paths)

	outcomes := make([]Outcome, len(paths))
	var wg sync.WaitGroup
	for i, p := range paths {
		i, p := i, p
		wg.Add(1)
		a.pool.Submit(func() {
			defer wg.Done()
			outcomes[i] = a.compareOne(ctx, refDir, host, p)
		})
	}
	wg.Wait()

	a.logger.WithField("system", system).WithField("host", host).Info("audit complete")
	return Report{System: system, Outcomes: outcomes}, nil
}

func (a *Auditor) compareOne(ctx context.Context, refDir, host, relPath string) Outcome {
	refBytes, err := os.ReadFile(filepath.Join(refDir, relPath))
	if err != nil {
		return Outcome{Path: relPath, Status: StatusMissing}
	}
	if len(refBytes) == 0 {
		return Outcome{Path: relPath, Status: StatusSkippedEmpty}
	}

	remote, err := a.fetcher.Fetch(ctx, host, relPath)
	if err != nil {
		a.logger.WithField("path", relPath).WithError(err).Debug("audit fetch failed")
		return Outcome{Path: relPath, Status: StatusMissing}
	}
	defer remote.Close()
	hostBytes, err := io.ReadAll(remote)
	if err != nil {
		return Outcome{Path: relPath, Status: StatusMissing}
	}

	if digest(refBytes) == digest(hostBytes) {
		return Outcome{Path: relPath, Status: StatusMatch}
	}

	if a.prompter != nil {
		decision, err := a.prompter.Choose(relPath)
		if err == nil {
			a.showDecision(relPath, decision, refBytes, hostBytes)
		}
	}
	return Outcome{Path: relPath, Status: StatusMismatch}
}

func (a *Auditor) showDecision(path string, decision Decision, ref, host []byte) {
	switch decision {
	case DecisionViewSideBySide:
		a.logger.Infof("--- reference: %s ---\n%s\n--- host: %s ---\n%s", path, ref, path, host)
	case DecisionViewUnifiedDiff:
		diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(ref)),
			B:        difflib.SplitLines(string(host)),
			FromFile: "reference/" + path,
			ToFile:   "host/" + path,
			Context:  3,
		})
		if err == nil {
			a.logger.Info(diff)
		}
	case DecisionSkip:
	}
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return fmt.Sprintf("%x", sum)
}

// extractReferenceTree unpacks archivePath into destDir and returns the
// relative paths of every regular file except the install script, which has
// no on-host path to audit.
func extractReferenceTree(archivePath, destDir string) ([]string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	var paths []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg || hdr.Name == compose.InstallScriptName {
			continue
		}
		dest := filepath.Join(destDir, hdr.Name)
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return nil, err
		}
		out, err := os.Create(dest)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return nil, err
		}
		out.Close()
		paths = append(paths, hdr.Name)
	}
	return paths, nil
}
