// Package store implements the transactional model store: a version-control
// branch is the write lock and the unit of review before every commit to
// trunk. Every mutation path in the tool opens a Transaction via
// Store.BeginModify, stages the files it touches, and either Commits or
// Cancels; nothing writes to the store tree outside that protocol.
package store

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/opsconf/scs/internal/config"
	"github.com/opsconf/scs/internal/scserr"
)

// TrunkBranch is the accepted-history branch every release and read path is
// generated from. Work happens on a branch named after the operator.
const TrunkBranch = "main"

// Store is the on-disk, version-controlled root directory holding every
// entity catalog, association index, and template/binary subtree.
type Store struct {
	cfg    config.Config
	logger *logrus.Logger
}

// New wraps an existing store root. Use Init to create one from scratch.
func New(logger *logrus.Logger, cfg config.Config) *Store {
	return &Store{cfg: cfg, logger: logger}
}

// Root returns the store's filesystem root.
func (s *Store) Root() string { return s.cfg.StoreRoot }

// Initialized reports whether StoreRoot already holds a version-controlled
// store (i.e. `<root>/.git` exists).
func (s *Store) Initialized() bool {
	_, err := os.Stat(filepath.Join(s.cfg.StoreRoot, ".git"))
	return err == nil
}

// Init creates an empty store: the directory tree, empty entity catalog
// files, and an initial commit on TrunkBranch authored by user.
func (s *Store) Init(user string) error {
	if s.Initialized() {
		return nil
	}
	if err := os.MkdirAll(s.cfg.StoreRoot, 0o755); err != nil {
		return scserr.Wrap(scserr.Uninitialized, err, "failed to create store root")
	}
	if _, err := s.git("", "init", "-b", TrunkBranch); err != nil {
		return scserr.Wrap(scserr.Uninitialized, err, "failed to initialize version control")
	}
	if _, err := s.git("", "config", "user.email", user+"@scs.local"); err != nil {
		return scserr.Wrap(scserr.Uninitialized, err, "failed to set vcs identity")
	}
	if _, err := s.git("", "config", "user.name", user); err != nil {
		return scserr.Wrap(scserr.Uninitialized, err, "failed to set vcs identity")
	}
	for _, name := range seedFiles {
		p := filepath.Join(s.cfg.StoreRoot, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return scserr.Wrap(scserr.Uninitialized, err, "failed to create %s", name)
		}
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			return scserr.Wrap(scserr.Uninitialized, err, "failed to seed %s", name)
		}
	}
	if _, err := s.git("", "add", "-A"); err != nil {
		return scserr.Wrap(scserr.Uninitialized, err, "failed to stage seed files")
	}
	if _, err := s.git("", "commit", "-m", "scs: initialize empty store", "--allow-empty"); err != nil {
		return scserr.Wrap(scserr.Uninitialized, err, "failed to create initial commit")
	}
	return nil
}

// seedFiles are the empty entity catalogs every fresh store is seeded with.
var seedFiles = []string{
	"application", "build", "environment", "location", "network",
	"constant", "resource", "file", "system", "file-map",
}

func (s *Store) git(dir string, args ...string) (string, error) {
	if dir == "" {
		dir = s.cfg.StoreRoot
	}
	cmd := exec.Command(s.cfg.VCSBinary, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	s.logger.WithField("args", args).Debug("store: running vcs command")
	if err := cmd.Run(); err != nil {
		return out.String(), fmt.Errorf("%s %s: %w: %s", s.cfg.VCSBinary, strings.Join(args, " "), err, out.String())
	}
	return strings.TrimSpace(out.String()), nil
}

// currentBranch returns the name of the checked-out branch.
func (s *Store) currentBranch() (string, error) {
	out, err := s.git("", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return out, nil
}

// BeginModify opens (or resumes) the work branch for user. If trunk is
// currently checked out, a new branch named after user is created and
// switched to. If user's own branch is already checked out, it resumes. Any
// other branch being current means someone else is mid-change.
func (s *Store) BeginModify(user string) (*Transaction, error) {
	branch, err := s.currentBranch()
	if err != nil {
		return nil, err
	}
	switch {
	case branch == TrunkBranch:
		if _, err := s.git("", "checkout", "-b", user); err != nil {
			return nil, scserr.Wrap(scserr.Busy, err, "failed to open work branch for %s", user)
		}
	case branch == user:
		// resuming an already-open work branch
	default:
		return nil, scserr.New(scserr.Busy, "another change is in progress on branch %q", branch)
	}
	return &Transaction{store: s, user: user}, nil
}

// DiffTrunk shows the difference between the current work branch and trunk.
func (s *Store) DiffTrunk() (string, error) {
	return s.git("", "diff", TrunkBranch)
}
