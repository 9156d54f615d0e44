package store

import (
	"strings"

	"github.com/opsconf/scs/internal/scserr"
)

// Transaction is the handle returned by Store.BeginModify. Every mutating
// model operation stages the files it changed and, once the logical change
// is complete, Commits (or Cancels) exactly once.
type Transaction struct {
	store *Store
	user  string
}

// User is the operator that owns this work branch.
func (t *Transaction) User() string { return t.user }

// StageFile marks one or more paths (relative to the store root, or "." for
// everything) as part of the pending change.
func (t *Transaction) StageFile(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"add"}, paths...)
	_, err := t.store.git("", args...)
	return err
}

// hasPendingChanges reports whether the work branch differs from trunk.
func (t *Transaction) hasPendingChanges() (bool, error) {
	out, err := t.store.git("", "status", "--porcelain")
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(out) != "" {
		return true, nil
	}
	out, err = t.store.git("", "diff", "--stat", TrunkBranch+"...HEAD")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

func (t *Transaction) requireOwnBranch() error {
	branch, err := t.store.currentBranch()
	if err != nil {
		return err
	}
	if branch != t.user {
		return scserr.New(scserr.NotOnYourBranch, "not on %s's work branch (currently on %q)", t.user, branch)
	}
	return nil
}

// Commit squash-merges the work branch into trunk with the supplied message
// (or a default), then deletes the work branch. If there are no pending
// changes, Commit switches back to trunk and deletes the work branch without
// creating a commit. Fails with ConflictOnMerge if trunk advanced outside
// this transaction.
func (t *Transaction) Commit(message string) error {
	if err := t.requireOwnBranch(); err != nil {
		return err
	}
	pending, err := t.hasPendingChanges()
	if err != nil {
		return err
	}
	if !pending {
		_, err := t.store.git("", "checkout", TrunkBranch)
		if err != nil {
			return err
		}
		_, err = t.store.git("", "branch", "-d", t.user)
		return err
	}
	if message == "" {
		message = "scs: " + t.user + "'s change"
	}
	if _, err := t.store.git("", "commit", "-am", message); err != nil {
		return scserr.Wrap(scserr.InvalidInput, err, "failed to commit work branch")
	}
	if _, err := t.store.git("", "merge-base", "--is-ancestor", TrunkBranch, t.user); err != nil {
		return scserr.Wrap(scserr.ConflictOnMerge, err, "trunk was modified outside scs; resolve manually on branch %q", t.user)
	}
	if _, err := t.store.git("", "checkout", TrunkBranch); err != nil {
		return err
	}
	if _, err := t.store.git("", "merge", "--squash", t.user); err != nil {
		// leave the operator on their branch to reconcile manually
		t.store.git("", "merge", "--abort")
		t.store.git("", "checkout", t.user)
		return scserr.Wrap(scserr.ConflictOnMerge, err, "trunk was modified outside scs; resolve manually on branch %q", t.user)
	}
	if _, err := t.store.git("", "commit", "-m", message); err != nil {
		return scserr.Wrap(scserr.InvalidInput, err, "failed to commit squash-merge to trunk")
	}
	_, err = t.store.git("", "branch", "-D", t.user)
	return err
}

// Cancel resets the working tree, switches back to trunk, and deletes the
// work branch. force allows cancelling a branch not owned by the caller
// (used for administrative recovery).
func (t *Transaction) Cancel(force bool) error {
	if !force {
		if err := t.requireOwnBranch(); err != nil {
			return err
		}
	}
	branch, err := t.store.currentBranch()
	if err != nil {
		return err
	}
	if branch == TrunkBranch {
		return nil
	}
	if _, err := t.store.git("", "reset", "--hard", "HEAD"); err != nil {
		return err
	}
	if _, err := t.store.git("", "checkout", TrunkBranch); err != nil {
		return err
	}
	_, err = t.store.git("", "branch", "-D", branch)
	return err
}

// Diff shows the pending change relative to trunk.
func (t *Transaction) Diff() (string, error) {
	return t.store.DiffTrunk()
}
