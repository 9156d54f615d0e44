package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/opsconf/scs/internal/config"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.Level = logrus.ErrorLevel
	return l
}

func newTestStore(t *testing.T) *Store {
	root := t.TempDir()
	cfg := config.Default(root)
	s := New(testLogger(), cfg)
	if err := s.Init("alice"); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	return s
}

func TestInitSeedsCatalogsAndCommits(t *testing.T) {
	s := newTestStore(t)
	for _, name := range seedFiles {
		p := filepath.Join(s.Root(), name)
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected seed file %s: %v", name, err)
		}
	}
	branch, err := s.currentBranch()
	assert.NoError(t, err)
	assert.Equal(t, TrunkBranch, branch)
}

func TestInitIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Init("alice"))
}

func TestBeginModifyOpensBranchAndResumes(t *testing.T) {
	s := newTestStore(t)
	tx, err := s.BeginModify("alice")
	assert.NoError(t, err)
	branch, _ := s.currentBranch()
	assert.Equal(t, "alice", branch)

	tx2, err := s.BeginModify("alice")
	assert.NoError(t, err)
	assert.Equal(t, tx.User(), tx2.User())
}

func TestBeginModifyFailsBusyForOtherUser(t *testing.T) {
	s := newTestStore(t)
	_, err := s.BeginModify("alice")
	assert.NoError(t, err)

	_, err = s.BeginModify("bob")
	assert.Error(t, err)
}

func TestCommitWritesToTrunk(t *testing.T) {
	s := newTestStore(t)
	tx, err := s.BeginModify("alice")
	assert.NoError(t, err)

	p := filepath.Join(s.Root(), "application")
	assert.NoError(t, os.WriteFile(p, []byte("frontend,fe,web-1.0,n\n"), 0o644))
	assert.NoError(t, tx.StageFile("application"))
	assert.NoError(t, tx.Commit("add frontend"))

	branch, _ := s.currentBranch()
	assert.Equal(t, TrunkBranch, branch)
	content, err := os.ReadFile(p)
	assert.NoError(t, err)
	assert.Equal(t, "frontend,fe,web-1.0,n\n", string(content))

	// work branch is gone; a new user can now begin
	_, err = s.BeginModify("bob")
	assert.NoError(t, err)
}

func TestCommitNoopWhenNoChanges(t *testing.T) {
	s := newTestStore(t)
	tx, err := s.BeginModify("alice")
	assert.NoError(t, err)
	assert.NoError(t, tx.Commit(""))
	branch, _ := s.currentBranch()
	assert.Equal(t, TrunkBranch, branch)
}

func TestCancelRestoresTrunk(t *testing.T) {
	s := newTestStore(t)
	tx, err := s.BeginModify("alice")
	assert.NoError(t, err)

	p := filepath.Join(s.Root(), "application")
	assert.NoError(t, os.WriteFile(p, []byte("frontend,fe,web-1.0,n\n"), 0o644))
	assert.NoError(t, tx.StageFile("application"))
	assert.NoError(t, tx.Cancel(false))

	branch, _ := s.currentBranch()
	assert.Equal(t, TrunkBranch, branch)
	content, err := os.ReadFile(p)
	assert.NoError(t, err)
	assert.Empty(t, string(content))
}

func TestCommitRequiresOwnBranch(t *testing.T) {
	s := newTestStore(t)
	_, err := s.BeginModify("alice")
	assert.NoError(t, err)
	assert.NoError(t, s.Init("alice")) // no-op, still on alice's branch

	other := &Transaction{store: s, user: "bob"}
	err = other.Commit("")
	assert.Error(t, err)
}
