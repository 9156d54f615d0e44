package editor

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsconf/scs/internal/config"
	"github.com/opsconf/scs/internal/model"
)

func setupEditorStore(t *testing.T) config.Config {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, model.CreateEnvironment(root, model.Environment{Name: "prod", Alias: "P"}))
	require.NoError(t, model.CreateEnvironment(root, model.Environment{Name: "stage", Alias: "S"}))
	require.NoError(t, model.CreateFile(root, model.File{
		Name: "nginx.conf", Path: "etc/nginx/nginx.conf", Type: model.FileTypeFile,
		Owner: "root", Group: "root", Octal: "644",
	}))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "template"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, model.TemplatePath("nginx.conf")),
		[]byte("listen 80;\nworker_processes 1;\n"), 0644))

	cfg := config.Default(root)
	cfg.ScratchDir = t.TempDir()
	return cfg
}

// rewriteRunner replaces a scratch file's content with a fixed string,
// standing in for an interactive $EDITOR session.
type rewriteRunner struct {
	content []byte
}

func (r rewriteRunner) Edit(path string) error {
	return os.WriteFile(path, r.content, 0644)
}

type autoResolver struct {
	calls int
}

func (a *autoResolver) Resolve(env, conflictDiff string, reconstructed []byte) ([]byte, error) {
	a.calls++
	return reconstructed, nil
}

type autoConfirmer struct {
	approve bool
	prompts []string
}

func (a *autoConfirmer) Confirm(prompt string) (bool, error) {
	a.prompts = append(a.prompts, prompt)
	return a.approve, nil
}

func newTestEditor(cfg config.Config, runner Runner, resolver ConflictResolver, confirmer Confirmer) *Editor {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(logger, cfg, runner, resolver, confirmer)
}

func TestEditEnvironmentPatchWritesContextDiff(t *testing.T) {
	cfg := setupEditorStore(t)
	runner := rewriteRunner{content: []byte("listen 8080;\nworker_processes 1;\n")}
	confirmer := &autoConfirmer{approve: true}
	e := newTestEditor(cfg, runner, nil, confirmer)

	require.NoError(t, e.EditEnvironmentPatch("prod", "nginx.conf"))

	patchPath := filepath.Join(cfg.StoreRoot, model.EnvPatchPath("prod", "nginx.conf"))
	content, err := os.ReadFile(patchPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "8080")
	assert.Len(t, confirmer.prompts, 1)
}

func TestEditEnvironmentPatchDeclinedLeavesNoPatch(t *testing.T) {
	cfg := setupEditorStore(t)
	runner := rewriteRunner{content: []byte("listen 8080;\nworker_processes 1;\n")}
	confirmer := &autoConfirmer{approve: false}
	e := newTestEditor(cfg, runner, nil, confirmer)

	require.NoError(t, e.EditEnvironmentPatch("prod", "nginx.conf"))

	patchPath := filepath.Join(cfg.StoreRoot, model.EnvPatchPath("prod", "nginx.conf"))
	_, err := os.ReadFile(patchPath)
	assert.True(t, os.IsNotExist(err))
}

func TestEditTemplateReappliesExistingPatches(t *testing.T) {
	cfg := setupEditorStore(t)

	seedRunner := rewriteRunner{content: []byte("listen 8080;\nworker_processes 1;\n")}
	seedEditor := newTestEditor(cfg, seedRunner, nil, &autoConfirmer{approve: true})
	require.NoError(t, seedEditor.EditEnvironmentPatch("prod", "nginx.conf"))

	templateRunner := rewriteRunner{content: []byte("listen 80;\nworker_processes 4;\n")}
	resolver := &autoResolver{}
	e := newTestEditor(cfg, templateRunner, resolver, nil)
	require.NoError(t, e.EditTemplate("nginx.conf"))

	newTemplate, err := os.ReadFile(filepath.Join(cfg.StoreRoot, model.TemplatePath("nginx.conf")))
	require.NoError(t, err)
	assert.Equal(t, "listen 80;\nworker_processes 4;\n", string(newTemplate))

	patchContent, err := os.ReadFile(filepath.Join(cfg.StoreRoot, model.EnvPatchPath("prod", "nginx.conf")))
	require.NoError(t, err)
	assert.Contains(t, string(patchContent), "8080")
}
