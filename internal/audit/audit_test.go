package audit

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsconf/scs/internal/compose"
	"github.com/opsconf/scs/internal/config"
	"github.com/opsconf/scs/internal/model"
)

func setupAuditStore(t *testing.T) config.Config {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, model.CreateLocation(root, model.Location{Code: "lon", Name: "London"}))
	require.NoError(t, model.CreateEnvironment(root, model.Environment{Name: "prod", Alias: "P"}))
	require.NoError(t, model.CreateBuild(root, model.Build{Name: "web", Role: "frontend"}))
	require.NoError(t, model.CreateApplication(root, model.Application{Name: "nginx", Alias: "ngx", Build: "web"}))
	require.NoError(t, model.CreateSystem(root, model.System{
		Name: "web01", Build: "web", IP: "10.0.0.1", Location: "lon", Environment: "prod",
	}))
	require.NoError(t, model.CreateFile(root, model.File{
		Name: "nginx.conf", Path: "etc/nginx/nginx.conf", Type: model.FileTypeFile,
		Owner: "root", Group: "root", Octal: "644",
	}))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "template"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, model.TemplatePath("nginx.conf")),
		[]byte("listen 80;\n"), 0644))
	require.NoError(t, model.CreateFile(root, model.File{
		Name: "placeholder", Path: "etc/empty.conf", Type: model.FileTypeFile,
		Owner: "root", Group: "root", Octal: "644",
	}))
	require.NoError(t, os.WriteFile(filepath.Join(root, model.TemplatePath("placeholder")), []byte(""), 0644))
	require.NoError(t, model.AddFileMap(root, "nginx.conf", "nginx"))
	require.NoError(t, model.AddFileMap(root, "placeholder", "nginx"))

	cfg := config.Default(root)
	cfg.ReleaseDir = filepath.Join(t.TempDir(), "release")
	cfg.ScratchDir = t.TempDir()
	return cfg
}

type fakeFetcher struct {
	content map[string][]byte
}

func (f fakeFetcher) Fetch(_ context.Context, _, remotePath string) (io.ReadCloser, error) {
	content, ok := f.content[remotePath]
	if !ok {
		return nil, assertError{remotePath}
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

type assertError struct{ path string }

func (e assertError) Error() string { return "no such remote file: " + e.path }

type fakePrompter struct {
	decision Decision
	asked    []string
}

func (p *fakePrompter) Choose(path string) (Decision, error) {
	p.asked = append(p.asked, path)
	return p.decision, nil
}

func newTestAuditComposer(cfg config.Config) *compose.Composer {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return compose.NewComposer(logger, cfg)
}

func TestAuditAllMatch(t *testing.T) {
	cfg := setupAuditStore(t)
	c := newTestAuditComposer(cfg)
	defer c.Close()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	fetcher := fakeFetcher{content: map[string][]byte{
		"etc/nginx/nginx.conf": []byte("listen 80;\n"),
	}}
	a := New(logger, cfg, c, fetcher, nil)
	defer a.Close()

	report, err := a.Run(context.Background(), "web01", "web01")
	require.NoError(t, err)
	assert.True(t, report.Success())

	var sawEmpty, sawMatch bool
	for _, o := range report.Outcomes {
		if o.Path == "etc/empty.conf" {
			sawEmpty = o.Status == StatusSkippedEmpty
		}
		if o.Path == "etc/nginx/nginx.conf" {
			sawMatch = o.Status == StatusMatch
		}
	}
	assert.True(t, sawEmpty)
	assert.True(t, sawMatch)
}

func TestAuditDetectsMismatch(t *testing.T) {
	cfg := setupAuditStore(t)
	c := newTestAuditComposer(cfg)
	defer c.Close()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	fetcher := fakeFetcher{content: map[string][]byte{
		"etc/nginx/nginx.conf": []byte("listen 8080;\n"),
	}}
	prompter := &fakePrompter{decision: DecisionViewUnifiedDiff}
	a := New(logger, cfg, c, fetcher, prompter)
	defer a.Close()

	report, err := a.Run(context.Background(), "web01", "web01")
	require.NoError(t, err)
	assert.False(t, report.Success())
	assert.Contains(t, prompter.asked, "etc/nginx/nginx.conf")

	var status Status
	for _, o := range report.Outcomes {
		if o.Path == "etc/nginx/nginx.conf" {
			status = o.Status
		}
	}
	assert.Equal(t, StatusMismatch, status)
}
