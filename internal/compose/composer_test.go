package compose

import (
	"archive/tar"
	"compress/gzip"
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

func setupComposerStore(t *testing.T) (string, config.Config) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, model.CreateLocation(root, model.Location{Code: "lon", Name: "London"}))
	require.NoError(t, model.CreateEnvironment(root, model.Environment{Name: "prod", Alias: "P"}))
	require.NoError(t, model.CreateBuild(root, model.Build{Name: "web", Role: "frontend"}))
	require.NoError(t, model.CreateApplication(root, model.Application{Name: "nginx", Alias: "ngx", Build: "web"}))
	require.NoError(t, model.CreateConstant(root, model.Constant{Name: "PORT"}))
	require.NoError(t, model.SetConstantValue(root, model.GlobalConstantPath(), "PORT", "8080"))
	require.NoError(t, model.CreateSystem(root, model.System{
		Name: "web01", Build: "web", IP: "10.0.0.1", Location: "lon", Environment: "prod",
	}))

	require.NoError(t, model.CreateFile(root, model.File{
		Name: "nginx.conf", Path: "etc/nginx/nginx.conf", Type: model.FileTypeFile,
		Owner: "root", Group: "root", Octal: "644",
	}))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "template"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, model.TemplatePath("nginx.conf")),
		[]byte("listen {% constant.port %};\n"), 0644))

	require.NoError(t, model.CreateFile(root, model.File{
		Name: "banner.png", Path: "usr/share/nginx/banner.png", Type: model.FileTypeBinary,
		Owner: "root", Group: "root", Octal: "644",
	}))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "binary"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, model.BinaryPath("banner.png")),
		[]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}, 0644))

	require.NoError(t, model.CreateFile(root, model.File{
		Name: "motd-link", Path: "etc/motd", Type: model.FileTypeSymlink,
		Owner: "root", Group: "root", Octal: "644", Target: "/etc/nginx/motd.txt",
	}))
	require.NoError(t, model.CreateFile(root, model.File{
		Name: "payload", Path: "opt/app/payload.tar", Type: model.FileTypeDownload,
		Owner: "root", Group: "root", Octal: "644", Target: "https://example.invalid/payload.tar",
	}))

	for _, f := range []string{"nginx.conf", "banner.png", "motd-link", "payload"} {
		require.NoError(t, model.AddFileMap(root, f, "nginx"))
	}

	cfg := config.Default(root)
	cfg.ReleaseDir = filepath.Join(t.TempDir(), "release")
	cfg.ScratchDir = t.TempDir()
	return root, cfg
}

func newTestComposer(cfg config.Config) *Composer {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewComposer(logger, cfg)
}

func TestComposeProducesArchiveWithSubstitutionAndInstallScript(t *testing.T) {
	_, cfg := setupComposerStore(t)
	c := newTestComposer(cfg)
	defer c.Close()

	archivePath, err := c.Compose("web01")
	require.NoError(t, err)
	assert.FileExists(t, archivePath)
	assert.Contains(t, filepath.Base(archivePath), "web01-release-")

	entries := readTarGz(t, archivePath)
	assert.Contains(t, entries, "etc/nginx/nginx.conf")
	assert.Contains(t, entries, "usr/share/nginx/banner.png")
	assert.Contains(t, entries, "etc/motd")
	assert.Contains(t, entries, InstallScriptName)
	assert.NotContains(t, entries, "opt/app/payload.tar")

	assert.Equal(t, "listen 8080;\n", string(entries["etc/nginx/nginx.conf"]))

	script := string(entries[InstallScriptName])
	assert.Contains(t, script, `if [ "$(hostname)" != "web01" ]`)
	assert.Contains(t, script, "curl")
	assert.Contains(t, script, "chown root:root")
}

func TestComposeFailsOnUndefinedVariable(t *testing.T) {
	root, cfg := setupComposerStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, model.TemplatePath("nginx.conf")),
		[]byte("listen {% constant.missing %};\n"), 0644))
	c := newTestComposer(cfg)
	defer c.Close()

	_, err := c.Compose("web01")
	assert.Error(t, err)
	matches, _ := filepath.Glob(filepath.Join(cfg.ReleaseDir, "*.tgz"))
	assert.Empty(t, matches)
}

func TestComposeIsDeterministicAcrossRuns(t *testing.T) {
	_, cfg := setupComposerStore(t)
	c1 := newTestComposer(cfg)
	defer c1.Close()
	first, err := c1.Compose("web01")
	require.NoError(t, err)
	firstBytes, err := os.ReadFile(first)
	require.NoError(t, err)

	cfg.ReleaseDir = filepath.Join(t.TempDir(), "release2")
	c2 := newTestComposer(cfg)
	defer c2.Close()
	second, err := c2.Compose("web01")
	require.NoError(t, err)
	secondBytes, err := os.ReadFile(second)
	require.NoError(t, err)

	assert.Equal(t, firstBytes, secondBytes)
}

func readTarGz(t *testing.T, path string) map[string][]byte {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(zr)
	out := map[string][]byte{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if hdr.Typeflag == tar.TypeSymlink {
			out[hdr.Name] = []byte(hdr.Linkname)
			continue
		}
		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		out[hdr.Name] = content
	}
	return out
}
