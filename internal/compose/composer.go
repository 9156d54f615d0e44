package compose

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/alitto/pond"
	"github.com/h2non/filetype"
	"github.com/sirupsen/logrus"

	"github.com/opsconf/scs/internal/config"
	"github.com/opsconf/scs/internal/model"
	"github.com/opsconf/scs/internal/scserr"
	"github.com/opsconf/scs/internal/vars"
)

// InstallScriptName is the tarball entry for the generated install script
// (spec §4.5: "an installation script at a known path"); exported so the
// auditor can exclude it from the set of on-host paths it compares.
const InstallScriptName = "scs-install.sh"

// Composer builds a release tarball for one system: construct with a
// logger and config, then call one driving method to produce the tarball.
type Composer struct {
	logger *logrus.Logger
	cfg    config.Config
	pool   *pond.WorkerPool
}

// NewComposer constructs a Composer backed by a bounded worker pool, since
// staging Files is embarrassingly-parallel per-item IO.
func NewComposer(logger *logrus.Logger, cfg config.Config) *Composer {
	pool := pond.New(10, 0, pond.MinWorkers(2))
	return &Composer{logger: logger, cfg: cfg, pool: pool}
}

// Close stops the worker pool, waiting for any in-flight staging task to
// finish.
func (c *Composer) Close() { c.pool.StopAndWait() }

// stagedFile is one entry destined for the tarball, in on-host path order.
type stagedFile struct {
	hostPath string // destination path on the target host, also the tar entry name
	srcPath  string // absolute path to staged bytes on the local scratch filesystem
	linkDest string // set only for symlink entries
	isLink   bool
	mode     int64
}

// Compose runs the full release algorithm (spec §4.5 steps 1-8) for system
// name and returns the path to the generated tarball. Scratch output is
// removed on any failure path, matching spec §4.5 "Failure modes".
func (c *Composer) Compose(name string) (string, error) {
	sys, err := model.ShowSystem(c.cfg.StoreRoot, name)
	if err != nil {
		return "", err
	}

	apps, err := model.ApplicationsForSystem(c.cfg.StoreRoot, sys)
	if err != nil {
		return "", err
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].Name < apps[j].Name })

	filesByApp := make(map[string][]string, len(apps))
	fileNames := map[string]bool{}
	for _, app := range apps {
		names, err := model.FilesForApplication(c.cfg.StoreRoot, app.Name)
		if err != nil {
			return "", err
		}
		sort.Strings(names)
		filesByApp[app.Name] = names
		for _, n := range names {
			fileNames[n] = true
		}
	}

	binding, err := vars.Resolve(c.cfg.StoreRoot, sys, apps)
	if err != nil {
		return "", err
	}

	scratch, err := os.MkdirTemp(c.cfg.ScratchDir, "release-")
	if err != nil {
		return "", scserr.Wrap(scserr.InvalidInput, err, "creating scratch directory")
	}
	defer os.RemoveAll(scratch)

	script := NewInstallScript(sys.Name, c.cfg.DownloadRetries, c.cfg.DownloadDelay)
	tree := newFileTree()
	var staged []stagedFile
	var mu sync.Mutex

	sorted := make([]string, 0, len(fileNames))
	for n := range fileNames {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	// Each File stages into its own script fragment so pool workers never
	// share one InstallScript; fragments are joined below in sorted order.
	parts := make([]*InstallScript, len(sorted))
	var wg sync.WaitGroup
	var stageErr error
	var errOnce sync.Once
	for i, name := range sorted {
		i, name := i, name
		parts[i] = NewInstallScript(sys.Name, c.cfg.DownloadRetries, c.cfg.DownloadDelay)
		wg.Add(1)
		c.pool.Submit(func() {
			defer wg.Done()
			sf, err := c.stageOne(scratch, sys, name, binding, parts[i])
			if err != nil {
				errOnce.Do(func() { stageErr = fmt.Errorf("staging file %q: %w", name, err) })
				return
			}
			if sf == nil {
				return
			}
			mu.Lock()
			staged = append(staged, *sf)
			tree.add(sf.hostPath)
			mu.Unlock()
		})
	}
	wg.Wait()
	if stageErr != nil {
		return "", stageErr
	}
	for _, p := range parts {
		script.lines = append(script.lines, p.lines...)
	}

	scriptPath := filepath.Join(scratch, InstallScriptName)
	if err := os.WriteFile(scriptPath, script.Render(), 0755); err != nil {
		return "", scserr.Wrap(scserr.InvalidInput, err, "writing install script")
	}
	staged = append(staged, stagedFile{hostPath: InstallScriptName, srcPath: scriptPath, mode: 0755})
	tree.add(InstallScriptName)

	if err := os.MkdirAll(c.cfg.ReleaseDir, 0755); err != nil {
		return "", scserr.Wrap(scserr.InvalidInput, err, "creating release directory")
	}
	archiveName := fmt.Sprintf("%s-release-%s.tgz", sys.Name, releaseTimestamp())
	archivePath := filepath.Join(c.cfg.ReleaseDir, archiveName)
	if err := writeArchive(archivePath, tree.sortedPaths(), indexStaged(staged)); err != nil {
		os.Remove(archivePath)
		return "", err
	}

	c.logger.WithField("system", sys.Name).WithField("archive", archivePath).Info("release composed")
	return archivePath, nil
}

func indexStaged(staged []stagedFile) map[string]stagedFile {
	out := make(map[string]stagedFile, len(staged))
	for _, s := range staged {
		out[s.hostPath] = s
	}
	return out
}

// releaseTimestamp is overridden in tests to keep archive names deterministic.
var releaseTimestamp = func() string { return time.Now().UTC().Format("20060102-150405") }

// stageOne stages a single File by type (spec §4.5 step 5) and appends any
// install-script steps its type requires (step 6 ownership/permission lines
// are appended for every type, per spec). Returns a nil stagedFile (and no
// error) for copy/download types, which have no tarball entry.
func (c *Composer) stageOne(scratch string, sys model.System, name string, binding vars.Bindings, script *InstallScript) (*stagedFile, error) {
	f, err := model.ShowFile(c.cfg.StoreRoot, name)
	if err != nil {
		return nil, err
	}

	switch f.Type {
	case model.FileTypeFile:
		content, err := os.ReadFile(filepath.Join(c.cfg.StoreRoot, model.TemplatePath(f.Name)))
		if err != nil {
			return nil, scserr.Wrap(scserr.InvalidInput, err, "reading template for %q", f.Name)
		}
		patchPath := filepath.Join(c.cfg.StoreRoot, model.EnvPatchPath(sys.Environment, f.Name))
		if _, err := os.Stat(patchPath); err == nil {
			content, err = c.applyPatch(scratch, f.Name, content, patchPath)
			if err != nil {
				return nil, err
			}
		}
		rendered, err := Substitute(content, binding)
		if err != nil {
			return nil, err
		}
		dest := filepath.Join(scratch, "tree", f.Path)
		if err := writeStagedFile(dest, rendered, 0644); err != nil {
			return nil, err
		}
		script.AddOwnership(f.Path, f.Owner, f.Group, f.Octal)
		return &stagedFile{hostPath: f.Path, srcPath: dest, mode: 0644}, nil

	case model.FileTypeBinary:
		srcPath := filepath.Join(c.cfg.StoreRoot, model.BinaryPath(f.Name))
		content, err := os.ReadFile(srcPath)
		if err != nil {
			return nil, scserr.Wrap(scserr.InvalidInput, err, "reading binary for %q", f.Name)
		}
		c.warnIfMislabeled(f.Name, content)
		dest := filepath.Join(scratch, "tree", f.Path)
		if err := writeStagedFile(dest, content, 0644); err != nil {
			return nil, err
		}
		script.AddOwnership(f.Path, f.Owner, f.Group, f.Octal)
		return &stagedFile{hostPath: f.Path, srcPath: dest, mode: 0644}, nil

	case model.FileTypeSymlink:
		dest := filepath.Join(scratch, "tree", f.Path)
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return nil, err
		}
		os.Remove(dest)
		if err := os.Symlink(f.Target, dest); err != nil {
			return nil, scserr.Wrap(scserr.InvalidInput, err, "creating symlink for %q", f.Name)
		}
		script.AddOwnership(f.Path, f.Owner, f.Group, f.Octal)
		return &stagedFile{hostPath: f.Path, srcPath: dest, isLink: true, linkDest: f.Target}, nil

	case model.FileTypeCopy:
		script.AddCopy(f.Target, f.Path)
		script.AddOwnership(f.Path, f.Owner, f.Group, f.Octal)
		return nil, nil

	case model.FileTypeDownload:
		script.AddDownload(f.Target, f.Path)
		script.AddOwnership(f.Path, f.Owner, f.Group, f.Octal)
		return nil, nil
	}
	return nil, scserr.New(scserr.InvalidInput, "file %q has unknown type %q", f.Name, f.Type)
}

// warnIfMislabeled logs a warning (never fails) when a File declared
// type=binary is not recognised by h2non/filetype as an image, video,
// archive, audio, or document format — a diagnostic, not a validation gate.
func (c *Composer) warnIfMislabeled(name string, content []byte) {
	head := content
	if len(head) > 261 {
		head = head[:261]
	}
	if filetype.IsImage(head) || filetype.IsVideo(head) || filetype.IsArchive(head) || filetype.IsAudio(head) || filetype.IsDocument(head) {
		return
	}
	c.logger.WithField("file", name).Warn("binary file sniffs as a non-binary content type")
}

// SniffLabel reports h2non/filetype's best guess at content's kind, for
// display alongside a binary File's metadata.
func SniffLabel(content []byte) string {
	kind, err := filetype.Match(content)
	if err != nil || kind == filetype.Unknown {
		return "unknown"
	}
	return kind.MIME.Value
}

// applyPatch shells out to the configured patch binary in context-diff mode,
// writing the result to a scratch file and reading it back.
func (c *Composer) applyPatch(scratch, name string, base []byte, patchPath string) ([]byte, error) {
	baseFile := filepath.Join(scratch, "patch-base-"+filepath.Base(name))
	outFile := filepath.Join(scratch, "patch-out-"+filepath.Base(name))
	if err := os.WriteFile(baseFile, base, 0644); err != nil {
		return nil, err
	}
	cmd := exec.Command(c.cfg.PatchBinary, "-o", outFile, baseFile, patchPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, scserr.Wrap(scserr.PatchFailed, err, "applying patch for %q: %s", name, out)
	}
	return os.ReadFile(outFile)
}

func writeStagedFile(dest string, content []byte, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	return os.WriteFile(dest, content, mode)
}

// writeArchive writes the deterministically-ordered gzip'd tarball: entries
// appear in sortedPaths order and carry a fixed mtime, so two releases of
// identical inputs are byte-identical apart from the archive's file name.
func writeArchive(archivePath string, paths []string, staged map[string]stagedFile) error {
	f, err := os.Create(archivePath)
	if err != nil {
		return scserr.Wrap(scserr.InvalidInput, err, "creating archive %q", archivePath)
	}
	defer f.Close()
	zw := gzip.NewWriter(f)
	defer zw.Close()
	tw := tar.NewWriter(zw)
	defer tw.Close()

	fixedTime := time.Unix(0, 0)
	for _, p := range paths {
		sf, ok := staged[p]
		if !ok {
			continue
		}
		if sf.isLink {
			hdr := &tar.Header{
				Name:     sf.hostPath,
				Typeflag: tar.TypeSymlink,
				Linkname: sf.linkDest,
				Mode:     0777,
				ModTime:  fixedTime,
			}
			if err := tw.WriteHeader(hdr); err != nil {
				return err
			}
			continue
		}
		info, err := os.Stat(sf.srcPath)
		if err != nil {
			return err
		}
		mode := sf.mode
		if mode == 0 {
			mode = int64(info.Mode().Perm())
		}
		hdr := &tar.Header{
			Name:    sf.hostPath,
			Size:    info.Size(),
			Mode:    mode,
			ModTime: fixedTime,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		content, err := os.Open(sf.srcPath)
		if err != nil {
			return err
		}
		_, err = io.Copy(tw, content)
		content.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
