// Package editor implements the interactive file editor (spec §4.7): the
// template-edit and environment-patch-edit workflows for a File of
// type=file. Input acquisition (launching $EDITOR, prompting for
// confirmation, resolving a conflict) is behind small interfaces so the
// business logic — which environments to re-patch, when to replace the
// template atomically — can be tested without a terminal.
package editor

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/opsconf/scs/internal/config"
	"github.com/opsconf/scs/internal/model"
	"github.com/opsconf/scs/internal/scserr"
)

// Runner launches the operator's editor against a scratch path and waits
// for it to exit; the caller re-reads the path afterward.
type Runner interface {
	Edit(path string) error
}

// ExecRunner shells out to the configured editor binary, the same
// os/exec invocation style used throughout this codebase for external
// tools (version control, patch, diff).
type ExecRunner struct {
	Editor string
}

func (r ExecRunner) Edit(path string) error {
	cmd := exec.Command(r.Editor, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// ConflictResolver resolves a patch that fails to reapply against a new
// template: shown the environment name, a diff of the conflict, and the
// previously reconstructed environment file, it returns the content the
// environment's file should have going forward.
type ConflictResolver interface {
	Resolve(env string, conflictDiff string, reconstructed []byte) ([]byte, error)
}

// Confirmer acquires a yes/no confirmation from the operator.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// Editor drives both file-editor workflows.
type Editor struct {
	logger    *logrus.Logger
	cfg       config.Config
	runner    Runner
	resolver  ConflictResolver
	confirmer Confirmer
}

func New(logger *logrus.Logger, cfg config.Config, runner Runner, resolver ConflictResolver, confirmer Confirmer) *Editor {
	return &Editor{logger: logger, cfg: cfg, runner: runner, resolver: resolver, confirmer: confirmer}
}

// EditTemplate implements spec §4.7 "Template edit". It loads the base
// template into a scratch buffer, runs it through the editor, then for
// every environment with an existing patch against this File, reapplies
// that patch to the new template. A failed reapply goes through conflict
// resolution instead of aborting the whole edit. Only once every
// environment has a resolved patch does the new template replace the old
// one, atomically via rename.
func (e *Editor) EditTemplate(name string) error {
	f, err := model.ShowFile(e.cfg.StoreRoot, name)
	if err != nil {
		return err
	}
	if f.Type != model.FileTypeFile {
		return scserr.New(scserr.InvalidInput, "file %q is not of type=file", name)
	}

	templatePath := filepath.Join(e.cfg.StoreRoot, model.TemplatePath(name))
	oldTemplate, err := os.ReadFile(templatePath)
	if err != nil {
		return scserr.Wrap(scserr.InvalidInput, err, "reading template for %q", name)
	}

	scratch, err := os.MkdirTemp(e.cfg.ScratchDir, "edit-template-")
	if err != nil {
		return scserr.Wrap(scserr.InvalidInput, err, "creating scratch directory")
	}
	defer os.RemoveAll(scratch)

	scratchPath := filepath.Join(scratch, name)
	if err := os.WriteFile(scratchPath, oldTemplate, 0644); err != nil {
		return err
	}
	if err := e.runner.Edit(scratchPath); err != nil {
		return scserr.Wrap(scserr.InvalidInput, err, "editing template for %q", name)
	}
	newTemplate, err := os.ReadFile(scratchPath)
	if err != nil {
		return err
	}

	envs, err := environmentsWithPatch(e.cfg.StoreRoot, name)
	if err != nil {
		return err
	}

	newPatches := make(map[string][]byte, len(envs))
	for _, env := range envs {
		patchPath := filepath.Join(e.cfg.StoreRoot, model.EnvPatchPath(env, name))
		patchContent, err := os.ReadFile(patchPath)
		if err != nil {
			return err
		}
		reconstructed, err := applyPatch(e.cfg.PatchBinary, scratch, oldTemplate, patchContent)
		if err != nil {
			return scserr.Wrap(scserr.PatchFailed, err, "reconstructing %s/%s before reapply", env, name)
		}

		_, reapplyErr := applyPatch(e.cfg.PatchBinary, scratch, newTemplate, patchContent)
		if reapplyErr == nil {
			newPatches[env] = patchContent
			continue
		}

		if e.resolver == nil {
			return scserr.Wrap(scserr.PatchFailed, reapplyErr, "patch for %s/%s no longer applies", env, name)
		}
		resolved, rerr := e.resolver.Resolve(env, reapplyErr.Error(), reconstructed)
		if rerr != nil {
			return rerr
		}
		regenerated, err := contextDiff(scratch, newTemplate, resolved, name)
		if err != nil {
			return err
		}
		newPatches[env] = regenerated
	}

	for env, content := range newPatches {
		patchPath := filepath.Join(e.cfg.StoreRoot, model.EnvPatchPath(env, name))
		if err := os.MkdirAll(filepath.Dir(patchPath), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(patchPath, content, 0644); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(templatePath), 0755); err != nil {
		return err
	}
	if err := os.Rename(scratchPath, templatePath); err != nil {
		return err
	}
	e.logger.WithField("file", name).WithField("environments", envs).Info("template updated")
	return nil
}

// EditEnvironmentPatch implements spec §4.7 "Environment patch edit". It
// reconstructs the effective file (base template + current patch), opens
// the editor, regenerates a context-format patch against the base, shows
// the diff, requires confirmation, and on confirmation replaces the
// environment's patch file.
func (e *Editor) EditEnvironmentPatch(env, name string) error {
	f, err := model.ShowFile(e.cfg.StoreRoot, name)
	if err != nil {
		return err
	}
	if f.Type != model.FileTypeFile {
		return scserr.New(scserr.InvalidInput, "file %q is not of type=file", name)
	}

	templatePath := filepath.Join(e.cfg.StoreRoot, model.TemplatePath(name))
	base, err := os.ReadFile(templatePath)
	if err != nil {
		return scserr.Wrap(scserr.InvalidInput, err, "reading template for %q", name)
	}

	patchPath := filepath.Join(e.cfg.StoreRoot, model.EnvPatchPath(env, name))
	var existingPatch []byte
	if content, err := os.ReadFile(patchPath); err == nil {
		existingPatch = content
	}

	scratch, err := os.MkdirTemp(e.cfg.ScratchDir, "edit-patch-")
	if err != nil {
		return scserr.Wrap(scserr.InvalidInput, err, "creating scratch directory")
	}
	defer os.RemoveAll(scratch)

	effective := base
	if len(existingPatch) > 0 {
		effective, err = applyPatch(e.cfg.PatchBinary, scratch, base, existingPatch)
		if err != nil {
			return scserr.Wrap(scserr.PatchFailed, err, "reconstructing %s/%s", env, name)
		}
	}

	scratchPath := filepath.Join(scratch, name)
	if err := os.WriteFile(scratchPath, effective, 0644); err != nil {
		return err
	}
	if err := e.runner.Edit(scratchPath); err != nil {
		return scserr.Wrap(scserr.InvalidInput, err, "editing %s/%s", env, name)
	}
	edited, err := os.ReadFile(scratchPath)
	if err != nil {
		return err
	}

	newPatch, err := contextDiff(scratch, base, edited, name)
	if err != nil {
		return err
	}

	if e.confirmer != nil {
		ok, err := e.confirmer.Confirm(fmt.Sprintf("replace patch for %s/%s with:\n%s", env, name, newPatch))
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(patchPath), 0755); err != nil {
		return err
	}
	e.logger.WithField("file", name).WithField("environment", env).Info("environment patch updated")
	return os.WriteFile(patchPath, newPatch, 0644)
}

// environmentsWithPatch returns every environment name with an existing
// template/patch/<env>/<name> file, sorted ascending.
func environmentsWithPatch(root, name string) ([]string, error) {
	envs, err := model.ListEnvironments(root)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, env := range envs {
		if _, err := os.Stat(filepath.Join(root, model.EnvPatchPath(env, name))); err == nil {
			out = append(out, env)
		}
	}
	sort.Strings(out)
	return out, nil
}

// applyPatch shells out to the patch binary in context-diff mode, the same
// pattern the composer uses to apply an environment's patch to a template.
func applyPatch(patchBinary, scratch string, base, patch []byte) ([]byte, error) {
	baseFile, err := os.CreateTemp(scratch, "patch-base-")
	if err != nil {
		return nil, err
	}
	defer os.Remove(baseFile.Name())
	if _, err := baseFile.Write(base); err != nil {
		baseFile.Close()
		return nil, err
	}
	baseFile.Close()

	patchFile, err := os.CreateTemp(scratch, "patch-in-")
	if err != nil {
		return nil, err
	}
	defer os.Remove(patchFile.Name())
	if _, err := patchFile.Write(patch); err != nil {
		patchFile.Close()
		return nil, err
	}
	patchFile.Close()

	outPath := filepath.Join(scratch, fmt.Sprintf("patch-out-%d", os.Getpid()))
	defer os.Remove(outPath)

	cmd := exec.Command(patchBinary, "-o", outPath, baseFile.Name(), patchFile.Name())
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%w: %s", err, out)
	}
	return os.ReadFile(outPath)
}

// contextDiff shells out to diff -c to produce a context-format patch of
// edited against base — the format spec §4.7 requires on disk, which the
// pmezard/go-difflib package used for display diffs elsewhere in this
// codebase does not produce.
func contextDiff(scratch string, base, edited []byte, name string) ([]byte, error) {
	baseFile := filepath.Join(scratch, "diff-base-"+filepath.Base(name))
	editedFile := filepath.Join(scratch, "diff-edited-"+filepath.Base(name))
	if err := os.WriteFile(baseFile, base, 0644); err != nil {
		return nil, err
	}
	if err := os.WriteFile(editedFile, edited, 0644); err != nil {
		return nil, err
	}

	cmd := exec.Command("diff", "-c", baseFile, editedFile)
	var out bytes.Buffer
	cmd.Stdout = &out
	err := cmd.Run()
	if err == nil {
		return out.Bytes(), nil // identical; empty context diff
	}
	if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
		return out.Bytes(), nil
	}
	return nil, fmt.Errorf("diff -c failed: %w", err)
}
