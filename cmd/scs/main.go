// Command scs is the configuration-management authoring tool: a
// transactional, version-controlled catalog of applications, builds,
// environments, locations, networks, constants, resources, files, and
// systems, plus a release composer and auditor.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/perforce/p4prometheus/version"
	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/opsconf/scs/internal/audit"
	"github.com/opsconf/scs/internal/compose"
	"github.com/opsconf/scs/internal/config"
	"github.com/opsconf/scs/internal/editor"
	"github.com/opsconf/scs/internal/scserr"
	"github.com/opsconf/scs/internal/store"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run parses args and dispatches, returning the process exit code (spec §6
// exit codes: 0 success, 1 generic error, 2 auditor mismatch, 3 reserved).
func run(args []string) int {
	app := kingpin.New("scs", "Configuration-management authoring tool.")
	app.UsageTemplate(kingpin.CompactUsageTemplate).Version(version.Print("scs")).Author("opsconf")
	app.HelpFlag.Short('h')

	configFile := app.Flag("config", "Config file for scs.").Default("scs.yaml").Short('c').String()
	debug := app.Flag("debug", "Enable debug logging.").Bool()
	profileFlag := app.Flag("profile", "Write a CPU profile to the configured scratch directory.").Bool()
	graphFlag := app.Flag("graph", "Also emit a dependency graph alongside a release (system release only).").Bool()
	messageFlag := app.Flag("message", "Commit message.").Short('m').String()
	forceFlag := app.Flag("force", "Force cancel even if not on your own work branch.").Bool()

	cmds := registerCommands(app)

	matched, err := app.Parse(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger := logrus.New()
	logger.Level = logrus.InfoLevel
	if *debug {
		logger.Level = logrus.DebugLevel
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		logger.Error(err)
		return 1
	}

	if *profileFlag {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(cfg.ScratchDir)).Stop()
	}

	if err := requireRoot(); err != nil {
		logger.Error(err)
		return exitFor(err)
	}
	user, err := operatorIdentity()
	if err != nil {
		logger.Error(err)
		return 1
	}

	rc := &runContext{
		logger: logger, cfg: cfg, user: user,
		commitMessage: *messageFlag, forceCancel: *forceFlag, withGraph: *graphFlag,
	}

	dispatch, ok := cmds[matched]
	if !ok {
		fmt.Fprintf(os.Stderr, "scs: unknown command %q\n", matched)
		return 1
	}
	if err := dispatch(rc); err != nil {
		logger.Error(err)
		if _, ok := err.(auditMismatchError); ok {
			return 2
		}
		return exitFor(err)
	}
	return 0
}

func loadConfig(path string) (config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		return config.Default("scs-store"), nil
	}
	return config.Load(path)
}

func requireRoot() error {
	if os.Geteuid() != 0 {
		return scserr.New(scserr.NotRoot, "scs must run as the superuser")
	}
	return nil
}

// operatorIdentity resolves the current operator from SUDO_USER, falling
// back to an interactive prompt (spec §6 "Environment variables").
func operatorIdentity() (string, error) {
	if u := os.Getenv("SUDO_USER"); u != "" {
		return u, nil
	}
	fmt.Fprint(os.Stderr, "scs: SUDO_USER is not set; enter your operator name: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading operator identity: %w", err)
	}
	name := strings.TrimSpace(line)
	if name == "" {
		return "", scserr.New(scserr.InvalidInput, "an operator identity is required")
	}
	return name, nil
}

// exitFor maps an error's scserr.Kind to a process exit code (spec §7/§6).
func exitFor(err error) int {
	if k, ok := scserr.KindOf(err); ok {
		return scserr.ExitCode(k)
	}
	return 1
}

// runContext carries everything a subject/verb handler needs: the
// operator's identity, loaded config, logger, and the flags that apply to
// the top-level commit/cancel and system --release/--audit verbs.
type runContext struct {
	logger        *logrus.Logger
	cfg           config.Config
	user          string
	commitMessage string
	forceCancel   bool
	withGraph     bool
}

func (rc *runContext) openStore() *store.Store {
	return store.New(rc.logger, rc.cfg)
}

// withTransaction opens (or resumes) the operator's work branch, offering
// to initialize the store on first run, runs fn against the checked-out
// tree, and stages every change fn made. It never commits — commit/cancel
// are separate top-level commands (spec §5 "Ordering guarantees").
func (rc *runContext) withTransaction(fn func() error) error {
	s := rc.openStore()
	if !s.Initialized() {
		fmt.Fprintf(os.Stderr, "scs: store %q is not initialized; initialize now? [y/N] ", rc.cfg.StoreRoot)
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		if strings.TrimSpace(strings.ToLower(line)) != "y" {
			return scserr.New(scserr.Uninitialized, "store is not initialized")
		}
		if err := s.Init(rc.user); err != nil {
			return err
		}
	}
	tx, err := s.BeginModify(rc.user)
	if err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return tx.StageFile(".")
}

func (rc *runContext) composer() *compose.Composer {
	return compose.NewComposer(rc.logger, rc.cfg)
}

func (rc *runContext) auditor(fetcher audit.Fetcher, prompter audit.Prompter) *audit.Auditor {
	return audit.New(rc.logger, rc.cfg, rc.composer(), fetcher, prompter)
}

func (rc *runContext) editor(runner editor.Runner) *editor.Editor {
	return editor.New(rc.logger, rc.cfg, runner, stdinConflictResolver{runner: runner}, stdinConfirmer{})
}

// confirmer returns the default yes/no Confirmer, shared by the editor's
// patch-replacement prompt and the top-level commit confirmation.
func (rc *runContext) confirmer() editor.Confirmer {
	return stdinConfirmer{}
}

// stdinConflictResolver shows the operator the conflicting patch and the
// previously reconstructed environment file, then opens the same editor
// against a scratch copy of that reconstruction so they can hand-resolve it
// (spec §4.7: a patch that no longer applies goes through conflict
// resolution rather than aborting the whole template edit).
type stdinConflictResolver struct {
	runner editor.Runner
}

func (r stdinConflictResolver) Resolve(env, conflictDiff string, reconstructed []byte) ([]byte, error) {
	fmt.Fprintf(os.Stderr, "scs: patch for environment %q no longer applies:\n%s\n", env, conflictDiff)
	scratch, err := os.CreateTemp("", "scs-conflict-"+env+"-")
	if err != nil {
		return nil, err
	}
	path := scratch.Name()
	defer os.Remove(path)
	if _, err := scratch.Write(reconstructed); err != nil {
		scratch.Close()
		return nil, err
	}
	scratch.Close()

	fmt.Fprintf(os.Stderr, "scs: resolve the conflict for %q in your editor, then save and exit\n", env)
	if err := r.runner.Edit(path); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// stdinConfirmer is the default Confirmer: it prompts on stdin/stderr, the
// same interactive-approval shape the spec requires for environment patch
// replacement (§4.7).
type stdinConfirmer struct{}

func (stdinConfirmer) Confirm(prompt string) (bool, error) {
	fmt.Fprintf(os.Stderr, "%s\n[y/N] ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(strings.ToLower(line)) == "y", nil
}

// stdinPrompter is the default audit.Prompter: it asks the operator to pick
// one of the three options spec §4.6 requires for a mismatched file.
type stdinPrompter struct{}

func (stdinPrompter) Choose(path string) (audit.Decision, error) {
	fmt.Fprintf(os.Stderr, "%s differs. (s)ide-by-side, (u)nified diff, or (k)skip? ", path)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return audit.DecisionSkip, err
	}
	switch strings.TrimSpace(strings.ToLower(line)) {
	case "s":
		return audit.DecisionViewSideBySide, nil
	case "u":
		return audit.DecisionViewUnifiedDiff, nil
	default:
		return audit.DecisionSkip, nil
	}
}
