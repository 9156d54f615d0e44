package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/opsconf/scs/internal/audit"
	"github.com/opsconf/scs/internal/compose"
	"github.com/opsconf/scs/internal/editor"
	"github.com/opsconf/scs/internal/model"
	"github.com/opsconf/scs/internal/vars"
)

// handler is one subject/verb command's business logic, given the parsed
// runContext (config, logger, operator identity, top-level flags).
type handler func(*runContext) error

// registerCommands builds the full kingpin command tree (spec §6 "CLI
// surface") and returns a lookup from kingpin's matched command path (e.g.
// "application create") to its handler.
func registerCommands(app *kingpin.Application) map[string]handler {
	cmds := map[string]handler{}

	registerTopLevel(app, cmds)
	registerApplication(app, cmds)
	registerBuild(app, cmds)
	registerConstant(app, cmds)
	registerEnvironment(app, cmds)
	registerFile(app, cmds)
	registerLocation(app, cmds)
	registerNetwork(app, cmds)
	registerResource(app, cmds)
	registerSystem(app, cmds)

	return cmds
}

func registerTopLevel(app *kingpin.Application, cmds map[string]handler) {
	app.Command("commit", "Commit the pending change to trunk.")
	cmds["commit"] = func(rc *runContext) error {
		s := rc.openStore()
		tx, err := s.BeginModify(rc.user)
		if err != nil {
			return err
		}
		out, err := tx.Diff()
		if err != nil {
			return err
		}
		if strings.TrimSpace(out) == "" {
			return tx.Commit(rc.commitMessage)
		}
		fmt.Println(out)
		ok, err := rc.confirmer().Confirm("commit the above change to trunk?")
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("commit aborted by operator")
		}
		return tx.Commit(rc.commitMessage)
	}

	app.Command("cancel", "Abandon the pending change.")
	cmds["cancel"] = func(rc *runContext) error {
		s := rc.openStore()
		tx, err := s.BeginModify(rc.user)
		if err != nil {
			return err
		}
		return tx.Cancel(rc.forceCancel)
	}

	app.Command("diff", "Show the pending change against trunk.")
	cmds["diff"] = func(rc *runContext) error {
		s := rc.openStore()
		tx, err := s.BeginModify(rc.user)
		if err != nil {
			return err
		}
		out, err := tx.Diff()
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}
}

func printList(names []string) {
	sort.Strings(names)
	for _, n := range names {
		fmt.Println(n)
	}
}

func printFields(pairs ...string) {
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Printf("%s: %s\n", pairs[i], pairs[i+1])
	}
}

func boolFlag(b bool) string {
	if b {
		return "y"
	}
	return "n"
}

// --- application ---

func registerApplication(app *kingpin.Application, cmds map[string]handler) {
	subj := app.Command("application", "Applications: named deployable units.")

	create := subj.Command("create", "Create an application.")
	cName := create.Arg("name", "Application name.").Required().String()
	cAlias := create.Flag("alias", "Short alias.").String()
	cBuild := create.Flag("build", "Build this application runs on.").String()
	cCluster := create.Flag("cluster", "Whether the application is clustered.").Bool()
	cmds["application create"] = func(rc *runContext) error {
		return rc.withTransaction(func() error {
			return model.CreateApplication(rc.cfg.StoreRoot, model.Application{
				Name: *cName, Alias: *cAlias, Build: *cBuild, Cluster: *cCluster,
			})
		})
	}

	subj.Command("list", "List applications.")
	cmds["application list"] = func(rc *runContext) error {
		names, err := model.ListApplications(rc.cfg.StoreRoot)
		if err != nil {
			return err
		}
		printList(names)
		return nil
	}

	show := subj.Command("show", "Show an application.")
	sName := show.Arg("name", "Application name.").Required().String()
	cmds["application show"] = func(rc *runContext) error {
		a, err := model.ShowApplication(rc.cfg.StoreRoot, *sName)
		if err != nil {
			return err
		}
		printFields("name", a.Name, "alias", a.Alias, "build", a.Build, "cluster", boolFlag(a.Cluster))
		return nil
	}

	update := subj.Command("update", "Update an application.")
	uName := update.Arg("name", "Application name.").Required().String()
	uNewName := update.Flag("rename", "New name.").String()
	uAlias := update.Flag("alias", "Short alias.").String()
	uBuild := update.Flag("build", "Build this application runs on.").String()
	uCluster := update.Flag("cluster", "Whether the application is clustered.").Bool()
	cmds["application update"] = func(rc *runContext) error {
		return rc.withTransaction(func() error {
			newName := *uNewName
			if newName == "" {
				newName = *uName
			}
			return model.UpdateApplication(rc.cfg.StoreRoot, *uName, model.Application{
				Name: newName, Alias: *uAlias, Build: *uBuild, Cluster: *uCluster,
			})
		})
	}

	del := subj.Command("delete", "Delete an application.")
	dName := del.Arg("name", "Application name.").Required().String()
	cmds["application delete"] = func(rc *runContext) error {
		return rc.withTransaction(func() error {
			return model.DeleteApplication(rc.cfg.StoreRoot, *dName)
		})
	}

	file := subj.Command("file", "Manage an application's mapped files.")
	fApp := file.Arg("name", "Application name.").Required().String()
	fAdd := file.Flag("add", "File to map to this application.").String()
	fRemove := file.Flag("remove", "File to unmap from this application.").String()
	fList := file.Flag("list", "List files mapped to this application.").Bool()
	cmds["application file"] = func(rc *runContext) error {
		if *fList {
			names, err := model.FilesForApplication(rc.cfg.StoreRoot, *fApp)
			if err != nil {
				return err
			}
			printList(names)
			return nil
		}
		return rc.withTransaction(func() error {
			if *fAdd != "" {
				return model.AddFileMap(rc.cfg.StoreRoot, *fAdd, *fApp)
			}
			if *fRemove != "" {
				return model.RemoveFileMap(rc.cfg.StoreRoot, *fRemove, *fApp)
			}
			return nil
		})
	}
}

// --- build ---

func registerBuild(app *kingpin.Application, cmds map[string]handler) {
	subj := app.Command("build", "Builds: named software stacks.")

	create := subj.Command("create", "Create a build.")
	cName := create.Arg("name", "Build name.").Required().String()
	cRole := create.Flag("role", "Role description.").String()
	cDesc := create.Flag("desc", "Description.").String()
	cmds["build create"] = func(rc *runContext) error {
		return rc.withTransaction(func() error {
			return model.CreateBuild(rc.cfg.StoreRoot, model.Build{Name: *cName, Role: *cRole, Description: *cDesc})
		})
	}

	subj.Command("list", "List builds.")
	cmds["build list"] = func(rc *runContext) error {
		names, err := model.ListBuilds(rc.cfg.StoreRoot)
		if err != nil {
			return err
		}
		printList(names)
		return nil
	}

	show := subj.Command("show", "Show a build.")
	sName := show.Arg("name", "Build name.").Required().String()
	cmds["build show"] = func(rc *runContext) error {
		b, err := model.ShowBuild(rc.cfg.StoreRoot, *sName)
		if err != nil {
			return err
		}
		printFields("name", b.Name, "role", b.Role, "desc", b.Description)
		return nil
	}

	update := subj.Command("update", "Update a build.")
	uName := update.Arg("name", "Build name.").Required().String()
	uNewName := update.Flag("rename", "New name.").String()
	uRole := update.Flag("role", "Role description.").String()
	uDesc := update.Flag("desc", "Description.").String()
	cmds["build update"] = func(rc *runContext) error {
		return rc.withTransaction(func() error {
			newName := *uNewName
			if newName == "" {
				newName = *uName
			}
			return model.UpdateBuild(rc.cfg.StoreRoot, *uName, model.Build{Name: newName, Role: *uRole, Description: *uDesc})
		})
	}

	del := subj.Command("delete", "Delete a build.")
	dName := del.Arg("name", "Build name.").Required().String()
	cmds["build delete"] = func(rc *runContext) error {
		return rc.withTransaction(func() error {
			return model.DeleteBuild(rc.cfg.StoreRoot, *dName)
		})
	}
}

// --- constant ---

func registerConstant(app *kingpin.Application, cmds map[string]handler) {
	subj := app.Command("constant", "Constants: named variables bound per-scope.")

	create := subj.Command("create", "Declare a constant.")
	cName := create.Arg("name", "Constant name.").Required().String()
	cDesc := create.Flag("desc", "Description.").String()
	cmds["constant create"] = func(rc *runContext) error {
		return rc.withTransaction(func() error {
			return model.CreateConstant(rc.cfg.StoreRoot, model.Constant{Name: *cName, Description: *cDesc})
		})
	}

	subj.Command("list", "List constants.")
	cmds["constant list"] = func(rc *runContext) error {
		names, err := model.ListConstants(rc.cfg.StoreRoot)
		if err != nil {
			return err
		}
		printList(names)
		return nil
	}

	show := subj.Command("show", "Show a constant.")
	sName := show.Arg("name", "Constant name.").Required().String()
	cmds["constant show"] = func(rc *runContext) error {
		c, err := model.ShowConstant(rc.cfg.StoreRoot, *sName)
		if err != nil {
			return err
		}
		printFields("name", c.Name, "desc", c.Description)
		return nil
	}

	update := subj.Command("update", "Update a constant.")
	uName := update.Arg("name", "Constant name.").Required().String()
	uNewName := update.Flag("rename", "New name.").String()
	uDesc := update.Flag("desc", "Description.").String()
	cmds["constant update"] = func(rc *runContext) error {
		return rc.withTransaction(func() error {
			newName := *uNewName
			if newName == "" {
				newName = *uName
			}
			return model.UpdateConstant(rc.cfg.StoreRoot, *uName, model.Constant{Name: newName, Description: *uDesc})
		})
	}

	del := subj.Command("delete", "Delete a constant.")
	dName := del.Arg("name", "Constant name.").Required().String()
	cmds["constant delete"] = func(rc *runContext) error {
		return rc.withTransaction(func() error {
			return model.DeleteConstant(rc.cfg.StoreRoot, *dName)
		})
	}

	// constant value: the global, lowest-precedence constant-value scope.
	value := subj.Command("value", "Manage the global constant-value scope.")
	vSet := value.Flag("set", "NAME=VALUE to set.").String()
	vUnset := value.Flag("unset", "NAME to unset.").String()
	vList := value.Flag("list", "List global constant values.").Bool()
	cmds["constant value"] = func(rc *runContext) error {
		return runConstantScope(rc, model.GlobalConstantPath(), *vSet, *vUnset, *vList)
	}
}

// --- environment ---

func registerEnvironment(app *kingpin.Application, cmds map[string]handler) {
	subj := app.Command("environment", "Environments: deployment tiers.")

	create := subj.Command("create", "Create an environment.")
	cName := create.Arg("name", "Environment name.").Required().String()
	cAlias := create.Arg("alias", "Single-letter alias.").Required().String()
	cDesc := create.Flag("desc", "Description.").String()
	cmds["environment create"] = func(rc *runContext) error {
		return rc.withTransaction(func() error {
			return model.CreateEnvironment(rc.cfg.StoreRoot, model.Environment{Name: *cName, Alias: *cAlias, Description: *cDesc})
		})
	}

	subj.Command("list", "List environments.")
	cmds["environment list"] = func(rc *runContext) error {
		names, err := model.ListEnvironments(rc.cfg.StoreRoot)
		if err != nil {
			return err
		}
		printList(names)
		return nil
	}

	show := subj.Command("show", "Show an environment.")
	sName := show.Arg("name", "Environment name.").Required().String()
	cmds["environment show"] = func(rc *runContext) error {
		e, err := model.ShowEnvironment(rc.cfg.StoreRoot, *sName)
		if err != nil {
			return err
		}
		printFields("name", e.Name, "alias", e.Alias, "desc", e.Description)
		return nil
	}

	update := subj.Command("update", "Update an environment.")
	uName := update.Arg("name", "Environment name.").Required().String()
	uNewName := update.Flag("rename", "New name.").String()
	uAlias := update.Flag("alias", "Single-letter alias.").String()
	uDesc := update.Flag("desc", "Description.").String()
	cmds["environment update"] = func(rc *runContext) error {
		return rc.withTransaction(func() error {
			newName := *uNewName
			if newName == "" {
				newName = *uName
			}
			return model.UpdateEnvironment(rc.cfg.StoreRoot, *uName, model.Environment{Name: newName, Alias: *uAlias, Description: *uDesc})
		})
	}

	del := subj.Command("delete", "Delete an environment.")
	dName := del.Arg("name", "Environment name.").Required().String()
	cmds["environment delete"] = func(rc *runContext) error {
		return rc.withTransaction(func() error {
			return model.DeleteEnvironment(rc.cfg.StoreRoot, *dName)
		})
	}

	// environment application <env> <app> {--set|--unset|--list}:
	// the per-(env,app) placement constant scope, the highest-precedence
	// scope in spec §4.4.
	appCmd := subj.Command("application", "Manage the per-(environment,application) constant scope.")
	aEnv := appCmd.Arg("environment", "Environment name.").Required().String()
	aApp := appCmd.Arg("application", "Application name.").Required().String()
	aSet := appCmd.Flag("set", "NAME=VALUE to set.").String()
	aUnset := appCmd.Flag("unset", "NAME to unset.").String()
	aList := appCmd.Flag("list", "List overrides at this scope.").Bool()
	cmds["environment application"] = func(rc *runContext) error {
		scope := model.PlacementConstantPath(*aEnv, *aApp)
		return runConstantScope(rc, scope, *aSet, *aUnset, *aList)
	}

	// environment constant <env> {--set|--unset|--list}: the per-environment
	// constant scope.
	constCmd := subj.Command("constant", "Manage the per-environment constant scope.")
	ecEnv := constCmd.Arg("environment", "Environment name.").Required().String()
	ecSet := constCmd.Flag("set", "NAME=VALUE to set.").String()
	ecUnset := constCmd.Flag("unset", "NAME to unset.").String()
	ecList := constCmd.Flag("list", "List overrides at this scope.").Bool()
	cmds["environment constant"] = func(rc *runContext) error {
		scope := model.EnvConstantPath(*ecEnv)
		return runConstantScope(rc, scope, *ecSet, *ecUnset, *ecList)
	}
}

func runConstantScope(rc *runContext, scope, set, unset string, list bool) error {
	if list {
		values, err := model.ListConstantValues(rc.cfg.StoreRoot, scope)
		if err != nil {
			return err
		}
		for _, v := range values {
			fmt.Printf("%s=%s\n", v.Name, v.Value)
		}
		return nil
	}
	return rc.withTransaction(func() error {
		if set != "" {
			name, value, ok := strings.Cut(set, "=")
			if !ok {
				return fmt.Errorf("--set expects NAME=VALUE, got %q", set)
			}
			return model.SetConstantValue(rc.cfg.StoreRoot, scope, name, value)
		}
		if unset != "" {
			return model.UnsetConstantValue(rc.cfg.StoreRoot, scope, unset)
		}
		return nil
	})
}

// --- file ---

func registerFile(app *kingpin.Application, cmds map[string]handler) {
	subj := app.Command("file", "Files: on-host artifacts.")

	create := subj.Command("create", "Create a file.")
	cName := create.Arg("name", "File name.").Required().String()
	cPath := create.Flag("path", "On-host destination path.").Required().String()
	cType := create.Flag("type", "file, symlink, binary, copy, or download.").Required().String()
	cOwner := create.Flag("owner", "On-host owner.").Required().String()
	cGroup := create.Flag("group", "On-host group.").Required().String()
	cOctal := create.Flag("octal", "Octal permission bits.").Required().String()
	cTarget := create.Flag("target", "Symlink target / copy source / download URL.").String()
	cDesc := create.Flag("desc", "Description.").String()
	cmds["file create"] = func(rc *runContext) error {
		return rc.withTransaction(func() error {
			return model.CreateFile(rc.cfg.StoreRoot, model.File{
				Name: *cName, Path: *cPath, Type: *cType, Owner: *cOwner, Group: *cGroup,
				Octal: *cOctal, Target: *cTarget, Desc: *cDesc,
			})
		})
	}

	subj.Command("list", "List files.")
	cmds["file list"] = func(rc *runContext) error {
		names, err := model.ListFiles(rc.cfg.StoreRoot)
		if err != nil {
			return err
		}
		printList(names)
		return nil
	}

	show := subj.Command("show", "Show a file.")
	sName := show.Arg("name", "File name.").Required().String()
	cmds["file show"] = func(rc *runContext) error {
		f, err := model.ShowFile(rc.cfg.StoreRoot, *sName)
		if err != nil {
			return err
		}
		printFields("name", f.Name, "path", f.Path, "type", f.Type, "owner", f.Owner,
			"group", f.Group, "octal", f.Octal, "target", f.Target, "desc", f.Desc)
		if size, ok := model.BackingSize(rc.cfg.StoreRoot, f); ok {
			fmt.Printf("size: %d bytes\n", size)
			if f.Type == model.FileTypeBinary {
				fmt.Printf("content: %s\n", sniffLabel(rc.cfg.StoreRoot, f))
			}
		}
		return nil
	}

	update := subj.Command("update", "Update a file.")
	uName := update.Arg("name", "File name.").Required().String()
	uNewName := update.Flag("rename", "New name.").String()
	uPath := update.Flag("path", "On-host destination path.").String()
	uType := update.Flag("type", "file, symlink, binary, copy, or download.").String()
	uOwner := update.Flag("owner", "On-host owner.").String()
	uGroup := update.Flag("group", "On-host group.").String()
	uOctal := update.Flag("octal", "Octal permission bits.").String()
	uTarget := update.Flag("target", "Symlink target / copy source / download URL.").String()
	uDesc := update.Flag("desc", "Description.").String()
	cmds["file update"] = func(rc *runContext) error {
		return rc.withTransaction(func() error {
			existing, err := model.ShowFile(rc.cfg.StoreRoot, *uName)
			if err != nil {
				return err
			}
			updated := existing
			if *uNewName != "" {
				updated.Name = *uNewName
			}
			if *uPath != "" {
				updated.Path = *uPath
			}
			if *uType != "" {
				updated.Type = *uType
			}
			if *uOwner != "" {
				updated.Owner = *uOwner
			}
			if *uGroup != "" {
				updated.Group = *uGroup
			}
			if *uOctal != "" {
				updated.Octal = *uOctal
			}
			if *uTarget != "" {
				updated.Target = *uTarget
			}
			if *uDesc != "" {
				updated.Desc = *uDesc
			}
			return model.UpdateFile(rc.cfg.StoreRoot, *uName, updated)
		})
	}

	del := subj.Command("delete", "Delete a file.")
	dName := del.Arg("name", "File name.").Required().String()
	cmds["file delete"] = func(rc *runContext) error {
		return rc.withTransaction(func() error {
			return model.DeleteFile(rc.cfg.StoreRoot, *dName)
		})
	}

	edit := subj.Command("edit", "Edit a file's template or an environment's patch.")
	eName := edit.Arg("name", "File name.").Required().String()
	eEnv := edit.Flag("env", "Edit this environment's patch instead of the base template.").String()
	cmds["file edit"] = func(rc *runContext) error {
		return rc.withTransaction(func() error {
			ed := rc.editor(editor.ExecRunner{Editor: resolveEditorBinary(rc)})
			if *eEnv != "" {
				return ed.EditEnvironmentPatch(*eEnv, *eName)
			}
			return ed.EditTemplate(*eName)
		})
	}
}

func resolveEditorBinary(rc *runContext) string {
	if v := os.Getenv(rc.cfg.EditorEnv); v != "" {
		return v
	}
	return "vi"
}

func sniffLabel(root string, f model.File) string {
	content, err := os.ReadFile(filepath.Join(root, model.BinaryPath(f.Name)))
	if err != nil {
		return "unknown"
	}
	return compose.SniffLabel(content)
}

// --- location ---

func registerLocation(app *kingpin.Application, cmds map[string]handler) {
	subj := app.Command("location", "Locations: physical sites.")

	create := subj.Command("create", "Create a location.")
	cCode := create.Arg("code", "Three-letter site code.").Required().String()
	cName := create.Flag("name", "Display name.").String()
	cDesc := create.Flag("desc", "Description.").String()
	cmds["location create"] = func(rc *runContext) error {
		return rc.withTransaction(func() error {
			return model.CreateLocation(rc.cfg.StoreRoot, model.Location{Code: *cCode, Name: *cName, Description: *cDesc})
		})
	}

	subj.Command("list", "List locations.")
	cmds["location list"] = func(rc *runContext) error {
		names, err := model.ListLocations(rc.cfg.StoreRoot)
		if err != nil {
			return err
		}
		printList(names)
		return nil
	}

	show := subj.Command("show", "Show a location.")
	sCode := show.Arg("code", "Location code.").Required().String()
	cmds["location show"] = func(rc *runContext) error {
		l, err := model.ShowLocation(rc.cfg.StoreRoot, *sCode)
		if err != nil {
			return err
		}
		printFields("code", l.Code, "name", l.Name, "desc", l.Description)
		return nil
	}

	update := subj.Command("update", "Update a location.")
	uCode := update.Arg("code", "Location code.").Required().String()
	uNewCode := update.Flag("rename", "New location code.").String()
	uName := update.Flag("name", "Display name.").String()
	uDesc := update.Flag("desc", "Description.").String()
	cmds["location update"] = func(rc *runContext) error {
		return rc.withTransaction(func() error {
			newCode := *uNewCode
			if newCode == "" {
				newCode = *uCode
			}
			return model.UpdateLocation(rc.cfg.StoreRoot, *uCode, model.Location{Code: newCode, Name: *uName, Description: *uDesc})
		})
	}

	del := subj.Command("delete", "Delete a location.")
	dCode := del.Arg("code", "Location code.").Required().String()
	cmds["location delete"] = func(rc *runContext) error {
		return rc.withTransaction(func() error {
			return model.DeleteLocation(rc.cfg.StoreRoot, *dCode)
		})
	}

	// location environment <code> <env> {--place|--unplace|--list}: placement
	// membership, plus the per-(location,environment) constant scope.
	envCmd := subj.Command("environment", "Manage placement membership and the per-(location,environment) constant scope.")
	leCode := envCmd.Arg("code", "Location code.").Required().String()
	leEnv := envCmd.Arg("environment", "Environment name.").Required().String()
	lePlace := envCmd.Flag("place", "Application to place here.").String()
	leUnplace := envCmd.Flag("unplace", "Application to remove from here.").String()
	leList := envCmd.Flag("list", "List applications placed here.").Bool()
	leSet := envCmd.Flag("constant-set", "NAME=VALUE to set at this (location,environment) scope.").String()
	leUnset := envCmd.Flag("constant-unset", "NAME to unset at this (location,environment) scope.").String()
	leConstList := envCmd.Flag("constant-list", "List overrides at this (location,environment) scope.").Bool()
	cmds["location environment"] = func(rc *runContext) error {
		if *leList {
			apps, err := model.ListPlacements(rc.cfg.StoreRoot, *leCode, *leEnv)
			if err != nil {
				return err
			}
			printList(apps)
			return nil
		}
		if *leConstList || *leSet != "" || *leUnset != "" {
			return runConstantScope(rc, model.LocEnvConstantPath(*leCode, *leEnv), *leSet, *leUnset, *leConstList)
		}
		return rc.withTransaction(func() error {
			if *lePlace != "" {
				return model.PlaceApp(rc.cfg.StoreRoot, *leCode, *leEnv, *lePlace)
			}
			if *leUnplace != "" {
				// Cascade: release any resources this placement held before
				// removing the membership itself (spec §9 "unplacement
				// cascade", resolved in DESIGN.md).
				if err := model.UnassignResourcesForPlacement(rc.cfg.StoreRoot, *leCode, *leEnv, *leUnplace); err != nil {
					return err
				}
				return model.UnplaceApp(rc.cfg.StoreRoot, *leCode, *leEnv, *leUnplace)
			}
			return nil
		})
	}
}

// --- network ---

func registerNetwork(app *kingpin.Application, cmds map[string]handler) {
	subj := app.Command("network", "Networks: per-location address-block cache.")

	create := subj.Command("create", "Create a network entry.")
	cCode := create.Arg("location", "Location code.").Required().String()
	cZone := create.Arg("zone", "core or edge.").Required().String()
	cAlias := create.Arg("alias", "Network alias.").Required().String()
	cNet := create.Flag("net", "Network address.").String()
	cMask := create.Flag("mask", "Netmask.").String()
	cBits := create.Flag("bits", "Prefix length.").String()
	cGateway := create.Flag("gateway", "Gateway address.").String()
	cVlan := create.Flag("vlan", "VLAN id.").String()
	cDesc := create.Flag("desc", "Description.").String()
	cmds["network create"] = func(rc *runContext) error {
		return rc.withTransaction(func() error {
			return model.CreateNetwork(rc.cfg.StoreRoot, model.Network{
				Location: *cCode, Zone: *cZone, Alias: *cAlias, Net: *cNet, Mask: *cMask,
				Bits: *cBits, Gateway: *cGateway, Vlan: *cVlan, Desc: *cDesc,
			})
		})
	}

	list := subj.Command("list", "List a location's networks.")
	lCode := list.Arg("location", "Location code.").Required().String()
	cmds["network list"] = func(rc *runContext) error {
		networks, err := model.ListNetworks(rc.cfg.StoreRoot, *lCode)
		if err != nil {
			return err
		}
		for _, n := range networks {
			fmt.Printf("%s/%s: %s/%s (gw %s, vlan %s)\n", n.Zone, n.Alias, n.Net, n.Bits, n.Gateway, n.Vlan)
		}
		return nil
	}

	show := subj.Command("show", "Show a network entry.")
	sCode := show.Arg("location", "Location code.").Required().String()
	sZone := show.Arg("zone", "core or edge.").Required().String()
	sAlias := show.Arg("alias", "Network alias.").Required().String()
	cmds["network show"] = func(rc *runContext) error {
		n, err := model.ShowNetwork(rc.cfg.StoreRoot, *sCode, *sZone, *sAlias)
		if err != nil {
			return err
		}
		printFields("location", n.Location, "zone", n.Zone, "alias", n.Alias, "net", n.Net,
			"mask", n.Mask, "bits", n.Bits, "gateway", n.Gateway, "vlan", n.Vlan, "desc", n.Desc)
		return nil
	}

	update := subj.Command("update", "Update a network entry.")
	uCode := update.Arg("location", "Location code.").Required().String()
	uZone := update.Arg("zone", "core or edge.").Required().String()
	uAlias := update.Arg("alias", "Network alias.").Required().String()
	uNet := update.Flag("net", "Network address.").String()
	uMask := update.Flag("mask", "Netmask.").String()
	uBits := update.Flag("bits", "Prefix length.").String()
	uGateway := update.Flag("gateway", "Gateway address.").String()
	uVlan := update.Flag("vlan", "VLAN id.").String()
	uDesc := update.Flag("desc", "Description.").String()
	cmds["network update"] = func(rc *runContext) error {
		return rc.withTransaction(func() error {
			existing, err := model.ShowNetwork(rc.cfg.StoreRoot, *uCode, *uZone, *uAlias)
			if err != nil {
				return err
			}
			updated := existing
			if *uNet != "" {
				updated.Net = *uNet
			}
			if *uMask != "" {
				updated.Mask = *uMask
			}
			if *uBits != "" {
				updated.Bits = *uBits
			}
			if *uGateway != "" {
				updated.Gateway = *uGateway
			}
			if *uVlan != "" {
				updated.Vlan = *uVlan
			}
			if *uDesc != "" {
				updated.Desc = *uDesc
			}
			return model.UpdateNetwork(rc.cfg.StoreRoot, *uCode, *uZone, *uAlias, updated)
		})
	}

	del := subj.Command("delete", "Delete a network entry.")
	dCode := del.Arg("location", "Location code.").Required().String()
	dZone := del.Arg("zone", "core or edge.").Required().String()
	dAlias := del.Arg("alias", "Network alias.").Required().String()
	cmds["network delete"] = func(rc *runContext) error {
		return rc.withTransaction(func() error {
			return model.DeleteNetwork(rc.cfg.StoreRoot, *dCode, *dZone, *dAlias)
		})
	}
}

// --- resource ---

func registerResource(app *kingpin.Application, cmds map[string]handler) {
	subj := app.Command("resource", "Resources: allocated values such as IPs.")

	create := subj.Command("create", "Create a resource.")
	cType := create.Arg("type", "ip, cluster_ip, or ha_ip.").Required().String()
	cValue := create.Arg("value", "The resource's value.").Required().String()
	cName := create.Flag("name", "Binding name (defaults to type).").String()
	cDesc := create.Flag("desc", "Description.").String()
	cmds["resource create"] = func(rc *runContext) error {
		return rc.withTransaction(func() error {
			return model.CreateResource(rc.cfg.StoreRoot, model.Resource{Type: *cType, Value: *cValue, Name: *cName, Desc: *cDesc})
		})
	}

	subj.Command("list", "List resources.")
	cmds["resource list"] = func(rc *runContext) error {
		values, err := model.ListResources(rc.cfg.StoreRoot)
		if err != nil {
			return err
		}
		printList(values)
		return nil
	}

	show := subj.Command("show", "Show a resource.")
	sValue := show.Arg("value", "Resource value.").Required().String()
	cmds["resource show"] = func(rc *runContext) error {
		r, err := model.ShowResource(rc.cfg.StoreRoot, *sValue)
		if err != nil {
			return err
		}
		printFields("type", r.Type, "value", r.Value, "assignType", r.AssignType,
			"assignTo", r.AssignTo, "name", r.Name, "desc", r.Desc)
		return nil
	}

	update := subj.Command("update", "Update a resource.")
	uValue := update.Arg("value", "Resource value.").Required().String()
	uNewValue := update.Flag("rename", "New value.").String()
	uType := update.Flag("type", "ip, cluster_ip, or ha_ip.").String()
	uName := update.Flag("name", "Binding name.").String()
	uDesc := update.Flag("desc", "Description.").String()
	cmds["resource update"] = func(rc *runContext) error {
		return rc.withTransaction(func() error {
			existing, err := model.ShowResource(rc.cfg.StoreRoot, *uValue)
			if err != nil {
				return err
			}
			updated := existing
			if *uNewValue != "" {
				updated.Value = *uNewValue
			}
			if *uType != "" {
				updated.Type = *uType
			}
			if *uName != "" {
				updated.Name = *uName
			}
			if *uDesc != "" {
				updated.Desc = *uDesc
			}
			return model.UpdateResource(rc.cfg.StoreRoot, *uValue, updated)
		})
	}

	del := subj.Command("delete", "Delete a resource.")
	dValue := del.Arg("value", "Resource value.").Required().String()
	cmds["resource delete"] = func(rc *runContext) error {
		return rc.withTransaction(func() error {
			return model.DeleteResource(rc.cfg.StoreRoot, *dValue)
		})
	}

	assignCmd := subj.Command("assign", "Assign, unassign, or list a resource's binding.")
	aValue := assignCmd.Arg("value", "Resource value.").Required().String()
	aHost := assignCmd.Flag("host", "Assign to this host/system.").String()
	aPlacement := assignCmd.Flag("placement", "Assign to this loc:env:app placement.").String()
	aUnassign := assignCmd.Flag("unassign", "Revert to unassigned.").Bool()
	aList := assignCmd.Flag("list", "Show the current assignment.").Bool()
	cmds["resource assign"] = func(rc *runContext) error {
		if *aList {
			r, err := model.ShowResource(rc.cfg.StoreRoot, *aValue)
			if err != nil {
				return err
			}
			printFields("assignType", r.AssignType, "assignTo", r.AssignTo)
			return nil
		}
		return rc.withTransaction(func() error {
			switch {
			case *aHost != "":
				return model.AssignResourceToHost(rc.cfg.StoreRoot, *aValue, *aHost)
			case *aPlacement != "":
				parts := strings.SplitN(*aPlacement, ":", 3)
				if len(parts) != 3 {
					return fmt.Errorf("--placement expects loc:env:app, got %q", *aPlacement)
				}
				return model.AssignResourceToApplication(rc.cfg.StoreRoot, *aValue, parts[0], parts[1], parts[2])
			case *aUnassign:
				return model.UnassignResource(rc.cfg.StoreRoot, *aValue)
			}
			return nil
		})
	}
}

// --- system ---

func registerSystem(app *kingpin.Application, cmds map[string]handler) {
	subj := app.Command("system", "Systems: named hosts.")

	create := subj.Command("create", "Create a system.")
	cName := create.Arg("name", "System name.").Required().String()
	cBuild := create.Flag("build", "Build this system runs.").Required().String()
	cIP := create.Flag("ip", "Management IP.").String()
	cLoc := create.Flag("location", "Location code.").Required().String()
	cEnv := create.Flag("environment", "Environment name.").Required().String()
	cmds["system create"] = func(rc *runContext) error {
		return rc.withTransaction(func() error {
			return model.CreateSystem(rc.cfg.StoreRoot, model.System{
				Name: *cName, Build: *cBuild, IP: *cIP, Location: *cLoc, Environment: *cEnv,
			})
		})
	}

	subj.Command("list", "List systems.")
	cmds["system list"] = func(rc *runContext) error {
		names, err := model.ListSystems(rc.cfg.StoreRoot)
		if err != nil {
			return err
		}
		printList(names)
		return nil
	}

	show := subj.Command("show", "Show a system.")
	sName := show.Arg("name", "System name.").Required().String()
	cmds["system show"] = func(rc *runContext) error {
		s, err := model.ShowSystem(rc.cfg.StoreRoot, *sName)
		if err != nil {
			return err
		}
		printFields("name", s.Name, "build", s.Build, "ip", s.IP, "location", s.Location, "environment", s.Environment)
		apps, err := model.ApplicationsForSystem(rc.cfg.StoreRoot, s)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(apps))
		for _, a := range apps {
			names = append(names, a.Name)
		}
		fmt.Println("applications:")
		printList(names)
		return nil
	}

	update := subj.Command("update", "Update a system.")
	uName := update.Arg("name", "System name.").Required().String()
	uNewName := update.Flag("rename", "New name.").String()
	uBuild := update.Flag("build", "Build this system runs.").String()
	uIP := update.Flag("ip", "Management IP.").String()
	uLoc := update.Flag("location", "Location code.").String()
	uEnv := update.Flag("environment", "Environment name.").String()
	cmds["system update"] = func(rc *runContext) error {
		return rc.withTransaction(func() error {
			existing, err := model.ShowSystem(rc.cfg.StoreRoot, *uName)
			if err != nil {
				return err
			}
			updated := existing
			if *uNewName != "" {
				updated.Name = *uNewName
			}
			if *uBuild != "" {
				updated.Build = *uBuild
			}
			if *uIP != "" {
				updated.IP = *uIP
			}
			if *uLoc != "" {
				updated.Location = *uLoc
			}
			if *uEnv != "" {
				updated.Environment = *uEnv
			}
			return model.UpdateSystem(rc.cfg.StoreRoot, *uName, updated)
		})
	}

	del := subj.Command("delete", "Delete a system.")
	dName := del.Arg("name", "System name.").Required().String()
	cmds["system delete"] = func(rc *runContext) error {
		return rc.withTransaction(func() error {
			return model.DeleteSystem(rc.cfg.StoreRoot, *dName)
		})
	}

	release := subj.Command("release", "Compose a release tarball for a system.")
	rName := release.Arg("name", "System name.").Required().String()
	cmds["system release"] = func(rc *runContext) error {
		c := rc.composer()
		defer c.Close()
		archivePath, err := c.Compose(*rName)
		if err != nil {
			return err
		}
		fmt.Println(archivePath)
		if rc.withGraph {
			return writeDependencyGraph(rc, *rName, archivePath)
		}
		return nil
	}

	auditCmd := subj.Command("audit", "Audit a system against its live host.")
	auName := auditCmd.Arg("name", "System name.").Required().String()
	auHost := auditCmd.Flag("host", "Host address to audit (defaults to the system name).").String()
	cmds["system audit"] = runSystemAudit(auName, auHost)

	varsCmd := subj.Command("vars", "Print a system's resolved variable-binding table.")
	vName := varsCmd.Arg("name", "System name.").Required().String()
	cmds["system vars"] = func(rc *runContext) error {
		return printSystemVars(rc, *vName)
	}
}

func runSystemAudit(name, host *string) handler {
	return func(rc *runContext) error {
		h := *host
		if h == "" {
			h = *name
		}
		fetcher := audit.SCPFetcher{Template: rc.cfg.AuditTransport}
		a := rc.auditor(fetcher, stdinPrompter{})
		defer a.Close()
		report, err := a.Run(context.Background(), *name, h)
		if err != nil {
			return err
		}
		for _, o := range report.Outcomes {
			fmt.Printf("%-8s %s\n", o.Status, o.Path)
		}
		if !report.Success() {
			return auditMismatchError{}
		}
		return nil
	}
}

// auditMismatchError signals exit code 2 (spec §6) without being routed
// through scserr's generic exit-code-1 mapping.
type auditMismatchError struct{}

func (auditMismatchError) Error() string { return "audit reported one or more mismatches" }

func printSystemVars(rc *runContext, name string) error {
	sys, err := model.ShowSystem(rc.cfg.StoreRoot, name)
	if err != nil {
		return err
	}
	apps, err := model.ApplicationsForSystem(rc.cfg.StoreRoot, sys)
	if err != nil {
		return err
	}
	binding, err := vars.Resolve(rc.cfg.StoreRoot, sys, apps)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(binding))
	for k := range binding {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s=%s\n", k, binding[k])
	}
	return nil
}

func writeDependencyGraph(rc *runContext, systemName, archivePath string) error {
	sys, err := model.ShowSystem(rc.cfg.StoreRoot, systemName)
	if err != nil {
		return err
	}
	apps, err := model.ApplicationsForSystem(rc.cfg.StoreRoot, sys)
	if err != nil {
		return err
	}
	filesByApp := make(map[string][]string, len(apps))
	for _, a := range apps {
		names, err := model.FilesForApplication(rc.cfg.StoreRoot, a.Name)
		if err != nil {
			return err
		}
		filesByApp[a.Name] = names
	}
	g := compose.BuildDependencyGraph(sys, apps, filesByApp)
	dotPath := strings.TrimSuffix(archivePath, ".tgz") + ".dot"
	return os.WriteFile(dotPath, []byte(g.String()), 0644)
}
