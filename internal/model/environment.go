package model

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const environmentFile = "environment"

const (
	envName = iota
	envAlias
	envDescription
)

var envAliasRe = regexp.MustCompile(`^[A-Z]$`)

// Environment is a deployment tier (e.g. prod, staging) with a one-letter
// uppercase alias.
type Environment struct {
	Name        string
	Alias       string
	Description string
}

func (e Environment) record() []string { return []string{e.Name, e.Alias, e.Description} }

func environmentFromRecord(r []string) Environment {
	return Environment{Name: field(r, envName), Alias: field(r, envAlias), Description: field(r, envDescription)}
}

func CreateEnvironment(root string, e Environment) error {
	if !ValidName(e.Name) {
		return errInvalid("invalid environment name %q", e.Name)
	}
	e.Alias = strings.ToUpper(e.Alias)
	if !envAliasRe.MatchString(e.Alias) {
		return errInvalid("environment alias must be a single uppercase letter, got %q", e.Alias)
	}
	c := newCatalog(root, environmentFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	if _, idx := findByKey(records, envName, e.Name); idx >= 0 {
		return errDuplicate("environment", e.Name)
	}
	for _, r := range records {
		if field(r, envAlias) == e.Alias {
			return errDuplicate("environment alias", e.Alias)
		}
	}
	records = append(records, e.record())
	return c.save(records)
}

func ListEnvironments(root string) ([]string, error) {
	c := newCatalog(root, environmentFile)
	records, err := c.load()
	if err != nil {
		return nil, err
	}
	return keys(records, envName), nil
}

func ShowEnvironment(root, name string) (Environment, error) {
	c := newCatalog(root, environmentFile)
	records, err := c.load()
	if err != nil {
		return Environment{}, err
	}
	r, idx := findByKey(records, envName, name)
	if idx < 0 {
		return Environment{}, errUnknown("environment", name)
	}
	return environmentFromRecord(r), nil
}

// UpdateEnvironment rewrites the record and, on a name change, renames every
// subtree keyed on the environment name: template/patch/<env>, value/<env>,
// and <loc>/<env> under every location (spec §4.2).
func UpdateEnvironment(root, name string, e Environment) error {
	if !ValidName(e.Name) {
		return errInvalid("invalid environment name %q", e.Name)
	}
	e.Alias = strings.ToUpper(e.Alias)
	if !envAliasRe.MatchString(e.Alias) {
		return errInvalid("environment alias must be a single uppercase letter, got %q", e.Alias)
	}
	c := newCatalog(root, environmentFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	_, idx := findByKey(records, envName, name)
	if idx < 0 {
		return errUnknown("environment", name)
	}
	if e.Name != name {
		if _, dupIdx := findByKey(records, envName, e.Name); dupIdx >= 0 {
			return errDuplicate("environment", e.Name)
		}
		for _, r := range records {
			if field(r, envAlias) == e.Alias && field(r, envName) != name {
				return errDuplicate("environment alias", e.Alias)
			}
		}
		if err := renameEnvironmentSubtrees(root, name, e.Name); err != nil {
			return err
		}
	}
	records[idx] = e.record()
	return c.save(records)
}

func renameEnvironmentSubtrees(root, oldName, newName string) error {
	renames := [][2]string{
		{filepath.Join(root, "template", "patch", oldName), filepath.Join(root, "template", "patch", newName)},
		{filepath.Join(root, "value", oldName), filepath.Join(root, "value", newName)},
	}
	for _, rn := range renames {
		if _, err := os.Stat(rn[0]); err == nil {
			if err := os.Rename(rn[0], rn[1]); err != nil {
				return err
			}
		}
	}
	locations, err := ListLocations(root)
	if err != nil {
		return err
	}
	for _, loc := range locations {
		oldP := filepath.Join(root, loc, oldName)
		newP := filepath.Join(root, loc, newName)
		if _, err := os.Stat(oldP); err == nil {
			if err := os.Rename(oldP, newP); err != nil {
				return err
			}
		}
	}
	return nil
}

// DeleteEnvironment removes the record. It does not remove placements or
// value subtrees; spec §3 lists cascades only for File/Application/Location
// deletion, so an environment's subtrees become orphaned and must be cleaned
// up by the operator (mirrors the deliberately narrow cascade list).
func DeleteEnvironment(root, name string) error {
	c := newCatalog(root, environmentFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	_, idx := findByKey(records, envName, name)
	if idx < 0 {
		return errUnknown("environment", name)
	}
	records = append(records[:idx], records[idx+1:]...)
	return c.save(records)
}
