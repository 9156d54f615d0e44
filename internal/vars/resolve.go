// Package vars builds the ordered variable-binding table a release or audit
// is rendered against (spec §4.4). The table is computed once per system
// and never re-read from scope files during substitution — later (lower
// precedence) scopes never overwrite a key a higher-precedence scope has
// already bound.
package vars

import (
	"fmt"
	"strings"

	"github.com/opsconf/scs/internal/model"
)

// Bindings is the dedupe-on-first-win (name -> value) table substitution
// reads from.
type Bindings map[string]string

func (b Bindings) setIfAbsent(key, value string) {
	if _, ok := b[key]; !ok {
		b[key] = value
	}
}

func resourceKey(prefix string, r model.Resource) string {
	name := r.Name
	if name == "" {
		name = r.Type
	}
	return prefix + "." + name
}

// Resolve builds the full binding table for system sys with its resolved
// application set apps, in the precedence order from spec §4.4: synthetic
// system variables, host resources, placement resources, then constants
// from per-(env,app) down to global.
func Resolve(root string, sys model.System, apps []model.Application) (Bindings, error) {
	b := Bindings{}

	b["system.name"] = sys.Name
	b["system.build"] = sys.Build
	b["system.ip"] = sys.IP
	b["system.location"] = sys.Location
	b["system.environment"] = sys.Environment

	hostResources, err := model.ResourcesAssignedToHost(root, sys.Name)
	if err != nil {
		return nil, fmt.Errorf("resolving host resources: %w", err)
	}
	for _, r := range hostResources {
		b.setIfAbsent(resourceKey("system", r), r.Value)
	}

	for _, app := range apps {
		placed, err := model.ResourcesAssignedToPlacement(root, sys.Location, sys.Environment, app.Name)
		if err != nil {
			return nil, fmt.Errorf("resolving placement resources for %s: %w", app.Name, err)
		}
		for _, r := range placed {
			prefix := "system"
			if r.Type == model.ResourceTypeClusterIP {
				prefix = "resource"
			}
			b.setIfAbsent(resourceKey(prefix, r), r.Value)
		}
	}

	for _, app := range apps {
		if err := applyConstantScope(root, b, model.PlacementConstantPath(sys.Environment, app.Name)); err != nil {
			return nil, err
		}
	}
	if err := applyConstantScope(root, b, model.LocEnvConstantPath(sys.Location, sys.Environment)); err != nil {
		return nil, err
	}
	if err := applyConstantScope(root, b, model.EnvConstantPath(sys.Environment)); err != nil {
		return nil, err
	}
	if err := applyConstantScope(root, b, model.GlobalConstantPath()); err != nil {
		return nil, err
	}

	return b, nil
}

func applyConstantScope(root string, b Bindings, relPath string) error {
	values, err := model.ListConstantValues(root, relPath)
	if err != nil {
		return fmt.Errorf("reading constant scope %s: %w", relPath, err)
	}
	for _, cv := range values {
		b.setIfAbsent("constant."+strings.ToLower(cv.Name), cv.Value)
	}
	return nil
}
