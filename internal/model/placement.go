package model

import (
	"os"
	"path/filepath"
)

// placementCatalog is the membership file <location>/<environment>, one
// Application name per line, for a (Location, Environment) pair.
func placementCatalog(root, loc, env string) *catalog {
	return newCatalog(root, filepath.Join(NormalizeLocationCode(loc), env))
}

func placementLines(records [][]string) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, field(r, 0))
	}
	return out
}

// PlaceApp appends application to the <loc>/<env> membership list if
// absent, validates the referenced entities exist, and ensures the
// placement's constant-override file exists.
func PlaceApp(root, loc, env, app string) error {
	loc = NormalizeLocationCode(loc)
	if _, err := ShowLocation(root, loc); err != nil {
		return err
	}
	if _, err := ShowEnvironment(root, env); err != nil {
		return err
	}
	if _, err := ShowApplication(root, app); err != nil {
		return err
	}
	c := placementCatalog(root, loc, env)
	records, err := c.load()
	if err != nil {
		return err
	}
	for _, name := range placementLines(records) {
		if name == app {
			return nil
		}
	}
	records = append(records, []string{app})
	if err := c.save(records); err != nil {
		return err
	}
	pc := newCatalog(root, PlacementConstantPath(env, app))
	if _, err := os.Stat(pc.path()); os.IsNotExist(err) {
		return pc.save(nil)
	}
	return nil
}

// IsPlaced reports whether application is a member of <loc>/<env>.
func IsPlaced(root, loc, env, app string) (bool, error) {
	c := placementCatalog(root, loc, env)
	records, err := c.load()
	if err != nil {
		return false, err
	}
	for _, name := range placementLines(records) {
		if name == app {
			return true, nil
		}
	}
	return false, nil
}

// UnplaceApp removes application from <loc>/<env>. Whether this cascades to
// release the application's assigned resources is the spec §9 open
// question "Unplacement cascade"; resolved in DESIGN.md — this rewrite does
// cascade, via model.UnassignResourcesForPlacement, called by the CLI layer
// before UnplaceApp so the decision stays visible at the call site.
func UnplaceApp(root, loc, env, app string) error {
	loc = NormalizeLocationCode(loc)
	c := placementCatalog(root, loc, env)
	records, err := c.load()
	if err != nil {
		return err
	}
	out := make([][]string, 0, len(records))
	found := false
	for _, r := range records {
		if field(r, 0) == app {
			found = true
			continue
		}
		out = append(out, r)
	}
	if !found {
		return errUnknown("placement", loc+"/"+env+"/"+app)
	}
	return c.save(out)
}

// ListPlacements returns every application placed at (loc, env).
func ListPlacements(root, loc, env string) ([]string, error) {
	c := placementCatalog(root, loc, env)
	records, err := c.load()
	if err != nil {
		return nil, err
	}
	return placementLines(records), nil
}

// renamePlacements rewrites oldApp to newApp in every location/environment
// membership file, so an Application rename doesn't orphan its placements.
func renamePlacements(root, oldApp, newApp string) error {
	locations, err := ListLocations(root)
	if err != nil {
		return err
	}
	environments, err := ListEnvironments(root)
	if err != nil {
		return err
	}
	for _, loc := range locations {
		for _, env := range environments {
			c := placementCatalog(root, loc, env)
			records, err := c.load()
			if err != nil {
				return err
			}
			changed := false
			for i, r := range records {
				if field(r, 0) == oldApp {
					records[i][0] = newApp
					changed = true
				}
			}
			if changed {
				if err := c.save(records); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
