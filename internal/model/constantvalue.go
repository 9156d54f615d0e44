package model

import "path/filepath"

const (
	cvName = iota
	cvValue
)

// ConstantValue is one row of a scoped constant-value override file: name
// (always uppercase) and its bound value at that scope.
type ConstantValue struct {
	Name  string
	Value string
}

func constantValueCatalog(root string, pathParts ...string) *catalog {
	return newCatalog(root, filepath.Join(pathParts...))
}

// GlobalConstantPath, EnvConstantPath, LocEnvConstantPath, and
// PlacementConstantPath are the four scope files from spec §3/§4.4, in
// precedence order from lowest to highest.
func GlobalConstantPath() string { return filepath.Join("value", "constant") }
func EnvConstantPath(env string) string {
	return filepath.Join("value", env, "constant")
}
func PlacementConstantPath(env, app string) string {
	return filepath.Join("value", env, app)
}
func LocEnvConstantPath(loc, env string) string {
	return filepath.Join("value", NormalizeLocationCode(loc), env)
}

func loadConstantValues(root, relPath string) ([]ConstantValue, error) {
	c := newCatalog(root, relPath)
	records, err := c.load()
	if err != nil {
		return nil, err
	}
	out := make([]ConstantValue, 0, len(records))
	for _, r := range records {
		out = append(out, ConstantValue{Name: field(r, cvName), Value: field(r, cvValue)})
	}
	return out, nil
}

// SetConstantValue upserts NAME=value at the scope file relPath, validating
// that name is a declared Constant.
func SetConstantValue(root, relPath, name, value string) error {
	name = NormalizeConstantName(name)
	if _, err := ShowConstant(root, name); err != nil {
		return err
	}
	c := newCatalog(root, relPath)
	records, err := c.load()
	if err != nil {
		return err
	}
	_, idx := findByKey(records, cvName, name)
	row := []string{name, value}
	if idx >= 0 {
		records[idx] = row
	} else {
		records = append(records, row)
	}
	return c.save(records)
}

// UnsetConstantValue removes NAME's override at the scope file relPath, if
// present.
func UnsetConstantValue(root, relPath, name string) error {
	name = NormalizeConstantName(name)
	c := newCatalog(root, relPath)
	records, err := c.load()
	if err != nil {
		return err
	}
	_, idx := findByKey(records, cvName, name)
	if idx < 0 {
		return nil
	}
	records = append(records[:idx], records[idx+1:]...)
	return c.save(records)
}

// ListConstantValues returns the overrides at scope file relPath.
func ListConstantValues(root, relPath string) ([]ConstantValue, error) {
	return loadConstantValues(root, relPath)
}
