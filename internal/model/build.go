package model

import "regexp"

const buildFile = "build"

// buildNameRe is ValidName's character set plus '.', so Build names can
// carry a version (web-1.0).
var buildNameRe = regexp.MustCompile(`^[a-z0-9_.-]+$`)

const (
	buildName = iota
	buildRole
	buildDescription
)

// Build is a named software stack an Application runs on.
type Build struct {
	Name        string
	Role        string
	Description string
}

func (b Build) record() []string { return []string{b.Name, b.Role, b.Description} }

func buildFromRecord(r []string) Build {
	return Build{Name: field(r, buildName), Role: field(r, buildRole), Description: field(r, buildDescription)}
}

func CreateBuild(root string, b Build) error {
	if !buildNameRe.MatchString(b.Name) {
		return errInvalid("invalid build name %q", b.Name)
	}
	c := newCatalog(root, buildFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	if _, idx := findByKey(records, buildName, b.Name); idx >= 0 {
		return errDuplicate("build", b.Name)
	}
	records = append(records, b.record())
	return c.save(records)
}

func ListBuilds(root string) ([]string, error) {
	c := newCatalog(root, buildFile)
	records, err := c.load()
	if err != nil {
		return nil, err
	}
	return keys(records, buildName), nil
}

func ShowBuild(root, name string) (Build, error) {
	c := newCatalog(root, buildFile)
	records, err := c.load()
	if err != nil {
		return Build{}, err
	}
	r, idx := findByKey(records, buildName, name)
	if idx < 0 {
		return Build{}, errUnknown("build", name)
	}
	return buildFromRecord(r), nil
}

func UpdateBuild(root, name string, b Build) error {
	if !buildNameRe.MatchString(b.Name) {
		return errInvalid("invalid build name %q", b.Name)
	}
	c := newCatalog(root, buildFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	_, idx := findByKey(records, buildName, name)
	if idx < 0 {
		return errUnknown("build", name)
	}
	if b.Name != name {
		if _, dupIdx := findByKey(records, buildName, b.Name); dupIdx >= 0 {
			return errDuplicate("build", b.Name)
		}
	}
	records[idx] = b.record()
	return c.save(records)
}

// DeleteBuild removes the build record. Applications and Systems referencing
// it are not touched, so their build field can name a build that no longer
// exists; release composition matches applications to a system by that name
// alone and does not look the build up.
func DeleteBuild(root, name string) error {
	c := newCatalog(root, buildFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	_, idx := findByKey(records, buildName, name)
	if idx < 0 {
		return errUnknown("build", name)
	}
	records = append(records[:idx], records[idx+1:]...)
	return c.save(records)
}
