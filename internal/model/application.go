package model

const applicationFile = "application"

// Application field indices within its record: name,alias,build,cluster.
const (
	appName = iota
	appAlias
	appBuild
	appCluster
)

// Application is one row of the application catalog.
type Application struct {
	Name    string
	Alias   string
	Build   string
	Cluster bool
}

func (a Application) record() []string {
	cluster := "n"
	if a.Cluster {
		cluster = "y"
	}
	return []string{a.Name, a.Alias, a.Build, cluster}
}

func applicationFromRecord(r []string) Application {
	return Application{
		Name:    field(r, appName),
		Alias:   field(r, appAlias),
		Build:   field(r, appBuild),
		Cluster: field(r, appCluster) == "y",
	}
}

// CreateApplication validates name/alias uniqueness and that Build (if set)
// references an existing Build, then appends the record.
func CreateApplication(root string, a Application) error {
	if !ValidName(a.Name) {
		return errInvalid("invalid application name %q", a.Name)
	}
	if a.Build != "" {
		if _, err := ShowBuild(root, a.Build); err != nil {
			return err
		}
	}
	c := newCatalog(root, applicationFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	if _, idx := findByKey(records, appName, a.Name); idx >= 0 {
		return errDuplicate("application", a.Name)
	}
	for _, r := range records {
		if field(r, appAlias) == a.Alias {
			return errDuplicate("application alias", a.Alias)
		}
	}
	records = append(records, a.record())
	return c.save(records)
}

// ListApplications returns every application name, sorted ascending.
func ListApplications(root string) ([]string, error) {
	c := newCatalog(root, applicationFile)
	records, err := c.load()
	if err != nil {
		return nil, err
	}
	return keys(records, appName), nil
}

// ShowApplication returns the full record for name.
func ShowApplication(root, name string) (Application, error) {
	c := newCatalog(root, applicationFile)
	records, err := c.load()
	if err != nil {
		return Application{}, err
	}
	r, idx := findByKey(records, appName, name)
	if idx < 0 {
		return Application{}, errUnknown("application", name)
	}
	return applicationFromRecord(r), nil
}

// UpdateApplication rewrites the record for name with the fields in a. The
// build and alias are always re-validated; if a.Name differs from name, the
// new name must be unused, and the file-map rows and placement memberships
// that key on the old name are rewritten here as well.
func UpdateApplication(root, name string, a Application) error {
	if !ValidName(a.Name) {
		return errInvalid("invalid application name %q", a.Name)
	}
	if a.Build != "" {
		if _, err := ShowBuild(root, a.Build); err != nil {
			return err
		}
	}
	c := newCatalog(root, applicationFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	_, idx := findByKey(records, appName, name)
	if idx < 0 {
		return errUnknown("application", name)
	}
	if a.Name != name {
		if _, dupIdx := findByKey(records, appName, a.Name); dupIdx >= 0 {
			return errDuplicate("application", a.Name)
		}
	}
	for i, r := range records {
		if i != idx && field(r, appAlias) == a.Alias {
			return errDuplicate("application alias", a.Alias)
		}
	}
	if a.Name != name {
		if err := renameFileMapApplication(root, name, a.Name); err != nil {
			return err
		}
		if err := renamePlacements(root, name, a.Name); err != nil {
			return err
		}
	}
	records[idx] = a.record()
	return c.save(records)
}

// DeleteApplication removes the application record and every file-map row
// that references it. Placement membership is not touched.
func DeleteApplication(root, name string) error {
	c := newCatalog(root, applicationFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	_, idx := findByKey(records, appName, name)
	if idx < 0 {
		return errUnknown("application", name)
	}
	records = append(records[:idx], records[idx+1:]...)
	if err := c.save(records); err != nil {
		return err
	}
	return RemoveFileMapEntriesForApplication(root, name)
}

// ApplicationsForBuild returns every application whose Build field matches
// build, in file order — used by the composer to resolve a system's
// application set (spec §4.5 step 2).
func ApplicationsForBuild(root, build string) ([]Application, error) {
	c := newCatalog(root, applicationFile)
	records, err := c.load()
	if err != nil {
		return nil, err
	}
	var out []Application
	for _, r := range records {
		if field(r, appBuild) == build {
			out = append(out, applicationFromRecord(r))
		}
	}
	return out, nil
}
