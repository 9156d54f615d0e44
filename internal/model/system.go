package model

const systemFile = "system"

const (
	sysName = iota
	sysBuild
	sysIP
	sysLocation
	sysEnvironment
)

// System is one named host: its build, location, environment, and IP.
type System struct {
	Name        string
	Build       string
	IP          string
	Location    string
	Environment string
}

func (s System) record() []string {
	return []string{s.Name, s.Build, s.IP, NormalizeLocationCode(s.Location), s.Environment}
}

func systemFromRecord(r []string) System {
	return System{
		Name: field(r, sysName), Build: field(r, sysBuild), IP: field(r, sysIP),
		Location: field(r, sysLocation), Environment: field(r, sysEnvironment),
	}
}

func (s System) validateRefs(root string) error {
	if _, err := ShowBuild(root, s.Build); err != nil {
		return err
	}
	if _, err := ShowLocation(root, s.Location); err != nil {
		return err
	}
	if _, err := ShowEnvironment(root, s.Environment); err != nil {
		return err
	}
	return nil
}

func CreateSystem(root string, s System) error {
	if !ValidName(s.Name) {
		return errInvalid("invalid system name %q", s.Name)
	}
	if err := s.validateRefs(root); err != nil {
		return err
	}
	c := newCatalog(root, systemFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	if _, idx := findByKey(records, sysName, s.Name); idx >= 0 {
		return errDuplicate("system", s.Name)
	}
	records = append(records, s.record())
	return c.save(records)
}

func ListSystems(root string) ([]string, error) {
	c := newCatalog(root, systemFile)
	records, err := c.load()
	if err != nil {
		return nil, err
	}
	return keys(records, sysName), nil
}

func ShowSystem(root, name string) (System, error) {
	c := newCatalog(root, systemFile)
	records, err := c.load()
	if err != nil {
		return System{}, err
	}
	r, idx := findByKey(records, sysName, name)
	if idx < 0 {
		return System{}, errUnknown("system", name)
	}
	return systemFromRecord(r), nil
}

func UpdateSystem(root, name string, s System) error {
	if !ValidName(s.Name) {
		return errInvalid("invalid system name %q", s.Name)
	}
	if err := s.validateRefs(root); err != nil {
		return err
	}
	c := newCatalog(root, systemFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	_, idx := findByKey(records, sysName, name)
	if idx < 0 {
		return errUnknown("system", name)
	}
	if s.Name != name {
		if _, dupIdx := findByKey(records, sysName, s.Name); dupIdx >= 0 {
			return errDuplicate("system", s.Name)
		}
	}
	records[idx] = s.record()
	return c.save(records)
}

func DeleteSystem(root, name string) error {
	c := newCatalog(root, systemFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	_, idx := findByKey(records, sysName, name)
	if idx < 0 {
		return errUnknown("system", name)
	}
	records = append(records[:idx], records[idx+1:]...)
	return c.save(records)
}

// ApplicationsForSystem resolves the set of Applications a System runs,
// transitively via its Build (spec §4.5 step 2).
func ApplicationsForSystem(root string, s System) ([]Application, error) {
	return ApplicationsForBuild(root, s.Build)
}
