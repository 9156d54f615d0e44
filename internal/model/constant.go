package model

import "strings"

const constantFile = "constant"

const (
	constName = iota
	constDescription
)

// Constant is a global constant's definition (name + description); its
// scoped values live under value/ (see constantvalue.go).
type Constant struct {
	Name        string
	Description string
}

func (c Constant) record() []string { return []string{c.Name, c.Description} }

func constantFromRecord(r []string) Constant {
	return Constant{Name: field(r, constName), Description: field(r, constDescription)}
}

// NormalizeConstantName uppercases a constant name, per spec §4.2.
func NormalizeConstantName(name string) string { return strings.ToUpper(strings.TrimSpace(name)) }

func CreateConstant(root string, c Constant) error {
	c.Name = NormalizeConstantName(c.Name)
	if c.Name == "" {
		return errInvalid("constant name must not be empty")
	}
	cat := newCatalog(root, constantFile)
	records, err := cat.load()
	if err != nil {
		return err
	}
	if _, idx := findByKey(records, constName, c.Name); idx >= 0 {
		return errDuplicate("constant", c.Name)
	}
	records = append(records, c.record())
	return cat.save(records)
}

func ListConstants(root string) ([]string, error) {
	cat := newCatalog(root, constantFile)
	records, err := cat.load()
	if err != nil {
		return nil, err
	}
	return keys(records, constName), nil
}

func ShowConstant(root, name string) (Constant, error) {
	name = NormalizeConstantName(name)
	cat := newCatalog(root, constantFile)
	records, err := cat.load()
	if err != nil {
		return Constant{}, err
	}
	r, idx := findByKey(records, constName, name)
	if idx < 0 {
		return Constant{}, errUnknown("constant", name)
	}
	return constantFromRecord(r), nil
}

func UpdateConstant(root, name string, c Constant) error {
	name = NormalizeConstantName(name)
	c.Name = NormalizeConstantName(c.Name)
	cat := newCatalog(root, constantFile)
	records, err := cat.load()
	if err != nil {
		return err
	}
	_, idx := findByKey(records, constName, name)
	if idx < 0 {
		return errUnknown("constant", name)
	}
	if c.Name != name {
		if _, dupIdx := findByKey(records, constName, c.Name); dupIdx >= 0 {
			return errDuplicate("constant", c.Name)
		}
	}
	records[idx] = c.record()
	return cat.save(records)
}

func DeleteConstant(root, name string) error {
	name = NormalizeConstantName(name)
	cat := newCatalog(root, constantFile)
	records, err := cat.load()
	if err != nil {
		return err
	}
	_, idx := findByKey(records, constName, name)
	if idx < 0 {
		return errUnknown("constant", name)
	}
	records = append(records[:idx], records[idx+1:]...)
	return cat.save(records)
}
