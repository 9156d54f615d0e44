package model

import (
	"os"
	"path/filepath"
	"strings"
)

const locationFile = "location"

const (
	locCode = iota
	locName
	locDescription
)

// Location is a 3-character site code.
type Location struct {
	Code        string
	Name        string
	Description string
}

func (l Location) record() []string { return []string{l.Code, l.Name, l.Description} }

func locationFromRecord(r []string) Location {
	return Location{Code: field(r, locCode), Name: field(r, locName), Description: field(r, locDescription)}
}

// NormalizeLocationCode lowercases a location code, per spec §4.2.
func NormalizeLocationCode(code string) string { return strings.ToLower(strings.TrimSpace(code)) }

func validLocationCode(code string) bool { return len(code) == 3 && code == NormalizeLocationCode(code) }

func CreateLocation(root string, l Location) error {
	l.Code = NormalizeLocationCode(l.Code)
	if !validLocationCode(l.Code) {
		return errInvalid("location code %q must be exactly 3 lowercase characters", l.Code)
	}
	c := newCatalog(root, locationFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	if _, idx := findByKey(records, locCode, l.Code); idx >= 0 {
		return errDuplicate("location", l.Code)
	}
	records = append(records, l.record())
	return c.save(records)
}

func ListLocations(root string) ([]string, error) {
	c := newCatalog(root, locationFile)
	records, err := c.load()
	if err != nil {
		return nil, err
	}
	return keys(records, locCode), nil
}

func ShowLocation(root, code string) (Location, error) {
	code = NormalizeLocationCode(code)
	c := newCatalog(root, locationFile)
	records, err := c.load()
	if err != nil {
		return Location{}, err
	}
	r, idx := findByKey(records, locCode, code)
	if idx < 0 {
		return Location{}, errUnknown("location", code)
	}
	return locationFromRecord(r), nil
}

// UpdateLocation rewrites the record and, on a code change, renames the
// location's subtree (<code>/...) and updates cached network rows that
// embed the old code.
func UpdateLocation(root, code string, l Location) error {
	l.Code = NormalizeLocationCode(l.Code)
	if !validLocationCode(l.Code) {
		return errInvalid("location code %q must be exactly 3 lowercase characters", l.Code)
	}
	code = NormalizeLocationCode(code)
	c := newCatalog(root, locationFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	_, idx := findByKey(records, locCode, code)
	if idx < 0 {
		return errUnknown("location", code)
	}
	if l.Code != code {
		if _, dupIdx := findByKey(records, locCode, l.Code); dupIdx >= 0 {
			return errDuplicate("location", l.Code)
		}
		if err := renameLocationSubtree(root, code, l.Code); err != nil {
			return err
		}
	}
	records[idx] = l.record()
	return c.save(records)
}

// renameLocationSubtree moves <root>/<old> to <root>/<new> and rewrites the
// location field embedded in its cached network rows.
func renameLocationSubtree(root, oldCode, newCode string) error {
	oldDir := filepath.Join(root, oldCode)
	newDir := filepath.Join(root, newCode)
	if _, err := os.Stat(oldDir); os.IsNotExist(err) {
		return nil
	}
	if err := os.Rename(oldDir, newDir); err != nil {
		return err
	}
	return renameNetworkLocation(root, oldCode, newCode)
}

// DeleteLocation removes the location record, its <code>/ subtree, and all
// network rows for that location (spec §3 lifecycle).
func DeleteLocation(root, code string) error {
	code = NormalizeLocationCode(code)
	c := newCatalog(root, locationFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	_, idx := findByKey(records, locCode, code)
	if idx < 0 {
		return errUnknown("location", code)
	}
	records = append(records[:idx], records[idx+1:]...)
	if err := c.save(records); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(root, code)); err != nil {
		return err
	}
	return deleteNetworksForLocation(root, code)
}
