package model

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/opsconf/scs/internal/scserr"
)

// nameRe is the default primary-key format (spec §4.2): lowercase letters,
// digits, underscore, hyphen. Entities with a different key shape (location
// codes, constant names, environment aliases) validate separately.
var nameRe = regexp.MustCompile(`^[a-z0-9_-]+$`)

// ValidName reports whether name is a legal primary key under the default
// entity naming rule.
func ValidName(name string) bool { return nameRe.MatchString(name) }

// catalog is the on-disk handle for one entity kind's record file, rooted
// under the store's working tree (the currently checked-out branch — trunk
// for reads, the operator's work branch for writes already staged there).
type catalog struct {
	root string
	file string
}

func newCatalog(root, file string) *catalog {
	return &catalog{root: root, file: file}
}

func (c *catalog) path() string { return filepath.Join(c.root, c.file) }

func (c *catalog) load() ([][]string, error) {
	content, err := os.ReadFile(c.path())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return readRecords(content), nil
}

func (c *catalog) save(records [][]string) error {
	if err := os.MkdirAll(filepath.Dir(c.path()), 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.path(), writeRecords(records), 0o644)
}

// findByKey returns the record whose field at keyIdx equals key, and its
// index, or (nil, -1) if absent.
func findByKey(records [][]string, keyIdx int, key string) ([]string, int) {
	for i, r := range records {
		if field(r, keyIdx) == key {
			return r, i
		}
	}
	return nil, -1
}

// keys returns every record's field at keyIdx, sorted ascending, as List
// output (spec §4.2 "List prints ... primary keys sorted ascending").
func keys(records [][]string, keyIdx int) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, field(r, keyIdx))
	}
	sort.Strings(out)
	return out
}

func errUnknown(kind, key string) error {
	return scserr.New(scserr.UnknownEntity, "%s %q does not exist", kind, key)
}

func errDuplicate(kind, key string) error {
	return scserr.New(scserr.DuplicateKey, "%s %q already exists", kind, key)
}

func errInvalid(format string, args ...interface{}) error {
	return scserr.New(scserr.InvalidInput, format, args...)
}
