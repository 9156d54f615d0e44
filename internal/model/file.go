package model

import (
	"os"
	"path/filepath"
	"regexp"
)

const fileFile = "file"

// File record fields: name,path,type,owner,group,octal,target,desc (8 per
// spec §6).
const (
	fiName = iota
	fiPath
	fiType
	fiOwner
	fiGroup
	fiOctal
	fiTarget
	fiDesc
)

const (
	FileTypeFile     = "file"
	FileTypeSymlink  = "symlink"
	FileTypeBinary   = "binary"
	FileTypeCopy     = "copy"
	FileTypeDownload = "download"
)

var octalRe = regexp.MustCompile(`^[0-7]{3,4}$`)

// fileNameRe is ValidName's character set plus '.', so File names can carry
// an extension (nginx.conf, banner.png).
var fileNameRe = regexp.MustCompile(`^[a-z0-9_.-]+$`)

// File is one row of the file catalog describing an on-host artifact.
type File struct {
	Name   string
	Path   string
	Type   string
	Owner  string
	Group  string
	Octal  string
	Target string
	Desc   string
}

func (f File) record() []string {
	return []string{f.Name, f.Path, f.Type, f.Owner, f.Group, f.Octal, f.Target, f.Desc}
}

func fileFromRecord(r []string) File {
	return File{
		Name: field(r, fiName), Path: field(r, fiPath), Type: field(r, fiType),
		Owner: field(r, fiOwner), Group: field(r, fiGroup), Octal: field(r, fiOctal),
		Target: field(r, fiTarget), Desc: field(r, fiDesc),
	}
}

func validFileType(t string) bool {
	switch t {
	case FileTypeFile, FileTypeSymlink, FileTypeBinary, FileTypeCopy, FileTypeDownload:
		return true
	}
	return false
}

func (f File) validate() error {
	if !fileNameRe.MatchString(f.Name) {
		return errInvalid("invalid file name %q", f.Name)
	}
	if !validFileType(f.Type) {
		return errInvalid("file type must be one of file,symlink,binary,copy,download, got %q", f.Type)
	}
	if !octalRe.MatchString(f.Octal) {
		return errInvalid("file octal permission %q must match ^[0-7]{3,4}$", f.Octal)
	}
	if f.Type != FileTypeFile && f.Type != FileTypeBinary && f.Target == "" {
		return errInvalid("file type %q requires a target", f.Type)
	}
	return nil
}

func CreateFile(root string, f File) error {
	if err := f.validate(); err != nil {
		return err
	}
	c := newCatalog(root, fileFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	if _, idx := findByKey(records, fiName, f.Name); idx >= 0 {
		return errDuplicate("file", f.Name)
	}
	records = append(records, f.record())
	return c.save(records)
}

func ListFiles(root string) ([]string, error) {
	c := newCatalog(root, fileFile)
	records, err := c.load()
	if err != nil {
		return nil, err
	}
	return keys(records, fiName), nil
}

func ShowFile(root, name string) (File, error) {
	c := newCatalog(root, fileFile)
	records, err := c.load()
	if err != nil {
		return File{}, err
	}
	r, idx := findByKey(records, fiName, name)
	if idx < 0 {
		return File{}, errUnknown("file", name)
	}
	return fileFromRecord(r), nil
}

// TemplatePath returns the store-relative path to a File's base template.
func TemplatePath(name string) string { return filepath.Join("template", name) }

// BinaryPath returns the store-relative path to a File's binary bytes.
func BinaryPath(name string) string { return filepath.Join("binary", name) }

// EnvPatchPath returns the store-relative path to a File's patch for env,
// under the chosen template/patch/<env>/<name> layout (spec §9 open
// question, resolved in DESIGN.md).
func EnvPatchPath(env, name string) string { return filepath.Join("template", "patch", env, name) }

// BackingSize returns the byte size of a File's template (type=file) or
// binary (type=binary) payload, for `file show` (spec §4.2).
func BackingSize(root string, f File) (int64, bool) {
	var p string
	switch f.Type {
	case FileTypeFile:
		p = TemplatePath(f.Name)
	case FileTypeBinary:
		p = BinaryPath(f.Name)
	default:
		return 0, false
	}
	info, err := os.Stat(filepath.Join(root, p))
	if err != nil {
		return 0, false
	}
	return info.Size(), true
}

// UpdateFile rewrites the record. Renaming a File of type=binary whose bytes
// are absent from the store is rejected (spec §9 open question, resolved:
// this is a validation error, not a silent rename) because the rename would
// otherwise leave an unreachable binary/<old-name> with no catalog entry.
func UpdateFile(root, name string, f File) error {
	if err := f.validate(); err != nil {
		return err
	}
	c := newCatalog(root, fileFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	existing, idx := findByKey(records, fiName, name)
	if idx < 0 {
		return errUnknown("file", name)
	}
	if f.Name != name {
		if _, dupIdx := findByKey(records, fiName, f.Name); dupIdx >= 0 {
			return errDuplicate("file", f.Name)
		}
		old := fileFromRecord(existing)
		if old.Type == FileTypeBinary {
			if _, err := os.Stat(filepath.Join(root, BinaryPath(name))); err != nil {
				return errInvalid("cannot rename binary file %q: backing bytes are absent from the store", name)
			}
			if err := os.Rename(filepath.Join(root, BinaryPath(name)), filepath.Join(root, BinaryPath(f.Name))); err != nil {
				return err
			}
		}
		if old.Type == FileTypeFile {
			if _, err := os.Stat(filepath.Join(root, TemplatePath(name))); err == nil {
				if err := os.Rename(filepath.Join(root, TemplatePath(name)), filepath.Join(root, TemplatePath(f.Name))); err != nil {
					return err
				}
			}
		}
		if err := renameFileMapEntries(root, name, f.Name); err != nil {
			return err
		}
	}
	records[idx] = f.record()
	return c.save(records)
}

// DeleteFile removes the record and cascades: template/binary payload and
// every file-map row referencing it (spec §3 lifecycle).
func DeleteFile(root, name string) error {
	c := newCatalog(root, fileFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	existing, idx := findByKey(records, fiName, name)
	if idx < 0 {
		return errUnknown("file", name)
	}
	f := fileFromRecord(existing)
	records = append(records[:idx], records[idx+1:]...)
	if err := c.save(records); err != nil {
		return err
	}
	switch f.Type {
	case FileTypeFile:
		os.Remove(filepath.Join(root, TemplatePath(name)))
	case FileTypeBinary:
		os.Remove(filepath.Join(root, BinaryPath(name)))
	}
	envs, err := ListEnvironments(root)
	if err != nil {
		return err
	}
	for _, env := range envs {
		os.Remove(filepath.Join(root, EnvPatchPath(env, name)))
	}
	return RemoveFileMapEntriesForFile(root, name)
}
