package model

const fileMapFile = "file-map"

const (
	fmFile = iota
	fmApplication
)

// AddFileMap links a File to an Application, validating both exist. A
// duplicate link is a no-op rather than an error.
func AddFileMap(root, file, application string) error {
	if _, err := ShowFile(root, file); err != nil {
		return err
	}
	if _, err := ShowApplication(root, application); err != nil {
		return err
	}
	c := newCatalog(root, fileMapFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	for _, r := range records {
		if field(r, fmFile) == file && field(r, fmApplication) == application {
			return nil
		}
	}
	records = append(records, []string{file, application})
	return c.save(records)
}

// RemoveFileMap unlinks a File from an Application.
func RemoveFileMap(root, file, application string) error {
	c := newCatalog(root, fileMapFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	out := records[:0]
	for _, r := range records {
		if field(r, fmFile) == file && field(r, fmApplication) == application {
			continue
		}
		out = append(out, r)
	}
	return c.save(out)
}

// FilesForApplication returns every File name mapped to application.
func FilesForApplication(root, application string) ([]string, error) {
	c := newCatalog(root, fileMapFile)
	records, err := c.load()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, r := range records {
		if field(r, fmApplication) == application {
			out = append(out, field(r, fmFile))
		}
	}
	return out, nil
}

// ApplicationsForFile returns every Application name mapped to file.
func ApplicationsForFile(root, file string) ([]string, error) {
	c := newCatalog(root, fileMapFile)
	records, err := c.load()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, r := range records {
		if field(r, fmFile) == file {
			out = append(out, field(r, fmApplication))
		}
	}
	return out, nil
}

// RemoveFileMapEntriesForFile drops every row referencing file (File
// deletion cascade, spec §3).
func RemoveFileMapEntriesForFile(root, file string) error {
	return filterFileMap(root, func(r []string) bool { return field(r, fmFile) != file })
}

// RemoveFileMapEntriesForApplication drops every row referencing
// application (Application deletion cascade, spec §3).
func RemoveFileMapEntriesForApplication(root, application string) error {
	return filterFileMap(root, func(r []string) bool { return field(r, fmApplication) != application })
}

func renameFileMapEntries(root, oldFile, newFile string) error {
	c := newCatalog(root, fileMapFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	for i, r := range records {
		if field(r, fmFile) == oldFile {
			records[i][fmFile] = newFile
		}
	}
	return c.save(records)
}

func renameFileMapApplication(root, oldApp, newApp string) error {
	c := newCatalog(root, fileMapFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	for i, r := range records {
		if field(r, fmApplication) == oldApp {
			records[i][fmApplication] = newApp
		}
	}
	return c.save(records)
}

func filterFileMap(root string, keep func([]string) bool) error {
	c := newCatalog(root, fileMapFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	out := make([][]string, 0, len(records))
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return c.save(out)
}
