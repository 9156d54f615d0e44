// Package model implements the entity catalogs and association indices of
// the store: applications, builds, environments, locations, networks,
// constants, resources, files, systems, placements, and the file-map.
//
// Every catalog file is newline-terminated, comma-separated, with no header
// row and no quoting — fields may never contain a comma, so writers strip
// them rather than escape them (spec's own sanitize design note). This is
// deliberately simpler than RFC 4180 encoding/csv, which this format is not:
// encoding/csv would quote-escape embedded commas instead of stripping them,
// changing the on-disk format.
package model

import "strings"

// sanitize strips record separators and surrounding whitespace from a
// free-text field before it is ever written to a record file. Every field
// on every write path passes through here exactly once.
func sanitize(field string) string {
	field = strings.ReplaceAll(field, ",", "")
	field = strings.ReplaceAll(field, "\n", " ")
	return strings.TrimSpace(field)
}

// encodeRecord sanitizes each field and joins them into one on-disk line.
func encodeRecord(fields ...string) string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = sanitize(f)
	}
	return strings.Join(out, ",")
}

// decodeRecord splits one on-disk line back into its fields. Blank lines
// (trailing newline artifacts) decode to nil.
func decodeRecord(line string) []string {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil
	}
	return strings.Split(line, ",")
}

// readRecords parses the full contents of a catalog file into one []string
// per non-blank line, in file order.
func readRecords(content []byte) [][]string {
	lines := strings.Split(string(content), "\n")
	records := make([][]string, 0, len(lines))
	for _, line := range lines {
		if fields := decodeRecord(line); fields != nil {
			records = append(records, fields)
		}
	}
	return records
}

// writeRecords renders a slice of field-slices back to file content, one
// sanitized, comma-joined, LF-terminated line per record.
func writeRecords(records [][]string) []byte {
	var b strings.Builder
	for _, fields := range records {
		b.WriteString(encodeRecord(fields...))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// field returns fields[i] or "" if the record is short — tolerates catalog
// files written by an earlier schema revision with fewer columns.
func field(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return fields[i]
}
