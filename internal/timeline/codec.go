package timeline

import "strings"

// The tabular file's CSV dialect is intentionally not RFC 4180. Fields are
// escaped on write (quotes + doubled inner quotes for values containing a
// comma or quote), but reads split on literal commas with no quote
// awareness, matching how the stored file has always been read. A field
// that needed quoting on write will therefore mis-split on read. Upgrading
// the reader requires re-encoding the stored file first; until then both
// halves stay as they are, pinned by tests.

// EscapeField prepares one value for inclusion in a CSV row. Embedded line
// breaks are flattened to a single space so a value can never split a row.
func EscapeField(value string) string {
	if value == "" {
		return ""
	}
	value = strings.ReplaceAll(value, "\r\n", " ")
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	if strings.ContainsAny(value, ",\"") {
		return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
	}
	return value
}

// EncodeRow renders one CSV line for the entry, one field per header
// column, in header order. Columns the entry does not carry render empty,
// so the row always matches the destination file's live header.
func EncodeRow(e *Entry, header []string) string {
	fields := make([]string, len(header))
	for i, col := range header {
		fields[i] = EscapeField(e.Field(col))
	}
	return strings.Join(fields, ",")
}

// ParseHeader returns the column names from the file's first line, or nil
// for empty content.
func ParseHeader(content string) []string {
	line, _, _ := strings.Cut(content, "\n")
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return nil
	}
	cols := strings.Split(line, ",")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	return cols
}

// Decode parses the whole tabular file into entries. The first line is the
// header and is never treated as data; blank lines are skipped; short rows
// leave trailing fields empty.
func Decode(content string) []Entry {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 {
		return nil
	}
	header := ParseHeader(content)
	if header == nil {
		return nil
	}

	var entries []Entry
	for _, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, ",")
		var e Entry
		for i, col := range header {
			if i < len(fields) {
				e.SetField(col, fields[i])
			}
		}
		entries = append(entries, e)
	}
	return entries
}

// AppendRow adds one encoded entry row to existing file content, creating
// the canonical header when the file is empty. The row's column order
// always follows the live header.
func AppendRow(content string, e *Entry) string {
	header := ParseHeader(content)
	if header == nil {
		return strings.Join(Header, ",") + "\n" + EncodeRow(e, Header)
	}
	row := EncodeRow(e, header)
	if strings.HasSuffix(content, "\n") {
		return content + row
	}
	return content + "\n" + row
}

// EncodeFile renders a complete tabular file from a header and entries.
// Used by maintenance rewrites; the submission path only ever appends.
func EncodeFile(header []string, entries []Entry) string {
	var b strings.Builder
	b.WriteString(strings.Join(header, ","))
	for i := range entries {
		b.WriteString("\n")
		b.WriteString(EncodeRow(&entries[i], header))
	}
	return b.String()
}
