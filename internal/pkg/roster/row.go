package roster

// Row is one source record from a roster spreadsheet. RowNumber is the
// 1-based source position after the header row, counting blank lines, and is
// the value operators use to correlate errors back to the file. Fields maps
// normalized header names to the raw cell values and is never mutated after
// parsing; unknown columns are kept but ignored downstream.
type Row struct {
	RowNumber int
	Fields    map[string]string
}

// Field returns the trimmed value of a column, or the empty string when the
// column is absent
func (r Row) Field(name string) string {
	return trim(r.Fields[name])
}
