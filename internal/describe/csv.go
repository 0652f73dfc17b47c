package describe

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ParseCSV decodes a description file. UTF-8 is tried first, then
// Windows-1252, which also covers ISO-8859-1 text. Columns are located by
// header name, so missing or reordered columns are tolerated.
func ParseCSV(r io.Reader) ([]Column, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read description: %w", err)
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(raw) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("decode description: %w", err)
		}
		raw = decoded
	}

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse description: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	index := map[string]int{}
	for i, name := range records[0] {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	out := make([]Column, 0, len(records)-1)
	for _, record := range records[1:] {
		out = append(out, Column{
			OriginalName:     field(record, "original_column_name"),
			Name:             field(record, "column_name"),
			Description:      field(record, "column_description"),
			DataFormat:       field(record, "data_format"),
			ValueDescription: field(record, "value_description"),
		})
	}
	return out, nil
}
