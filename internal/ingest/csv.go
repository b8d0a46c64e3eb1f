// Package ingest parses the dashboard's upload formats: the CSV associating
// recipients with uploaded files, and comma-separated value lists.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrEmptyCSV = errors.New("csv has no usable rows")

// Association links one recipient phone to one uploaded filename, with an
// optional caption in a third column.
type Association struct {
	Phone    string
	Filename string
	Caption  string
}

// ParseAssociations reads a phone,filename[,caption] CSV. A header row is
// skipped when the first field does not look like a phone number. Blank rows
// are ignored; rows missing either column are an error, since silently
// dropping a recipient is worse than rejecting the file.
func ParseAssociations(r io.Reader) ([]Association, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	var out []Association
	for i, rec := range records {
		if len(rec) == 0 || (len(rec) == 1 && strings.TrimSpace(rec[0]) == "") {
			continue
		}
		if i == 0 && !looksLikePhone(rec[0]) {
			continue
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("row %d: expected phone,filename", i+1)
		}

		a := Association{
			Phone:    strings.TrimSpace(rec[0]),
			Filename: strings.TrimSpace(rec[1]),
		}
		if a.Phone == "" || a.Filename == "" {
			return nil, fmt.Errorf("row %d: empty phone or filename", i+1)
		}
		if len(rec) > 2 {
			a.Caption = strings.TrimSpace(rec[2])
		}
		out = append(out, a)
	}

	if len(out) == 0 {
		return nil, ErrEmptyCSV
	}
	return out, nil
}

// SplitCommaList splits a comma-separated user input into trimmed non-empty
// tokens. Used for blacklist number-id lists and ad-hoc recipient lists.
func SplitCommaList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if tok := strings.TrimSpace(part); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

func looksLikePhone(s string) bool {
	s = strings.TrimPrefix(strings.TrimSpace(s), "+")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
