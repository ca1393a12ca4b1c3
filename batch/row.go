// Package batch runs the image pipeline over rows of a CSV file and packages
// the results.
package batch

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Row is one unit of batch work. Each stage (translation, pronunciation,
// prompt expansion, image generation) fills in its own fields independently;
// a field an earlier stage did not produce stays an empty string.
type Row struct {
	Phrase        string
	Description   string
	Translation   string
	Pronunciation string
	IPA           string
	ImagePrompt   string
	Filename      string
}

var header = []string{"phrase", "description", "translation", "pronunciation", "ipa", "image_prompt", "filename"}

// ParseDelimiter maps a delimiter name or literal to the rune used by the
// CSV codec. Supported: comma, tab, semicolon, pipe.
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "comma", ",", "":
		return ',', nil
	case "tab", "\t":
		return '\t', nil
	case "semicolon", ";":
		return ';', nil
	case "pipe", "|":
		return '|', nil
	}
	return 0, fmt.Errorf("unsupported delimiter %q", s)
}

func (r Row) record() []string {
	return []string{r.Phrase, r.Description, r.Translation, r.Pronunciation, r.IPA, r.ImagePrompt, r.Filename}
}

func rowFromRecord(rec []string) Row {
	get := func(i int) string {
		if i < len(rec) {
			return rec[i]
		}
		return ""
	}
	return Row{
		Phrase:        get(0),
		Description:   get(1),
		Translation:   get(2),
		Pronunciation: get(3),
		IPA:           get(4),
		ImagePrompt:   get(5),
		Filename:      get(6),
	}
}

// ReadRows reads rows with the given delimiter. A leading header row is
// recognized and dropped.
func ReadRows(r io.Reader, delim rune) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("cannot read csv: %w", err)
	}
	var rows []Row
	for i, rec := range recs {
		if i == 0 && isHeader(rec) {
			continue
		}
		rows = append(rows, rowFromRecord(rec))
	}
	return rows, nil
}

func isHeader(rec []string) bool {
	if len(rec) != len(header) {
		return false
	}
	for i, h := range header {
		if !strings.EqualFold(strings.TrimSpace(rec[i]), h) {
			return false
		}
	}
	return true
}

// WriteRows writes a header row followed by the rows, using the given
// delimiter. Field values survive a round-trip verbatim via standard CSV
// quoting.
func WriteRows(w io.Writer, rows []Row, delim rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = delim
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
