package validation

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Table is the raw parsed file: one header row plus positional data
// rows. Values are untrimmed; interpretation happens in row validation.
type Table struct {
	Headers []string
	Rows    []RawRow
}

// RawRow keeps the original field order. Line is the 1-based file line,
// the header being line 1.
type RawRow struct {
	Line   int
	Values []string
}

// Parse decodes CSV bytes into a Table. The file must be UTF-8, with or
// without a byte order mark. Findings land on the summary: a broken
// encoding, malformed CSV syntax and unreadable input are distinct
// kinds, all fatal. A nil table means nothing usable was parsed.
func Parse(data []byte, summary *Summary) *Table {
	if len(bytes.TrimSpace(data)) == 0 {
		summary.Add(KindIO, LevelError, Issue{Message: "uploaded file is empty"})
		summary.Fatal = true
		return nil
	}
	if !utf8.Valid(data) {
		summary.Add(KindEncoding, LevelError, Issue{Message: "file is not valid UTF-8"})
		summary.Fatal = true
		return nil
	}

	decoded, _, err := transform.Bytes(unicode.UTF8BOM.NewDecoder(), data)
	if err != nil {
		summary.Add(KindEncoding, LevelError, Issue{Message: fmt.Sprintf("failed to decode file: %v", err)})
		summary.Fatal = true
		return nil
	}

	reader := csv.NewReader(bytes.NewReader(decoded))

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			summary.Add(KindParse, LevelError, Issue{Message: "file has no header row"})
		} else {
			addCSVError(summary, err)
		}
		summary.Fatal = true
		return nil
	}

	table := &Table{Headers: headers}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			addCSVError(summary, err)
			summary.Fatal = true
			return nil
		}
		if blankRecord(record) {
			continue
		}
		table.Rows = append(table.Rows, RawRow{Line: line, Values: record})
	}
	return table
}

func addCSVError(summary *Summary, err error) {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		summary.Add(KindParse, LevelError, Issue{
			Row:     parseErr.Line,
			Message: fmt.Sprintf("malformed CSV: %v", parseErr.Err),
		})
		return
	}
	summary.Add(KindIO, LevelError, Issue{Message: fmt.Sprintf("failed to read file: %v", err)})
}

func blankRecord(record []string) bool {
	for _, v := range record {
		if v != "" {
			return false
		}
	}
	return true
}
