package results

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

// Format is the declared encoding of an import file.
type Format string

// Supported import formats.
const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// csvFields is the number of leading fields a CSV data line must carry:
// name, module, status, duration.
const csvFields = 4

// maxLineBytes bounds a single CSV line.
const maxLineBytes = 1 << 20

// DetectFormat selects the import format from a file name suffix,
// case-insensitively.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filename)
	}
}

// Parse decodes content in the given format into rows, preserving input
// order. Status values are returned raw.
func Parse(format Format, content []byte) ([]ImportedRow, error) {
	switch format {
	case FormatCSV:
		return parseCSV(content)
	case FormatJSON:
		return parseJSON(content)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// parseCSV skips the header line and every line with fewer than four
// fields. A malformed duration fails the whole file.
func parseCSV(content []byte) ([]ImportedRow, error) {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		rows   []ImportedRow
		lineNo int
	)

	for scanner.Scan() {
		lineNo++

		if lineNo == 1 {
			continue
		}

		parts := splitFields(scanner.Text())
		if len(parts) < csvFields {
			continue
		}

		name := strings.TrimSpace(parts[0])
		if name == "" {
			return nil, &ParseError{Line: lineNo, Err: errors.New("empty test case name")}
		}

		raw := strings.TrimSpace(parts[3])

		duration, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &ParseError{
				Line: lineNo,
				Err:  fmt.Errorf("invalid duration %q for test %q", raw, name),
			}
		}

		if math.IsNaN(duration) || math.IsInf(duration, 0) {
			return nil, &ParseError{
				Line: lineNo,
				Err:  fmt.Errorf("non-finite duration %q for test %q", raw, name),
			}
		}

		rows = append(rows, ImportedRow{
			TestCaseName: name,
			Module:       strings.TrimSpace(parts[1]),
			Status:       strings.TrimSpace(parts[2]),
			Duration:     &duration,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Line: lineNo + 1, Err: err}
	}

	return rows, nil
}

// splitFields splits a line on commas and drops trailing empty fields, so
// "a,b,PASS," yields three fields and an empty line yields none.
func splitFields(line string) []string {
	parts := strings.Split(line, ",")

	end := len(parts)
	for end > 0 && parts[end-1] == "" {
		end--
	}

	return parts[:end]
}

// parseJSON decodes an array of row objects. There is no per-element skip:
// any decode failure rejects the whole file.
func parseJSON(content []byte) ([]ImportedRow, error) {
	trimmed := bytes.TrimSpace(content)
	if !bytes.HasPrefix(trimmed, []byte("[")) {
		return nil, &ParseError{Err: errors.New("expected a JSON array of results")}
	}

	var rows []ImportedRow
	if err := json.Unmarshal(trimmed, &rows); err != nil {
		return nil, &ParseError{Err: err}
	}

	for i := range rows {
		if strings.TrimSpace(rows[i].TestCaseName) == "" {
			return nil, &ParseError{
				Err: fmt.Errorf("element %d: empty test case name", i),
			}
		}
	}

	return rows, nil
}
