package parser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/user/petco2_cvr_go/internal/petco2"
)

// maxLineBytes bounds a single line of the physiological export.
const maxLineBytes = 1 << 20

// ParsePhysData reads a physiological recording from a text file.
func ParsePhysData(path string) (*ParsedPhysData, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open physiological data file: %w", err)
	}
	defer file.Close()

	pd, err := readPhysData(file, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pd, nil
}

// ReadPhysData reads a numeric table with one sample per row. Fields may be
// separated by whitespace or commas and '#' starts a comment. Only the first
// four columns are used; rows that cannot be parsed are skipped with a warning.
func ReadPhysData(r io.Reader) (*ParsedPhysData, error) {
	return readPhysData(r, "")
}

func readPhysData(r io.Reader, source string) (*ParsedPhysData, error) {
	pd := NewParsedPhysData(source)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	lineNo := 0
	warnedExtra := false
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := splitFields(line)
		if len(fields) == 0 {
			continue
		}

		if len(fields) < PhysColumns {
			pd.Skipped++
			pd.ParseErrors = append(pd.ParseErrors, fmt.Sprintf("Warning: line %d has %d columns, expected at least %d. Row skipped.", lineNo, len(fields), PhysColumns))
			continue
		}

		var row [PhysColumns]float64
		ok := true
		for i := 0; i < PhysColumns; i++ {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				pd.Skipped++
				pd.ParseErrors = append(pd.ParseErrors, fmt.Sprintf("Warning: line %d column %d: cannot convert '%s'. Row skipped.", lineNo, i+1, fields[i]))
				ok = false
				break
			}
			row[i] = v
		}
		if !ok {
			continue
		}
		if len(fields) > PhysColumns && !warnedExtra {
			pd.ParseErrors = append(pd.ParseErrors, fmt.Sprintf("Warning: line %d has %d columns, only the first %d are used.", lineNo, len(fields), PhysColumns))
			warnedExtra = true
		}
		pd.appendRow(row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read physiological data: %w", err)
	}

	if pd.Rows == 0 {
		return nil, fmt.Errorf("%w: no data rows found (%d skipped)", petco2.ErrInputShape, pd.Skipped)
	}
	return pd, nil
}

func splitFields(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
}
