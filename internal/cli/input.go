package cli

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"kpi/internal/domain/kpi"
)

var ErrNoInputs = errors.New("no input files matched")

// ExpandInputs resolves file arguments and ** globs to a sorted, de-duplicated
// list of paths.
func ExpandInputs(patterns []string) ([]string, error) {
	seen := map[string]bool{}
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("error evaluating pattern %s: %w", pattern, err)
		}
		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || info.IsDir() || seen[match] {
				continue
			}
			seen[match] = true
			files = append(files, match)
		}
	}
	if len(files) == 0 {
		return nil, ErrNoInputs
	}
	sort.Strings(files)
	return files, nil
}

// ReadRows reads a CSV upload whose first record is the header row.
func ReadRows(r io.Reader) ([]kpi.RawRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var rows []kpi.RawRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", len(rows)+1, err)
		}
		if blank(record) {
			continue
		}
		values := make(map[string]string, len(header))
		for i, column := range header {
			if i < len(record) {
				values[column] = record[i]
			}
		}
		rows = append(rows, kpi.RawRow{Index: len(rows) + 1, Values: values})
	}
	return rows, nil
}

func ReadRowsFile(path string) ([]kpi.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadRows(f)
}

// LoadRoster reads employees from a CSV with employee_id, name, email and
// optional user_id columns.
func LoadRoster(path string) ([]kpi.DirectoryEntry, error) {
	rows, err := ReadRowsFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading roster: %w", err)
	}
	entries := make([]kpi.DirectoryEntry, 0, len(rows))
	for _, row := range rows {
		entry := kpi.DirectoryEntry{}
		for column, value := range row.Values {
			switch rosterColumn(column) {
			case "userid":
				entry.UserID = strings.TrimSpace(value)
			case "employeeid", "empid", "id":
				entry.EmployeeID = strings.TrimSpace(value)
			case "name", "employeename", "fullname":
				entry.Name = strings.TrimSpace(value)
			case "email", "emailaddress":
				entry.Email = strings.TrimSpace(value)
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func rosterColumn(header string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + 'a' - 'A'
		}
		return -1
	}, header)
}

func blank(record []string) bool {
	for _, value := range record {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}
