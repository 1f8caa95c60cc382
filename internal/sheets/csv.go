package sheets

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/geocoder89/staffauth/internal/domain/user"
)

func ParseCSV(r io.Reader) ([]user.CreateUserRequest, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	// tolerate a UTF-8 BOM from spreadsheet exports
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = trimBOM(rows[0][0])
	}

	return rowsToRequests(rows)
}

func WriteCSV(w io.Writer, users []user.User) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(exportColumns); err != nil {
		return err
	}
	for _, u := range users {
		if err := cw.Write(csvSafe(userRow(u))); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// Parse reads an import file in the given format.
func Parse(format Format, r io.Reader) ([]user.CreateUserRequest, error) {
	switch format {
	case XLSX:
		return ParseXLSX(r)
	case CSV:
		return ParseCSV(r)
	default:
		return nil, ErrUnsupportedFormat
	}
}

// Write renders users in the given format.
func Write(format Format, w io.Writer, users []user.User) error {
	switch format {
	case XLSX:
		return WriteXLSX(w, users)
	case CSV:
		return WriteCSV(w, users)
	default:
		return ErrUnsupportedFormat
	}
}

func trimBOM(s string) string {
	return strings.TrimPrefix(s, "\ufeff")
}

// csvSafe neutralizes cells a spreadsheet would evaluate as formulas.
func csvSafe(row []string) []string {
	out := make([]string, len(row))
	for i, v := range row {
		if v != "" && (v[0] == '=' || v[0] == '+' || v[0] == '-' || v[0] == '@') && i != phoneColumn {
			v = "'" + v
		}
		out[i] = v
	}
	return out
}
