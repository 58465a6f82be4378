package clients

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ImportRow is one parsed spreadsheet row before validation.
type ImportRow struct {
	FirstName string
	LastName  string
	Company   string
	Email1    string
	Email2    string
	Email3    string
	Phone1    string
	Phone2    string
	Phone3    string
	Notes     string
}

// RowValidation is the validation verdict for one row. Errors keeps the order
// the rules are checked in; Row echoes the 1-based position in the uploaded
// file so batch summaries can point back at the offending line.
type RowValidation struct {
	Row    int      `json:"row"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// RowError pairs a failed row's 1-based index with its messages.
type RowError struct {
	Row    int      `json:"row"`
	Errors []string `json:"errors"`
}

// ImportSummary reports a bulk import outcome. Validation failures are
// collected per row, not fatal: valid rows still import.
type ImportSummary struct {
	Imported int        `json:"imported"`
	Failed   int        `json:"failed"`
	Rows     []RowError `json:"row_errors,omitempty"`
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateRow applies the bulk-import business rules to one row.
func ValidateRow(row ImportRow, rowIndex int) RowValidation {
	var errs []string

	if strings.TrimSpace(row.FirstName) == "" && strings.TrimSpace(row.LastName) == "" {
		errs = append(errs, "Either First Name or Last Name is required")
	}
	if strings.TrimSpace(row.Email1) == "" {
		errs = append(errs, "Email 1 is required")
	}
	if strings.TrimSpace(row.Phone1) == "" {
		errs = append(errs, "Phone 1 is required")
	}

	emails := []struct {
		label string
		value string
	}{
		{"Email 1", row.Email1},
		{"Email 2", row.Email2},
		{"Email 3", row.Email3},
	}
	for _, e := range emails {
		v := strings.TrimSpace(e.value)
		if v == "" {
			continue
		}
		if !emailPattern.MatchString(v) {
			errs = append(errs, fmt.Sprintf("Invalid email format for %s", e.label))
		}
	}

	return RowValidation{Row: rowIndex, Valid: len(errs) == 0, Errors: errs}
}

// Importer runs bulk CSV/TSV imports against a client repository.
type Importer struct {
	repo  Repository
	clock func() time.Time
}

func NewImporter(repo Repository) *Importer {
	return &Importer{repo: repo, clock: time.Now}
}

// headerAliases maps header cells to struct fields. Matching is
// case-insensitive and tolerates surrounding whitespace.
var headerAliases = map[string]string{
	"first name": "first_name",
	"firstname":  "first_name",
	"last name":  "last_name",
	"lastname":   "last_name",
	"company":    "company",
	"email 1":    "email1",
	"email1":     "email1",
	"email":      "email1",
	"email 2":    "email2",
	"email2":     "email2",
	"email 3":    "email3",
	"email3":     "email3",
	"phone 1":    "phone1",
	"phone1":     "phone1",
	"phone":      "phone1",
	"phone 2":    "phone2",
	"phone2":     "phone2",
	"phone 3":    "phone3",
	"phone3":     "phone3",
	"notes":      "notes",
}

// Import parses a CSV or TSV document (delimiter sniffed from the header
// line), validates every data row, and inserts the valid ones. The first line
// must be a header naming at least one known column.
func (im *Importer) Import(ctx context.Context, organizationID string, r io.Reader) (ImportSummary, error) {
	if organizationID == "" {
		return ImportSummary{}, errors.New("clients: organization_id required")
	}
	if im.repo == nil {
		return ImportSummary{}, errors.New("clients: repository not configured")
	}

	br := bufio.NewReader(r)
	headerLine, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return ImportSummary{}, fmt.Errorf("clients: read header: %w", err)
	}

	delimiter := ','
	if strings.Contains(headerLine, "\t") {
		delimiter = '\t'
	}

	cr := csv.NewReader(io.MultiReader(strings.NewReader(headerLine), br))
	cr.Comma = delimiter
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return ImportSummary{}, fmt.Errorf("clients: parse header: %w", err)
	}

	fields := make(map[int]string, len(header))
	known := 0
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if name, ok := headerAliases[key]; ok {
			fields[i] = name
			known++
		}
	}
	if known == 0 {
		return ImportSummary{}, errors.New("clients: no recognized columns in header")
	}

	var summary ImportSummary
	rowIndex := 1 // header is row 1; data rows start at 2
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return summary, fmt.Errorf("clients: parse row %d: %w", rowIndex+1, err)
		}
		rowIndex++

		row := mapRow(record, fields)
		verdict := ValidateRow(row, rowIndex)
		if !verdict.Valid {
			summary.Failed++
			summary.Rows = append(summary.Rows, RowError{Row: verdict.Row, Errors: verdict.Errors})
			continue
		}

		now := im.clock().UTC()
		err = im.repo.Insert(ctx, Client{
			ID:             uuid.NewString(),
			OrganizationID: organizationID,
			FirstName:      strings.TrimSpace(row.FirstName),
			LastName:       strings.TrimSpace(row.LastName),
			Company:        strings.TrimSpace(row.Company),
			Email1:         strings.TrimSpace(row.Email1),
			Email2:         strings.TrimSpace(row.Email2),
			Email3:         strings.TrimSpace(row.Email3),
			Phone1:         strings.TrimSpace(row.Phone1),
			Phone2:         strings.TrimSpace(row.Phone2),
			Phone3:         strings.TrimSpace(row.Phone3),
			Notes:          strings.TrimSpace(row.Notes),
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			// Storage failures are per-row too; the batch keeps going.
			summary.Failed++
			summary.Rows = append(summary.Rows, RowError{Row: rowIndex, Errors: []string{"Failed to save row"}})
			continue
		}
		summary.Imported++
	}

	return summary, nil
}

func mapRow(record []string, fields map[int]string) ImportRow {
	var row ImportRow
	for i, v := range record {
		switch fields[i] {
		case "first_name":
			row.FirstName = v
		case "last_name":
			row.LastName = v
		case "company":
			row.Company = v
		case "email1":
			row.Email1 = v
		case "email2":
			row.Email2 = v
		case "email3":
			row.Email3 = v
		case "phone1":
			row.Phone1 = v
		case "phone2":
			row.Phone2 = v
		case "phone3":
			row.Phone3 = v
		case "notes":
			row.Notes = v
		}
	}
	return row
}

// TemplateCSV returns the import template offered for download.
func TemplateCSV() string {
	return "First Name,Last Name,Company,Email 1,Email 2,Email 3,Phone 1,Phone 2,Phone 3,Notes\n"
}
