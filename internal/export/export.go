// Package export renders an owner's items as JSON, CSV or XLSX downloads.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"time"

	"github.com/erazemk/gametracker/internal/model"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Format is an export file format.
type Format string

// Formats.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format name. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV, FormatXLSX:
		return Format(s), nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/json"
}

// Dataset is the exported items of one kind.
type Dataset struct {
	Kind  model.Kind
	Items []model.Item
}

// Export is one export request's content.
type Export struct {
	Username   string
	ExportedAt time.Time
	Datasets   []Dataset
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// Filename returns {app}_export_{username}_{YYYYMMDD_HHMMSS}.{ext}.
func Filename(app, username string, at time.Time, f Format) string {
	user := unsafeName.ReplaceAllString(username, "_")
	return fmt.Sprintf("%s_export_%s_%s.%s", app, user, at.Format("20060102_150405"), f)
}

// Write renders e in format f.
func Write(w io.Writer, e *Export, f Format) error {
	switch f {
	case FormatCSV:
		return writeCSV(w, e)
	case FormatXLSX:
		return writeXLSX(w, e)
	default:
		return writeJSON(w, e)
	}
}

func writeJSON(w io.Writer, e *Export) error {
	out := map[string]any{
		"exported_at": e.ExportedAt.Format(time.RFC3339),
		"user":        e.Username,
	}
	for _, ds := range e.Datasets {
		items := ds.Items
		if items == nil {
			items = []model.Item{}
		}
		out[ds.Kind.Plural()] = items
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}
	return nil
}

var columns = []string{"kind", "id", "title", "author", "status", "rating", "notes", "reason", "progress", "created_at", "ended_at"}

func row(kind model.Kind, it model.Item) []string {
	rating := ""
	if it.Rating != nil {
		rating = strconv.Itoa(*it.Rating)
	}
	ended := ""
	if it.EndedAt != nil {
		ended = it.EndedAt.Format(time.RFC3339)
	}
	return []string{
		string(kind),
		strconv.FormatInt(it.ID, 10),
		it.Title,
		it.Author,
		string(it.Status),
		rating,
		it.Notes,
		it.Reason,
		it.Progress,
		it.CreatedAt.Format(time.RFC3339),
		ended,
	}
}

// writeCSV writes one table; the kind column tells games and books apart.
func writeCSV(w io.Writer, e *Export) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, ds := range e.Datasets {
		for _, it := range ds.Items {
			if err := cw.Write(row(ds.Kind, it)); err != nil {
				return fmt.Errorf("writing csv row: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeXLSX writes one sheet per dataset.
func writeXLSX(w io.Writer, e *Export) error {
	f := excelize.NewFile()
	defer f.Close()

	first := true
	for _, ds := range e.Datasets {
		sheet := cases.Title(language.English).String(ds.Kind.Plural())
		if first {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return fmt.Errorf("naming sheet: %w", err)
			}
			first = false
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("creating sheet: %w", err)
		}

		if err := setRow(f, sheet, 1, columns); err != nil {
			return err
		}
		for i, it := range ds.Items {
			if err := setRow(f, sheet, i+2, row(ds.Kind, it)); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing xlsx: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("writing %s row %d: %w", sheet, n, err)
	}
	return nil
}
