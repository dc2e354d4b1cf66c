package archive

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/zulandar/switchboard/internal/models"
)

// timeLayout is how timestamps appear in exports.
const timeLayout = "2006-01-02 15:04:05"

// empty is written in place of a missing value.
const empty = "-"

// Table is an export ready to be rendered: a file stem, a fixed header and
// rows in header order.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Filename returns the export file name stamped with t.
func (tb Table) Filename(t time.Time) string {
	return fmt.Sprintf("%s_%s.csv", tb.Name, t.Format("20060102_150405"))
}

// CompletedTable renders completed items.
func CompletedTable(items []models.WorkItem) Table {
	tb := Table{
		Name:   "used_numbers",
		Header: []string{"Number", "Name", "Address", "Email", "Used By", "User ID", "Status", "Summary", "Used At", "Summary At"},
	}
	for _, it := range items {
		tb.Rows = append(tb.Rows, []string{
			it.Number, it.Name, it.Address, it.Email,
			it.ClaimedByName, it.ClaimedBy, it.Status, it.Summary,
			stamp(it.ClaimedAt), stamp(it.SummaryAt),
		})
	}
	return tb
}

// UnclaimedTable renders items still waiting in the queue.
func UnclaimedTable(items []models.WorkItem) Table {
	tb := Table{
		Name:   "unused_numbers",
		Header: []string{"Number", "Name", "Address", "Email"},
	}
	for _, it := range items {
		tb.Rows = append(tb.Rows, []string{it.Number, it.Name, it.Address, it.Email})
	}
	return tb
}

// AllTable renders every item regardless of state.
func AllTable(items []models.WorkItem) Table {
	tb := Table{
		Name:   "all_numbers",
		Header: []string{"Number", "Name", "Address", "Email", "Used", "Username", "User ID", "Status", "Summary", "Used At", "Added At"},
	}
	for _, it := range items {
		used := "No"
		if it.Claimed {
			used = "Yes"
		}
		added := it.CreatedAt
		tb.Rows = append(tb.Rows, []string{
			it.Number, it.Name, it.Address, it.Email,
			used, it.ClaimedByName, it.ClaimedBy, it.Status, it.Summary,
			stamp(it.ClaimedAt), stamp(&added),
		})
	}
	return tb
}

// NoAnswerTable renders the no-answer log.
func NoAnswerTable(recs []models.NoAnswerRecord) Table {
	tb := Table{
		Name:   "no_answer",
		Header: []string{"User ID", "Username", "Agent Name", "Reference", "Number", "Name", "Address", "Email", "Date"},
	}
	for _, r := range recs {
		at := r.CreatedAt
		tb.Rows = append(tb.Rows, []string{
			r.OperatorID, r.Username, r.AgentName, r.Reference,
			r.Number, r.Name, r.Address, r.Email, stamp(&at),
		})
	}
	return tb
}

// WriteCSV writes the header and rows, substituting "-" for empty values.
func WriteCSV(w io.Writer, tb Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tb.Header); err != nil {
		return fmt.Errorf("archive: write header: %w", err)
	}
	for i, row := range tb.Rows {
		out := make([]string, len(row))
		for j, v := range row {
			if v == "" {
				v = empty
			}
			out[j] = v
		}
		if err := cw.Write(out); err != nil {
			return fmt.Errorf("archive: write row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("archive: flush: %w", err)
	}
	return nil
}

func stamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}
