package queue

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ReadCSV reads records from a CSV file with columns
// number,name,address,email. Missing trailing columns are allowed and a
// leading header row (first cell "Number") is skipped. Unlike ParseRecords,
// quoted fields may contain commas.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []Record
	for line := 1; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("queue: read csv: %w", err)
		}
		if line == 1 && len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "number") {
			continue
		}
		var rec Record
		fields := []*string{&rec.Number, &rec.Name, &rec.Address, &rec.Email}
		for i := 0; i < len(row) && i < len(fields); i++ {
			*fields[i] = strings.TrimSpace(row[i])
		}
		if rec.Number == "" {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
