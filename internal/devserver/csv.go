package devserver

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kingrea/smartstock/internal/api"
)

// Inventory CSV columns: product, stock_left (required), batch_id, expiry_date.
// Sales CSV columns: product, units (required), date (defaults to today).
// Header names are matched case-insensitively; column order is free.

func parseInventoryCSV(r io.Reader) ([]api.InventoryRecord, error) {
	rows, cols, err := readCSV(r, "product", "stock_left")
	if err != nil {
		return nil, err
	}
	records := make([]api.InventoryRecord, 0, len(rows))
	for i, row := range rows {
		line := i + 2
		product := field(row, cols, "product")
		if product == "" {
			return nil, fmt.Errorf("line %d: product is empty", line)
		}
		left, err := strconv.ParseFloat(field(row, cols, "stock_left"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid stock_left %q", line, field(row, cols, "stock_left"))
		}
		rec := api.InventoryRecord{Product: product, StockLeft: left}
		if batch := field(row, cols, "batch_id"); batch != "" {
			rec.BatchID = &batch
		}
		if expiry := field(row, cols, "expiry_date"); expiry != "" {
			if _, err := time.Parse(DateLayout, expiry); err != nil {
				return nil, fmt.Errorf("line %d: invalid expiry_date %q", line, expiry)
			}
			rec.ExpiryDate = &expiry
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseSalesCSV(r io.Reader, today time.Time) ([]Sale, error) {
	rows, cols, err := readCSV(r, "product", "units")
	if err != nil {
		return nil, err
	}
	sales := make([]Sale, 0, len(rows))
	for i, row := range rows {
		line := i + 2
		product := field(row, cols, "product")
		if product == "" {
			return nil, fmt.Errorf("line %d: product is empty", line)
		}
		units, err := strconv.ParseFloat(field(row, cols, "units"), 64)
		if err != nil || units < 0 {
			return nil, fmt.Errorf("line %d: invalid units %q", line, field(row, cols, "units"))
		}
		date := field(row, cols, "date")
		if date == "" {
			date = today.Format(DateLayout)
		} else if _, err := time.Parse(DateLayout, date); err != nil {
			return nil, fmt.Errorf("line %d: invalid date %q", line, date)
		}
		sales = append(sales, Sale{Date: date, Product: product, Units: units})
	}
	return sales, nil
}

// readCSV reads a header row followed by data rows. Blank lines are skipped.
func readCSV(r io.Reader, required ...string) ([][]string, map[string]int, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("file is empty")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("line 1: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, nil, fmt.Errorf("missing column %s", name)
		}
	}
	var rows [][]string
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, cols, nil
}

func field(row []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
