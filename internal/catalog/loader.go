package catalog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

var requiredColumns = []string{"sku_id", "name", "category", "specs", "base_cost", "unit"}

// Load reads a SKU catalog file. CSV and XLSX are supported, selected by
// file extension. The first row must be a header naming at least the
// required columns in any order.
func Load(path string) ([]SKU, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loadCSV(path)
	case ".xlsx":
		return loadXLSX(path)
	default:
		return nil, eris.Errorf("catalog: unsupported file type %q", filepath.Ext(path))
	}
}

func loadCSV(path string) ([]SKU, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: open csv")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "catalog: read csv")
	}
	return rowsToSKUs(records)
}

func loadXLSX(path string) ([]SKU, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("catalog: xlsx has no sheets")
	}

	var records [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		records = append(records, cells)
	}
	return rowsToSKUs(records)
}

func rowsToSKUs(records [][]string) ([]SKU, error) {
	if len(records) == 0 {
		return nil, eris.New("catalog: file is empty")
	}

	cols := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range requiredColumns {
		if _, ok := cols[required]; !ok {
			return nil, eris.Errorf("catalog: missing required column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i := cols[name]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	skus := make([]SKU, 0, len(records)-1)
	for n, row := range records[1:] {
		id := field(row, "sku_id")
		if id == "" {
			continue
		}
		cost, err := strconv.ParseFloat(field(row, "base_cost"), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "catalog: row %d: bad base_cost", n+2)
		}
		skus = append(skus, SKU{
			ID:       id,
			Name:     field(row, "name"),
			Category: field(row, "category"),
			Specs:    field(row, "specs"),
			BaseCost: cost,
			Unit:     field(row, "unit"),
		})
	}
	return skus, nil
}
