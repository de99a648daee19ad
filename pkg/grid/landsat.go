package grid

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"strconv"
)

//go:embed landsat_cells.csv
var landsatCellData []byte

// LandsatCell is one WRS-2 path/row acquisition footprint over the Pacific,
// as a lon/lat bounding box. West > East means the cell crosses the
// antimeridian.
type LandsatCell struct {
	Path  int
	Row   int
	West  float64
	South float64
	East  float64
	North float64
}

func (c LandsatCell) CrossesAntimeridian() bool {
	return c.West > c.East
}

func readLandsatTable() []LandsatCell {
	// path,row,west,south,east,north
	r := csv.NewReader(bytes.NewReader(landsatCellData))

	records, err := r.ReadAll()

	if err != nil {
		panic(err)
	}

	cells := make([]LandsatCell, 0, len(records)-1)

	for _, record := range records[1:] {
		path, err := strconv.Atoi(record[0])
		if err != nil {
			panic(err)
		}

		row, err := strconv.Atoi(record[1])
		if err != nil {
			panic(err)
		}

		var f [4]float64
		for i := 0; i < 4; i++ {
			f[i], err = strconv.ParseFloat(record[i+2], 64)
			if err != nil {
				panic(err)
			}
		}

		cells = append(cells, LandsatCell{
			Path: path, Row: row,
			West: f[0], South: f[1], East: f[2], North: f[3],
		})
	}

	return cells
}

var landsatCells = readLandsatTable()

// LandsatCells returns every Pacific WRS cell.
func LandsatCells() []LandsatCell {
	out := make([]LandsatCell, len(landsatCells))
	copy(out, landsatCells)
	return out
}

// FindLandsatCell looks up one cell by path and row.
func FindLandsatCell(path, row int) (LandsatCell, error) {
	for _, c := range landsatCells {
		if c.Path == path && c.Row == row {
			return c, nil
		}
	}

	return LandsatCell{}, fmt.Errorf("no pacific landsat cell at path %d row %d", path, row)
}
