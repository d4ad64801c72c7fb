package rtd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Calibration table shape: one row per degree from 32 to 350 °F
// inclusive.
const (
	TableFirstDegF = 32
	TableLastDegF  = 350
	TableRows      = TableLastDegF - TableFirstDegF + 1
)

// openRowsFromTop: counts above the row this far from the table's top
// read as an open sensor.
const openRowsFromTop = 10

// TempOutOfRange is the sentinel temperature for counts outside the
// table.
const TempOutOfRange = -1

// ErrBadTable is returned for calibration files with the wrong row
// count or endpoints.
var ErrBadTable = errors.New("calibration table rejected")

// Row maps ADC raw counts to a temperature.
type Row struct {
	DegF   int
	Counts int
}

// Table is a per-channel calibration table, ascending in both columns.
type Table struct {
	rows [TableRows]Row
}

// DefaultTable returns the compiled-in probe curve.  The factory curve
// is mildly convex in counts; the cubic below reproduces its
// endpoints (32 °F near 550 counts, 350 °F near 3950) and stays
// strictly monotonic, which is all the classifier relies on.
func DefaultTable() *Table {
	t := &Table{}
	for i := 0; i < TableRows; i++ {
		x := float64(i) / float64(TableRows-1)
		counts := 550 + 3400*x - 250*x*x + 250*x*x*x
		t.rows[i] = Row{DegF: TableFirstDegF + i, Counts: int(counts)}
	}
	return t
}

// LoadTable reads a calibration file: a row count line, then
// "<degF> <counts>" pairs.  Files with the wrong row count or whose
// first and last temperatures are not the expected endpoints are
// rejected.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return nil, fmt.Errorf("%w: %s is empty", ErrBadTable, path)
	}
	var rows int
	if _, err := fmt.Sscanf(strings.TrimSpace(sc.Text()), "%d", &rows); err != nil {
		return nil, fmt.Errorf("%w: %s bad row count line", ErrBadTable, path)
	}
	if rows != TableRows {
		return nil, fmt.Errorf("%w: %s has %d rows, want %d", ErrBadTable, path, rows, TableRows)
	}
	t := &Table{}
	for i := 0; i < TableRows; i++ {
		if !sc.Scan() {
			return nil, fmt.Errorf("%w: %s truncated at row %d", ErrBadTable, path, i)
		}
		var deg, counts int
		if _, err := fmt.Sscanf(strings.TrimSpace(sc.Text()), "%d %d", &deg, &counts); err != nil {
			return nil, fmt.Errorf("%w: %s row %d: %v", ErrBadTable, path, i, err)
		}
		t.rows[i] = Row{DegF: deg, Counts: counts}
	}
	if t.rows[0].DegF != TableFirstDegF || t.rows[TableRows-1].DegF != TableLastDegF {
		return nil, fmt.Errorf("%w: %s endpoints %d..%d", ErrBadTable, path, t.rows[0].DegF, t.rows[TableRows-1].DegF)
	}
	return t, nil
}

// LookupTemp converts raw counts to °F.  Exact endpoints map to the
// endpoint temperatures; interior counts take the temperature of the
// row they fall on; out-of-range counts return TempOutOfRange.
func (t *Table) LookupTemp(rawCounts int) int {
	if rawCounts < t.rows[0].Counts || rawCounts > t.rows[TableRows-1].Counts {
		return TempOutOfRange
	}
	if rawCounts == t.rows[0].Counts {
		return t.rows[0].DegF
	}
	if rawCounts == t.rows[TableRows-1].Counts {
		return t.rows[TableRows-1].DegF
	}
	for i := 0; i < TableRows-1; i++ {
		if rawCounts >= t.rows[i].Counts && rawCounts < t.rows[i+1].Counts {
			return t.rows[i].DegF
		}
	}
	return TempOutOfRange
}

// ShortThreshold: counts below this read as a shorted sensor.
func (t *Table) ShortThreshold() int { return t.rows[0].Counts }

// OpenThreshold: counts above this read as an open sensor.
func (t *Table) OpenThreshold() int { return t.rows[TableRows-openRowsFromTop].Counts }

// CountsForDegF returns the counts column for a temperature, for tests
// and the sniffer tooling.
func (t *Table) CountsForDegF(degF int) (int, bool) {
	if degF < TableFirstDegF || degF > TableLastDegF {
		return 0, false
	}
	return t.rows[degF-TableFirstDegF].Counts, true
}

// MinDegF returns the coldest temperature the table can report.
func (t *Table) MinDegF() int { return t.rows[0].DegF }
