package table

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/pkg/errors"
)

// RecordReader yields one record of raw fields per call and io.EOF
// at the end. *csv.Reader fits.
type RecordReader interface {
	Read() ([]string, error)
}

// NewCSVReader reads comma separated input leaving the record shape
// check to Import.
func NewCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	return cr
}

func readError(n int, err error) *ImportError {
	kind := MalformedRecord
	if errors.Is(err, csv.ErrFieldCount) {
		kind = ShapeMismatch
	}
	return &ImportError{Kind: kind, Record: n, Err: err}
}

// Import appends the header as columns and every following record as
// a row, returning the number of cells written. All records are read
// and checked before the first row is written; the columns stay even
// when a record fails.
func (t *table) Import(r RecordReader) (int, error) {
	start := time.Now()
	header, err := r.Read()
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, readError(0, err)
	}

	taken := make([]int64, 0, t.ColCount()+len(header))
	for _, c := range t.Columns() {
		taken = append(taken, c.ID)
	}
	colGen := NewIDGenerator(taken...)
	colIDs := make([]int64, 0, len(header))
	for _, name := range header {
		col := Column{ID: colGen.Next(), Name: name, Width: DefaultWidth}
		if err = t.cols.Push(col.value()); err != nil {
			return 0, errors.Wrapf(err, "column %q", name)
		}
		colIDs = append(colIDs, col.ID)
	}

	var records [][]Cell
	for n := 1; ; n++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, readError(n, err)
		}
		if len(rec) != len(header) {
			return 0, &ImportError{
				Kind:   ShapeMismatch,
				Record: n,
				Err:    errors.Errorf("%d fields, header has %d", len(rec), len(header)),
			}
		}
		cells := make([]Cell, len(rec))
		for i, field := range rec {
			cells[i] = ParseCell(field)
		}
		records = append(records, cells)
	}

	taken = taken[:0]
	for row := range t.Rows().All() {
		taken = append(taken, row.ID)
	}
	rowGen := NewIDGenerator(taken...)
	count := 0
	for n, cells := range records {
		if err = t.lay.pushRow(rowGen.Next(), colIDs, cells); err != nil {
			return count, errors.Wrapf(err, "row %d", n+1)
		}
		count += len(cells)
	}
	if err = t.doc.Flush(); err != nil {
		return count, err
	}

	elapsed := time.Since(start)
	ImportSeconds.WithLabelValues(t.schema.String()).Observe(elapsed.Seconds())
	CellsImported.WithLabelValues(t.schema.String()).Add(float64(count))
	t.log.Info("table imported",
		"rows", len(records),
		"columns", len(header),
		"cells", count,
		"elapsed", elapsed,
	)
	return count, nil
}
