package repl

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/drpcorg/tabula"
	"github.com/drpcorg/tabula/rdx"
	"github.com/drpcorg/tabula/table"
	"github.com/drpcorg/tabula/tabula_errors"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

var (
	HelpRows   = errors.New("rows [n]")
	HelpRow    = errors.New("row i")
	HelpCell   = errors.New("cell i j")
	HelpSet    = errors.New("set i j value")
	HelpAddCol = errors.New("addcol name")
	HelpDelRow = errors.New("delrow i")
	HelpDelCol = errors.New("delcol j")
	HelpEncode = errors.New("encode [full|shallow]")
	HelpSave   = errors.New("save file [full|shallow]")
	HelpMerge  = errors.New("merge file")
	HelpDump   = errors.New("dump [container id]")
)

const defaultRows = 10

func (repl *REPL) CommandHelp(args []string) error {
	_, _ = fmt.Fprintln(repl.Out, "cols")
	for _, h := range []error{HelpRows, HelpRow, HelpCell, HelpSet, HelpAddCol, HelpDelRow, HelpDelCol, HelpEncode, HelpSave, HelpMerge, HelpDump} {
		_, _ = fmt.Fprintln(repl.Out, h.Error())
	}
	_, _ = fmt.Fprintln(repl.Out, "stats\nexit")
	return nil
}

func intArgs(args []string, n int, help error) ([]int, error) {
	if len(args) < n {
		return nil, help
	}
	ret := make([]int, n)
	for i := range ret {
		v, err := strconv.Atoi(args[i])
		if err != nil {
			return nil, help
		}
		ret[i] = v
	}
	return ret, nil
}

func (repl *REPL) row(i int) (table.Row, error) {
	row, ok := repl.Table.Rows().Get(i)
	if !ok {
		return row, errors.Wrapf(tabula_errors.ErrOutOfBounds, "row %d of %d", i, repl.Table.RowCount())
	}
	return row, nil
}

func (repl *REPL) column(j int) (table.Column, error) {
	cols := repl.Table.Columns()
	if j < 0 || j >= len(cols) {
		return table.Column{}, errors.Wrapf(tabula_errors.ErrOutOfBounds, "column %d of %d", j, len(cols))
	}
	return cols[j], nil
}

func (repl *REPL) printRow(row table.Row, cols []table.Column) {
	fields := make([]string, 0, len(cols))
	for _, col := range cols {
		if c, ok := repl.Table.Cell(row, col); ok {
			fields = append(fields, c.String())
		} else {
			fields = append(fields, "-")
		}
	}
	_, _ = fmt.Fprintln(repl.Out, strings.Join(fields, "\t"))
}

func (repl *REPL) CommandCols(args []string) error {
	for j, col := range repl.Table.Columns() {
		_, _ = fmt.Fprintf(repl.Out, "%d\t%x\t%s\t%d\n", j, uint32(col.ID), col.Name, col.Width)
	}
	return nil
}

func (repl *REPL) CommandRows(args []string) error {
	n := defaultRows
	if len(args) > 0 {
		v, err := intArgs(args, 1, HelpRows)
		if err != nil {
			return err
		}
		n = v[0]
	}
	cols := repl.Table.Columns()
	names := make([]string, 0, len(cols))
	for _, col := range cols {
		names = append(names, col.Name)
	}
	_, _ = fmt.Fprintln(repl.Out, strings.Join(names, "\t"))
	it := repl.Table.Rows().Iterate()
	for i := 0; i < n && it.Next(); i++ {
		repl.printRow(it.Row(), cols)
	}
	return nil
}

func (repl *REPL) CommandRow(args []string) error {
	v, err := intArgs(args, 1, HelpRow)
	if err != nil {
		return err
	}
	row, err := repl.row(v[0])
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(repl.Out, "id %x height %d\n", uint32(row.ID), row.Height)
	repl.printRow(row, repl.Table.Columns())
	return nil
}

func (repl *REPL) CommandCell(args []string) error {
	v, err := intArgs(args, 2, HelpCell)
	if err != nil {
		return err
	}
	row, err := repl.row(v[0])
	if err != nil {
		return err
	}
	col, err := repl.column(v[1])
	if err != nil {
		return err
	}
	c, ok := repl.Table.Cell(row, col)
	if !ok {
		_, _ = fmt.Fprintln(repl.Out, "-")
		return nil
	}
	_, _ = fmt.Fprintf(repl.Out, "%T\t%s\n", c, c.String())
	return nil
}

func (repl *REPL) CommandSet(args []string) error {
	v, err := intArgs(args, 2, HelpSet)
	if err != nil || len(args) < 3 {
		return HelpSet
	}
	row, err := repl.row(v[0])
	if err != nil {
		return err
	}
	col, err := repl.column(v[1])
	if err != nil {
		return err
	}
	return repl.Table.SetCell(row, col, table.ParseCell(strings.Join(args[2:], " ")))
}

func (repl *REPL) CommandAddCol(args []string) error {
	if len(args) == 0 {
		return HelpAddCol
	}
	col, err := repl.Table.AddColumn(strings.Join(args, " "))
	if err == nil {
		_, _ = fmt.Fprintf(repl.Out, "column %x added\n", uint32(col.ID))
	}
	return err
}

func (repl *REPL) CommandDelRow(args []string) error {
	v, err := intArgs(args, 1, HelpDelRow)
	if err != nil {
		return err
	}
	return repl.Table.DeleteRow(v[0])
}

func (repl *REPL) CommandDelCol(args []string) error {
	v, err := intArgs(args, 1, HelpDelCol)
	if err != nil {
		return err
	}
	return repl.Table.DeleteColumn(v[0])
}

func parseMode(args []string, help error) (tabula.ExportMode, error) {
	if len(args) == 0 {
		return tabula.ExportFull, nil
	}
	switch args[0] {
	case "full":
		return tabula.ExportFull, nil
	case "shallow":
		return tabula.ExportShallow, nil
	}
	return 0, help
}

func (repl *REPL) encode(mode tabula.ExportMode) ([]byte, error) {
	if mode == tabula.ExportShallow {
		return repl.Table.EncodeShallow()
	}
	return repl.Table.Encode()
}

// CompressedLen is the zstd-compressed size of data.
func CompressedLen(data []byte) (int, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return 0, err
	}
	defer enc.Close()
	return len(enc.EncodeAll(data, nil)), nil
}

func (repl *REPL) CommandEncode(args []string) error {
	mode, err := parseMode(args, HelpEncode)
	if err != nil {
		return err
	}
	data, err := repl.encode(mode)
	if err != nil {
		return err
	}
	zlen, err := CompressedLen(data)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(repl.Out, "%s: %d bytes, %d compressed\n", mode, len(data), zlen)
	return nil
}

func (repl *REPL) CommandSave(args []string) error {
	if len(args) == 0 {
		return HelpSave
	}
	mode, err := parseMode(args[1:], HelpSave)
	if err != nil {
		return err
	}
	data, err := repl.encode(mode)
	if err != nil {
		return err
	}
	if err = os.WriteFile(args[0], data, 0o644); err == nil {
		_, _ = fmt.Fprintf(repl.Out, "%d bytes saved to %s\n", len(data), args[0])
	}
	return err
}

func (repl *REPL) CommandMerge(args []string) error {
	if len(args) != 1 {
		return HelpMerge
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	if err = repl.Table.Merge(data); err == nil {
		_, _ = fmt.Fprintf(repl.Out, "merged, %d rows x %d columns\n", repl.Table.RowCount(), repl.Table.ColCount())
	}
	return err
}

func (repl *REPL) CommandStats(args []string) error {
	doc := repl.Table.Doc()
	_, _ = fmt.Fprintf(repl.Out, "schema\t%s\nreplica\t%x %s\nrows\t%d\ncolumns\t%d\nops\t%d\nclock\t%d\nvv\t%s\n",
		repl.Table.Schema(), doc.Source(), doc.Name(),
		repl.Table.RowCount(), repl.Table.ColCount(),
		doc.OpCount(), doc.Clock(), doc.VersionVector().String())
	return nil
}

// CommandDump prints the whole store, or one container given its id
// as the dump itself prints it.
func (repl *REPL) CommandDump(args []string) error {
	doc := repl.Table.Doc()
	if len(args) == 0 {
		return doc.DumpAll(repl.Out)
	}
	cid := rdx.IDFromString(args[0])
	if cid == rdx.BadId {
		return HelpDump
	}
	return doc.DumpContainer(repl.Out, cid)
}
