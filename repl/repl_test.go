package repl

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/drpcorg/tabula"
	"github.com/drpcorg/tabula/table"
	"github.com/drpcorg/tabula/tabula_errors"
	"github.com/drpcorg/tabula/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newREPL(t *testing.T, schema table.Schema) (*REPL, *bytes.Buffer) {
	doc, err := table.New(table.Options{
		Options: tabula.Options{Logger: utils.NopLogger()},
		Schema:  schema,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = doc.Close() })
	_, err = doc.Import(table.NewCSVReader(strings.NewReader("id,name,score\n1,alice,9.5\n2,bob,7\n")))
	require.NoError(t, err)
	out := &bytes.Buffer{}
	return &REPL{Table: doc, Out: out}, out
}

func TestCommands(t *testing.T) {
	repl, out := newREPL(t, table.Nested)

	require.NoError(t, repl.Execute("rows"))
	assert.Equal(t, "id\tname\tscore\n1\talice\t9.5\n2\tbob\t7\n", out.String())

	out.Reset()
	require.NoError(t, repl.Execute("cell 1 2"))
	assert.Equal(t, "table.Int\t7\n", out.String())

	require.NoError(t, repl.Execute("set 1 1 robert the second"))
	out.Reset()
	require.NoError(t, repl.Execute("rows 1"))
	assert.Equal(t, "id\tname\tscore\n1\talice\t9.5\n", out.String())
	out.Reset()
	require.NoError(t, repl.Execute("cell 1 1"))
	assert.Equal(t, "table.Text\trobert the second\n", out.String())

	require.NoError(t, repl.Execute("addcol note"))
	require.NoError(t, repl.Execute("delrow 0"))
	require.NoError(t, repl.Execute("delcol 0"))
	out.Reset()
	require.NoError(t, repl.Execute("rows"))
	assert.Equal(t, "name\tscore\tnote\nrobert the second\t7\t-\n", out.String())

	out.Reset()
	require.NoError(t, repl.Execute("stats"))
	assert.Contains(t, out.String(), "schema\tnested\n")
	assert.Contains(t, out.String(), "rows\t1\ncolumns\t3\n")
}

func TestCommandErrors(t *testing.T) {
	repl, _ := newREPL(t, table.Flat)
	assert.ErrorIs(t, repl.Execute("frobnicate"), ErrUnknownCommand)
	assert.Equal(t, HelpCell, repl.Execute("cell 1"))
	assert.Equal(t, HelpSet, repl.Execute("set 1 x 5"))
	assert.Equal(t, HelpEncode, repl.Execute("encode deep"))
	assert.ErrorIs(t, repl.Execute("row 7"), tabula_errors.ErrOutOfBounds)
	assert.ErrorIs(t, repl.Execute("cell 0 9"), tabula_errors.ErrOutOfBounds)
	assert.ErrorIs(t, repl.Execute("delcol 3"), tabula_errors.ErrOutOfBounds)
	assert.Equal(t, HelpDump, repl.Execute("dump nope"))
	assert.ErrorIs(t, repl.Execute("dump 5-1"), tabula_errors.ErrUnknownContainer)
	assert.Equal(t, io.EOF, repl.Execute("exit"))
	assert.Nil(t, repl.Execute("   "))
}

func TestSaveMerge(t *testing.T) {
	a, out := newREPL(t, table.Flat)
	file := filepath.Join(t.TempDir(), "a.tabula")
	require.NoError(t, a.Execute("save "+file+" full"))
	assert.Contains(t, out.String(), "saved to")

	out.Reset()
	require.NoError(t, a.Execute("encode shallow"))
	assert.Contains(t, out.String(), "shallow: ")

	b, bout := newREPL(t, table.Flat)
	require.NoError(t, b.Execute("merge "+file))
	assert.Contains(t, bout.String(), "merged, 4 rows x 6 columns")
	assert.Error(t, b.Execute("merge "+file+".missing"))
}

func TestDump(t *testing.T) {
	repl, out := newREPL(t, table.Flat)
	cols := repl.Table.Doc().List(table.ColsName).ID()
	require.NoError(t, repl.Execute("dump "+cols.String()))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, cols.String()+"\tL", lines[0])
	assert.Contains(t, lines[1], "name:\"id\"")

	out.Reset()
	require.NoError(t, repl.Execute("dump"))
	assert.Contains(t, out.String(), cols.String()+"\tL\n")
	assert.Contains(t, out.String(), "vv\t")
}
