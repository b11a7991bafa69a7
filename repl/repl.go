// Package repl is an interactive shell over a table document.
package repl

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/drpcorg/tabula/table"
	"github.com/ergochat/readline"
	"github.com/pkg/errors"
)

// REPL per se.
type REPL struct {
	Table table.TableDocument
	Out   io.Writer
	rl    *readline.Instance
}

var ErrUnknownCommand = errors.New("command unknown, try help")

var completer = readline.NewPrefixCompleter(
	readline.PcItem("help"),

	readline.PcItem("cols"),
	readline.PcItem("rows"),
	readline.PcItem("row"),
	readline.PcItem("cell"),

	readline.PcItem("set"),
	readline.PcItem("addcol"),
	readline.PcItem("delrow"),
	readline.PcItem("delcol"),

	readline.PcItem("encode",
		readline.PcItem("full"),
		readline.PcItem("shallow"),
	),
	readline.PcItem("save"),
	readline.PcItem("merge"),

	readline.PcItem("stats"),
	readline.PcItem("dump"),

	readline.PcItem("exit"),
	readline.PcItem("quit"),
)

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func New(t table.TableDocument) *REPL {
	return &REPL{Table: t, Out: os.Stdout}
}

func (repl *REPL) Open() (err error) {
	repl.rl, err = readline.NewEx(&readline.Config{
		Prompt:          "◌ ",
		HistoryFile:     ".tabula_cmd_log.txt",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return
	}
	repl.rl.CaptureExitSignal()
	return
}

func (repl *REPL) Close() error {
	if repl.rl != nil {
		_ = repl.rl.Close()
		repl.rl = nil
	}
	return nil
}

// REPL reads and runs one line. io.EOF means the session is over.
func (repl *REPL) REPL() error {
	line, err := repl.rl.Readline()
	if err == readline.ErrInterrupt && len(line) != 0 {
		return nil
	}
	if err != nil {
		return err
	}
	return repl.Execute(line)
}

// Run loops until exit, printing command errors.
func (repl *REPL) Run() error {
	for {
		err := repl.REPL()
		switch {
		case err == io.EOF || err == readline.ErrInterrupt:
			return nil
		case err != nil:
			_, _ = fmt.Fprintln(repl.Out, err.Error())
		}
	}
}

// Execute runs one command line.
func (repl *REPL) Execute(line string) (err error) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}
	cmd, args := args[0], args[1:]
	switch cmd {
	case "help":
		err = repl.CommandHelp(args)
	// ----- reading -----
	case "cols":
		err = repl.CommandCols(args)
	case "rows", "ls":
		err = repl.CommandRows(args)
	case "row":
		err = repl.CommandRow(args)
	case "cell":
		err = repl.CommandCell(args)
	// ----- editing -----
	case "set":
		err = repl.CommandSet(args)
	case "addcol":
		err = repl.CommandAddCol(args)
	case "delrow":
		err = repl.CommandDelRow(args)
	case "delcol":
		err = repl.CommandDelCol(args)
	// ----- snapshots -----
	case "encode":
		err = repl.CommandEncode(args)
	case "save":
		err = repl.CommandSave(args)
	case "merge":
		err = repl.CommandMerge(args)
	// ----- debug -----
	case "stats":
		err = repl.CommandStats(args)
	case "dump":
		err = repl.CommandDump(args)
	case "exit", "quit":
		err = io.EOF
	default:
		err = errors.Wrap(ErrUnknownCommand, cmd)
	}
	return
}
