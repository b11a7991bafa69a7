package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/drpcorg/tabula"
	"github.com/drpcorg/tabula/repl"
	"github.com/drpcorg/tabula/table"
	"github.com/drpcorg/tabula/utils"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	schemaFlag  = flag.String("schema", "flat", "cell layout: flat or nested")
	srcFlag     = flag.Uint64("src", 0, "replica id, random if 0")
	dirFlag     = flag.String("dir", "", "store directory, in memory if empty")
	replFlag    = flag.Bool("repl", false, "open a shell after the import")
	metricsFlag = flag.String("metrics", "", "serve prometheus metrics on this address")
	rowsFlag    = flag.Int("rows", 10, "rows to print")
	verboseFlag = flag.Bool("v", false, "debug logging")
)

func usage() {
	_, _ = fmt.Fprintln(os.Stderr, "Usage: tabula [flags] file.csv")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 1 {
		usage()
		os.Exit(-2)
	}
	if err := run(flag.Arg(0)); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(-1)
	}
}

func run(path string) error {
	level := slog.LevelInfo
	if *verboseFlag {
		level = slog.LevelDebug
	}
	logger := utils.NewDefaultLogger(level)
	schema, err := table.ParseSchema(*schemaFlag)
	if err != nil {
		return err
	}
	opts := table.Options{
		Options: tabula.Options{Src: *srcFlag, Dir: *dirFlag, Logger: logger},
		Schema:  schema,
	}
	doc, err := table.New(opts)
	if err != nil {
		return err
	}
	defer doc.Close()
	ctx := utils.WithDefaultArgs(context.Background(),
		"file", path, "schema", schema.String(), "replica", doc.Doc().Name())

	if *metricsFlag != "" {
		serveMetrics(ctx, doc.Doc(), *metricsFlag, logger)
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		return err
	}
	start := time.Now()
	cells, err := doc.Import(table.NewCSVReader(file))
	_ = file.Close()
	if err != nil {
		return err
	}
	fmt.Printf("imported %d cells in %v\n", cells, time.Since(start))
	logger.DebugCtx(ctx, "import done", "cells", cells, "bytes", info.Size())

	// decoding uses a scratch in-memory replica
	decodeOpts := table.Options{Options: tabula.Options{Logger: utils.NopLogger()}}
	for _, mode := range []tabula.ExportMode{tabula.ExportFull, tabula.ExportShallow} {
		if err = report(doc, mode, cells, info.Size(), decodeOpts); err != nil {
			logger.ErrorCtx(ctx, "snapshot check failed", "mode", mode.String(), "err", err)
			return err
		}
	}

	names := make([]string, 0, doc.ColCount())
	for _, col := range doc.Columns() {
		names = append(names, col.Name)
	}
	fmt.Println(strings.Join(names, "\t"))
	it := doc.Rows().Iterate()
	for i := 0; i < *rowsFlag && it.Next(); i++ {
		cells := it.Row().ReadCells(doc)
		fields := make([]string, 0, len(cells))
		for _, c := range cells {
			fields = append(fields, fmt.Sprintf("%T(%s)", c, c.String()))
		}
		fmt.Println(strings.Join(fields, "\t"))
	}

	if !*replFlag {
		return nil
	}
	shell := repl.New(doc)
	if err = shell.Open(); err != nil {
		return err
	}
	defer shell.Close()
	return shell.Run()
}

func report(doc table.TableDocument, mode tabula.ExportMode, cells int, original int64, opts table.Options) error {
	start := time.Now()
	var data []byte
	var err error
	if mode == tabula.ExportShallow {
		data, err = doc.EncodeShallow()
	} else {
		data, err = doc.Encode()
	}
	if err != nil {
		return err
	}
	zlen, err := repl.CompressedLen(data)
	if err != nil {
		return err
	}
	encoded := time.Since(start)

	start = time.Now()
	back, err := table.Decode(data, opts)
	if err != nil {
		return err
	}
	decoded := time.Since(start)
	if back.RowCount() != doc.RowCount() || back.ColCount() != doc.ColCount() {
		_ = back.Close()
		return errors.Errorf("%s snapshot decoded to %dx%d, want %dx%d", mode,
			back.RowCount(), back.ColCount(), doc.RowCount(), doc.ColCount())
	}
	_ = back.Close()
	fmt.Printf("[%s] encoded %d cells (%d rows x %d columns) in %v: %d bytes, %d compressed (original file size: %d bytes) decoded in %v\n",
		mode, cells, doc.RowCount(), doc.ColCount(), encoded, len(data), zlen, original, decoded)
	return nil
}

func serveMetrics(ctx context.Context, doc *tabula.Doc, addr string, logger utils.Logger) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(tabula.Metrics()...)
	reg.MustRegister(table.Metrics()...)
	reg.MustRegister(tabula.NewPebbleCollector(doc))
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		logger.InfoCtx(ctx, "serving metrics", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.WarnCtx(ctx, "metrics server stopped", "err", err)
		}
	}()
}
