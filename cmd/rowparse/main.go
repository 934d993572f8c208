// Command rowparse reads delimited text files into typed rows and prints them.
//
//	rowparse -c int -c string -c json --quote "'" data.csv
//
// Every input file is parsed as an independent partition; stdin is read when
// no files are given.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"reflect"
	"slices"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/SimonDaKappa/go-rowparse"
)

// Defaults are applied after parsing; go-flags would otherwise let the
// `default` tag overwrite values read from the config file.
type options struct {
	Delimiter     string   `long:"delimiter" short:"d" description:"Field delimiter, a single byte" default-mask:","`
	Quote         string   `long:"quote" short:"q" description:"Quote byte for fields containing the delimiter; quoting is disabled when empty"`
	Columns       []string `long:"column" short:"c" description:"Column type, once per column (see --list-types)"`
	Include       string   `long:"include" description:"Field mask of 0s and 1s selecting which source fields become columns"`
	SkipFirstLine bool     `long:"skip-first-line" description:"Skip the header line of every input"`
	Comment       string   `long:"comment" description:"Skip lines starting with this prefix"`
	IgnoreInvalid bool     `long:"ignore-invalid" description:"Log and skip records that fail to parse"`
	Workers       int      `long:"workers" short:"w" description:"Inputs parsed in parallel" default-mask:"4"`
	Format        string   `long:"format" short:"f" description:"Output format" choice:"csv" choice:"table" choice:"dump" default-mask:"csv"`
	Config        string   `long:"config" description:"Read options from an ini file"`
	ListTypes     bool     `long:"list-types" description:"List the column type names and exit"`
	Verbose       bool     `long:"verbose" short:"v" description:"Enable debug logging"`

	Args struct {
		Files []string `positional-arg-name:"FILE"`
	} `positional-args:"yes"`
}

const (
	defaultWorkers = 4
	defaultFormat  = "csv"
)

// columnTypes maps the names accepted by --column to their Go types.
var columnTypes = map[string]reflect.Type{
	"string":   rowparse.StringType,
	"bool":     rowparse.BoolType,
	"int":      rowparse.IntType,
	"int64":    rowparse.Int64Type,
	"float64":  rowparse.Float64Type,
	"bytes":    rowparse.BytesType,
	"time":     rowparse.TimeType,
	"duration": rowparse.DurationType,
	"uuid":     rowparse.UUIDType,
	"json":     rowparse.RawJSONType,
	"map":      rowparse.JSONMapType,
	"list":     rowparse.JSONListType,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, afero.NewOsFs(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, fs afero.Fs, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseOptions(fs, args)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(stdout, flagsErr.Message)
			return 0
		}
		fmt.Fprintf(stderr, "rowparse: %v\n", err)
		return 2
	}

	if opts.ListTypes {
		names := slices.Sorted(maps.Keys(columnTypes))
		fmt.Fprintln(stdout, strings.Join(names, "\n"))
		return 0
	}

	logger := newLogger(stderr, opts.Verbose)
	defer func() { _ = logger.Sync() }()

	readerOpts, types, err := opts.readerOpts()
	if err != nil {
		fmt.Fprintf(stderr, "rowparse: %v\n", err)
		return 2
	}
	readerOpts.Logger = logger

	reader, err := rowparse.NewReader(readerOpts)
	if err != nil {
		fmt.Fprintf(stderr, "rowparse: %v\n", err)
		return 2
	}
	ds, err := reader.RowType(types...)
	if err != nil {
		fmt.Fprintf(stderr, "rowparse: %v\n", err)
		return 2
	}

	parts, closeAll, err := openInputs(fs, opts.Args.Files, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "rowparse: %v\n", err)
		return 1
	}
	defer closeAll()

	logger.Debug("reading inputs",
		zap.Int("partitions", len(parts)),
		zap.Stringer("row_type", ds.Spec()))

	results, readErr := ds.ReadPartitions(ctx, parts, cmp.Or(opts.Workers, defaultWorkers))

	if err := writeRows(stdout, cmp.Or(opts.Format, defaultFormat), opts.Columns, lo.Flatten(results)); err != nil {
		fmt.Fprintf(stderr, "rowparse: %v\n", err)
		return 1
	}
	if readErr != nil {
		fmt.Fprintf(stderr, "rowparse: %v\n", readErr)
		return 1
	}
	return 0
}

// parseOptions reads the optional ini config file first and then the command
// line, so flags take precedence over the file.
func parseOptions(fs afero.Fs, args []string) (*options, error) {
	var pre struct {
		Config string `long:"config"`
	}
	preParser := flags.NewParser(&pre, flags.IgnoreUnknown)
	if _, err := preParser.ParseArgs(args); err != nil {
		return nil, err
	}

	var opts options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Usage = "[OPTIONS] -c TYPE... [FILE...]"

	if pre.Config != "" {
		f, err := fs.Open(pre.Config)
		if err != nil {
			return nil, fmt.Errorf("cannot open config file: %w", err)
		}
		defer f.Close()
		if err := flags.NewIniParser(parser).Parse(f); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", pre.Config, err)
		}
	}

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	return &opts, nil
}

func (o *options) readerOpts() (rowparse.ReaderOpts, []reflect.Type, error) {
	var ro rowparse.ReaderOpts

	delim, err := singleByte("delimiter", cmp.Or(o.Delimiter, ","))
	if err != nil {
		return ro, nil, err
	}
	var quote byte
	if o.Quote != "" {
		if quote, err = singleByte("quote", o.Quote); err != nil {
			return ro, nil, err
		}
	}

	if len(o.Columns) == 0 {
		return ro, nil, errors.New("at least one --column is required")
	}
	types := make([]reflect.Type, len(o.Columns))
	for i, name := range o.Columns {
		t, ok := columnTypes[strings.ToLower(name)]
		if !ok {
			return ro, nil, fmt.Errorf("unknown column type %q", name)
		}
		types[i] = t
	}

	var include []bool
	if o.Include != "" {
		if strings.Trim(o.Include, "01") != "" {
			return ro, nil, fmt.Errorf("invalid --include mask %q, use 0 and 1 only", o.Include)
		}
		include = lo.Map([]byte(o.Include), func(c byte, _ int) bool {
			return c == '1'
		})
	}

	ro = rowparse.ReaderOpts{
		FieldDelimiter:     delim,
		Quote:              quote,
		SkipFirstLine:      o.SkipFirstLine,
		CommentPrefix:      o.Comment,
		IgnoreInvalidLines: o.IgnoreInvalid,
		IncludeFields:      include,
	}
	return ro, types, nil
}

func singleByte(name, value string) (byte, error) {
	if len(value) != 1 {
		return 0, fmt.Errorf("--%s must be a single byte, got %q", name, value)
	}
	return value[0], nil
}

func newLogger(w io.Writer, verbose bool) *zap.Logger {
	config := zap.NewDevelopmentConfig()
	config.DisableCaller = true
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(config.EncoderConfig),
		zapcore.AddSync(w),
		level,
	)
	return zap.New(core)
}

// openInputs opens every file as one partition, or returns stdin alone.
func openInputs(fs afero.Fs, files []string, stdin io.Reader) ([]io.Reader, func(), error) {
	if len(files) == 0 {
		return []io.Reader{stdin}, func() {}, nil
	}

	opened := make([]afero.File, 0, len(files))
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	for _, name := range files {
		f, err := fs.Open(name)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("cannot open input: %w", err)
		}
		opened = append(opened, f)
	}
	return lo.Map(opened, func(f afero.File, _ int) io.Reader { return f }), closeAll, nil
}
