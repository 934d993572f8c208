package rowparse

import (
	"bufio"
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// DefaultMaxLineSize is the longest record a Reader accepts by default.
const DefaultMaxLineSize = 1 << 20

type ReaderOpts struct {
	// FieldDelimiter defaults to DefaultFieldDelimiter.
	FieldDelimiter byte
	// Quote enables quoted fields; NoQuote (the default) disables them.
	Quote byte
	// SkipFirstLine drops a header line.
	SkipFirstLine bool
	// CommentPrefix marks lines to skip. Empty disables comments.
	CommentPrefix string
	// IgnoreInvalidLines logs and skips records that fail to parse instead
	// of aborting the read.
	IgnoreInvalidLines bool
	// IncludeFields selects which source fields become columns.
	IncludeFields []bool
	// MaxLineSize defaults to DefaultMaxLineSize.
	MaxLineSize int
	// Registry defaults to the process-wide registry.
	Registry *ParserRegistry
	Logger   *zap.Logger
}

// Reader reads delimited text into typed rows. It is configured once and
// then turned into a DataSource by RowType or PreciseRowType.
type Reader struct {
	opts     ReaderOpts
	tok      Tokenizer
	registry *ParserRegistry
	logger   *zap.Logger
}

func NewReader(opts ReaderOpts) (*Reader, error) {
	tok, err := NewTokenizer(cmp.Or(opts.FieldDelimiter, DefaultFieldDelimiter), opts.Quote)
	if err != nil {
		return nil, err
	}
	r := &Reader{
		opts:     opts,
		tok:      tok,
		registry: opts.Registry,
		logger:   opts.Logger,
	}
	if r.registry == nil {
		r.registry = DefaultRegistry()
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	r.opts.MaxLineSize = cmp.Or(opts.MaxLineSize, DefaultMaxLineSize)
	return r, nil
}

// RowType types the columns with plain Go types. Generic column types must
// implement Generic; otherwise use PreciseRowType.
func (r *Reader) RowType(types ...reflect.Type) (*DataSource, error) {
	spec, err := RowTypeOf(types...)
	if err != nil {
		return nil, err
	}
	return r.newDataSource(spec)
}

// PreciseRowType types the columns with fully resolved descriptors.
func (r *Reader) PreciseRowType(descs ...*TypeDescriptor) (*DataSource, error) {
	return r.newDataSource(RowTypeSpec(descs))
}

// newDataSource builds one RowBuilder up front so that resolution errors
// surface before any input is read.
func (r *Reader) newDataSource(spec RowTypeSpec) (*DataSource, error) {
	ds := &DataSource{reader: r, spec: spec}
	if _, err := ds.NewRowBuilder(); err != nil {
		return nil, err
	}
	r.logger.Debug("row type resolved", zap.Stringer("row_type", spec))
	return ds, nil
}

///////////////////////////////////////////////////////////////////////////////
// DataSource
///////////////////////////////////////////////////////////////////////////////

// DataSource is a configured Reader bound to a row type.
type DataSource struct {
	reader *Reader
	spec   RowTypeSpec
}

// ReadStats counts what happened to the lines of one input.
type ReadStats struct {
	Lines   int // Lines read, including skipped ones
	Rows    int // Rows emitted
	Skipped int // Header, comment and blank lines
	Invalid int // Records dropped by IgnoreInvalidLines
}

// Spec returns the row type.
func (ds *DataSource) Spec() RowTypeSpec {
	return ds.spec
}

// NewRowBuilder constructs a fresh RowBuilder for one pipeline.
func (ds *DataSource) NewRowBuilder() (*RowBuilder, error) {
	return NewRowBuilder(ds.reader.registry, ds.spec, RowBuilderOpts{
		Tokenizer:     ds.reader.tok,
		IncludeFields: ds.reader.opts.IncludeFields,
	})
}

// Read parses every record of src and emits the rows to sink in input
// order. Lines are separated by '\n'; a trailing '\r' is dropped.
func (ds *DataSource) Read(ctx context.Context, src io.Reader, sink Sink) (ReadStats, error) {
	var stats ReadStats

	builder, err := ds.NewRowBuilder()
	if err != nil {
		return stats, err
	}

	opts := ds.reader.opts
	logger := ds.reader.logger

	scanner := bufio.NewScanner(src)
	// Scanner never grows past the larger of the initial capacity and max.
	scanner.Buffer(make([]byte, 0, min(64*1024, opts.MaxLineSize)), opts.MaxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Lines++
		line := bytes.TrimSuffix(scanner.Bytes(), []byte{'\r'})

		if (stats.Lines == 1 && opts.SkipFirstLine) ||
			len(line) == 0 ||
			(opts.CommentPrefix != "" && bytes.HasPrefix(line, []byte(opts.CommentPrefix))) {
			stats.Skipped++
			continue
		}

		row, err := builder.ParseLine(line)
		if err != nil {
			if opts.IgnoreInvalidLines {
				stats.Invalid++
				logger.Warn("skipping invalid line",
					zap.Int("line", stats.Lines),
					zap.Error(err))
				continue
			}
			return stats, &LineError{Line: stats.Lines, Err: err}
		}

		if err := sink.Emit(row); err != nil {
			return stats, fmt.Errorf("sink rejected row from line %d: %w", stats.Lines, err)
		}
		stats.Rows++
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("error reading input: %w", err)
	}

	logger.Debug("input read",
		zap.Int("lines", stats.Lines),
		zap.Int("rows", stats.Rows),
		zap.Int("skipped", stats.Skipped),
		zap.Int("invalid", stats.Invalid))
	return stats, nil
}

// Collect reads src and returns all rows.
func (ds *DataSource) Collect(ctx context.Context, src io.Reader) ([]Row, error) {
	var sink SliceSink
	if _, err := ds.Read(ctx, src, &sink); err != nil {
		return nil, err
	}
	return sink.Rows(), nil
}

// CollectString is Collect over an in-memory input.
func (ds *DataSource) CollectString(ctx context.Context, input string) ([]Row, error) {
	return ds.Collect(ctx, strings.NewReader(input))
}

// ReadPartitions parses independent inputs in parallel with at most workers
// goroutines (unbounded when workers < 1). Each partition gets its own
// RowBuilder; rows keep their input order within a partition and
// partitions keep the order of parts. A failing partition does not stop
// its siblings; all partition errors are returned joined, alongside the
// rows of the partitions that succeeded.
func (ds *DataSource) ReadPartitions(ctx context.Context, parts []io.Reader, workers int) ([][]Row, error) {
	results := make([][]Row, len(parts))

	p := pool.New()
	if workers > 0 {
		p = p.WithMaxGoroutines(workers)
	}
	cp := p.WithErrors().WithContext(ctx)

	for i, part := range parts {
		cp.Go(func(ctx context.Context) error {
			rows, err := ds.Collect(ctx, part)
			if err != nil {
				ds.reader.logger.Warn("partition failed",
					zap.Int("partition", i),
					zap.Error(err))
				return fmt.Errorf("partition %d: %w", i, err)
			}
			results[i] = rows
			return nil
		})
	}

	return results, cp.Wait()
}
