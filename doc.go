// Package rowparse provides typed, extensible parsing of delimited text
// records into rows of values.
//
// A row type is an ordered list of column types. Each column is decoded by a
// FieldParser obtained from a ParserRegistry, which maps the raw identity of
// a type to the ParserFactory that builds parsers for it. Built-in parsers
// cover common column types, such as:
//   - Numbers (all sized ints, uints and floats), strings, booleans and []byte
//   - time.Time, time.Duration and uuid.UUID
//   - Raw JSON values (jsontext.Value), map[string]any and []any
//
// A custom type without a registration fails resolution. Registries created
// with ParserRegistryOpts.TextUnmarshalers also accept unregistered types
// implementing encoding.TextUnmarshaler.
//
// Custom types are supported by registering a factory for them, usually
// during program setup:
//
//	rowparse.RegisterParser[Point](rowparse.StructParserFactory(rowparse.StructParserOpts{}))
//
// Generic custom types register once for their raw type. The factory receives
// a TypeDescriptor carrying the resolved type arguments of the column and a
// ParserProvider it can use to build the parsers of those arguments, so a
// generic container delegates its members to whatever parser is registered
// for the instantiated argument type. Type arguments are recovered either from
// the type itself (see Generic) or from explicit hints:
//
//	desc := rowparse.MustDescriptorOf[Box[Item]](rowparse.MustDescriptorOf[Item]())
//
// Records are decoded by a RowBuilder, which resolves every column parser
// once when it is constructed. Configuration errors therefore surface as a
// *ResolutionError before any record is read, while malformed records are
// reported per record as a *FieldParseError or *RecordShapeError. Structured
// column values (brace-delimited payloads) are parsed in place and may contain
// the field delimiter without quoting.
//
// The Reader front-end adds line handling on top of the RowBuilder:
//   - Header skipping, comment lines and blank lines
//   - Optional quoting with a configurable quote byte
//   - Field selection with an include mask
//   - Logging and skipping of invalid lines instead of aborting
//   - Parallel parsing of independent partitions (see DataSource.ReadPartitions)
//
// The registry follows a two phase lifecycle: register during setup, then
// read concurrently from any number of pipelines. Registering after parsing
// has begun is not supported; call Freeze to enforce it.
package rowparse
