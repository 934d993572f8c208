package rowparse

import (
	"cmp"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// DefaultMaxResolveDepth bounds how deeply factories may nest parser
// construction before a ResolutionError is reported.
const DefaultMaxResolveDepth = 32

// ParserRegistry maps raw type identities to the ParserFactory that builds
// parsers for them.
//
// The registry has a two phase lifecycle. During setup, parsers are
// registered; Register is serialized internally and publishes a new immutable
// snapshot of the mapping. Once parsing begins the registry is only read:
// lookups load the current snapshot atomically and never take a lock, so any
// number of parallel pipelines may share one registry. Freeze ends the setup
// phase explicitly.
//
// Lookups are exact matches on the raw type identity. Type arguments do not
// take part in the lookup; they are passed to the factory through the
// TypeDescriptor so it can specialize itself.
//
// Built-in types (numbers, strings, booleans, time, UUID and JSON values)
// are always available. Registering one of them shadows the default. Any
// other type needs a registration; types implementing
// encoding.TextUnmarshaler only get a default parser when the registry was
// created with TextUnmarshalers set.
type ParserRegistry struct {
	m                atomic.Pointer[map[TypeID]registryEntry]
	writeMu          sync.Mutex
	frozen           atomic.Bool
	strict           bool
	textUnmarshalers bool
	maxDepth         int
	logger           *zap.Logger
}

type registryEntry struct {
	typ     reflect.Type
	factory ParserFactory
}

// RegistryEntry is one registration in an Entries snapshot.
type RegistryEntry struct {
	ID      TypeID
	Type    reflect.Type // nil for built-ins
	Builtin bool
}

type ParserRegistryOpts struct {
	// Factories are registered in addition to the built-ins.
	Factories map[reflect.Type]ParserFactory
	// Strict rejects re-registration of a type with ErrParserAlreadyRegistered
	// instead of replacing the previous factory.
	Strict bool
	// TextUnmarshalers gives unregistered types implementing
	// encoding.TextUnmarshaler a parser calling UnmarshalText. Without it
	// such types fail resolution with ErrNoParserRegistered.
	TextUnmarshalers bool
	// MaxResolveDepth defaults to DefaultMaxResolveDepth.
	MaxResolveDepth int
	Logger          *zap.Logger
}

func NewParserRegistry(opts ParserRegistryOpts) (*ParserRegistry, error) {
	reg := &ParserRegistry{
		strict:           opts.Strict,
		textUnmarshalers: opts.TextUnmarshalers,
		maxDepth:         cmp.Or(opts.MaxResolveDepth, DefaultMaxResolveDepth),
		logger:           opts.Logger,
	}
	if reg.logger == nil {
		reg.logger = zap.NewNop()
	}
	empty := make(map[TypeID]registryEntry)
	reg.m.Store(&empty)

	for t, factory := range opts.Factories {
		if err := reg.Register(t, factory); err != nil {
			return nil, err
		}
	}

	return reg, nil
}

// Register associates the raw type of t with factory. Re-registering a type
// replaces the previous factory unless the registry is strict.
func (reg *ParserRegistry) Register(t reflect.Type, factory ParserFactory) error {
	if t == nil {
		return ErrNilType
	}
	if factory == nil {
		return fmt.Errorf("%w: %s", ErrNilFactory, t)
	}

	reg.writeMu.Lock()
	defer reg.writeMu.Unlock()

	if reg.frozen.Load() {
		return fmt.Errorf("%w: cannot register %s", ErrRegistryFrozen, t)
	}

	id := TypeIDOf(t)
	current := *reg.m.Load()
	if prev, exists := current[id]; exists {
		if reg.strict {
			return fmt.Errorf("%w: %s", ErrParserAlreadyRegistered, id)
		}
		reg.logger.Warn("replacing registered parser",
			zap.String("type", string(id)),
			zap.Stringer("previous", prev.typ))
	}

	next := maps.Clone(current)
	next[id] = registryEntry{typ: t, factory: factory}
	reg.m.Store(&next)

	reg.logger.Debug("registered parser",
		zap.String("type", string(id)),
		zap.Bool("shadows_builtin", IsBuiltin(t)))
	return nil
}

// Freeze ends the setup phase. Subsequent Register calls fail with
// ErrRegistryFrozen.
func (reg *ParserRegistry) Freeze() {
	reg.writeMu.Lock()
	defer reg.writeMu.Unlock()
	reg.frozen.Store(true)
}

// Frozen reports whether Freeze has been called.
func (reg *ParserRegistry) Frozen() bool {
	return reg.frozen.Load()
}

// Lookup returns the factory registered for the raw type of t, falling back
// to the built-in default and, when enabled, to UnmarshalText. It returns ErrNoParserRegistered when neither
// exists.
func (reg *ParserRegistry) Lookup(t reflect.Type) (ParserFactory, error) {
	if t == nil {
		return nil, ErrNilType
	}
	factory, ok := reg.lookup(t)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoParserRegistered, t)
	}
	return factory, nil
}

func (reg *ParserRegistry) lookup(t reflect.Type) (ParserFactory, bool) {
	if entry, ok := (*reg.m.Load())[TypeIDOf(t)]; ok {
		return entry.factory, true
	}
	if factory, ok := builtinFactory(t); ok {
		return factory, true
	}
	if reg.textUnmarshalers {
		return textUnmarshalerFactory(t)
	}
	return nil, false
}

// ParserFor constructs a parser for a resolved descriptor. Factories that
// need parsers for their type arguments receive a provider that builds them
// through this registry with a bounded nesting depth.
func (reg *ParserRegistry) ParserFor(desc *TypeDescriptor) (FieldParser, error) {
	return nestedProvider{reg: reg}.ParserFor(desc)
}

// Entries returns a snapshot of all explicit and built-in registrations
// sorted by type identity. An explicit registration hides the built-in of the
// same identity.
func (reg *ParserRegistry) Entries() []RegistryEntry {
	current := *reg.m.Load()
	entries := make([]RegistryEntry, 0, len(current)+len(_builtinFactories))
	for id, entry := range current {
		entries = append(entries, RegistryEntry{ID: id, Type: entry.typ})
	}
	for id := range _builtinFactories {
		if _, shadowed := current[id]; !shadowed {
			entries = append(entries, RegistryEntry{ID: id, Builtin: true})
		}
	}
	slices.SortFunc(entries, func(a, b RegistryEntry) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return entries
}

// nestedProvider is the ParserProvider handed to factories.
type nestedProvider struct {
	reg   *ParserRegistry
	depth int
}

func (p nestedProvider) ParserFor(desc *TypeDescriptor) (FieldParser, error) {
	if desc == nil {
		return nil, &ResolutionError{Type: "<nil>", Err: ErrNilType}
	}
	if p.depth >= p.reg.maxDepth {
		return nil, &ResolutionError{Type: desc.String(), Err: ErrResolveDepthExceeded}
	}

	factory, ok := p.reg.lookup(desc.Type())
	if !ok {
		return nil, &ResolutionError{Type: desc.String(), Err: ErrNoParserRegistered}
	}

	parser, err := factory.NewParser(desc, nestedProvider{reg: p.reg, depth: p.depth + 1})
	if err != nil {
		return nil, &ResolutionError{Type: desc.String(), Err: err}
	}
	if parser == nil {
		return nil, &ResolutionError{Type: desc.String(), Err: fmt.Errorf("factory returned a nil parser")}
	}
	return parser, nil
}

///////////////////////////////////////////////////////////////////////////////
// Global Singleton and Package Functions
///////////////////////////////////////////////////////////////////////////////

var _gParserRegistry *ParserRegistry = nil

func init() {
	var err error
	_gParserRegistry, err = NewParserRegistry(ParserRegistryOpts{})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize global ParserRegistry: %v", err))
	}
}

// Package-level functions that delegate to the global ParserRegistry instance.
// Registration must happen before any row type is constructed.

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *ParserRegistry {
	return _gParserRegistry
}

func RegisterCustomParser(t reflect.Type, factory ParserFactory) error {
	return _gParserRegistry.Register(t, factory)
}

func RegisterParser[T any](factory ParserFactory) error {
	return _gParserRegistry.Register(reflect.TypeFor[T](), factory)
}

func RegisterTextParser[T any](parse func(string) (T, error)) error {
	return _gParserRegistry.Register(reflect.TypeFor[T](), TextParserFactory(parse))
}

func LookupParser(t reflect.Type) (ParserFactory, error) {
	return _gParserRegistry.Lookup(t)
}

func ParserFor(desc *TypeDescriptor) (FieldParser, error) {
	return _gParserRegistry.ParserFor(desc)
}
