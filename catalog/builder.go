package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/ethereum-optimism/infra/op-tester/types"
	"github.com/ethereum/go-ethereum/log"
)

var (
	ErrDuplicateTest = errors.New("duplicate test id")
	ErrEmptyID       = errors.New("empty id")
	ErrNilProcedure  = errors.New("nil test procedure")
	ErrFrozen        = errors.New("catalog is frozen")
	ErrUnknownTest   = errors.New("unknown test")
	ErrUnknownSuite  = errors.New("unknown suite")
)

// ConfigError is a registration-time error. It is always raised before any
// test executes.
type ConfigError struct {
	ID  types.FullID
	Err error
}

func (e *ConfigError) Error() string {
	switch {
	case e.ID == (types.FullID{}):
		return fmt.Sprintf("configuration error: %v", e.Err)
	case e.ID.Test == "":
		return fmt.Sprintf("configuration error: suite %s: %v", e.ID.Suite, e.Err)
	}
	return fmt.Sprintf("configuration error: %s: %v", e.ID, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError checks if the error is or wraps a ConfigError
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return err != nil && errors.As(err, &cfgErr)
}

// Builder collects suites during the registration phase.
type Builder struct {
	log    log.Logger
	mu     sync.Mutex
	suites []*SuiteBuilder
	index  map[string]*SuiteBuilder
	err    error
	frozen bool
}

// NewBuilder creates an empty registration builder.
func NewBuilder(logger log.Logger) *Builder {
	if logger == nil {
		logger = log.New()
	}
	return &Builder{
		log:   logger.New("component", "catalog"),
		index: make(map[string]*SuiteBuilder),
	}
}

// Suite returns the builder for the named suite, creating it on first use.
// Suites keep the order in which they were first requested.
func (b *Builder) Suite(name string) *SuiteBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sb, ok := b.index[name]; ok {
		return sb
	}
	sb := &SuiteBuilder{
		b:     b,
		name:  name,
		index: make(map[string]*TestCase),
	}
	if name == "" {
		b.failLocked(&ConfigError{Err: fmt.Errorf("suite name: %w", ErrEmptyID)})
	}
	b.suites = append(b.suites, sb)
	b.index[name] = sb
	return sb
}

// Err returns the first registration error, if any.
func (b *Builder) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// failLocked records err unless an earlier error is already recorded.
func (b *Builder) failLocked(err error) {
	b.log.Error("Registration failed", "err", err)
	if b.err == nil {
		b.err = err
	}
}

// Freeze validates the registration and returns the immutable catalog.
// The builder rejects every later mutation.
func (b *Builder) Freeze() (*Catalog, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozen {
		return nil, &ConfigError{Err: ErrFrozen}
	}
	if b.err != nil {
		return nil, b.err
	}
	b.frozen = true

	cat := &Catalog{
		suites: make([]*Suite, 0, len(b.suites)),
		index:  make(map[string]*Suite, len(b.suites)),
	}
	for _, sb := range b.suites {
		s := &Suite{
			name:  sb.name,
			tests: sb.tests,
			index: sb.index,
		}
		cat.suites = append(cat.suites, s)
		cat.index[s.name] = s
		cat.size += len(s.tests)
	}

	b.log.Debug("Catalog frozen", "suites", len(cat.suites), "tests", cat.size)
	return cat, nil
}

// SuiteBuilder registers test cases into one suite.
type SuiteBuilder struct {
	b     *Builder
	name  string
	tests []*TestCase
	index map[string]*TestCase
}

// Name returns the suite name.
func (sb *SuiteBuilder) Name() string { return sb.name }

// Add registers a test case without marks.
func (sb *SuiteBuilder) Add(id string, proc Procedure) *SuiteBuilder {
	return sb.AddWithFlags(id, 0, proc)
}

// AddDisabled registers a test case marked as disabled.
func (sb *SuiteBuilder) AddDisabled(id string, proc Procedure) *SuiteBuilder {
	return sb.AddWithFlags(id, types.NewFlags(types.FlagDisabled), proc)
}

// AddWithFlags registers a test case with the given marks. Errors are
// recorded on the builder and returned by Freeze.
func (sb *SuiteBuilder) AddWithFlags(id string, flags types.Flags, proc Procedure) *SuiteBuilder {
	b := sb.b
	b.mu.Lock()
	defer b.mu.Unlock()

	fullID := types.NewFullID(sb.name, id)
	switch {
	case b.frozen:
		b.failLocked(&ConfigError{ID: fullID, Err: ErrFrozen})
	case id == "":
		b.failLocked(&ConfigError{ID: fullID, Err: fmt.Errorf("test id: %w", ErrEmptyID)})
	case proc == nil:
		b.failLocked(&ConfigError{ID: fullID, Err: ErrNilProcedure})
	default:
		if _, exists := sb.index[id]; exists {
			b.failLocked(&ConfigError{ID: fullID, Err: ErrDuplicateTest})
			break
		}
		tc := &TestCase{id: fullID, flags: flags, proc: proc}
		sb.tests = append(sb.tests, tc)
		sb.index[id] = tc
	}
	return sb
}

// mark adds flags to an already registered test case.
func (sb *SuiteBuilder) mark(id string, flag types.Flag) error {
	b := sb.b
	b.mu.Lock()
	defer b.mu.Unlock()

	fullID := types.NewFullID(sb.name, id)
	if b.frozen {
		return &ConfigError{ID: fullID, Err: ErrFrozen}
	}
	tc, ok := sb.index[id]
	if !ok {
		return &ConfigError{ID: fullID, Err: ErrUnknownTest}
	}
	tc.flags = tc.flags.With(flag)
	return nil
}

// IndexedID composes the id of the index-th instance of a parametrized test.
func IndexedID(id string, index int) string {
	return id + "[" + strconv.Itoa(index) + "]"
}

// AddParams registers one test case per parameter. Each case is named
// id[index] and calls proc with its own parameter.
func AddParams[P any](sb *SuiteBuilder, id string, flags types.Flags, params []P, proc func(P) error) *SuiteBuilder {
	if proc == nil {
		return sb.AddWithFlags(id, flags, nil)
	}
	for i, p := range params {
		p := p
		sb.AddWithFlags(IndexedID(id, i), flags, func() error {
			return proc(p)
		})
	}
	return sb
}

// AddFixture registers a test case that builds a fresh fixture for every
// invocation. A fixture constructor error is reported as an error outcome.
func AddFixture[F any](sb *SuiteBuilder, id string, flags types.Flags, newFixture func() (F, error), proc func(F) error) *SuiteBuilder {
	if newFixture == nil || proc == nil {
		return sb.AddWithFlags(id, flags, nil)
	}
	return sb.AddWithFlags(id, flags, func() error {
		f, err := newFixture()
		if err != nil {
			return fmt.Errorf("fixture setup: %w", err)
		}
		return proc(f)
	})
}

// AddParamsFixture combines AddParams and AddFixture: every parameter gets
// its own test case and every invocation its own fixture built from the
// parameter.
func AddParamsFixture[P, F any](sb *SuiteBuilder, id string, flags types.Flags, params []P, newFixture func(P) (F, error), proc func(P, F) error) *SuiteBuilder {
	if newFixture == nil || proc == nil {
		return sb.AddWithFlags(id, flags, nil)
	}
	for i, p := range params {
		p := p
		sb.AddWithFlags(IndexedID(id, i), flags, func() error {
			f, err := newFixture(p)
			if err != nil {
				return fmt.Errorf("fixture setup: %w", err)
			}
			return proc(p, f)
		})
	}
	return sb
}
