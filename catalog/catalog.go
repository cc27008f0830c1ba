// Package catalog holds the registered test suites.
//
// Registration happens through a Builder; Freeze turns it into an immutable
// Catalog that the scheduler and reporter read concurrently without locking.
package catalog

import (
	"github.com/ethereum-optimism/infra/op-tester/types"
)

// Procedure is the body of a test case. A nil return is a pass, a returned
// check.Failure is an assertion failure and any other error is an error.
type Procedure func() error

// TestCase is a single registered test. It is immutable once frozen.
type TestCase struct {
	id    types.FullID
	flags types.Flags
	proc  Procedure
}

// ID returns the test id within its suite.
func (tc *TestCase) ID() string { return tc.id.Test }

// FullID returns the catalog-wide identifier of the test.
func (tc *TestCase) FullID() types.FullID { return tc.id }

// Flags returns the marks of the test.
func (tc *TestCase) Flags() types.Flags { return tc.flags }

// Disabled reports whether the test must be skipped.
func (tc *TestCase) Disabled() bool { return tc.flags.Has(types.FlagDisabled) }

// NoParallel reports whether the test must run on the serial executor.
func (tc *TestCase) NoParallel() bool { return tc.flags.Has(types.FlagNoParallel) }

// Run invokes the test procedure. It does not recover panics; that is the
// caller's job.
func (tc *TestCase) Run() error { return tc.proc() }

// Suite is a named, ordered group of test cases.
type Suite struct {
	name  string
	tests []*TestCase
	index map[string]*TestCase
}

// Name returns the suite name.
func (s *Suite) Name() string { return s.name }

// Tests returns the test cases in registration order. The slice must not be
// modified.
func (s *Suite) Tests() []*TestCase { return s.tests }

// Len returns the number of test cases in the suite.
func (s *Suite) Len() int { return len(s.tests) }

// Test looks up a test case by id.
func (s *Suite) Test(id string) (*TestCase, bool) {
	tc, ok := s.index[id]
	return tc, ok
}

// Catalog is the frozen set of suites.
type Catalog struct {
	suites []*Suite
	index  map[string]*Suite
	size   int
}

// Suites returns the suites in registration order. The slice must not be
// modified.
func (c *Catalog) Suites() []*Suite { return c.suites }

// Suite looks up a suite by name.
func (c *Catalog) Suite(name string) (*Suite, bool) {
	s, ok := c.index[name]
	return s, ok
}

// Len returns the total number of registered test cases.
func (c *Catalog) Len() int { return c.size }

// Lookup finds a test case by its full id.
func (c *Catalog) Lookup(id types.FullID) (*TestCase, bool) {
	s, ok := c.index[id.Suite]
	if !ok {
		return nil, false
	}
	return s.Test(id.Test)
}

// Walk calls fn for every test case in registration order.
func (c *Catalog) Walk(fn func(tc *TestCase)) {
	for _, s := range c.suites {
		for _, tc := range s.tests {
			fn(tc)
		}
	}
}
