package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tester "github.com/ethereum-optimism/infra/op-tester"
	"github.com/ethereum-optimism/infra/op-tester/catalog"
	"github.com/ethereum-optimism/infra/op-tester/check"
	"github.com/ethereum-optimism/infra/op-tester/types"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	tester.Main("op-tester", fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate), register)
}

// register adds the demonstration suites.
func register(b *catalog.Builder) error {
	registerMath(b.Suite("math"))
	registerStrings(b.Suite("strings"))
	registerFiles(b.Suite("files"))
	registerShared(b.Suite("shared"))
	return b.Err()
}

func registerMath(sb *catalog.SuiteBuilder) {
	sb.Add("add", func() error {
		check.Equal(4, 2+2)
		return nil
	})
	sb.Add("integer_division", func() error {
		check.Equal(3, 7/2)
		check.Equal(1, 7%2, "remainder of 7/2")
		return nil
	})
	sb.Add("divide_by_zero_is_an_error", func() error {
		_, err := divide(1, 0)
		if err == nil {
			return check.Errorf("expected an error dividing by zero")
		}
		return nil
	})
	sb.AddDisabled("float_precision", func() error {
		a, b := 0.1, 0.2
		check.Equal(0.3, a+b)
		return nil
	})

	type pair struct{ a, b, sum int }
	catalog.AddParams(sb, "sum", types.NewFlags(), []pair{
		{1, 1, 2},
		{2, 3, 5},
		{-4, 4, 0},
	}, func(p pair) error {
		check.Equal(p.sum, p.a+p.b, "%d + %d", p.a, p.b)
		return nil
	})
	catalog.AddParams(sb, "ordering", types.NewFlags(), []int{1, 10, 100}, func(n int) error {
		check.Less(n, n+1)
		check.GreaterOrEqual(n*n, n)
		return nil
	})
}

func divide(a, b int) (int, error) {
	if b == 0 {
		return 0, errors.New("division by zero")
	}
	return a / b, nil
}

func registerStrings(sb *catalog.SuiteBuilder) {
	catalog.AddParams(sb, "upper", types.NewFlags(), []string{"go", "tester", "ünïcode"}, func(s string) error {
		check.Equal(strings.ToUpper(s), strings.ToUpper(strings.ToUpper(s)))
		return nil
	})
	sb.Add("fields", func() error {
		check.Equal(3, len(strings.Fields(" a  b c ")))
		return nil
	})
	sb.Add("cut", func() error {
		before, after, found := strings.Cut("suite/test", "/")
		check.That(found, "separator must be found")
		check.Equal("suite", before)
		check.Equal("test", after)
		return nil
	})
}

// tempDir is a per-invocation fixture.
type tempDir struct {
	path string
}

func newTempDir() (*tempDir, error) {
	path, err := os.MkdirTemp("", "op-tester-demo-")
	if err != nil {
		return nil, err
	}
	return &tempDir{path: path}, nil
}

func (d *tempDir) close() {
	_ = os.RemoveAll(d.path)
}

func registerFiles(sb *catalog.SuiteBuilder) {
	catalog.AddFixture(sb, "write_then_read", types.NewFlags(), newTempDir, func(d *tempDir) error {
		defer d.close()
		path := filepath.Join(d.path, "data.txt")
		if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		check.Equal("hello", string(data))
		return nil
	})

	catalog.AddParamsFixture(sb, "create_files", types.NewFlags(), []int{1, 5, 20},
		func(int) (*tempDir, error) { return newTempDir() },
		func(n int, d *tempDir) error {
			defer d.close()
			for i := 0; i < n; i++ {
				if err := os.WriteFile(filepath.Join(d.path, fmt.Sprintf("f%d", i)), nil, 0644); err != nil {
					return err
				}
			}
			entries, err := os.ReadDir(d.path)
			if err != nil {
				return err
			}
			check.Equal(n, len(entries))
			return nil
		})
}

// counter is shared by the no_parallel tests of the shared suite, which
// never overlap.
var counter int

func registerShared(sb *catalog.SuiteBuilder) {
	noParallel := types.NewFlags(types.FlagNoParallel)
	sb.AddWithFlags("reset", noParallel, func() error {
		counter = 0
		return nil
	})
	sb.AddWithFlags("increment", noParallel, func() error {
		counter++
		check.Equal(1, counter)
		return nil
	})
	sb.AddWithFlags("increment_again", noParallel, func() error {
		counter++
		check.Equal(2, counter)
		return nil
	})
}
