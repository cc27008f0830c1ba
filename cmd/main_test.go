package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tester "github.com/ethereum-optimism/infra/op-tester"
	"github.com/ethereum-optimism/infra/op-tester/catalog"
	"github.com/ethereum-optimism/infra/op-tester/types"
)

func TestRegisterBuildsCatalog(t *testing.T) {
	b := catalog.NewBuilder(log.NewLogger(log.DiscardHandler()))
	require.NoError(t, register(b))
	cat, err := b.Freeze()
	require.NoError(t, err)

	var names []string
	for _, s := range cat.Suites() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"math", "strings", "files", "shared"}, names)

	tc, ok := cat.Lookup(types.NewFullID("math", "sum[2]"))
	require.True(t, ok)
	assert.False(t, tc.Disabled())

	tc, ok = cat.Lookup(types.NewFullID("math", "float_precision"))
	require.True(t, ok)
	assert.True(t, tc.Disabled())

	tc, ok = cat.Lookup(types.NewFullID("shared", "increment"))
	require.True(t, ok)
	assert.True(t, tc.NoParallel())
}

func TestDemoRunPasses(t *testing.T) {
	out := &bytes.Buffer{}
	tr, err := tester.New(&tester.Config{
		Out: out,
		Log: log.NewLogger(log.DiscardHandler()),
	}, register, nil)
	require.NoError(t, err)

	snap, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.IsFailed(), out.String())
	assert.Equal(t, 1, snap.Disabled)
	assert.Equal(t, snap.Total-1, snap.Passed)
	assert.Contains(t, out.String(), "PASSED")
}
