//go:build mempooldebug

package pool_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-mempool/pool"
)

func TestDebugBuildForcesChecked(t *testing.T) {
	p, err := pool.New(pool.Config{BlockSize: 16, ElementCount: 2})
	require.NoError(t, err)
	defer p.Clear()
	assert.True(t, p.Checked())

	b, err := p.Alloc()
	require.NoError(t, err)
	p.Free(b)
	requireCorruption(t, func() { p.Free(b) })
}
