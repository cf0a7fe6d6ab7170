package ledger

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_NeverNegative(t *testing.T) {
	t.Parallel()

	l := New()
	l.RemoveUnit(true)
	l.RemoveNodeSet()
	assert.Equal(t, Snapshot{}, l.Snapshot())

	l.AddUnit(true)
	l.AddUnit(true)
	l.AddUnit(false)
	l.AddNodeSet()
	l.RemoveUnit(true)
	assert.Equal(t, Snapshot{Units: 2, NodeSets: 1, Handles: 1}, l.Snapshot())

	l.Overwrite(Snapshot{Units: -3, NodeSets: 2, Handles: 2})
	assert.Equal(t, Snapshot{Units: 0, NodeSets: 2, Handles: 2}, l.Snapshot())
}

func TestLedger_Reset(t *testing.T) {
	t.Parallel()

	l := New()
	l.AddUnit(true)
	l.AddNodeSet()
	l.Reset()
	l.Reset()
	assert.Equal(t, Snapshot{}, l.Snapshot())
	assert.Equal(t, 2, l.Cleanups())
}

func TestSnapshot_Exceeds(t *testing.T) {
	t.Parallel()

	assert.False(t, Snapshot{Units: 50, NodeSets: 50}.Exceeds(50))
	assert.True(t, Snapshot{Units: 51}.Exceeds(50))
	assert.True(t, Snapshot{NodeSets: 51}.Exceeds(50))
}

func TestCollector(t *testing.T) {
	t.Parallel()

	l := New()
	l.AddUnit(false)
	l.AddUnit(true)
	l.AddNodeSet()

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewCollector(l)))

	expected := `
# HELP soundgrid_active_units Live sound-producing units, including cached instances.
# TYPE soundgrid_active_units gauge
soundgrid_active_units 2
# HELP soundgrid_active_node_sets Connected pan/gain node-sets.
# TYPE soundgrid_active_node_sets gauge
soundgrid_active_node_sets 1
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"soundgrid_active_units", "soundgrid_active_node_sets")
	assert.NoError(t, err)
}
