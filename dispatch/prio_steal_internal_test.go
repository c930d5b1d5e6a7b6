package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/so5go/so5"
)

// TestPrioThreadPoolTryPopAnyTagsSteals verifies tryPopAny tags a demand
// popped from anywhere but the top priority level with processor_prio and
// queue_prio, and leaves a top-level demand untagged.
func TestPrioThreadPoolTryPopAnyTagsSteals(t *testing.T) {
	d := NewPrioThreadPool("pool", 2).(*PrioThreadPool)

	top := prioLevels[len(prioLevels)-1]
	require.NoError(t, d.queues[top].Push(so5.ExecutionDemand{Selector: so5.SelectorMsg}))
	demand, ok := d.tryPopAny()
	require.True(t, ok)
	require.Nil(t, demand.Metadata)

	lower := prioLevels[len(prioLevels)-3]
	require.NoError(t, d.queues[lower].Push(so5.ExecutionDemand{Selector: so5.SelectorMsg}))
	demand, ok = d.tryPopAny()
	require.True(t, ok)
	require.Equal(t, itoa(int(top)), demand.Metadata["processor_prio"])
	require.Equal(t, itoa(int(lower)), demand.Metadata["queue_prio"])
}

// TestPrioThreadPoolTryPopAnyBoundsDepth verifies a demand queued more than
// MaxPrioStealDepth levels below the top is not found by an idle scan.
func TestPrioThreadPoolTryPopAnyBoundsDepth(t *testing.T) {
	d := NewPrioThreadPool("pool", 2).(*PrioThreadPool)

	bottom := prioLevels[0]
	require.NoError(t, d.queues[bottom].Push(so5.ExecutionDemand{Selector: so5.SelectorMsg}))

	top := len(prioLevels) - 1
	require.Greater(t, top, MaxPrioStealDepth)

	_, ok := d.tryPopAny()
	require.False(t, ok, "demand queued beyond MaxPrioStealDepth must not be picked up by the bounded scan")
}

// TestPrioDedicatedThreadsStealTags verifies steal finds the nearest
// non-empty lower level and that running a stolen demand tags its Metadata,
// while a same-level demand is left untagged.
func TestPrioDedicatedThreadsStealTags(t *testing.T) {
	d := NewPrioDedicatedThreads("dedicated", true).(*PrioDedicatedThreads)

	own := prioLevels[len(prioLevels)-1]
	lower := prioLevels[len(prioLevels)-2]
	require.NoError(t, d.queues[lower].Push(so5.ExecutionDemand{Selector: so5.SelectorMsg}))

	demand, from, ok := d.steal(own)
	require.True(t, ok)
	require.Equal(t, lower, from)

	tagged := tagSteal(demand, own, from)
	require.Equal(t, itoa(int(own)), tagged.Metadata["processor_prio"])
	require.Equal(t, itoa(int(lower)), tagged.Metadata["queue_prio"])

	require.NoError(t, d.queues[own].Push(so5.ExecutionDemand{Selector: so5.SelectorMsg}))
	sameLevel, ok := d.queues[own].TryPop()
	require.True(t, ok)
	require.Nil(t, tagSteal(sameLevel, own, own).Metadata)
}

// TestPrioDedicatedThreadsStealBoundsDepth verifies steal never reaches more
// than MaxPrioStealDepth levels below its own.
func TestPrioDedicatedThreadsStealBoundsDepth(t *testing.T) {
	d := NewPrioDedicatedThreads("dedicated", true).(*PrioDedicatedThreads)

	own := prioLevels[len(prioLevels)-1]
	require.Greater(t, prioIndex(own), MaxPrioStealDepth)

	bottom := prioLevels[0]
	require.NoError(t, d.queues[bottom].Push(so5.ExecutionDemand{Selector: so5.SelectorMsg}))

	_, _, ok := d.steal(own)
	require.False(t, ok, "steal must not reach a queue beyond MaxPrioStealDepth levels down")
}
