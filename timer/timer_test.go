package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/so5go/so5"
)

func TestManagersFireSingleShot(t *testing.T) {
	managers := map[string]so5.TimerManager{
		"heap": NewHeap(),
		"list": NewList(),
		"wheel": NewWheel(5*time.Millisecond, 64, DefaultCatchUpPolicy()),
	}

	for name, mgr := range managers {
		t.Run(name, func(t *testing.T) {
			defer mgr.Close()
			var fired atomic.Bool
			mgr.ScheduleSingle(20*time.Millisecond, func() { fired.Store(true) })

			require.Eventually(t, fired.Load, time.Second, 5*time.Millisecond)
		})
	}
}

func TestManagersCancelBeforeFire(t *testing.T) {
	managers := map[string]so5.TimerManager{
		"heap": NewHeap(),
		"list": NewList(),
		"wheel": NewWheel(5*time.Millisecond, 64, DefaultCatchUpPolicy()),
	}

	for name, mgr := range managers {
		t.Run(name, func(t *testing.T) {
			defer mgr.Close()
			var fired atomic.Bool
			h := mgr.ScheduleSingle(50*time.Millisecond, func() { fired.Store(true) })
			h.Cancel()

			time.Sleep(100 * time.Millisecond)
			assert.False(t, fired.Load())
		})
	}
}

func TestHeapSchedulePeriodic(t *testing.T) {
	mgr := NewHeap()
	defer mgr.Close()

	var count atomic.Int32
	h := mgr.SchedulePeriodic(5*time.Millisecond, 10*time.Millisecond, func() {
		count.Add(1)
	})

	require.Eventually(t, func() bool { return count.Load() >= 3 }, time.Second, 5*time.Millisecond)
	h.Cancel()

	snapshot := count.Load()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, count.Load(), snapshot+1, "cancel should stop further periodic fires")
}

func TestWheelCatchUpPolicyCollapsesMissedTicks(t *testing.T) {
	policy := DefaultCatchUpPolicy()
	assert.False(t, policy.FireMissedTicks, "default policy collapses a burst of missed ticks into one firing")
}
