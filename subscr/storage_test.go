package subscr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/so5go/so5"
)

func TestStorageBackends(t *testing.T) {
	factories := map[string]func() so5.SubscriptionStorage{
		"vector":  NewVector,
		"map":     NewMap,
		"hash":    NewHash,
		"flatset": NewFlatSet,
	}

	stateA := so5.NewState("a")
	stateB := so5.NewState("b")

	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			s := factory()

			keyA := so5.SubscriptionKey{MboxID: 1, Tag: 10, State: stateA}
			keyB := so5.SubscriptionKey{MboxID: 1, Tag: 10, State: stateB}
			entry := so5.SubscriptionEntry{HandlerKind: so5.HandlerKindNormal}

			require.NoError(t, s.Create(keyA, entry))
			require.Error(t, s.Create(keyA, entry), "duplicate create must fail")

			require.NoError(t, s.Create(keyB, entry))
			assert.Equal(t, 2, s.Len())

			_, ok := s.Find(1, 10, stateA)
			assert.True(t, ok)
			_, ok = s.Find(1, 10, stateB)
			assert.True(t, ok)
			_, ok = s.Find(1, 10, so5.NewState("unrelated"))
			assert.False(t, ok)

			lastForMboxTag := s.DropForState(keyA)
			assert.False(t, lastForMboxTag, "keyB still holds an entry for (mbox,tag)")
			assert.Equal(t, 1, s.Len())

			s.DropForAllStates(1, 10)
			assert.Equal(t, 0, s.Len())

			require.NoError(t, s.Create(keyA, entry))
			require.NoError(t, s.Create(keyB, entry))
			assert.Len(t, s.Enumerate(), 2)

			s.DropAll()
			assert.Equal(t, 0, s.Len())
		})
	}
}
