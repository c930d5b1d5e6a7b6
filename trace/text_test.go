package trace

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/so5go/so5"
)

func TestTextBackendFormats(t *testing.T) {
	rec := so5.TraceRecord{MboxID: 7, Action: "mbox/delivered", TypeTag: 3, Mutable: false}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		NewTextBackend(&buf, "text").Trace(rec)
		assert.Contains(t, buf.String(), "mbox/delivered")
		assert.Contains(t, buf.String(), "7")
	})

	t.Run("structured", func(t *testing.T) {
		var buf bytes.Buffer
		NewTextBackend(&buf, "structured").Trace(rec)
		assert.Contains(t, buf.String(), "mbox: 7")
		assert.Contains(t, buf.String(), "[mbox/delivered]")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		NewTextBackend(&buf, "json").Trace(rec)
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded))
		assert.Equal(t, "mbox/delivered", decoded["action"])
	})
}

func TestTextBackendDefaultsToStdoutFormat(t *testing.T) {
	b := NewTextBackend(nil, "")
	assert.Equal(t, "text", b.format)
	assert.NotNil(t, b.w)
}

func TestTextBackendIsConcurrencySafe(t *testing.T) {
	var buf bytes.Buffer
	b := NewTextBackend(&buf, "text")
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			b.Trace(so5.TraceRecord{Action: "mbox/delivered"})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	assert.Equal(t, 10, strings.Count(buf.String(), "mbox/delivered"))
}
