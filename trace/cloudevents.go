package trace

import (
	"context"
	"fmt"
	"sync"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/so5go/so5"
)

// CloudEventsBackend emits each TraceRecord as a CloudEvent through a
// cloudevents.Client, so mbox routing decisions can be shipped to the same
// event infrastructure a host application already uses for its domain
// events. Sends happen on a background goroutine draining a bounded
// channel: DeliverMessage's caller must never block on trace export.
type CloudEventsBackend struct {
	client cloudevents.Client
	source string

	queue chan so5.TraceRecord
	done  chan struct{}
	wg    sync.WaitGroup

	droppedMu sync.Mutex
	dropped   uint64
}

// NewCloudEventsBackend wraps client, tagging every emitted event's source
// attribute with source and type "so5.trace.<action>". queueDepth bounds
// how many records may be buffered before new ones are dropped rather than
// blocking the caller.
func NewCloudEventsBackend(client cloudevents.Client, source string, queueDepth int) *CloudEventsBackend {
	if queueDepth < 1 {
		queueDepth = 1
	}
	b := &CloudEventsBackend{
		client: client,
		source: source,
		queue:  make(chan so5.TraceRecord, queueDepth),
		done:   make(chan struct{}),
	}
	b.wg.Add(1)
	go b.loop()
	return b
}

func (b *CloudEventsBackend) Trace(r so5.TraceRecord) {
	select {
	case b.queue <- r:
	default:
		b.droppedMu.Lock()
		b.dropped++
		b.droppedMu.Unlock()
	}
}

// Dropped reports how many trace records were discarded because the export
// queue was full.
func (b *CloudEventsBackend) Dropped() uint64 {
	b.droppedMu.Lock()
	defer b.droppedMu.Unlock()
	return b.dropped
}

func (b *CloudEventsBackend) loop() {
	defer b.wg.Done()
	for {
		select {
		case r := <-b.queue:
			b.emit(r)
		case <-b.done:
			return
		}
	}
}

func (b *CloudEventsBackend) emit(r so5.TraceRecord) {
	event := cloudevents.NewEvent()
	event.SetID(uuid.NewString())
	event.SetSource(b.source)
	event.SetType("so5.trace." + r.Action)

	payload := map[string]any{
		"mbox_id":   r.MboxID,
		"mbox_kind": r.MboxKind.String(),
		"type_tag":  r.TypeTag,
		"mutable":   r.Mutable,
		"envelope":  r.Envelope,
	}
	if r.Err != nil {
		payload["error"] = r.Err.Error()
	}
	if err := event.SetData(cloudevents.ApplicationJSON, payload); err != nil {
		return
	}

	if result := b.client.Send(context.Background(), event); cloudevents.IsUndelivered(result) {
		fmt.Printf("so5/trace: cloudevents send undelivered: %v\n", result)
	}
}

// Close stops the background export goroutine. Queued records not yet sent
// are discarded.
func (b *CloudEventsBackend) Close() {
	close(b.done)
	b.wg.Wait()
}
