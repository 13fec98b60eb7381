package scan

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEncodeRoundTrip(t *testing.T) {
	t.Parallel()
	for range 20 {
		id := uuid.New()
		event, err := Decode(Encode(id))
		require.NoError(t, err)
		assert.Equal(t, KindItem, event.Kind)
		assert.Equal(t, id, event.ItemID)
	}
}

func TestDecodeSentinels(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		id       string
		wantMode Direction
	}{
		{
			name:     "decrement_sentinel",
			id:       "d8701fa4-af0b-11eb-8529-0242ac130003",
			wantMode: Decrement,
		},
		{
			name:     "increment_sentinel",
			id:       "153a3d34-af0c-11eb-8529-0242ac130003",
			wantMode: Increment,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			event, err := Decode(Encode(uuid.MustParse(tt.id)))
			require.NoError(t, err)
			assert.Equal(t, KindSetMode, event.Kind)
			assert.Equal(t, tt.wantMode, event.Mode)
		})
	}
}

func TestDecodeMalformedInput(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		line string
	}{
		{name: "not_base64", line: "*** not base64 ***"},
		{name: "wrong_byte_length", line: base64.StdEncoding.EncodeToString([]byte("short"))},
		{name: "empty", line: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(tt.line)
			assert.Error(t, err)
		})
	}
}

func TestQueueFIFO(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	ids := make([]uuid.UUID, 5)
	for i := range ids {
		ids[i] = uuid.New()
		q.Push(Event{Kind: KindItem, ItemID: ids[i]})
	}

	assert.Equal(t, 5, q.Len())
	for _, want := range ids {
		event, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, want, event.ItemID)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueueConcurrentProducers(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	const producers = 8
	const perProducer = 100

	var wg sync.WaitGroup
	for range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perProducer {
				q.Push(Event{Kind: KindItem, ItemID: uuid.New()})
			}
		}()
	}
	wg.Wait()
	q.Close()

	count := 0
	for {
		_, ok := q.Pop()
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, producers*perProducer, count)
}

func TestQueueCloseUnblocksConsumer(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	done := make(chan struct{})
	go func() {
		_, ok := q.Pop()
		assert.False(t, ok)
		close(done)
	}()
	q.Close()
	<-done

	// Pushes after close are dropped.
	q.Push(Event{Kind: KindItem, ItemID: uuid.New()})
	assert.Equal(t, 0, q.Len())
}

func TestIngestorRun(t *testing.T) {
	t.Parallel()
	itemID := uuid.New()
	input := strings.Join([]string{
		Encode(itemID),
		"garbage line",
		Encode(uuid.MustParse("d8701fa4-af0b-11eb-8529-0242ac130003")),
		"",
	}, "\n")

	q := NewQueue()
	ingestor := NewIngestor(q, strings.NewReader(input))
	ingestor.Run(context.Background())

	// The malformed line and the blank line are dropped.
	require.Equal(t, 2, q.Len())

	event, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, KindItem, event.Kind)
	assert.Equal(t, itemID, event.ItemID)

	event, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, KindSetMode, event.Kind)
	assert.Equal(t, Decrement, event.Mode)
}
