package tracker

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qnl/fab-notion/internal/notion"
	"github.com/qnl/fab-notion/internal/scan"
)

var testSchema = []notion.SchemaProperty{
	{Name: notion.StockProperty, ID: "qStk"},
	{Name: notion.BarcodeProperty, ID: "fBar"},
}

// fakeStore is an in-memory record store.
type fakeStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*notion.Record
	failGet map[uuid.UUID]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[uuid.UUID]*notion.Record),
		failGet: make(map[uuid.UUID]error),
	}
}

func (f *fakeStore) addItem(t *testing.T, title string, stock int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	record := notion.NewRecord(id, testSchema)
	require.NoError(t, record.SetPlainText(notion.TitleProperty, title))
	require.NoError(t, record.SetPlainText(notion.StockProperty, strconv.Itoa(stock)))
	f.records[id] = record
	return id
}

func (f *fakeStore) GetRecord(_ context.Context, id uuid.UUID) (*notion.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failGet[id]; err != nil {
		return nil, err
	}
	record, ok := f.records[id]
	if !ok {
		return nil, notion.ErrRecordNotFound
	}
	return record, nil
}

func (f *fakeStore) SetStock(_ context.Context, record *notion.Record, stock int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return record.SetPlainText(notion.StockProperty, strconv.Itoa(stock))
}

// runEvents feeds events through a tracker and waits for it to drain.
func runEvents(t *testing.T, store Store, events ...scan.Event) {
	t.Helper()
	queue := scan.NewQueue()
	for _, event := range events {
		queue.Push(event)
	}
	queue.Close()

	var mu sync.Mutex
	tr := New(queue, store, &mu)
	done := make(chan struct{})
	go func() {
		tr.Run(context.Background())
		close(done)
	}()
	<-done
}

func itemScan(id uuid.UUID) scan.Event {
	return scan.Event{Kind: scan.KindItem, ItemID: id}
}

func modeScan(mode scan.Direction) scan.Event {
	return scan.Event{Kind: scan.KindSetMode, Mode: mode}
}

func TestDefaultModeIsDecrement(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	id := store.addItem(t, "Red Widget", 3)

	runEvents(t, store, itemScan(id))
	assert.Equal(t, 2, store.records[id].Stock())
}

func TestModeSwitchesAreSticky(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	id := store.addItem(t, "Red Widget", 3)

	// Decrement once, then switch to increment and scan twice.
	runEvents(t, store,
		modeScan(scan.Decrement),
		itemScan(id),
		modeScan(scan.Increment),
		itemScan(id),
		itemScan(id),
	)
	assert.Equal(t, 4, store.records[id].Stock())
}

func TestStockNeverGoesNegative(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	id := store.addItem(t, "Nearly Gone", 1)

	runEvents(t, store, itemScan(id), itemScan(id), itemScan(id))
	assert.Equal(t, 0, store.records[id].Stock())
}

func TestAbsentStockTreatedAsZero(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	id := uuid.New()
	record := notion.NewRecord(id, testSchema)
	require.NoError(t, record.SetPlainText(notion.TitleProperty, "Uncounted"))
	store.records[id] = record

	runEvents(t, store, modeScan(scan.Increment), itemScan(id))
	assert.Equal(t, 1, store.records[id].Stock())
}

func TestFailedScanDoesNotStopTracker(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	broken := uuid.New()
	store.failGet[broken] = errors.New("network fault")
	ok := store.addItem(t, "Survivor", 5)

	runEvents(t, store,
		itemScan(broken),
		itemScan(uuid.New()), // not found
		itemScan(ok),
	)
	assert.Equal(t, 4, store.records[ok].Stock())
}
