// Package scan turns operator barcode input into decoded events and
// carries them to the stock tracker over an unbounded FIFO queue.
package scan

import (
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// Direction is the sign applied to stock adjustments.
type Direction int

// Adjustment directions.
const (
	Decrement Direction = -1
	Increment Direction = 1
)

// EventKind discriminates decoded scan events.
type EventKind int

const (
	// KindItem is a scan of a real item record.
	KindItem EventKind = iota

	// KindSetMode is a scan of a reserved mode-switch code.
	KindSetMode
)

// Event is a single decoded scan. Exactly one of ItemID or Mode is
// meaningful, selected by Kind.
type Event struct {
	Kind   EventKind
	ItemID uuid.UUID
	Mode   Direction
}

// Reserved identifiers that switch the adjustment direction instead of
// naming an item. These are printed as control cards next to the scanner.
var (
	decrementSentinel = uuid.MustParse("d8701fa4-af0b-11eb-8529-0242ac130003")
	incrementSentinel = uuid.MustParse("153a3d34-af0c-11eb-8529-0242ac130003")
)

// Decode interprets one line of scanner input: base64 text wrapping the
// 16 raw bytes of a record identifier. Sentinel identifiers decode to
// mode-switch events; everything else is an item scan.
func Decode(line string) (Event, error) {
	raw, err := base64.StdEncoding.DecodeString(line)
	if err != nil {
		return Event{}, fmt.Errorf("scan is not valid base64: %w", err)
	}

	id, err := uuid.FromBytes(raw)
	if err != nil {
		return Event{}, fmt.Errorf("scan does not wrap a record identifier: %w", err)
	}

	switch id {
	case decrementSentinel:
		return Event{Kind: KindSetMode, Mode: Decrement}, nil
	case incrementSentinel:
		return Event{Kind: KindSetMode, Mode: Increment}, nil
	default:
		return Event{Kind: KindItem, ItemID: id}, nil
	}
}

// Encode is the inverse of Decode: it renders an identifier as the
// base64 text embedded in a printed barcode.
func Encode(id uuid.UUID) string {
	return base64.StdEncoding.EncodeToString(id[:])
}
