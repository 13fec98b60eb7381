package scan

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
)

// Ingestor reads newline-terminated scans from an input stream, decodes
// them, and enqueues the resulting events. Malformed scans are logged
// and dropped so a bad read never takes the ingestor down.
type Ingestor struct {
	queue *Queue
	input io.Reader
}

// NewIngestor creates an ingestor feeding the given queue from input.
func NewIngestor(queue *Queue, input io.Reader) *Ingestor {
	return &Ingestor{
		queue: queue,
		input: input,
	}
}

// Run consumes the input stream until EOF or context cancellation.
func (i *Ingestor) Run(ctx context.Context) {
	scanner := bufio.NewScanner(i.input)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		event, err := Decode(line)
		if err != nil {
			slog.Warn("Dropping malformed scan", "input", line, "error", err)
			continue
		}

		switch event.Kind {
		case KindSetMode:
			slog.Info("Mode switch scanned", "direction", int(event.Mode))
		default:
			slog.Info("Barcode scanned", "item", event.ItemID)
		}
		i.queue.Push(event)
	}

	if err := scanner.Err(); err != nil {
		slog.Error("Scanner input failed", "error", err)
	}
}
