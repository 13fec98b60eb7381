package notion

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Property names used by the stockroom collection schema.
const (
	// TitleProperty is the built-in title property present on every record.
	TitleProperty = "title"

	// StockProperty is the named property holding the item stock count.
	StockProperty = "Stock"

	// BarcodeProperty is the named file property holding the barcode attachment.
	BarcodeProperty = "Barcode"
)

// ErrRecordNotFound is returned when the remote store has no record for an identifier.
var ErrRecordNotFound = errors.New("record not found")

// HTTPError represents an HTTP error from the remote store
type HTTPError struct {
	StatusCode int
	Message    string
	URL        string
}

// Error returns the error message
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(statusCode int, url, message string) error {
	return &HTTPError{
		StatusCode: statusCode,
		URL:        url,
		Message:    message,
	}
}

// IsAuthError reports whether err is an HTTP 401 or 403 from the remote
// store. This drives the one-time password login fallback at startup.
func IsAuthError(err error) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	return httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden
}

// SchemaProperty maps a human-readable property name to its schema identifier.
type SchemaProperty struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Operation is a single entry in a submitTransaction request.
type Operation struct {
	ID      string   `json:"id"`
	Path    []string `json:"path"`
	Args    any      `json:"args"`
	Table   string   `json:"table"`
	Command string   `json:"command"`
}

// SetOperation builds a "set" operation against a block record.
func SetOperation(id uuid.UUID, path []string, args any) Operation {
	return Operation{
		ID:      id.String(),
		Path:    path,
		Args:    args,
		Table:   "block",
		Command: "set",
	}
}

// ListAfterOperation builds a "listAfter" operation against a block record.
func ListAfterOperation(id uuid.UUID, path []string, args any) Operation {
	return Operation{
		ID:      id.String(),
		Path:    path,
		Args:    args,
		Table:   "block",
		Command: "listAfter",
	}
}

// Record is a row in the remote collaborative database. Property values
// are stored in the store's segment format: a list of segments, each a
// list whose first element is the plain text.
type Record struct {
	ID      uuid.UUID
	FileIDs []string

	properties map[string][][]any
	schema     []SchemaProperty
}

// NewRecord creates an in-memory record with the given schema. The
// client normally materializes records from store responses; this is for
// composing local state and fixtures.
func NewRecord(id uuid.UUID, schema []SchemaProperty) *Record {
	return &Record{
		ID:         id,
		properties: make(map[string][][]any),
		schema:     schema,
	}
}

// SetPlainText sets a named property to a single text segment in the
// record's local view.
func (r *Record) SetPlainText(name, text string) error {
	id, err := r.PropertyID(name)
	if err != nil {
		return err
	}
	r.setProperty(id, [][]any{{text}})
	return nil
}

// wireRecord is the JSON shape of a record in store responses.
type wireRecord struct {
	ID         string             `json:"id"`
	Properties map[string][][]any `json:"properties"`
	Schema     []SchemaProperty   `json:"schema"`
	FileIDs    []string           `json:"file_ids"`
}

func (w *wireRecord) toRecord() (*Record, error) {
	id, err := uuid.Parse(w.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid record ID %q: %w", w.ID, err)
	}
	props := w.Properties
	if props == nil {
		props = make(map[string][][]any)
	}
	return &Record{
		ID:         id,
		FileIDs:    w.FileIDs,
		properties: props,
		schema:     w.Schema,
	}, nil
}

// plainText flattens a segment-formatted property value into its text.
func plainText(segments [][]any) string {
	var b strings.Builder
	for _, segment := range segments {
		if len(segment) == 0 {
			continue
		}
		if text, ok := segment[0].(string); ok {
			b.WriteString(text)
		}
	}
	return b.String()
}

// Title returns the record's title text, or the empty string when absent.
func (r *Record) Title() string {
	return plainText(r.properties[TitleProperty])
}

// Stock returns the record's stock count, treating an absent or
// unparseable value as zero.
func (r *Record) Stock() int {
	id, err := r.PropertyID(StockProperty)
	if err != nil {
		return 0
	}
	text := plainText(r.properties[id])
	if text == "" {
		return 0
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0
	}
	return n
}

// HasBarcode reports whether the record's barcode file property is populated.
func (r *Record) HasBarcode() bool {
	id, err := r.PropertyID(BarcodeProperty)
	if err != nil {
		return false
	}
	return len(r.properties[id]) > 0
}

// Schema returns the record's property schema.
func (r *Record) Schema() []SchemaProperty {
	return r.schema
}

// PropertyID resolves a property name to its schema identifier. The title
// property always resolves to itself.
func (r *Record) PropertyID(name string) (string, error) {
	if name == TitleProperty {
		return TitleProperty, nil
	}
	for _, prop := range r.schema {
		if prop.Name == name {
			return prop.ID, nil
		}
	}
	return "", fmt.Errorf("record %s has no property named %q", r.ID, name)
}

// setProperty replaces a property value in the local view of the record.
func (r *Record) setProperty(propertyID string, value [][]any) {
	r.properties[propertyID] = value
}

// replaceFrom swaps the record's remote state for a freshly fetched copy.
func (r *Record) replaceFrom(other *Record) {
	r.FileIDs = other.FileIDs
	r.properties = other.properties
	r.schema = other.schema
}
