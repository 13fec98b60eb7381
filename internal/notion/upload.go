package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// uploadBucket is the storage bucket all record attachments go to.
const uploadBucket = "secure"

// UploadURLs is the response to a getUploadFileUrl request: a pre-signed
// pair for the direct PUT and the stable GET reference.
type UploadURLs struct {
	SignedPutURL string `json:"signedPutUrl"`
	SignedGetURL string `json:"signedGetUrl"`
}

// GetUploadFileURL requests a signed upload URL pair scoped by filename
// and content type.
func (c *Client) GetUploadFileURL(ctx context.Context, name, contentType string) (*UploadURLs, error) {
	payload := map[string]string{
		"bucket":      uploadBucket,
		"name":        name,
		"contentType": contentType,
	}
	body, err := c.post(ctx, "getUploadFileUrl", payload)
	if err != nil {
		return nil, fmt.Errorf("failed to request upload URL for %s: %w", name, err)
	}

	var urls UploadURLs
	if err := json.Unmarshal(body, &urls); err != nil {
		return nil, fmt.Errorf("failed to parse upload URL response: %w", err)
	}
	if urls.SignedPutURL == "" || urls.SignedGetURL == "" {
		return nil, fmt.Errorf("upload URL response for %s is missing signed URLs", name)
	}
	return &urls, nil
}

// UploadFileToRecordProperty uploads a local file and attaches it to the
// named file property of a record. The upload is two-phase: request a
// signed URL pair, PUT the raw bytes, then register the file against the
// record in a single transaction that sets the property value and appends
// the file identifier to the record's file list.
func (c *Client) UploadFileToRecordProperty(ctx context.Context, record *Record, path, property string) error {
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "text/plain"
	}
	filename := filepath.Base(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read upload source %s: %w", path, err)
	}

	urls, err := c.GetUploadFileURL(ctx, filename, contentType)
	if err != nil {
		return err
	}

	if err := c.putFile(ctx, urls.SignedPutURL, data, contentType); err != nil {
		return err
	}

	// The stable file URL is the signed GET URL without its query, and
	// the file identifier is that URL's second-to-last path segment.
	fileURL := strings.SplitN(urls.SignedGetURL, "?", 2)[0]
	fileID, err := fileIDFromURL(fileURL)
	if err != nil {
		return err
	}

	propertyID, err := record.PropertyID(property)
	if err != nil {
		return err
	}

	value := [][]any{{filename, [][]string{{"a", fileURL}}}}
	operations := []Operation{
		SetOperation(record.ID, []string{"properties", propertyID}, value),
		ListAfterOperation(record.ID, []string{"file_ids"}, map[string]string{"id": fileID}),
	}
	if err := c.SubmitTransaction(ctx, operations); err != nil {
		return fmt.Errorf("failed to attach %s to record %s: %w", filename, record.ID, err)
	}

	record.setProperty(propertyID, value)
	record.FileIDs = append(record.FileIDs, fileID)
	return nil
}

// putFile PUTs raw bytes to a signed upload URL.
func (c *Client) putFile(ctx context.Context, signedPutURL string, data []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signedPutURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return NewHTTPError(resp.StatusCode, signedPutURL, resp.Status)
	}
	return nil
}

// fileIDFromURL extracts the file identifier from a stable file URL. The
// identifier is the second-to-last path segment.
func fileIDFromURL(fileURL string) (string, error) {
	parts := strings.Split(fileURL, "/")
	if len(parts) < 2 {
		return "", fmt.Errorf("file URL %q has no identifier segment", fileURL)
	}
	id := parts[len(parts)-2]
	if id == "" {
		return "", fmt.Errorf("file URL %q has an empty identifier segment", fileURL)
	}
	return id, nil
}
