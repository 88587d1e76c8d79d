// Package remote provides the HTTP adapter for the hosted JSON document
// store.
//
// The store is a flat key-value bin: one endpoint, GET returns the whole
// document, PUT overwrites it. There is no conflict detection, no partial
// update and no versioning at this layer; last writer wins. Retry policy
// belongs to the caller: reads are naturally retried by the poll cycle and
// writes by the sync engine's backoff.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"louvor/internal/schema"
)

// Reason classifies a remote failure for backoff tuning.
type Reason int

const (
	// ReasonOther covers transport errors and non-2xx statuses in general.
	ReasonOther Reason = iota
	// ReasonRateLimited indicates the store answered HTTP 429.
	ReasonRateLimited
)

// String returns a human-readable representation of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonRateLimited:
		return "rate limited"
	default:
		return "other"
	}
}

// Error is a failed remote operation. Status is zero for transport errors.
type Error struct {
	Op     string
	Status int
	Reason Reason
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("remote %s failed", e.Op)
	}
	return fmt.Sprintf("remote %s returned status %d (%s)", e.Op, e.Status, e.Reason)
}

// IsRateLimited reports whether err is a rate-limiting response from the
// store.
func IsRateLimited(err error) bool {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Reason == ReasonRateLimited
	}
	return false
}

// Client talks to one remote document endpoint.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	logger   *log.Logger
}

// New creates a client for the given endpoint. The API key is sent as the
// store's static X-Master-Key credential header on every request.
//
// If logger is nil, a default logger writing to stderr is used.
func New(endpoint, apiKey string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 15 * time.Second},
		logger:   logger,
	}
}

// envelope is the wrapper some hosted bins put around the stored record on
// reads. A bare document body is accepted as well.
type envelope struct {
	Record json.RawMessage `json:"record"`
}

// Fetch reads the full shared document. Any transport error, non-2xx status
// or unreadable body yields an error; the caller keeps its current document.
func (c *Client) Fetch(ctx context.Context) (*schema.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build fetch request: %w", err)
	}
	req.Header.Set("X-Master-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", &Error{Op: "fetch"}, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError("fetch", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read fetch response: %w", err)
	}

	// Unwrap the {record: ...} envelope when present.
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Record) > 0 {
		body = env.Record
	}

	doc, err := schema.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode remote document: %w", err)
	}
	return doc, nil
}

// Push overwrites the full shared document. There are no partial-success
// semantics: either the whole document landed or the call failed.
func (c *Client) Push(ctx context.Context, doc *schema.Document) error {
	data, err := schema.Encode(doc)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Master-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", &Error{Op: "push"}, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := statusError("push", resp.StatusCode)
		if IsRateLimited(err) {
			c.logger.Printf("push rate limited by remote store")
		}
		return err
	}
	return nil
}

func statusError(op string, status int) error {
	reason := ReasonOther
	if status == http.StatusTooManyRequests {
		reason = ReasonRateLimited
	}
	return &Error{Op: op, Status: status, Reason: reason}
}
