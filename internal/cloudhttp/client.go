package cloudhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-mapper/internal/smartrest"
)

const (
	defaultTimeout = 30 * time.Second
	identityType   = "c8y_Serial"
	errorBodyLimit = 512
)

// Options configures a Client.
type Options struct {
	// BaseURL is the proxy root, e.g. http://127.0.0.1:8001/c8y.
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// Event is a cloud event to create.
type Event struct {
	// ExternalID identifies the source device.
	ExternalID string
	Type       string
	Text       string

	// Time defaults to now.
	Time time.Time
}

// Client is a small cloud REST client.
//
// Internal ids are cached for the lifetime of the client; they never
// change for a registered device.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client

	mu          sync.RWMutex
	internalIDs map[string]string
}

// NewClient creates a cloud REST client.
func NewClient(opts Options) (*Client, error) {
	if _, err := url.Parse(opts.BaseURL); err != nil || opts.BaseURL == "" {
		return nil, fmt.Errorf("invalid cloud base url %q", opts.BaseURL)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:     strings.TrimSuffix(opts.BaseURL, "/"),
		username:    opts.Username,
		password:    opts.Password,
		http:        &http.Client{Timeout: timeout},
		internalIDs: make(map[string]string),
	}, nil
}

// InternalID resolves the managed object id of a device.
func (c *Client) InternalID(ctx context.Context, externalID string) (string, error) {
	c.mu.RLock()
	id, ok := c.internalIDs[externalID]
	c.mu.RUnlock()
	if ok {
		return id, nil
	}

	var out struct {
		ManagedObject struct {
			ID string `json:"id"`
		} `json:"managedObject"`
	}
	path := "/identity/externalIds/" + identityType + "/" + url.PathEscape(externalID)
	status, err := c.do(ctx, http.MethodGet, path, nil, &out)
	if err != nil {
		if status == http.StatusNotFound {
			return "", fmt.Errorf("%w: %s", ErrUnknownDevice, externalID)
		}
		return "", err
	}
	if out.ManagedObject.ID == "" {
		return "", fmt.Errorf("%w: identity of %s has no managed object id", ErrInvalidResponse, externalID)
	}

	c.mu.Lock()
	c.internalIDs[externalID] = out.ManagedObject.ID
	c.mu.Unlock()
	return out.ManagedObject.ID, nil
}

// CreateEvent creates an event on the device and returns its id.
func (c *Client) CreateEvent(ctx context.Context, ev Event) (string, error) {
	source, err := c.InternalID(ctx, ev.ExternalID)
	if err != nil {
		return "", err
	}
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	body := map[string]any{
		"type":   ev.Type,
		"text":   ev.Text,
		"time":   ts.UTC().Format(time.RFC3339Nano),
		"source": map[string]string{"id": source},
	}
	var out struct {
		ID string `json:"id"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/event/events", body, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("%w: created event has no id", ErrInvalidResponse)
	}
	return out.ID, nil
}

// EventBinaryURL returns where the binary attachment of an event is uploaded.
func (c *Client) EventBinaryURL(eventID string) string {
	return c.baseURL + "/event/events/" + url.PathEscape(eventID) + "/binaries"
}

// UpdateSoftwareList replaces the software list fragment of the device's
// managed object.
func (c *Client) UpdateSoftwareList(ctx context.Context, externalID string, modules []smartrest.SoftwareModule) error {
	id, err := c.InternalID(ctx, externalID)
	if err != nil {
		return err
	}
	if modules == nil {
		modules = []smartrest.SoftwareModule{}
	}
	body := map[string]any{"c8y_SoftwareList": modules}
	_, err = c.do(ctx, http.MethodPut, "/inventory/managedObjects/"+url.PathEscape(id), body, nil)
	return err
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
// The status code is returned even on failure.
func (c *Client) do(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit)) //nolint:errcheck // diagnostic only
		return resp.StatusCode, fmt.Errorf("%w: %s %s: %d %s",
			ErrUnexpectedStatus, method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("%w: %s %s: %w", ErrInvalidResponse, method, path, err)
		}
	}
	return resp.StatusCode, nil
}
