package transfer

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	defaultMaxTransfers = 4
	defaultTimeout      = 10 * time.Minute
	dirPermissions      = 0o755
	filePermissions     = 0o644

	// errorBodyLimit bounds how much of an error response ends up in the error.
	errorBodyLimit = 512
)

// Logger defines the logging interface used by the HTTP client.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures an HTTPClient.
type Options struct {
	// CloudURL is the cloud proxy base URL. Requests to its host carry the
	// basic auth credentials below; requests elsewhere go out bare.
	CloudURL string
	Username string
	Password string

	// MaxTransfers bounds concurrent transfers.
	MaxTransfers int

	// Timeout bounds one transfer.
	Timeout time.Duration

	// Observer is optional.
	Observer Observer
}

// HTTPClient implements Uploader and Downloader over HTTP.
type HTTPClient struct {
	client    *http.Client
	sem       *semaphore.Weighted
	cloudHost string
	username  string
	password  string
	observer  Observer
	logger    Logger
}

// NewHTTPClient creates an HTTP transfer client.
//
// Parameters:
//   - opts: cloud credentials, concurrency bound and timeout
//
// Returns:
//   - *HTTPClient: ready to use
//   - error: if CloudURL does not parse
func NewHTTPClient(opts Options) (*HTTPClient, error) {
	var host string
	if opts.CloudURL != "" {
		u, err := url.Parse(opts.CloudURL)
		if err != nil {
			return nil, fmt.Errorf("parsing cloud url: %w", err)
		}
		host = u.Host
	}

	maxTransfers := opts.MaxTransfers
	if maxTransfers <= 0 {
		maxTransfers = defaultMaxTransfers
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &HTTPClient{
		client:    &http.Client{Timeout: timeout},
		sem:       semaphore.NewWeighted(int64(maxTransfers)),
		cloudHost: host,
		username:  opts.Username,
		password:  opts.Password,
		observer:  opts.Observer,
		logger:    noopLogger{},
	}, nil
}

// SetLogger sets the logger for the client.
func (c *HTTPClient) SetLogger(logger Logger) {
	c.logger = logger
}

// Upload sends req.Body, or the content of req.SourceURL, to req.URL with a POST.
func (c *HTTPClient) Upload(ctx context.Context, cmdID string, req UploadRequest) (resp Response, err error) {
	if req.URL == "" {
		return Response{}, fmt.Errorf("%w: upload url is empty", ErrInvalidRequest)
	}
	if req.Body == nil && req.SourceURL == "" {
		return Response{}, ErrNoSource
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return Response{}, err
	}
	defer c.sem.Release(1)
	defer func() { c.observe(DirectionUpload, err == nil, resp.Size) }()

	body := req.Body
	if body == nil {
		src, err := c.open(ctx, req.SourceURL)
		if err != nil {
			return Response{}, err
		}
		defer src.Close()
		body = src
	}

	counter := &countingReader{r: body}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, counter)
	if err != nil {
		return Response{}, fmt.Errorf("building upload request: %w", err)
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	httpReq.Header.Set("Content-Type", contentType)
	if req.FileName != "" {
		httpReq.Header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": req.FileName}))
	}
	c.authorize(httpReq)

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("uploading to %s: %w", req.URL, err)
	}
	defer httpResp.Body.Close()
	if err := checkStatus(httpResp); err != nil {
		return Response{}, err
	}

	c.logger.Debug("upload finished", "cmd_id", cmdID, "url", req.URL, "bytes", counter.n)
	return Response{Location: req.URL, Size: counter.n}, nil
}

// Download fetches req.URL into req.Path. The file appears atomically: a
// failed download leaves nothing behind.
func (c *HTTPClient) Download(ctx context.Context, cmdID string, req DownloadRequest) (resp Response, err error) {
	if req.URL == "" || req.Path == "" {
		return Response{}, fmt.Errorf("%w: download needs url and path", ErrInvalidRequest)
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return Response{}, err
	}
	defer c.sem.Release(1)
	defer func() { c.observe(DirectionDownload, err == nil, resp.Size) }()

	src, err := c.open(ctx, req.URL)
	if err != nil {
		return Response{}, err
	}
	defer src.Close()

	dir := filepath.Dir(req.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return Response{}, fmt.Errorf("creating download directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(req.Path)+".*")
	if err != nil {
		return Response{}, fmt.Errorf("creating temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName) //nolint:errcheck // best-effort cleanup
		}
	}()

	n, err := io.Copy(tmp, src)
	if err != nil {
		_ = tmp.Close() //nolint:errcheck // already failing
		return Response{}, fmt.Errorf("downloading %s: %w", req.URL, err)
	}
	if err := tmp.Close(); err != nil {
		return Response{}, fmt.Errorf("closing temporary file: %w", err)
	}
	if err := os.Chmod(tmpName, filePermissions); err != nil {
		return Response{}, fmt.Errorf("setting file permissions: %w", err)
	}
	if err := os.Rename(tmpName, req.Path); err != nil {
		return Response{}, fmt.Errorf("moving download into place: %w", err)
	}

	c.logger.Debug("download finished", "cmd_id", cmdID, "url", req.URL, "path", req.Path, "bytes", n)
	return Response{Location: req.Path, Size: n}, nil
}

// open issues a GET and returns the body of a 2xx response.
func (c *HTTPClient) open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.cloudHost != "" && c.username != "" && req.URL.Host == c.cloudHost {
		req.SetBasicAuth(c.username, c.password)
	}
}

func (c *HTTPClient) observe(direction string, ok bool, n int64) {
	if c.observer != nil {
		c.observer.ObserveTransfer(direction, ok, n)
	}
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit)) //nolint:errcheck // diagnostic only
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("%w: %s %s: %d", ErrUnexpectedStatus, resp.Request.Method, resp.Request.URL, resp.StatusCode)
	}
	return fmt.Errorf("%w: %s %s: %d: %s", ErrUnexpectedStatus, resp.Request.Method, resp.Request.URL, resp.StatusCode, msg)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
