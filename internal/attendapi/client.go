package attendapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/phillip-england/attendhash/internal/envutil"
)

const DefaultBaseURL = "https://employee-attendance-hashing-backend.onrender.com"

type Config struct {
	BaseURL string        `validate:"required,url"`
	Timeout time.Duration `validate:"gte=0"`
}

func DefaultConfigFromEnv() Config {
	timeout, err := time.ParseDuration(envutil.OrDefault("API_TIMEOUT", "0s"))
	if err != nil {
		timeout = 0
	}
	return Config{
		BaseURL: envutil.OrDefault("API_BASE_URL", DefaultBaseURL),
		Timeout: timeout,
	}
}

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid api config: %w", err)
	}
	return nil
}

// Client talks to the attendance backend. Non-2xx answers are returned as
// responses, not errors; only transport failures and local validation fail.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) JSON() Payload {
	return ParsePayload(r.Body)
}

func (r *Response) Text() string {
	return string(r.Body)
}

func (c *Client) Do(ctx context.Context, method, path string, body io.Reader, contentType string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &TransportError{Op: "prepare request", Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read response", Err: err}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (c *Client) get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, "")
}

// Upload posts content as the multipart field "file".
func (c *Client) Upload(ctx context.Context, filename string, content io.Reader) (*Response, error) {
	if content == nil {
		return nil, validationf("Please select a file!")
	}
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("prepare upload: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize upload: %w", err)
	}
	return c.Do(ctx, http.MethodPost, "/upload", &body, writer.FormDataContentType())
}

func (c *Client) ViewAll(ctx context.Context) (*Response, error) {
	return c.get(ctx, "/view")
}

func (c *Client) SearchDynamic(ctx context.Context, filter QueryFilter) (*Response, error) {
	if filter.Empty() {
		return nil, validationf("at least one of id, name or department is required")
	}
	return c.get(ctx, "/search/dynamic?"+filter.Encode())
}

func (c *Client) SearchByID(ctx context.Context, id string) (*Response, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, validationf("Enter an ID to search.")
	}
	return c.get(ctx, "/search/id/"+url.PathEscape(id))
}

func (c *Client) SearchByName(ctx context.Context, name string) (*Response, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("Enter a name to search.")
	}
	return c.get(ctx, "/search/name/"+url.PathEscape(name))
}

func (c *Client) Sort(ctx context.Context, dir Direction) (*Response, error) {
	if _, err := ParseDirection(string(dir)); err != nil {
		return nil, err
	}
	return c.get(ctx, "/sort/"+string(dir))
}

// DownloadReport fetches the PDF report for threshold. Unlike the JSON calls
// it only succeeds on 2xx; otherwise the raw body comes back in a
// RejectionError.
func (c *Client) DownloadReport(ctx context.Context, threshold string) ([]byte, error) {
	threshold = strings.TrimSpace(threshold)
	if threshold == "" {
		return nil, validationf("Enter a percentage value.")
	}
	resp, err := c.get(ctx, "/download/pdf/"+encodeURIComponent(threshold))
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &RejectionError{StatusCode: resp.StatusCode, Message: resp.Text()}
	}
	return resp.Body, nil
}

func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
