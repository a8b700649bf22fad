package client

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/runtrace/runtrace/internal/session"
)

// HTTPClient makes REST calls to the runtrace daemon.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a client targeting the given base URL (e.g. "http://127.0.0.1:8080").
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Run fetches the current run from /api/run.
func (c *HTTPClient) Run() (*session.Snapshot, error) {
	var s session.Snapshot
	if err := c.get("/api/run", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Records fetches /api/records.
func (c *HTTPClient) Records() (*Records, error) {
	var r Records
	if err := c.get("/api/records", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Control sends POST /api/run/{action}.
func (c *HTTPClient) Control(action string) (*ControlResponse, error) {
	var out ControlResponse
	if err := c.post("/api/run/"+action, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Runs lists archived runs, newest first.
func (c *HTTPClient) Runs() ([]RunEntry, error) {
	var out []RunEntry
	if err := c.get("/api/runs", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ArchivedRun loads one archived run.
func (c *HTTPClient) ArchivedRun(id string) (*ArchivedRun, error) {
	var out ArchivedRun
	if err := c.get("/api/runs/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteRun removes an archived run.
func (c *HTTPClient) DeleteRun(id string) error {
	resp, err := c.do(http.MethodDelete, "/api/runs/"+url.PathEscape(id))
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// Export downloads the current run as format ("gpx" or "json") into dir
// and returns the path written.
func (c *HTTPClient) Export(format, dir string) (string, error) {
	path := "/api/run/export." + format
	resp, err := c.do(http.MethodGet, path)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	name := "runtrace." + format
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = filepath.Base(params["filename"])
	}

	dest := filepath.Join(dir, name)
	f, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", dest, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return dest, nil
}

func (c *HTTPClient) get(path string, out interface{}) error {
	resp, err := c.do(http.MethodGet, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) post(path string, out interface{}) error {
	resp, err := c.do(http.MethodPost, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// do sends a bodyless request and turns non-2xx answers into errors.
func (c *HTTPClient) do(method, path string) (*http.Response, error) {
	req, err := http.NewRequest(method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	c.setAuth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, errorText(body))
	}
	return resp, nil
}

// errorText extracts the message from a JSON error body, or returns the
// body as is.
func errorText(body []byte) string {
	var e ErrorPayload
	if json.Unmarshal(body, &e) == nil && e.Message != "" {
		return e.Message
	}
	return strings.TrimSpace(string(body))
}

func (c *HTTPClient) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
