package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// Client is a struct for communicating with the toolinspect daemon
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient is a constructor for creating a new Client. addr is host:port or a
// full http URL.
func NewClient(addr string) *Client {
	base := strings.TrimRight(addr, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	dialer := &net.Dialer{Timeout: 5 * time.Second}
	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, network, address string) (net.Conn, error) {
					conn, err := dialer.DialContext(ctx, network, address)
					if err != nil {
						if errors.Is(err, syscall.ECONNREFUSED) {
							return nil, ErrDaemonNotRunning
						}
						if os.IsPermission(err) {
							return nil, ErrPermissionDenied
						}
						logrus.Errorf("failed to connect to daemon: %v", err)
						return nil, err
					}
					return conn, nil
				},
			},
		},
	}
}

// BaseURL returns the daemon URL requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Send is a method for sending a request with a JSON body to the daemon
func (c *Client) Send(method string, path string, data string) (string, error) {
	logrus.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"data":   data,
		"addr":   c.baseURL,
	}).Debug("sending request")

	var body io.Reader
	if data != "" {
		body = strings.NewReader(data)
	}
	b, err := c.do(method, path, "application/json", body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// do sends a request and returns the body of a 2xx response.
func (c *Client) do(method, path, contentType string, body io.Reader) ([]byte, error) {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return nil, fmt.Errorf("unknown method: %s", method)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, ErrDaemonNotRunning) {
			return nil, ErrDaemonNotRunning
		}
		if errors.Is(err, ErrPermissionDenied) {
			return nil, ErrPermissionDenied
		}
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.Errorf("failed to close response body: %v", err)
		}
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, errorMessage(b))
	case http.StatusConflict:
		return nil, fmt.Errorf("%w: %s", ErrConflict, errorMessage(b))
	case http.StatusServiceUnavailable:
		return nil, fmt.Errorf("%w: %s", ErrModelUnavailable, errorMessage(b))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("got %d: %s", resp.StatusCode, errorMessage(b))
	}

	return b, nil
}

func unquote(s string) (string, error) {
	var v string
	err := json.Unmarshal([]byte(s), &v)
	return v, err
}

// errorMessage unquotes the JSON string error bodies the daemon answers with.
func errorMessage(b []byte) string {
	s := strings.TrimSpace(string(b))
	if u, err := unquote(s); err == nil {
		return u
	}
	return s
}

// Get is a method for sending a GET request to the daemon
func (c *Client) Get(path string) (string, error) {
	return c.Send(http.MethodGet, path, "")
}

// Put is a method for sending a PUT request to the daemon
func (c *Client) Put(path string, data string) (string, error) {
	return c.Send(http.MethodPut, path, data)
}

// Post is a method for sending a POST request to the daemon
func (c *Client) Post(path string, data string) (string, error) {
	return c.Send(http.MethodPost, path, data)
}

// Delete is a method for sending a DELETE request to the daemon
func (c *Client) Delete(path string) (string, error) {
	return c.Send(http.MethodDelete, path, "")
}

// GetBytes fetches a binary resource such as an image or an export.
func (c *Client) GetBytes(path string) ([]byte, error) {
	logrus.WithFields(logrus.Fields{
		"path": path,
		"addr": c.baseURL,
	}).Debug("downloading")
	return c.do(http.MethodGet, path, "", nil)
}

// Upload posts files as a multipart form under field, together with extra
// form values.
func (c *Client) Upload(path, field string, files []string, values map[string]string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range files {
		if err := addFile(mw, field, name); err != nil {
			return "", err
		}
	}
	for k, v := range values {
		if err := mw.WriteField(k, v); err != nil {
			return "", fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart body: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"path":  path,
		"files": files,
		"addr":  c.baseURL,
	}).Debug("uploading")

	b, err := c.do(http.MethodPost, path, mw.FormDataContentType(), &buf)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func addFile(mw *multipart.Writer, field, name string) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := mw.CreateFormFile(field, filepath.Base(name))
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	return nil
}
