package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path"
	"strings"
	"time"
)

// Client posts estimate submissions to the external workflow engine.
// Submissions are never retried; the engine is not idempotent.
type Client struct {
	webhookURL string
	httpClient *http.Client
}

type File struct {
	Name        string
	ContentType string
	// Type is the user-chosen category sent alongside the file.
	Type        string
	Description string
	Data        []byte
}

type Submission struct {
	ExecutionID string
	UserID      string
	ProjectName string
	Notes       string
	UserPhone   string
	UserName    string
	UserRole    string
	Files       []File
}

// Result is what the engine answered synchronously. SharedLink is set only
// when the engine finished inline.
type Result struct {
	StatusCode int
	SharedLink string
}

type webhookResponse struct {
	SharedLink      string `json:"sharedLink"`
	SharedLinkSnake string `json:"shared_link"`
}

func NewClient(webhookURL string) *Client {
	return &Client{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// NewClientWithHTTP lets callers supply their own transport.
func NewClientWithHTTP(webhookURL string, httpClient *http.Client) *Client {
	return &Client{webhookURL: webhookURL, httpClient: httpClient}
}

// Submit sends the multipart form. Any non-2xx status is an error.
func (c *Client) Submit(ctx context.Context, s Submission) (*Result, error) {
	body, contentType, err := encodeSubmission(s)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	result := &Result{StatusCode: resp.StatusCode}
	var decoded webhookResponse
	if len(respBody) > 0 && json.Unmarshal(respBody, &decoded) == nil {
		result.SharedLink = decoded.SharedLink
		if result.SharedLink == "" {
			result.SharedLink = decoded.SharedLinkSnake
		}
	}
	return result, nil
}

// StatusError is returned when the engine rejects a submission.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("workflow webhook rejected submission: status %d, body: %s", e.StatusCode, e.Body)
}

func encodeSubmission(s Submission) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	fields := []struct{ name, value string }{
		{"executionId", s.ExecutionID},
		{"userId", s.UserID},
		{"project_name", s.ProjectName},
		{"notes_to_ai", s.Notes},
		{"user_phone", s.UserPhone},
		{"user_name", s.UserName},
		{"user_role", s.UserRole},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", f.name, err)
		}
	}

	for _, f := range s.Files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, escapeQuotes(path.Base(f.Name))))
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)

		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create file part: %w", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("failed to write file %s: %w", f.Name, err)
		}
		if err := w.WriteField("types", f.Type); err != nil {
			return nil, "", err
		}
		if err := w.WriteField("descriptions", f.Description); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
