package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// GraphError is a non-success or id-less response from a Graph-style API.
type GraphError struct {
	StatusCode int
	Message    string
}

func (e *GraphError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("graph api status %d", e.StatusCode)
	}
	return fmt.Sprintf("graph api status %d: %s", e.StatusCode, e.Message)
}

// graphClient posts JSON bodies and expects an "id" field back.
type graphClient struct {
	baseURL    string
	httpClient *http.Client
}

func newGraphClient(baseURL string, httpClient *http.Client) graphClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return graphClient{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

type graphResponse struct {
	ID    string `json:"id"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (c graphClient) post(ctx context.Context, path string, body map[string]any) (string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	var parsed graphResponse
	_ = json.Unmarshal(data, &parsed)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || parsed.ID == "" {
		msg := ""
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		if msg == "" && parsed.ID == "" && resp.StatusCode < 300 {
			msg = "response missing id"
		}
		return "", &GraphError{StatusCode: resp.StatusCode, Message: msg}
	}
	return parsed.ID, nil
}
