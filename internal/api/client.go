package api

import (
	"bytes"
	stdcontext "context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIError represents an error response from the daemon API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("daemon api error (status %d, %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("daemon api error (status %d): %s", e.StatusCode, e.Message)
}

// Client is a REST client for the daemon API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a daemon API client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) doRequest(ctx stdcontext.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var wire struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &wire) == nil && wire.Message != "" {
			apiErr.Code = wire.Code
			apiErr.Message = wire.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// ListProcesses returns every tracked process.
func (c *Client) ListProcesses(ctx stdcontext.Context) (*ProcessList, error) {
	var list ProcessList
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/processes", nil, &list); err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	return &list, nil
}

// GetProcess returns one process by run id.
func (c *Client) GetProcess(ctx stdcontext.Context, runID int64) (*ProcessReport, error) {
	var report ProcessReport
	path := fmt.Sprintf("/api/v1/processes/%d", runID)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &report); err != nil {
		return nil, fmt.Errorf("get process %d: %w", runID, err)
	}
	return &report, nil
}

// Output fetches captured output for a run. A zero lines value requests
// the full buffer.
func (c *Client) Output(ctx stdcontext.Context, runID int64, lines int) (*OutputReport, error) {
	path := fmt.Sprintf("/api/v1/processes/%d/output", runID)
	if lines > 0 {
		path = fmt.Sprintf("%s?lines=%d", path, lines)
	}
	var report OutputReport
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &report); err != nil {
		return nil, fmt.Errorf("fetch output for %d: %w", runID, err)
	}
	return &report, nil
}

// SpawnAgent launches an agent process.
func (c *Client) SpawnAgent(ctx stdcontext.Context, req SpawnAgentRequest) (*SpawnResult, error) {
	var result SpawnResult
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/agents", req, &result); err != nil {
		return nil, fmt.Errorf("spawn agent: %w", err)
	}
	return &result, nil
}

// SpawnSession launches a session process.
func (c *Client) SpawnSession(ctx stdcontext.Context, req SpawnSessionRequest) (*SpawnResult, error) {
	var result SpawnResult
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/sessions", req, &result); err != nil {
		return nil, fmt.Errorf("spawn session: %w", err)
	}
	return &result, nil
}

// Kill terminates one run and removes it from the table.
func (c *Client) Kill(ctx stdcontext.Context, runID int64) (*KillResult, error) {
	var result KillResult
	path := fmt.Sprintf("/api/v1/processes/%d", runID)
	if err := c.doRequest(ctx, http.MethodDelete, path, nil, &result); err != nil {
		return nil, fmt.Errorf("kill process %d: %w", runID, err)
	}
	return &result, nil
}

// KillAll terminates every tracked run.
func (c *Client) KillAll(ctx stdcontext.Context) (*CleanupResult, error) {
	var result CleanupResult
	if err := c.doRequest(ctx, http.MethodDelete, "/api/v1/processes", nil, &result); err != nil {
		return nil, fmt.Errorf("kill all processes: %w", err)
	}
	return &result, nil
}

// Cleanup removes exited runs from the table.
func (c *Client) Cleanup(ctx stdcontext.Context) (*CleanupResult, error) {
	var result CleanupResult
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/processes/cleanup", nil, &result); err != nil {
		return nil, fmt.Errorf("cleanup processes: %w", err)
	}
	return &result, nil
}

// Exec runs a one-shot shell command on the daemon host.
func (c *Client) Exec(ctx stdcontext.Context, req ExecRequest) (*ExecResult, error) {
	var result ExecResult
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/exec", req, &result); err != nil {
		return nil, fmt.Errorf("exec command: %w", err)
	}
	return &result, nil
}

// Tools lists tools advertised by configured MCP servers.
func (c *Client) Tools(ctx stdcontext.Context) (*ToolsReport, error) {
	var report ToolsReport
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/mcp/tools", nil, &report); err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	return &report, nil
}

// Version reports the daemon build.
func (c *Client) Version(ctx stdcontext.Context) (*VersionInfo, error) {
	var info VersionInfo
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/version", nil, &info); err != nil {
		return nil, fmt.Errorf("fetch version: %w", err)
	}
	return &info, nil
}
