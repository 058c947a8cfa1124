// Package api implements the HTTP clients for the agent and finance backend
// services. Transport and auth-header construction live here; callers only
// see typed requests and responses.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// defaultHTTPTimeout is the per-request timeout. Imports can carry whole
// base64-encoded statements, so it is generous.
const defaultHTTPTimeout = 60 * time.Second

// TokenSource supplies the current access token, if any. Implemented by the
// auth session manager.
type TokenSource interface {
	AccessToken() (string, bool)
}

// Error is a failed HTTP call, carrying the status code and the detail text
// extracted from the response body.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("request failed (%d)", e.Status)
	}
	return fmt.Sprintf("request failed (%d): %s", e.Status, e.Detail)
}

// IsAuthError reports whether err looks like an expired or missing session,
// used to offer the session-refresh affordance.
func IsAuthError(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// Client talks to the agent service and the finance backend.
type Client struct {
	agentURL   string
	backendURL string
	tokens     TokenSource
	httpClient *http.Client
}

// NewClient creates a client for the given base URLs. Trailing slashes are
// stripped because paths are joined verbatim.
func NewClient(agentURL, backendURL string, tokens TokenSource) *Client {
	return &Client{
		agentURL:   strings.TrimRight(agentURL, "/"),
		backendURL: strings.TrimRight(backendURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// Chat sends one user message through the agent loop.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, c.agentURL+"/agent/chat", req)
	if err != nil {
		return nil, err
	}
	var resp ChatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	return &resp, nil
}

// Health probes the agent service.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, c.agentURL+"/health", nil)
	return err
}

// ImportReleves uploads one or more bank statements for import.
//
// Outcome discrimination is in the body, not the HTTP status: a 200 with
// ok=false is a clarification or error result, never a transport failure.
func (c *Client) ImportReleves(ctx context.Context, req ImportRequest) (*ImportOutcome, error) {
	if req.ImportMode == "" {
		req.ImportMode = "commit"
	}
	if req.ModifiedAction == "" {
		req.ModifiedAction = "replace"
	}
	respBody, err := c.doRequest(ctx, http.MethodPost, c.backendURL+"/finance/releves/import", req)
	if err != nil {
		return nil, err
	}
	var outcome ImportOutcome
	if err := json.Unmarshal(respBody, &outcome); err != nil {
		return nil, fmt.Errorf("decode import result: %w", err)
	}
	return &outcome, nil
}

// PendingAliasCount returns the number of merchant aliases awaiting
// resolution.
func (c *Client) PendingAliasCount(ctx context.Context) (int, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, c.backendURL+"/finance/merchants/aliases/pending-count", nil)
	if err != nil {
		return 0, err
	}
	var resp struct {
		PendingTotalCount int `json:"pending_total_count"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return 0, fmt.Errorf("decode pending count: %w", err)
	}
	return resp.PendingTotalCount, nil
}

// ResolvePendingAliases runs merchant-alias resolution batches until the
// pending queue drains.
func (c *Client) ResolvePendingAliases(ctx context.Context) (*AliasResolveResult, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, c.backendURL+"/finance/merchants/aliases/resolve-pending", struct{}{})
	if err != nil {
		return nil, err
	}
	var result AliasResolveResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode resolve result: %w", err)
	}
	return &result, nil
}

// SpendingReportPDF fetches the generated spending report as a binary blob.
func (c *Client) SpendingReportPDF(ctx context.Context) ([]byte, error) {
	return c.FetchDocument(ctx, "/finance/reports/spending.pdf")
}

// FetchDocument downloads a document by URL. Directive URLs are usually
// backend-relative paths; absolute URLs are fetched as given.
func (c *Client) FetchDocument(ctx context.Context, url string) ([]byte, error) {
	if strings.HasPrefix(url, "/") {
		url = c.backendURL + url
	}
	return c.doRequest(ctx, http.MethodGet, url, nil)
}

// doRequest performs one JSON request and returns the raw response body.
// Non-2xx responses become an *Error with the detail text extracted from the
// body.
func (c *Client) doRequest(ctx context.Context, method, url string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token, ok := c.tokens.AccessToken(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &Error{Status: httpResp.StatusCode, Detail: extractDetail(respBody)}
	}
	return respBody, nil
}

// extractDetail pulls a human-readable message out of an error body. The
// backend wraps errors as {"detail": ...} or {"message": ...}; anything else
// is surfaced verbatim, truncated.
func extractDetail(body []byte) string {
	var wrapped struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil {
		switch {
		case wrapped.Detail != "":
			return wrapped.Detail
		case wrapped.Message != "":
			return wrapped.Message
		case wrapped.Error != "":
			return wrapped.Error
		}
	}
	text := strings.TrimSpace(string(body))
	const maxDetail = 200
	if len(text) > maxDetail {
		text = text[:maxDetail] + "…"
	}
	return text
}
