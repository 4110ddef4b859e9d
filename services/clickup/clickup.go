// Package clickup fetches a named workspace document to use as grounding
// context for the LLM. The store is read-only and strictly best-effort: a
// failed fetch leaves the session without grounding, never without a session.
package clickup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voicerelay/core"
)

// ErrDocumentNotFound is returned when the named document (or meaningful
// content in it) does not exist in the workspace.
var ErrDocumentNotFound = errors.New("clickup: document not found")

// minContentLength filters out placeholder pages; anything shorter is
// treated as absent.
const minContentLength = 10

// Config holds configuration for the ClickUp document client.
type Config struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	DocName string `json:"doc_name"`
}

// DefaultConfig returns a Config pointing at the public ClickUp API.
func DefaultConfig() Config {
	return Config{
		BaseURL: "https://api.clickup.com/api",
	}
}

// Client reads documents from a ClickUp workspace.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *core.Logger
}

func NewClient(config Config, logger *core.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultConfig().BaseURL
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type team struct {
	ID string `json:"id"`
}

type doc struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type page struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// FetchDocument walks team -> workspace docs -> pages and returns the plain
// text content of the first page of the named document.
func (c *Client) FetchDocument(ctx context.Context, name string) (string, error) {
	var teams struct {
		Teams []team `json:"teams"`
	}
	if err := c.getJSON(ctx, "/v2/team", &teams); err != nil {
		return "", err
	}
	if len(teams.Teams) == 0 {
		return "", fmt.Errorf("clickup: no teams in workspace: %w", ErrDocumentNotFound)
	}
	teamID := teams.Teams[0].ID

	var docs struct {
		Docs []doc `json:"docs"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/v3/workspaces/%s/docs", teamID), &docs); err != nil {
		return "", err
	}

	var target *doc
	for i := range docs.Docs {
		if strings.EqualFold(docs.Docs[i].Name, name) {
			target = &docs.Docs[i]
			break
		}
	}
	if target == nil {
		return "", ErrDocumentNotFound
	}

	pages, err := c.fetchPages(ctx, teamID, target.ID)
	if err != nil {
		return "", err
	}
	if len(pages) == 0 {
		return "", ErrDocumentNotFound
	}

	var full page
	path := fmt.Sprintf("/v3/workspaces/%s/docs/%s/pages/%s", teamID, target.ID, pages[0].ID)
	if err := c.getJSON(ctx, path, &full); err != nil {
		return "", err
	}

	if len(full.Content) < minContentLength {
		return "", ErrDocumentNotFound
	}
	c.logger.Infof("loaded grounding document %q (%d chars)", name, len(full.Content))
	return full.Content, nil
}

// fetchPages tolerates both response shapes the API returns: a bare list or
// an object with a "pages" array.
func (c *Client) fetchPages(ctx context.Context, teamID, docID string) ([]page, error) {
	body, err := c.get(ctx, fmt.Sprintf("/v3/workspaces/%s/docs/%s/pages", teamID, docID))
	if err != nil {
		return nil, err
	}

	var pages []page
	if err := json.Unmarshal(body, &pages); err == nil {
		return pages, nil
	}
	var wrapped struct {
		Pages []page `json:"pages"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("clickup: parse pages response: %w", err)
	}
	return wrapped.Pages, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	body, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("clickup: parse response from %s: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("clickup: %w", err)
	}
	req.Header.Set("Authorization", c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("clickup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("clickup: unexpected status %d from %s", resp.StatusCode, path)
	}
	return io.ReadAll(resp.Body)
}
