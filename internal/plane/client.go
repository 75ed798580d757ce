package plane

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client: REST API Plane для одного проекта воркспейса.
type Client struct {
	baseURL      string
	token        string
	workspaceID  string
	projectID    string
	initialState string
	httpClient   *http.Client
}

func NewClient(baseURL, token, workspaceID, projectID, initialState string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		token:        token,
		workspaceID:  workspaceID,
		projectID:    projectID,
		initialState: initialState,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
	}
}

type createIssueRequest struct {
	Name            string `json:"name"`
	DescriptionHTML string `json:"description_html"`
	State           string `json:"state,omitempty"`
}

type commentRequest struct {
	CommentHTML string `json:"comment_html"`
}

type issueResponse struct {
	ID string `json:"id"`
}

func (c *Client) issuesPath() string {
	return fmt.Sprintf("/api/workspaces/%s/projects/%s/issues", url.PathEscape(c.workspaceID), url.PathEscape(c.projectID))
}

// CreateIssue создаёт задачу и возвращает её id.
func (c *Client) CreateIssue(ctx context.Context, title, description string) (string, error) {
	var out issueResponse
	body := createIssueRequest{Name: title, DescriptionHTML: toHTML(description), State: c.initialState}
	if err := c.post(ctx, c.issuesPath(), body, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("plane: create issue: empty id in response")
	}
	return out.ID, nil
}

func (c *Client) AddComment(ctx context.Context, issueID, comment string) error {
	path := c.issuesPath() + "/" + url.PathEscape(issueID) + "/comments"
	return c.post(ctx, path, commentRequest{CommentHTML: toHTML(comment)}, nil)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("plane: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("plane: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-API-Key", c.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("plane: POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("plane: POST %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("plane: decode %s: %w", path, err)
	}
	return nil
}

// toHTML экранирует текст и переводит строки в <br>.
func toHTML(s string) string {
	return "<p>" + strings.ReplaceAll(html.EscapeString(s), "\n", "<br>") + "</p>"
}
