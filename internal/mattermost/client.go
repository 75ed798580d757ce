package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrPostNotFound: пост ещё не виден через API (read-after-write) или удалён.
var ErrPostNotFound = errors.New("mattermost: post not found")

// Post: поля поста, которые нужны релею.
type Post struct {
	ID        string `json:"id"`
	RootID    string `json:"root_id"`
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
	Message   string `json:"message"`
}

// User: автор поста.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Nickname  string `json:"nickname"`
}

// DisplayName: «Имя Фамилия», затем ник, затем username.
func (u *User) DisplayName() string {
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Username
}

// Client: REST API v4 Mattermost с bearer-токеном бота.
type Client struct {
	baseURL    string
	token      string
	channelID  string
	httpClient *http.Client
}

func NewClient(baseURL, token, channelID string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		channelID: channelID,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type createPostRequest struct {
	ChannelID string `json:"channel_id"`
	Message   string `json:"message"`
	RootID    string `json:"root_id,omitempty"`
}

// CreateThread публикует корневой пост "### title\nmessage" и возвращает его id.
func (c *Client) CreateThread(ctx context.Context, title, message string) (string, error) {
	var post Post
	body := createPostRequest{ChannelID: c.channelID, Message: fmt.Sprintf("### %s\n%s", title, message)}
	if err := c.do(ctx, http.MethodPost, "/api/v4/posts", body, &post); err != nil {
		return "", err
	}
	if post.ID == "" {
		return "", errors.New("mattermost: create post: empty id in response")
	}
	return post.ID, nil
}

// AddComment отвечает в тред с корнем rootID.
func (c *Client) AddComment(ctx context.Context, rootID, message string) error {
	body := createPostRequest{ChannelID: c.channelID, Message: message, RootID: rootID}
	return c.do(ctx, http.MethodPost, "/api/v4/posts", body, nil)
}

// GetPost возвращает ErrPostNotFound на 404.
func (c *Client) GetPost(ctx context.Context, postID string) (*Post, error) {
	var post Post
	if err := c.do(ctx, http.MethodGet, "/api/v4/posts/"+url.PathEscape(postID), nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/api/v4/users/"+url.PathEscape(userID), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetMe возвращает пользователя, от имени которого работает токен (сам бот).
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	return c.GetUser(ctx, "me")
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("mattermost: marshal: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("mattermost: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mattermost: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && method == http.MethodGet && strings.HasPrefix(path, "/api/v4/posts/") {
		return ErrPostNotFound
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mattermost: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("mattermost: decode %s: %w", path, err)
	}
	return nil
}
