package mattermost

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateThread(t *testing.T) {
	var got createPostRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v4/posts" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("Authorization = %q", auth)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"root1","channel_id":"ch"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "tok", "ch")
	id, err := c.CreateThread(context.Background(), "#1 Ivan Petrov: Printer", "Won't turn on")
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}
	if id != "root1" {
		t.Errorf("id = %q, want root1", id)
	}
	if got.ChannelID != "ch" || got.RootID != "" {
		t.Errorf("request = %+v", got)
	}
	if want := "### #1 Ivan Petrov: Printer\nWon't turn on"; got.Message != want {
		t.Errorf("message = %q, want %q", got.Message, want)
	}
}

func TestAddCommentSendsRootID(t *testing.T) {
	var got createPostRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"p2"}`))
	}))
	defer srv.Close()

	if err := NewClient(srv.URL, "tok", "ch").AddComment(context.Background(), "root1", "still broken"); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if got.RootID != "root1" || got.Message != "still broken" {
		t.Errorf("request = %+v", got)
	}
}

func TestGetPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v4/posts/p1":
			_, _ = w.Write([]byte(`{"id":"p1","root_id":"root1","user_id":"u1","message":"hi"}`))
		case "/api/v4/posts/boom":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "tok", "ch")

	post, err := c.GetPost(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if post.RootID != "root1" || post.UserID != "u1" || post.Message != "hi" {
		t.Errorf("post = %+v", post)
	}

	if _, err := c.GetPost(context.Background(), "missing"); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("missing post err = %v, want ErrPostNotFound", err)
	}
	_, err = c.GetPost(context.Background(), "boom")
	if err == nil || errors.Is(err, ErrPostNotFound) {
		t.Errorf("500 err = %v, want a non-404 error", err)
	}
}

func TestGetMe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v4/users/me" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"id":"bot1","username":"support-bot"}`))
	}))
	defer srv.Close()

	me, err := NewClient(srv.URL, "tok", "ch").GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe: %v", err)
	}
	if me.ID != "bot1" || me.Username != "support-bot" {
		t.Errorf("me = %+v", me)
	}
}

func TestUserDisplayName(t *testing.T) {
	tests := []struct {
		name string
		user User
		want string
	}{
		{"full name", User{Username: "jdoe", FirstName: "John", LastName: "Doe"}, "John Doe"},
		{"nickname", User{Username: "jdoe", Nickname: "Johnny"}, "Johnny"},
		{"username", User{Username: "jdoe"}, "jdoe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}
