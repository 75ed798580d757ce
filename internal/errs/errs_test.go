package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	cause := errors.New("connection refused")
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"validation", &ValidationError{Field: "title", Reason: "too long"}, ErrValidation},
		{"user not found", UserNotFound(42), ErrNotFound},
		{"ticket not found", TicketNotFound("abc"), ErrNotFound},
		{"remote", Remote("plane", "create issue", cause), ErrRemote},
		{"remote cause", Remote("plane", "create issue", cause), cause},
		{"forbidden", &AuthorizationError{Reason: "bad token"}, ErrForbidden},
		{"wrapped", fmt.Errorf("activate: %w", Remote("mattermost", "create post", cause)), ErrRemote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.target) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.target)
			}
		})
	}
}

func TestKindsDoNotOverlap(t *testing.T) {
	err := UserNotFound(1)
	if errors.Is(err, ErrRemote) || errors.Is(err, ErrValidation) || errors.Is(err, ErrForbidden) {
		t.Errorf("NotFoundError matched a foreign kind")
	}
}

func TestRemoteSystem(t *testing.T) {
	err := fmt.Errorf("push: %w", errors.Join(
		Remote("mattermost", "add comment", errors.New("503")),
		Remote("plane", "add comment", errors.New("502")),
	))
	if got := RemoteSystem(err); got != "mattermost" {
		t.Errorf("RemoteSystem = %q, want mattermost", got)
	}
	if got := RemoteSystem(errors.New("plain")); got != "" {
		t.Errorf("RemoteSystem(plain) = %q, want empty", got)
	}
	want := "plane: create issue: boom"
	if got := Remote("plane", "create issue", errors.New("boom")).Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
