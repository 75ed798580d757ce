// Package relaytest содержит записывающие подделки Mattermost и Plane для тестов.
package relaytest

import (
	"context"
	"fmt"
	"sync"
)

type Call struct {
	Target string
	Title  string
	Text   string
}

// Threads: поддельная система тредов.
type Threads struct {
	mu       sync.Mutex
	n        int
	Created  []Call
	Comments []Call
	// CreateErr и CommentErr возвращаются вместо успеха, если заданы.
	CreateErr  error
	CommentErr error
}

func (f *Threads) CreateThread(_ context.Context, title, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	f.n++
	id := fmt.Sprintf("root-%d", f.n)
	f.Created = append(f.Created, Call{Target: id, Title: title, Text: message})
	return id, nil
}

func (f *Threads) AddComment(_ context.Context, rootID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CommentErr != nil {
		return f.CommentErr
	}
	f.Comments = append(f.Comments, Call{Target: rootID, Text: message})
	return nil
}

func (f *Threads) CommentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Comments)
}

// Issues: поддельный трекер задач.
type Issues struct {
	mu         sync.Mutex
	n          int
	Created    []Call
	Comments   []Call
	CreateErr  error
	CommentErr error
}

func (f *Issues) CreateIssue(_ context.Context, title, description string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	f.n++
	id := fmt.Sprintf("issue-%d", f.n)
	f.Created = append(f.Created, Call{Target: id, Title: title, Text: description})
	return id, nil
}

func (f *Issues) AddComment(_ context.Context, issueID, comment string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CommentErr != nil {
		return f.CommentErr
	}
	f.Comments = append(f.Comments, Call{Target: issueID, Text: comment})
	return nil
}

func (f *Issues) CommentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Comments)
}
