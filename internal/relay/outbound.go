package relay

import (
	"context"
	"errors"

	"github.com/psds-microservice/support-bot/internal/errs"
)

const (
	SystemMattermost = "mattermost"
	SystemPlane      = "plane"
)

// ThreadSystem: система тредов (Mattermost).
type ThreadSystem interface {
	CreateThread(ctx context.Context, title, message string) (string, error)
	AddComment(ctx context.Context, rootID, message string) error
}

// IssueTracker: трекер задач (Plane).
type IssueTracker interface {
	CreateIssue(ctx context.Context, title, description string) (string, error)
	AddComment(ctx context.Context, issueID, comment string) error
}

// Outbound отправляет тикеты и сообщения во внешние системы. Каждая ошибка: *errs.RemoteSystemError.
type Outbound struct {
	threads ThreadSystem
	issues  IssueTracker
}

func NewOutbound(threads ThreadSystem, issues IssueTracker) *Outbound {
	return &Outbound{threads: threads, issues: issues}
}

// PushNewTicket создаёт тред, затем задачу. Если первый вызов упал, второй не выполняется.
func (o *Outbound) PushNewTicket(ctx context.Context, title, description string) (threadID, issueID string, err error) {
	threadID, err = o.threads.CreateThread(ctx, title, description)
	if err != nil {
		return "", "", errs.Remote(SystemMattermost, "create thread", err)
	}
	issueID, err = o.issues.CreateIssue(ctx, title, description)
	if err != nil {
		return "", "", errs.Remote(SystemPlane, "create issue", err)
	}
	return threadID, issueID, nil
}

// PushFollowup отправляет текст в обе системы независимо. Система без идентификатора пропускается.
func (o *Outbound) PushFollowup(ctx context.Context, threadID, issueID, text string) error {
	var errList []error
	if issueID != "" {
		if err := o.issues.AddComment(ctx, issueID, text); err != nil {
			errList = append(errList, errs.Remote(SystemPlane, "add comment", err))
		}
	}
	if threadID != "" {
		if err := o.threads.AddComment(ctx, threadID, text); err != nil {
			errList = append(errList, errs.Remote(SystemMattermost, "add comment", err))
		}
	}
	return errors.Join(errList...)
}

// CommentIssue дублирует ответ поддержки в трекер задач.
func (o *Outbound) CommentIssue(ctx context.Context, issueID, text string) error {
	if issueID == "" {
		return nil
	}
	if err := o.issues.AddComment(ctx, issueID, text); err != nil {
		return errs.Remote(SystemPlane, "add comment", err)
	}
	return nil
}
