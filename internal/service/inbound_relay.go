package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/psds-microservice/support-bot/internal/errs"
	"github.com/psds-microservice/support-bot/internal/mattermost"
	"github.com/psds-microservice/support-bot/internal/model"
	"github.com/psds-microservice/support-bot/internal/relay"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const fallbackAuthor = "support agent"

// Notifier доставляет текст пользователю в Telegram.
type Notifier interface {
	NotifyUser(ctx context.Context, chatID int64, text string) error
}

// PostSource: чтение постов и авторов из Mattermost.
type PostSource interface {
	GetPost(ctx context.Context, postID string) (*mattermost.Post, error)
	GetUser(ctx context.Context, userID string) (*mattermost.User, error)
}

// InboundEvent: поля исходящего вебхука Mattermost.
type InboundEvent struct {
	Token    string
	PostID   string
	UserID   string
	UserName string
	Text     string
}

// Outcome: чем закончилась обработка вебхука. Всё, кроме OutcomeRelayed, означает no-op.
type Outcome string

const (
	OutcomeRelayed        Outcome = "relayed"
	OutcomeEcho           Outcome = "ignored"
	OutcomePostNotFound   Outcome = "post_not_found"
	OutcomeNotThread      Outcome = "not_thread"
	OutcomeTicketNotFound Outcome = "ticket_not_found"
	OutcomeUserNotFound   Outcome = "user_not_found"
	OutcomeEmpty          Outcome = "empty"
)

type InboundOptions struct {
	// WebhookToken - общий секрет. Пустой отключает проверку.
	WebhookToken    string
	SupportUserID   string
	SupportUsername string
	FetchAttempts   int
	FetchBackoff    time.Duration
}

// InboundRelay пересылает ответы поддержки из тредов Mattermost пользователю.
type InboundRelay struct {
	tickets  *TicketService
	users    *UserService
	posts    PostSource
	outbound *relay.Outbound
	notifier Notifier
	opts     InboundOptions
	log      *zap.Logger
}

func NewInboundRelay(tickets *TicketService, users *UserService, posts PostSource, outbound *relay.Outbound, notifier Notifier, opts InboundOptions, log *zap.Logger) *InboundRelay {
	if opts.FetchAttempts < 1 {
		opts.FetchAttempts = 1
	}
	if opts.FetchBackoff <= 0 {
		opts.FetchBackoff = time.Millisecond
	}
	return &InboundRelay{
		tickets:  tickets,
		users:    users,
		posts:    posts,
		outbound: outbound,
		notifier: notifier,
		opts:     opts,
		log:      log,
	}
}

// Handle обрабатывает одно событие. Ошибка *errs.AuthorizationError: неверный токен,
// *errs.ValidationError, если нет post_id. Прочие ошибки вызывающий превращает в 500.
func (r *InboundRelay) Handle(ctx context.Context, ev InboundEvent) (Outcome, error) {
	if r.opts.WebhookToken != "" && subtle.ConstantTimeCompare([]byte(ev.Token), []byte(r.opts.WebhookToken)) != 1 {
		return "", &errs.AuthorizationError{Reason: "webhook token mismatch"}
	}
	if strings.TrimSpace(ev.PostID) == "" {
		return "", &errs.ValidationError{Field: "post_id", Reason: "required"}
	}
	log := r.log.With(zap.String("post_id", ev.PostID))

	post, err := r.fetchPost(ctx, ev.PostID)
	if errors.Is(err, mattermost.ErrPostNotFound) {
		log.Warn("post not visible after retries", zap.Int("attempts", r.opts.FetchAttempts))
		return OutcomePostNotFound, nil
	}
	if err != nil {
		return "", errs.Remote(relay.SystemMattermost, "get post", err)
	}

	rootID := post.RootID
	if rootID == "" {
		rootID = post.ID
	}
	if rootID == "" {
		log.Info("not a thread reply")
		return OutcomeNotThread, nil
	}

	ticket, err := r.tickets.ResolveTicketByRemoteThreadID(ctx, rootID)
	if err != nil {
		return "", err
	}
	if ticket == nil {
		log.Warn("no ticket for thread", zap.String("root_id", rootID))
		return OutcomeTicketNotFound, nil
	}
	user, err := r.users.GetByID(ctx, ticket.UserID)
	if errors.Is(err, errs.ErrNotFound) {
		log.Warn("ticket owner missing", zap.Uint64("ticket_id", ticket.ID), zap.Uint64("user_id", ticket.UserID))
		return OutcomeUserNotFound, nil
	}
	if err != nil {
		return "", err
	}

	authorID := post.UserID
	if authorID == "" {
		authorID = ev.UserID
	}
	if r.isSupportBot(authorID, ev.UserName) {
		log.Debug("echo suppressed", zap.String("author_id", authorID))
		return OutcomeEcho, nil
	}
	author, authorUsername := r.authorName(ctx, authorID, ev.UserName)
	if r.isSupportBot("", authorUsername) {
		log.Debug("echo suppressed", zap.String("author", authorUsername))
		return OutcomeEcho, nil
	}

	text := strings.TrimSpace(post.Message)
	if text == "" {
		text = strings.TrimSpace(ev.Text)
	}
	if text == "" {
		return OutcomeEmpty, nil
	}

	if err := r.notifier.NotifyUser(ctx, user.ExternalChatID, FormatSupportReply(ticket, author, text)); err != nil {
		return "", fmt.Errorf("notify user %d: %w", user.ID, err)
	}
	if _, err := r.tickets.AddMessage(ctx, ticket, text, model.SenderSupport); err != nil {
		return "", err
	}
	if err := r.outbound.CommentIssue(ctx, ticket.IssueID(), author+": "+text); err != nil {
		return "", err
	}
	log.Info("support reply relayed", zap.Uint64("ticket_id", ticket.ID), zap.String("author", author))
	return OutcomeRelayed, nil
}

// FormatSupportReply: текст уведомления пользователю.
func FormatSupportReply(t *model.Ticket, author, text string) string {
	return fmt.Sprintf("New reply on your ticket %q from %s:\n\n%s", t.Title, author, text)
}

// fetchPost повторяет запрос только пока пост не виден (404).
func (r *InboundRelay) fetchPost(ctx context.Context, postID string) (*mattermost.Post, error) {
	var post *mattermost.Post
	backoff := retry.WithMaxRetries(uint64(r.opts.FetchAttempts-1), retry.NewConstant(r.opts.FetchBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		p, err := r.posts.GetPost(ctx, postID)
		if errors.Is(err, mattermost.ErrPostNotFound) {
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		post = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (r *InboundRelay) isSupportBot(userID, username string) bool {
	if r.opts.SupportUserID != "" && userID == r.opts.SupportUserID {
		return true
	}
	return r.opts.SupportUsername != "" && username != "" && strings.EqualFold(username, r.opts.SupportUsername)
}

// authorName возвращает отображаемое имя и username автора. Ошибка API не прерывает пересылку.
func (r *InboundRelay) authorName(ctx context.Context, userID, fallbackUsername string) (name, username string) {
	if userID != "" {
		u, err := r.posts.GetUser(ctx, userID)
		if err == nil && u != nil {
			if n := u.DisplayName(); n != "" {
				return n, u.Username
			}
			return fallbackAuthor, u.Username
		}
		r.log.Warn("get mattermost user", zap.String("user_id", userID), zap.Error(err))
	}
	if fallbackUsername != "" {
		return fallbackUsername, fallbackUsername
	}
	return fallbackAuthor, ""
}
