package bot

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/psds-microservice/support-bot/internal/service"
	"github.com/psds-microservice/support-bot/internal/session"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Messenger: часть tgbotapi.BotAPI, которой пользуется бот. В тестах подменяется.
type Messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// UpdateSource: long polling tgbotapi.BotAPI.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Options struct {
	Workers     int
	PollTimeout int
}

type Bot struct {
	api      Messenger
	users    *service.UserService
	tickets  *service.TicketService
	sessions session.Store
	opts     Options
	log      *zap.Logger
	routes   map[route]handlerFunc
	queue    *chatQueue
}

func New(api Messenger, users *service.UserService, tickets *service.TicketService, sessions session.Store, opts Options, log *zap.Logger) *Bot {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 60
	}
	b := &Bot{
		api:      api,
		users:    users,
		tickets:  tickets,
		sessions: sessions,
		opts:     opts,
		log:      log,
		queue:    newChatQueue(),
	}
	b.routes = b.buildRoutes()
	return b
}

// Run читает апдейты до отмены ctx. Разные чаты обрабатываются параллельно (до Workers),
// апдейты одного чата по очереди и занимают не больше одного воркера.
func (b *Bot) Run(ctx context.Context, src UpdateSource) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.opts.PollTimeout
	updates := src.GetUpdatesChan(u)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	b.log.Info("telegram polling started", zap.Int("workers", b.opts.Workers))

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case upd, ok := <-updates:
			if !ok {
				break loop
			}
			ev, ok := EventFromUpdate(upd)
			if !ok {
				continue
			}
			// Слот воркера берёт только первое событие чата, остальные ждут в его очереди.
			if b.queue.push(ev) {
				g.Go(func() error {
					b.drain(gctx, ev)
					return nil
				})
			}
		}
	}
	src.StopReceivingUpdates()
	b.log.Info("telegram polling stopped")
	return g.Wait()
}

// NotifyUser отправляет уведомление пользователю (ответы поддержки, закрытие тикета).
func (b *Bot) NotifyUser(_ context.Context, chatID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (b *Bot) send(chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("telegram send", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) answerCallback(ev Event) {
	if ev.CallbackID == "" {
		return
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(ev.CallbackID, "")); err != nil {
		b.log.Debug("answer callback", zap.Error(err))
	}
}

// drain обрабатывает первое событие чата и всё, что успело встать за ним в очередь.
func (b *Bot) drain(ctx context.Context, first Event) {
	for ev, ok := first, true; ok; ev, ok = b.queue.next(first.ChatID) {
		if ctx.Err() != nil {
			n := b.queue.drop(first.ChatID) + 1
			b.log.Info("dropping updates on shutdown", zap.Int64("chat_id", first.ChatID), zap.Int("count", n))
			return
		}
		b.Dispatch(ctx, ev)
	}
}

// chatQueue хранит необработанные события по чатам. Наличие ключа означает, что у чата есть обработчик.
type chatQueue struct {
	mu      sync.Mutex
	pending map[int64][]Event
}

func newChatQueue() *chatQueue {
	return &chatQueue{pending: make(map[int64][]Event)}
}

// push возвращает true, если чат простаивал и вызывающий должен запустить обработчик с ev.
func (q *chatQueue) push(ev Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if list, busy := q.pending[ev.ChatID]; busy {
		q.pending[ev.ChatID] = append(list, ev)
		return false
	}
	q.pending[ev.ChatID] = nil
	return true
}

// next снимает следующее событие чата. Пустая очередь освобождает чат.
func (q *chatQueue) next(chatID int64) (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	list := q.pending[chatID]
	if len(list) == 0 {
		delete(q.pending, chatID)
		return Event{}, false
	}
	q.pending[chatID] = list[1:]
	return list[0], true
}

func (q *chatQueue) drop(chatID int64) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending[chatID])
	delete(q.pending, chatID)
	return n
}
