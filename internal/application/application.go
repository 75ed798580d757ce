package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/psds-microservice/support-bot/internal/bot"
	"github.com/psds-microservice/support-bot/internal/config"
	"github.com/psds-microservice/support-bot/internal/database"
	"github.com/psds-microservice/support-bot/internal/handler"
	"github.com/psds-microservice/support-bot/internal/logger"
	"github.com/psds-microservice/support-bot/internal/mattermost"
	"github.com/psds-microservice/support-bot/internal/plane"
	"github.com/psds-microservice/support-bot/internal/relay"
	"github.com/psds-microservice/support-bot/internal/repository"
	"github.com/psds-microservice/support-bot/internal/router"
	"github.com/psds-microservice/support-bot/internal/service"
	"github.com/psds-microservice/support-bot/internal/session"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// App: бот Telegram и HTTP-сервер (вебхук Mattermost, admin API, health).
type App struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *gorm.DB
	redis   *redis.Client
	events  *EventSink
	tg      *tgbotapi.BotAPI
	bot     *bot.Bot
	httpSrv *http.Server
}

// New собирает приложение. Ошибка конфигурации или недоступная БД/Telegram: фатальны.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogLevel, cfg.AppEnv)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	a := &App{cfg: cfg, log: log}
	if err := a.init(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg, log := a.cfg, a.log

	if cfg.AutoMigrate {
		if err := database.MigrateUp(cfg.DatabaseURL(), log); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	db, err := database.Open(cfg.DSN())
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	a.db = db
	users := repository.NewUserRepository(db)
	tickets := repository.NewTicketRepository(db)
	messages := repository.NewMessageRepository(db)

	var sessions session.Store
	if cfg.Redis.Enabled {
		client, err := session.DialRedis(ctx, cfg.RedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		a.redis = client
		sessions = session.NewRedisStore(client, cfg.Redis.SessionTTL)
		log.Info("sessions: redis", zap.String("addr", cfg.RedisAddr()))
	} else {
		sessions = session.NewMemoryStore()
		log.Info("sessions: in-memory, lost on restart")
	}

	mm := mattermost.NewClient(cfg.Mattermost.URL, cfg.Mattermost.Token, cfg.Mattermost.ChannelID)
	if err := resolveSupportIdentity(ctx, cfg, mm, log); err != nil {
		return err
	}
	pl := plane.NewClient(cfg.Plane.APIURL, cfg.Plane.Token, cfg.Plane.WorkspaceID, cfg.Plane.ProjectID, cfg.Plane.InitialState)
	outbound := relay.NewOutbound(mm, pl)

	events, err := NewEventSink(cfg, log)
	if err != nil {
		return err
	}
	a.events = events

	ticketSvc := service.NewTicketService(tickets, users, messages, outbound, events.Producer, service.TicketOptions{
		ActivePolicy: cfg.Tickets.ActivePolicy,
		ActiveWindow: cfg.Tickets.ActiveWindow,
		RelayOrder:   cfg.Tickets.RelayOrder,
	}, log)
	userSvc := service.NewUserService(users, log)

	tg, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	a.tg = tg
	log.Info("telegram authorized", zap.String("bot", tg.Self.UserName))

	a.bot = bot.New(tg, userSvc, ticketSvc, sessions, bot.Options{
		Workers:     cfg.Bot.Workers,
		PollTimeout: cfg.Bot.PollTimeout,
	}, log.Named("bot"))

	inbound := service.NewInboundRelay(ticketSvc, userSvc, mm, outbound, a.bot, service.InboundOptions{
		WebhookToken:    cfg.Mattermost.WebhookToken,
		SupportUserID:   cfg.Mattermost.SupportUserID,
		SupportUsername: cfg.Mattermost.SupportUsername,
		FetchAttempts:   cfg.Webhook.PostFetchAttempts,
		FetchBackoff:    cfg.Webhook.PostFetchBackoff,
	}, log.Named("inbound"))
	if cfg.Mattermost.WebhookToken == "" {
		log.Warn("MATTERMOST_WEBHOOK_TOKEN is empty, webhook token check disabled")
	}

	checks := map[string]handler.Pinger{
		"database": func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Ping()
		},
	}
	if a.redis != nil {
		checks["redis"] = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return a.redis.Ping(pingCtx).Err()
		}
	}

	a.httpSrv = &http.Server{
		Addr: cfg.Addr(),
		Handler: router.New(router.Deps{
			Webhook:    handler.NewWebhookHandler(inbound, log.Named("webhook")),
			Tickets:    handler.NewTicketHandler(ticketSvc, userSvc, a.bot, log.Named("admin")),
			AdminToken: cfg.AdminAPIToken,
			Checks:     checks,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Вебхук может ждать появления поста (повторы GetPost).
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return nil
}

// Run запускает HTTP-сервер и long polling Telegram, блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	a.log.Info("HTTP server listening",
		zap.String("addr", a.httpSrv.Addr),
		zap.String("swagger", base+router.PathSwagger),
		zap.String("health", base+router.PathHealth),
		zap.String("webhook", base+router.PathWebhook),
		zap.Bool("admin_api", a.cfg.AdminAPIToken != ""),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.bot.Run(gctx, a.tg)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})
	err := g.Wait()
	a.log.Info("stopped")
	return err
}

func (a *App) close() {
	if err := a.events.Close(); err != nil {
		a.log.Warn("close event producer", zap.Error(err))
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	_ = a.log.Sync()
}
