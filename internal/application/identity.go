package application

import (
	"context"
	"fmt"

	"github.com/psds-microservice/support-bot/internal/config"
	"github.com/psds-microservice/support-bot/internal/mattermost"
	"go.uber.org/zap"
)

type selfLookup interface {
	GetMe(ctx context.Context) (*mattermost.User, error)
}

// resolveSupportIdentity подставляет учётку владельца токена Mattermost, если она не задана явно.
func resolveSupportIdentity(ctx context.Context, cfg *config.Config, mm selfLookup, log *zap.Logger) error {
	if cfg.ValidateSupportIdentity() == nil {
		return nil
	}
	me, err := mm.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("mattermost: resolve bot identity: %w", err)
	}
	cfg.Mattermost.SupportUserID = me.ID
	cfg.Mattermost.SupportUsername = me.Username
	log.Info("echo suppression uses the token owner", zap.String("user_id", me.ID), zap.String("username", me.Username))
	return cfg.ValidateSupportIdentity()
}
