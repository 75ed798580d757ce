package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/support-bot/internal/errs"
	"github.com/psds-microservice/support-bot/internal/service"
	"go.uber.org/zap"
)

// InboundRelay: обработчик ответа поддержки.
type InboundRelay interface {
	Handle(ctx context.Context, ev service.InboundEvent) (service.Outcome, error)
}

type WebhookHandler struct {
	relay InboundRelay
	log   *zap.Logger
}

func NewWebhookHandler(relay InboundRelay, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{relay: relay, log: log}
}

// mattermostWebhook: тело исходящего вебхука Mattermost (JSON или form).
type mattermostWebhook struct {
	Token     string `json:"token" form:"token"`
	PostID    string `json:"post_id" form:"post_id"`
	UserID    string `json:"user_id" form:"user_id"`
	UserName  string `json:"user_name" form:"user_name"`
	ChannelID string `json:"channel_id" form:"channel_id"`
	Text      string `json:"text" form:"text"`
}

type webhookResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Mattermost обрабатывает POST /webhook/mattermost.
func (h *WebhookHandler) Mattermost(c *gin.Context) {
	var req mattermostWebhook
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, webhookResponse{Status: "error", Message: "invalid payload"})
		return
	}
	outcome, err := h.relay.Handle(c.Request.Context(), service.InboundEvent{
		Token:    req.Token,
		PostID:   req.PostID,
		UserID:   req.UserID,
		UserName: req.UserName,
		Text:     req.Text,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, webhookResponse{Status: "ok", Message: string(outcome)})
	case errors.Is(err, errs.ErrForbidden):
		h.log.Warn("webhook rejected", zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusForbidden, webhookResponse{Status: "error", Message: "invalid token"})
	case errors.Is(err, errs.ErrValidation):
		c.JSON(http.StatusBadRequest, webhookResponse{Status: "error", Message: err.Error()})
	default:
		h.log.Error("webhook failed", zap.String("post_id", req.PostID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, webhookResponse{Status: "error", Message: err.Error()})
	}
}
