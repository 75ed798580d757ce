package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/support-bot/internal/errs"
	"github.com/psds-microservice/support-bot/internal/model"
	"github.com/psds-microservice/support-bot/internal/service"
	"go.uber.org/zap"
)

// Notifier: доставка сообщения пользователю в Telegram.
type Notifier interface {
	NotifyUser(ctx context.Context, chatID int64, text string) error
}

// TicketHandler: админский API тикетов.
type TicketHandler struct {
	tickets  *service.TicketService
	users    *service.UserService
	notifier Notifier
	log      *zap.Logger
}

func NewTicketHandler(tickets *service.TicketService, users *service.UserService, notifier Notifier, log *zap.Logger) *TicketHandler {
	return &TicketHandler{tickets: tickets, users: users, notifier: notifier, log: log}
}

// AdminAuth проверяет заголовок "Authorization: Bearer <token>".
func AdminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || got == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

func (h *TicketHandler) List(c *gin.Context) {
	filter := make(map[string]interface{})
	if v := c.Query("status"); v != "" {
		filter["status = ?"] = v
	}
	if v := c.Query("user_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
		filter["user_id = ?"] = id
	}

	limit := 50
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = min(parsed, 500)
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	items, total, err := h.tickets.List(c.Request.Context(), filter, limit, offset)
	if err != nil {
		h.log.Error("list tickets", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tickets"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tickets": items,
		"total":   total,
	})
}

func (h *TicketHandler) Get(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	t, err := h.tickets.GetTicket(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// Close закрывает тикет и уведомляет владельца. Повторное закрытие отвечает 200 без уведомления.
func (h *TicketHandler) Close(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	before, err := h.tickets.GetTicket(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	t, err := h.tickets.CloseTicket(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if before.Status != model.TicketStatusClosed {
		h.notifyOwner(ctx, t, fmt.Sprintf("Your ticket %q has been closed. Thank you for contacting support!", t.Title))
	}
	c.JSON(http.StatusOK, t)
}

// Activate повторяет активацию pending-тикета (после сбоя Mattermost или Plane).
func (h *TicketHandler) Activate(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	t, err := h.tickets.ActivateTicket(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TicketHandler) notifyOwner(ctx context.Context, t *model.Ticket, text string) {
	u, err := h.users.GetByID(ctx, t.UserID)
	if err != nil {
		h.log.Warn("ticket owner lookup", zap.Uint64("ticket_id", t.ID), zap.Error(err))
		return
	}
	if err := h.notifier.NotifyUser(ctx, u.ExternalChatID, text); err != nil {
		h.log.Warn("notify ticket owner", zap.Uint64("ticket_id", t.ID), zap.Error(err))
	}
}

func ticketID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func (h *TicketHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrRemote):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "system": errs.RemoteSystem(err)})
	default:
		h.log.Error("admin api", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
