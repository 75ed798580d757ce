package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/support-bot/api"
	"github.com/psds-microservice/support-bot/internal/handler"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const (
	PathHealth  = "/health"
	PathReady   = "/ready"
	PathSwagger = "/swagger"
	PathWebhook = "/webhook/mattermost"
	PathAPIv1   = "/api/v1"
)

type Deps struct {
	Webhook *handler.WebhookHandler
	// Tickets и AdminToken: admin API. Без токена группа /api/v1 не монтируется.
	Tickets    *handler.TicketHandler
	AdminToken string
	Checks     map[string]handler.Pinger
}

func New(d Deps) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET(PathHealth, handler.Health)
	r.GET(PathReady, handler.Ready(d.Checks))
	r.GET(PathSwagger, func(c *gin.Context) { c.Redirect(http.StatusFound, PathSwagger+"/") })
	r.GET(PathSwagger+"/*any", func(c *gin.Context) {
		if strings.TrimPrefix(c.Param("any"), "/") == "openapi.json" {
			c.Data(http.StatusOK, "application/json", api.OpenAPISpec)
			return
		}
		if strings.TrimPrefix(c.Param("any"), "/") == "" {
			c.Request.URL.Path = PathSwagger + "/index.html"
			c.Request.RequestURI = PathSwagger + "/index.html"
		}
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(PathSwagger+"/openapi.json"))(c)
	})

	r.POST(PathWebhook, d.Webhook.Mattermost)

	if d.Tickets != nil && d.AdminToken != "" {
		v1 := r.Group(PathAPIv1, handler.AdminAuth(d.AdminToken))
		{
			v1.GET("/tickets", d.Tickets.List)
			v1.GET("/tickets/:id", d.Tickets.Get)
			v1.POST("/tickets/:id/close", d.Tickets.Close)
			v1.POST("/tickets/:id/activate", d.Tickets.Activate)
		}
	}

	return r
}
