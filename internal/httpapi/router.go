// Package httpapi exposes the REST surface of the chat core: posting
// messages and replies, reaction toggles, pins, and channel history. All
// endpoints require a bearer token.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/trackline/chat-core/internal/auth"
	"github.com/trackline/chat-core/internal/chat"
	"github.com/trackline/chat-core/internal/metrics"
	"github.com/trackline/chat-core/internal/ratelimit"
)

// ReactionLimiter throttles reaction toggles per user. *ratelimit.Limiter
// satisfies it.
type ReactionLimiter interface {
	Allow(ctx context.Context, identifier string, rule ratelimit.Rule) (bool, error)
}

// API bundles the services the REST handlers depend on.
type API struct {
	Messages  *chat.Service
	Reactions *chat.Reactions
	Verifier  *auth.Verifier

	// Limiter, when set, applies ratelimit.RuleReaction to the reaction
	// toggle endpoint.
	Limiter ReactionLimiter

	// WSHandler, when set, is mounted at /ws. The WebSocket server does
	// its own token validation from the query string.
	WSHandler http.HandlerFunc
}

// NewRouter builds the gin engine with all routes and middleware wired.
func NewRouter(api *API) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(rateLimit(rate.Every(time.Second/20), 40))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "uptime": time.Since(startedAt).Round(time.Second).String()})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if api.WSHandler != nil {
		r.GET("/ws", gin.WrapF(api.WSHandler))
	}

	g := r.Group("/api", bearerAuth(api.Verifier))
	g.POST("/messages", api.postMessage)
	g.POST("/messages/:id/reply", api.postReply)
	g.POST("/messages/:id/reactions", api.toggleReaction)
	g.GET("/messages/:id/reactions", api.listReactions)
	g.POST("/messages/:id/pin", api.pinMessage)
	g.DELETE("/messages/:id/pin", api.unpinMessage)
	g.GET("/channels/:id/messages", api.listMessages)

	return r
}

var startedAt = time.Now()
