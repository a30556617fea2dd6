package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/trackline/chat-core/internal/chat"
	"github.com/trackline/chat-core/internal/ratelimit"
)

type postMessageReq struct {
	ChannelID int64  `json:"channelId"`
	Body      string `json:"body"`
}

type reactionReq struct {
	Emoji  string `json:"emoji"`
	Action string `json:"action"` // "add" or "remove"
}

func (a *API) postMessage(c *gin.Context) {
	var req postMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	msg, err := a.Messages.PostMessage(c.Request.Context(), req.ChannelID, requestUserID(c), req.Body)
	if err != nil {
		writeChatError(c, req.ChannelID, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (a *API) postReply(c *gin.Context) {
	replyToID, ok := pathID(c)
	if !ok {
		return
	}
	var req postMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	msg, err := a.Messages.PostReply(c.Request.Context(), req.ChannelID, replyToID, requestUserID(c), req.Body)
	if err != nil {
		writeChatError(c, req.ChannelID, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (a *API) toggleReaction(c *gin.Context) {
	messageID, ok := pathID(c)
	if !ok {
		return
	}
	var req reactionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if a.Limiter != nil {
		key := strconv.FormatInt(requestUserID(c), 10)
		allowed, err := a.Limiter.Allow(c.Request.Context(), key, ratelimit.RuleReaction)
		if err != nil {
			log.Warn().Err(err).Msg("reaction rate limit check failed")
		} else if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
	}

	var (
		counts map[string]int
		err    error
	)
	switch req.Action {
	case "add":
		counts, err = a.Reactions.Add(c.Request.Context(), messageID, requestUserID(c), req.Emoji)
	case "remove":
		counts, err = a.Reactions.Remove(c.Request.Context(), messageID, requestUserID(c), req.Emoji)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be add or remove"})
		return
	}
	if err != nil {
		writeChatError(c, 0, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reactions": counts})
}

func (a *API) listReactions(c *gin.Context) {
	messageID, ok := pathID(c)
	if !ok {
		return
	}

	groups, err := a.Reactions.Grouped(c.Request.Context(), messageID, requestUserID(c))
	if err != nil {
		writeChatError(c, 0, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (a *API) pinMessage(c *gin.Context) {
	messageID, ok := pathID(c)
	if !ok {
		return
	}

	msg, err := a.Messages.Pin(c.Request.Context(), messageID, requestUserID(c))
	if err != nil {
		writeChatError(c, 0, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (a *API) unpinMessage(c *gin.Context) {
	messageID, ok := pathID(c)
	if !ok {
		return
	}

	msg, err := a.Messages.Unpin(c.Request.Context(), messageID, requestUserID(c))
	if err != nil {
		writeChatError(c, 0, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (a *API) listMessages(c *gin.Context) {
	channelID, ok := pathID(c)
	if !ok {
		return
	}

	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	msgs, err := a.Messages.ListMessages(c.Request.Context(), channelID, requestUserID(c), limit)
	if err != nil {
		writeChatError(c, channelID, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// pathID parses the :id path parameter, writing a 400 response on failure.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// writeChatError translates domain errors to HTTP responses. Disabled and
// locked channels carry the channel ID so clients can render a specific
// banner; a chat.ChannelError on the chain supplies it when the handler
// only knows a message ID.
func writeChatError(c *gin.Context, channelID int64, err error) {
	var chErr *chat.ChannelError
	if errors.As(err, &chErr) {
		channelID = chErr.ChannelID
	}
	switch {
	case errors.Is(err, chat.ErrUserMuted):
		c.JSON(http.StatusForbidden, gin.H{"error": "User is muted"})
	case errors.Is(err, chat.ErrChatDisabled):
		c.JSON(http.StatusForbidden, gin.H{"error": "CHAT_DISABLED", "channelId": channelID})
	case errors.Is(err, chat.ErrChannelLocked):
		c.JSON(http.StatusForbidden, gin.H{"error": "CHANNEL_LOCKED", "channelId": channelID})
	case errors.Is(err, chat.ErrAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
	case errors.Is(err, chat.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, chat.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
