package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/qbot/internal/common"
	"github.com/suPer8Hu/qbot/internal/telegram"
)

// Webhook acknowledges the update at once and processes it in the
// background, detached from the request context.
func (h *Handler) Webhook(c *gin.Context) {
	var u telegram.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		h.Logger.Warn("bad webhook payload", "error", err)
		common.Fail(c, http.StatusBadRequest, common.CodeBadRequest, "invalid json")
		return
	}
	h.Bot.Dispatch(context.WithoutCancel(c.Request.Context()), u)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": h.Now().UTC().Format(time.RFC3339Nano),
	})
}
