package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/qbot/internal/access"
	"github.com/suPer8Hu/qbot/internal/common"
	"github.com/suPer8Hu/qbot/internal/httpapi/middleware"
)

type addUserReq struct {
	UserID int64 `json:"user_id" binding:"required"`
}

func (h *Handler) ListUsers(c *gin.Context) {
	actor, _ := middleware.UserID(c)
	listing, err := h.Gate.List(c.Request.Context(), actor)
	if err != nil {
		h.gateError(c, err)
		return
	}
	dynamic := make([]gin.H, 0, len(listing.Dynamic))
	for _, u := range listing.Dynamic {
		dynamic = append(dynamic, gin.H{
			"user_id":    u.UserID,
			"added_by":   u.AddedBy,
			"created_at": u.CreatedAt,
		})
	}
	common.OK(c, gin.H{
		"owner":   listing.Owner,
		"static":  listing.Static,
		"dynamic": dynamic,
	})
}

func (h *Handler) AddUser(c *gin.Context) {
	actor, _ := middleware.UserID(c)
	var req addUserReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeBadRequest, "user_id required")
		return
	}
	if err := h.Gate.Add(c.Request.Context(), actor, req.UserID); err != nil {
		h.gateError(c, err)
		return
	}
	common.OK(c, gin.H{"user_id": req.UserID})
}

func (h *Handler) RemoveUser(c *gin.Context) {
	actor, _ := middleware.UserID(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeBadRequest, "invalid user id")
		return
	}
	if err := h.Gate.Remove(c.Request.Context(), actor, id); err != nil {
		h.gateError(c, err)
		return
	}
	common.OK(c, gin.H{"user_id": id})
}

func (h *Handler) gateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, access.ErrNotOwner):
		common.Fail(c, http.StatusForbidden, common.CodeForbidden, "owner only")
	case errors.Is(err, access.ErrOwnerImmune), errors.Is(err, access.ErrStaticUser):
		common.Fail(c, http.StatusConflict, common.CodeConflict, err.Error())
	case errors.Is(err, access.ErrNotListed):
		common.Fail(c, http.StatusNotFound, common.CodeNotFound, "user not found")
	default:
		h.Logger.Error("allow-list operation failed", "request_id", c.GetString(middleware.RequestIDKey), "error", err)
		common.Fail(c, http.StatusInternalServerError, common.CodeInternal, "internal error")
	}
}
