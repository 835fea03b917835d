// Package handler serves the in-app notification inbox.
package handler

import (
	"net/http"

	"techo_backend/internal/notification/inapp"
	"techo_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

const invalidQueryMsg = "invalid query parameters"

// InboxRequest pages through a user's notifications.
type InboxRequest struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=50"`
}

// UnreadResponse is the badge count shown next to the bell icon.
type UnreadResponse struct {
	Count int `json:"count"`
}

// MarkAllReadResponse reports how many notifications were marked.
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

type HTTPHandler struct {
	svc *inapp.Service
}

func NewHTTPHandler(svc *inapp.Service) *HTTPHandler {
	return &HTTPHandler{svc: svc}
}

func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.Inbox)
	rg.GET("/unread", h.CountUnread)
	rg.PATCH("/:id/read", h.MarkRead)
	rg.PATCH("/read-all", h.MarkAllRead)
}

func (h *HTTPHandler) Inbox(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req InboxRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, invalidQueryMsg, err.Error())
		return
	}

	page, err := h.svc.Inbox(c.Request.Context(), identity.UserID(), req.Page, req.Limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, page)
}

func (h *HTTPHandler) CountUnread(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	count, err := h.svc.CountUnread(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, UnreadResponse{Count: count})
}

// MarkRead only touches notifications addressed to the caller.
func (h *HTTPHandler) MarkRead(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := httpkit.ParseUUIDParam(c, "id", "invalid notification ID")
	if !ok {
		return
	}
	if err := h.svc.MarkRead(c.Request.Context(), identity.UserID(), id); httpkit.HandleError(c, err) {
		return
	}
	httpkit.NoContent(c)
}

func (h *HTTPHandler) MarkAllRead(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	updated, err := h.svc.MarkAllRead(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, MarkAllReadResponse{Updated: updated})
}
