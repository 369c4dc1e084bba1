package audit

import (
	"net/http"
	"strconv"

	"confbooking/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	recorder *Recorder
}

func NewHandler(recorder *Recorder) *Handler {
	return &Handler{recorder: recorder}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/audit-logs", h.ListEntries)
}

func (h *Handler) ListEntries(c *gin.Context) {
	f := Filter{
		ResourceType: c.Query("resource_type"),
		ResourceID:   c.Query("resource_id"),
		Action:       c.Query("action"),
	}
	if v := c.Query("actor_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "actor_id must be an integer")
			return
		}
		f.ActorID = id
	}
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	f.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, err := h.recorder.List(c.Request.Context(), f)
	if err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list audit entries")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"entries": entries})
}
