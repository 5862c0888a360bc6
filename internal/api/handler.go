package api

import (
	"net/http"
	"strconv"

	"pymata-gateway/internal/app"
	"pymata-gateway/internal/transport/ws"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Svc *app.Service
	WS  *ws.Server
}

func NewHandler(svc *app.Service, server *ws.Server) *Handler {
	return &Handler{Svc: svc, WS: server}
}

func (h *Handler) SetupRoutes(r *gin.Engine) {
	// Clients connect to the bare address; /ws is kept as an alias.
	r.GET("/", gin.WrapH(h.WS))
	r.GET("/ws", gin.WrapH(h.WS))

	r.GET("/healthz", h.Health)
	r.GET("/status", h.Status)
	r.GET("/sessions", h.Sessions)
	if h.Svc.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Svc.Metrics.Handler()))
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.Svc.Status())
}

func (h *Handler) Sessions(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	sessions, err := h.Svc.Sessions(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sessions == nil {
		c.JSON(http.StatusOK, []any{})
		return
	}
	c.JSON(http.StatusOK, sessions)
}
