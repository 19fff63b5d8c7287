package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/repo-autosync/internal/errors"
	"github.com/Kamar-Folarin/repo-autosync/internal/eventbus"
	"github.com/Kamar-Folarin/repo-autosync/internal/models"
)

const writeTimeout = 5 * time.Second

// StreamLogs godoc
// @Summary Live event stream
// @Description WebSocket delivering the retained backlog, then every new event
// @Tags logs
// @Success 101 {object} models.LogEvent
// @Router /ws/logs [get]
func (h *Handler) StreamLogs(c *gin.Context) {
	h.stream(c, nil, 0)
}

// StreamProjectLogs godoc
// @Summary Live event stream for one project
// @Tags logs
// @Param id path int true "Project ID"
// @Success 101 {object} models.LogEvent
// @Failure 404 {object} ErrorResponse
// @Router /ws/projects/{id}/logs [get]
func (h *Handler) StreamProjectLogs(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	if _, err := h.service.GetProject(c.Request.Context(), id); err != nil {
		h.handleError(c, "stream_logs", err)
		return
	}
	h.stream(c, eventbus.ProjectFilter(id), id)
}

func (h *Handler) stream(c *gin.Context, filter eventbus.Filter, projectID int64) {
	logger := h.logger.WithFields(logrus.Fields{
		"action":     "stream_logs",
		"project_id": projectID,
		"remote":     c.ClientIP(),
	})

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.CloseNow()

	// clients only listen; CloseRead handles their close frames
	ctx := conn.CloseRead(c.Request.Context())

	backlog, sub := h.bus.Subscribe(filter)
	defer sub.Close()
	logger.WithField("backlog", len(backlog)).Debug("Client subscribed")

	for _, ev := range backlog {
		if err := writeEvent(ctx, conn, ev); err != nil {
			logger.WithError(err).Debug("Client went away during backlog")
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Client disconnected")
			return
		case ev, ok := <-sub.Events():
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := writeEvent(ctx, conn, ev); err != nil {
				logger.WithError(err).Debug("Client went away")
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev models.LogEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.NewInternalError("failed to encode event", err)
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
