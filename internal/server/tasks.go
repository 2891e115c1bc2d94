package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"famplan/internal/model"
	"famplan/internal/store"
)

// taskReq accepts the canonical shape plus the legacy single-recipient
// alias used by the old exporter.
type taskReq struct {
	Title      string `json:"title" binding:"required"`
	Date       string `json:"date" binding:"required"`
	Time       string `json:"time" binding:"required"`
	Recipients string `json:"recipients,omitempty"`
	Child      string `json:"child,omitempty"` // legacy alias
	Category   string `json:"category,omitempty"`

	Recurring  bool    `json:"recurring,omitempty"`
	TemplateID *string `json:"template_id,omitempty"`

	Completed        bool  `json:"completed,omitempty"`
	SendNotification *bool `json:"send_notification,omitempty"`
	NeedsAck         bool  `json:"needs_ack,omitempty"`
}

func (r taskReq) normalize() model.Task {
	recipients := strings.TrimSpace(r.Recipients)
	if recipients == "" {
		recipients = strings.TrimSpace(r.Child)
	}
	t := model.Task{
		Title:            strings.TrimSpace(r.Title),
		Date:             strings.TrimSpace(r.Date),
		Clock:            strings.TrimSpace(r.Time),
		Recipients:       recipients,
		Category:         r.Category,
		Recurring:        r.Recurring,
		TemplateID:       r.TemplateID,
		Completed:        r.Completed,
		NeedsAck:         r.NeedsAck,
		SendNotification: true,
	}
	if r.SendNotification != nil {
		t.SendNotification = *r.SendNotification
	}
	return t
}

func (s *Server) createTask(c *gin.Context) {
	var req taskReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	t, err := s.store.CreateTask(c.Request.Context(), req.normalize())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (s *Server) listTasks(c *gin.Context) {
	tasks, err := s.store.ListTasks(c.Request.Context(), c.Query("from"), c.Query("to"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (s *Server) getTask(c *gin.Context) {
	t, err := s.store.GetTask(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) updateTask(c *gin.Context) {
	var req taskReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	t := req.normalize()
	t.ID = c.Param("id")
	err := s.store.UpdateTask(c.Request.Context(), t)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) deleteTask(c *gin.Context) {
	err := s.store.DeleteTask(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ackTask is the acknowledgement endpoint: completing a task is what
// permanently silences its reminders.
func (s *Server) ackTask(c *gin.Context) {
	err := s.store.MarkCompleted(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
