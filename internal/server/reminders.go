package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	logx "famplan/pkg/logx"
)

// runSweep is the external trigger: one full sweep per call, returning
// the summary. Infrastructure failures surface as 500; per-task problems
// are part of the summary, not errors.
func (s *Server) runSweep(c *gin.Context) {
	sum, err := s.orch.Sweep(c.Request.Context())
	if err != nil {
		s.log.Error("sweep failed", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) sweepStatus(c *gin.Context) {
	last := s.orch.Last()
	if last == nil {
		c.JSON(http.StatusOK, gin.H{"ok": true, "last": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "last": last})
}
