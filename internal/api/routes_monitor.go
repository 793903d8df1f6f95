package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mcwarden-project/mcwarden/internal/command"
	"github.com/mcwarden-project/mcwarden/internal/util"
)

// handleStatus returns overall daemon status: RCON link, bridge state,
// host resource usage.
func (s *Server) handleStatus(c *gin.Context) {
	mc := s.cfg.GetMinecraft()

	status := gin.H{
		"uptime_sec":     int(time.Since(s.started).Seconds()),
		"rcon_addr":      s.session.Addr(),
		"rcon_connected": s.session.Connected(),
		"log_monitor":    mc.EnableLogMonitor,
	}

	if s.bridge != nil {
		status["bridge_state"] = s.bridge.State().String()
	}

	if cpu, err := util.GetCPUUsage(); err == nil {
		status["cpu_percent"] = cpu
	}
	if mem, err := util.GetMemoryUsage(); err == nil {
		status["memory_used_percent"] = mem.UsedPercent
	}

	c.JSON(http.StatusOK, status)
}

// handlePlayers asks the server who is online and returns the parsed list.
func (s *Server) handlePlayers(c *gin.Context) {
	reply, err := s.session.Execute(c.Request.Context(), "list")
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	count, names := command.ParsePlayerList(reply)
	c.JSON(http.StatusOK, gin.H{
		"count":   count,
		"players": names,
		"raw":     reply,
	})
}

// handleAuditCommands returns the most recent audited command dispatches.
func (s *Server) handleAuditCommands(c *gin.Context) {
	if s.audit == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit trail is disabled"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := s.audit.RecentCommands(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"total":   len(records),
	})
}

// handleAuditChat returns the most recent audited chat lines.
func (s *Server) handleAuditChat(c *gin.Context) {
	if s.audit == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit trail is disabled"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := s.audit.RecentChat(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"total":   len(records),
	})
}
