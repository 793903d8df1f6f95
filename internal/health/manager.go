// Package health implements periodic health check monitoring: RCON link
// liveness, log bridge state and disk utilization.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcwarden-project/mcwarden/internal/config"
	"github.com/mcwarden-project/mcwarden/internal/db"
	"github.com/mcwarden-project/mcwarden/internal/events"
	"github.com/mcwarden-project/mcwarden/internal/logmon"
	"github.com/mcwarden-project/mcwarden/internal/rcon"
	"github.com/mcwarden-project/mcwarden/internal/util"
)

// Manager runs periodic health checks on all subsystems.
type Manager struct {
	cfg      *config.Config
	eventBus *events.EventBus
	session  *rcon.Session
	bridge   *logmon.Bridge
	audit    *db.AuditStore
}

// NewManager creates a new health check manager. Bridge and audit may
// be nil when those subsystems are disabled.
func NewManager(
	cfg *config.Config,
	eventBus *events.EventBus,
	session *rcon.Session,
	bridge *logmon.Bridge,
	audit *db.AuditStore,
) *Manager {
	return &Manager{
		cfg:      cfg,
		eventBus: eventBus,
		session:  session,
		bridge:   bridge,
		audit:    audit,
	}
}

// Start launches all health check goroutines and blocks until ctx ends.
func (m *Manager) Start(ctx context.Context) {
	timers := m.cfg.GetApplicationData().Timers

	checks := []struct {
		name     string
		interval int
		fn       func(context.Context)
	}{
		{"rcon_ping", timers.RconPingInterval, m.checkRconLink},
		{"bridge_state", timers.BridgeCheckInterval, m.checkBridge},
		{"disk_utilization", timers.DiskCheckInterval, m.checkDiskUtilization},
		{"audit_retention", 24 * 3600, m.purgeAudit},
	}

	started := 0
	for _, check := range checks {
		if check.interval <= 0 {
			continue
		}
		started++

		check := check
		go func() {
			ticker := time.NewTicker(time.Duration(check.interval) * time.Second)
			defer ticker.Stop()

			// Run immediately on startup
			log.Debug().Str("check", check.name).Msg("running initial health check")
			check.fn(ctx)

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					check.fn(ctx)
				}
			}
		}()
	}

	log.Info().Int("checks", started).Msg("health check manager started")

	// Block until context is cancelled
	<-ctx.Done()
	log.Info().Msg("health check manager stopped")
}

// checkRconLink pings the server over RCON. A failed ping logs the
// taxonomy-level cause; the session reconnects itself on the next call.
func (m *Manager) checkRconLink(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if _, err := m.session.Ping(pingCtx); err != nil {
		log.Warn().Err(err).Str("addr", m.session.Addr()).Msg("RCON health ping failed")
		return
	}
	log.Debug().Str("addr", m.session.Addr()).Msg("RCON link healthy")
}

// checkBridge reports when the bridge has been unable to stream.
func (m *Manager) checkBridge(ctx context.Context) {
	if m.bridge == nil {
		return
	}

	state := m.bridge.State()
	if state != events.BridgeStreaming {
		log.Warn().Str("state", state.String()).Msg("log bridge is not streaming")
		return
	}
	log.Debug().Msg("log bridge healthy")
}

// checkDiskUtilization monitors disk space and alerts at thresholds.
func (m *Manager) checkDiskUtilization(ctx context.Context) {
	usage, err := util.GetDiskUsage("/")
	if err != nil {
		log.Warn().Err(err).Msg("disk utilization check failed")
		return
	}

	log.Debug().
		Float64("used_percent", usage.UsedPercent).
		Uint64("free_gb", usage.Free).
		Msg("disk utilization")

	// Alert thresholds: 80%, 90%, 95%, 100%
	var level string
	switch {
	case usage.UsedPercent >= 100:
		level = "critical"
	case usage.UsedPercent >= 95:
		level = "error"
	case usage.UsedPercent >= 90:
		level = "warning"
	case usage.UsedPercent >= 80:
		level = "info"
	default:
		return // No alert needed
	}

	message := fmt.Sprintf("Disk usage at %.1f%% (%d GB free of %d GB total)",
		usage.UsedPercent, usage.Free, usage.Total)
	log.Warn().Str("level", level).Msg(message)
}

// purgeAudit enforces the audit retention window.
func (m *Manager) purgeAudit(ctx context.Context) {
	if m.audit == nil {
		return
	}

	auditCfg := m.cfg.GetApplicationData().Audit
	if !auditCfg.Enabled || auditCfg.RetentionDays <= 0 {
		return
	}

	if _, err := m.audit.Purge(auditCfg.RetentionDays); err != nil {
		log.Warn().Err(err).Msg("audit retention purge failed")
	}
}
