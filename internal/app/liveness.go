package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// LivenessMonitor sweeps the full connection set on a fixed interval.
// A connection whose flag is still down from the previous sweep gets
// its transport terminated; the transport's close notification then
// drives the normal leave path. Worst-case detection is two intervals.
type LivenessMonitor struct {
	Registry *Registry
	Interval time.Duration
}

func NewLivenessMonitor(registry *Registry, interval time.Duration) *LivenessMonitor {
	return &LivenessMonitor{Registry: registry, Interval: interval}
}

func (m *LivenessMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep probes every tracked connection once and evicts the ones that
// never answered the previous probe.
func (m *LivenessMonitor) Sweep() {
	for _, s := range m.Registry.Snapshot() {
		if !s.Expire() {
			log.Warn().Str("module", "app.liveness").Str("sid", string(s.ID)).
				Str("user", string(s.User().ID)).Msg("evicting dead connection")
			s.Conn().Terminate()
			continue
		}
		if err := s.Conn().Ping(); err != nil {
			// Probe failed to even leave: the flag stays down, so the
			// next sweep evicts.
			log.Warn().Err(err).Str("module", "app.liveness").Str("sid", string(s.ID)).Msg("ping failed")
		}
	}
}
