package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StatsReporter periodically logs per-room member counts and totals.
type StatsReporter struct {
	Registry *Registry
	Rooms    *RoomRegistry
	Interval time.Duration
}

func NewStatsReporter(registry *Registry, rooms *RoomRegistry, interval time.Duration) *StatsReporter {
	return &StatsReporter{Registry: registry, Rooms: rooms, Interval: interval}
}

func (r *StatsReporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Report()
		}
	}
}

func (r *StatsReporter) Report() {
	infos := r.Rooms.List()
	users := 0
	for _, info := range infos {
		users += info.MemberCount
		log.Info().Str("module", "app.stats").Str("room", string(info.ID)).
			Int("users", info.MemberCount).Msg("room stats")
	}
	log.Info().Str("module", "app.stats").Int("rooms", len(infos)).
		Int("users", users).Int("connections", r.Registry.Len()).Msg("totals")
}
