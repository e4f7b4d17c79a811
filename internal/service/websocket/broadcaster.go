package websocket

import (
	"context"
	"encoding/json"

	"sensorlog/internal/dto"
	"sensorlog/internal/logger"
	"sensorlog/internal/reactive"
	"sensorlog/internal/viewmodel"
)

// StateSource is implemented by viewmodel.Dashboard.
type StateSource interface {
	Observe(ctx context.Context) *reactive.Feed[viewmodel.DashboardState]
}

// Broadcaster pushes every dashboard state change to the live hub.
type Broadcaster struct {
	hub    *HubService
	source StateSource
	logger *logger.Logger
}

func NewBroadcaster(hub *HubService, source StateSource, logger *logger.Logger) *Broadcaster {
	return &Broadcaster{hub: hub, source: source, logger: logger}
}

// Run forwards states until ctx is done or the source closes.
func (b *Broadcaster) Run(ctx context.Context) {
	feed := b.source.Observe(ctx)
	defer feed.Close()

	b.logger.Info("Dashboard broadcaster started")
	for state := range feed.Updates() {
		message, err := json.Marshal(dto.NewDashboardInfo(state))
		if err != nil {
			b.logger.Error("Failed to encode dashboard state: %v", err)
			continue
		}
		if !b.hub.Broadcast(message) {
			return
		}
	}
	b.logger.Info("Dashboard broadcaster stopped")
}
