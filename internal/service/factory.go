package service

import (
	"log/slog"

	"basegraph.app/scribe/internal/queue"
	"basegraph.app/scribe/internal/room"
)

// Persistence bundles the optional database collaborators. The zero value
// disables persistence.
type Persistence struct {
	Stores   StoreProvider
	TxRunner TxRunner
}

func (p Persistence) Enabled() bool {
	return p.Stores != nil && p.TxRunner != nil
}

type Services struct {
	rooms RoomService
}

// NewServices wires the room service once so every caller shares its registry.
// events may be nil when no broker is configured.
func NewServices(registry *room.Registry, persistence Persistence, events queue.EventPublisher, logger *slog.Logger) *Services {
	return &Services{
		rooms: NewRoomService(registry, persistence, events, logger),
	}
}

func (s *Services) Rooms() RoomService {
	return s.rooms
}
