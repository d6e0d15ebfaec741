package room

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"basegraph.app/scribe/common"
	"basegraph.app/scribe/common/id"
	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/segmenter"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
)

type CreateParams struct {
	ID         string // optional explicit id; slugified
	Name       string
	Thresholds model.Thresholds // overrides; zero fields keep the defaults
}

// Registry is the set of live rooms. Its lock only guards membership; room
// state is guarded by each room's own lock.
type Registry struct {
	mu        sync.RWMutex
	rooms     map[string]*Room
	defaults  model.Thresholds
	segmenter *segmenter.Segmenter
	now       func() time.Time
}

func NewRegistry(defaults model.Thresholds, seg *segmenter.Segmenter) *Registry {
	return &Registry{
		rooms:     make(map[string]*Room),
		defaults:  model.DefaultThresholds().Merge(defaults),
		segmenter: seg,
		now:       time.Now,
	}
}

func (r *Registry) Defaults() model.Thresholds {
	return r.defaults
}

func (r *Registry) Create(p CreateParams) (*Room, error) {
	name := strings.TrimSpace(p.Name)
	explicit := strings.TrimSpace(p.ID) != ""

	base, err := common.Slugify(p.ID, name)
	if err != nil {
		base = "room"
	}
	if name == "" {
		name = base
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	roomID := base
	if _, taken := r.rooms[roomID]; taken {
		if explicit {
			return nil, fmt.Errorf("%w: %s", ErrRoomExists, roomID)
		}
		roomID = common.SlugWithSuffix(base, id.NewString())
	}

	rm := New(model.Room{
		ID:         roomID,
		Name:       name,
		CreatedAt:  r.now().UTC(),
		Thresholds: r.defaults.Merge(p.Thresholds),
	}, r.segmenter)
	r.rooms[roomID] = rm

	return rm, nil
}

// Add registers an already-built room, typically one restored from storage.
func (r *Registry) Add(rm *Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.rooms[rm.ID()]; taken {
		return fmt.Errorf("%w: %s", ErrRoomExists, rm.ID())
	}
	r.rooms[rm.ID()] = rm
	return nil
}

// Build creates a room from stored metadata without registering it.
func (r *Registry) Build(info model.Room) *Room {
	info.Thresholds = r.defaults.Merge(info.Thresholds)
	return New(info, r.segmenter)
}

func (r *Registry) Get(roomID string) (*Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return rm, nil
}

// End removes the room; its state is discarded with it.
func (r *Registry) End(roomID string) (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	delete(r.rooms, roomID)
	return rm, nil
}

// List returns live rooms, oldest first.
func (r *Registry) List() []*Room {
	r.mu.RLock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	r.mu.RUnlock()

	slices.SortFunc(rooms, func(a, b *Room) int {
		if c := a.info.CreatedAt.Compare(b.info.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.info.ID, b.info.ID)
	})
	return rooms
}
