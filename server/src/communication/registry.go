package communication

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bgocumlu/juke/server/src/clock"
)

const bootstrapRoomCount = 13

// Registry maps slugs to rooms. Rooms are created on first access and
// never removed; an empty room keeps its queue and playback state.
type Registry struct {
	clock clock.Clock
	mutex sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry(clk clock.Clock) *Registry {
	registry := &Registry{clock: clk, rooms: make(map[string]*Room)}
	for i := 1; i <= bootstrapRoomCount; i++ {
		slug := fmt.Sprintf("room%d", i)
		registry.rooms[slug] = NewRoom(slug, clk)
	}
	return registry
}

func (registry *Registry) GetOrCreate(slug string) *Room {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()

	if room, exists := registry.rooms[slug]; exists {
		return room
	}

	room := NewRoom(slug, registry.clock)
	registry.rooms[slug] = room
	return room
}

func (registry *Registry) Lookup(slug string) (*Room, bool) {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()

	room, exists := registry.rooms[slug]
	return room, exists
}

func (registry *Registry) Exists(slug string) bool {
	_, exists := registry.Lookup(slug)
	return exists
}

// Rooms returns an unordered snapshot for sweeps.
func (registry *Registry) Rooms() []*Room {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()

	rooms := make([]*Room, 0, len(registry.rooms))
	for _, room := range registry.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// List returns rooms newest-first, optionally filtered by a
// case-insensitive slug substring.
func (registry *Registry) List(search string) []*Room {
	rooms := registry.Rooms()

	if search != "" {
		needle := strings.ToLower(search)
		filtered := rooms[:0]
		for _, room := range rooms {
			if strings.Contains(strings.ToLower(room.Slug()), needle) {
				filtered = append(filtered, room)
			}
		}
		rooms = filtered
	}

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].CreatedAt().Equal(rooms[j].CreatedAt()) {
			return rooms[i].Slug() < rooms[j].Slug()
		}
		return rooms[i].CreatedAt().After(rooms[j].CreatedAt())
	})
	return rooms
}
