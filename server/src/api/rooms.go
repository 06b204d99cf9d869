package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bgocumlu/juke/server/src/clock"
)

const (
	defaultRoomsLimit = 20
	defaultUsersLimit = 10
)

type roomSummary struct {
	Slug        string  `json:"slug"`
	UserCount   int     `json:"user_count"`
	QueueLength int     `json:"queue_length"`
	CreatedAt   float64 `json:"created_at"`
	HasHost     bool    `json:"has_host"`
}

type roomsPage struct {
	Rooms   []roomSummary `json:"rooms"`
	Page    int           `json:"page"`
	Limit   int           `json:"limit"`
	Total   int           `json:"total"`
	HasMore bool          `json:"has_more"`
}

func (server *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	page := clamp(queryInt(r, "page", 0), 0, 1<<30)
	limit := clamp(queryInt(r, "limit", defaultRoomsLimit), 1, 100)
	search := r.URL.Query().Get("search")

	rooms := server.registry.List(search)
	total := len(rooms)

	start := page * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	summaries := make([]roomSummary, 0, end-start)
	for _, room := range rooms[start:end] {
		summaries = append(summaries, roomSummary{
			Slug:        room.Slug(),
			UserCount:   room.UserCount(),
			QueueLength: room.QueueLength(),
			CreatedAt:   clock.Seconds(room.CreatedAt()),
			HasHost:     room.HasHost(),
		})
	}

	writeJSON(w, http.StatusOK, roomsPage{
		Rooms:   summaries,
		Page:    page,
		Limit:   limit,
		Total:   total,
		HasMore: end < total,
	})
}

func (server *Server) handleRoomUsers(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	room, exists := server.registry.Lookup(slug)
	if !exists {
		writeDetail(w, http.StatusNotFound, "Room '%s' not found", slug)
		return
	}

	page := clamp(queryInt(r, "page", 0), 0, 1<<30)
	limit := clamp(queryInt(r, "limit", defaultUsersLimit), 1, 100)

	writeJSON(w, http.StatusOK, room.ActiveUsers(page, limit))
}
