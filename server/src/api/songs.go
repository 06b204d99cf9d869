package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bgocumlu/juke/server/src/logger"
	"github.com/bgocumlu/juke/server/src/store"
)

const (
	defaultSongsLimit  = 100
	maxSongsLimit      = 1000
	defaultSongsSearch = 50
	songsScanLimit     = 1000
)

type song struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	URL       string `json:"url"`
	Size      int64  `json:"size,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func (server *Server) songFromObject(object store.ObjectInfo) song {
	return song{
		ID:        object.Name,
		Filename:  object.Name,
		URL:       server.blobs.PublicURL(object.Name),
		Size:      object.Size,
		CreatedAt: object.CreatedAt,
		UpdatedAt: object.UpdatedAt,
	}
}

func (server *Server) handleListSongs(w http.ResponseWriter, r *http.Request) {
	limit := clamp(queryInt(r, "limit", defaultSongsLimit), 1, maxSongsLimit)
	offset := clamp(queryInt(r, "offset", 0), 0, 1<<30)

	objects, err := server.blobs.List(r.Context(), limit, offset)
	if err != nil {
		logger.Errorw("Unable to list stored tracks", "error", err)
		writeDetail(w, http.StatusInternalServerError, "Failed to fetch songs: %v", err)
		return
	}

	songs := make([]song, 0, len(objects))
	for _, object := range objects {
		if object.Name == "" {
			continue
		}
		songs = append(songs, server.songFromObject(object))
	}

	writeJSON(w, http.StatusOK, songs)
}

func (server *Server) handleSearchSongs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeDetail(w, http.StatusBadRequest, "Missing search query")
		return
	}
	limit := clamp(queryInt(r, "limit", defaultSongsSearch), 1, 100)

	objects, err := server.blobs.List(r.Context(), songsScanLimit, 0)
	if err != nil {
		logger.Errorw("Unable to list stored tracks", "error", err)
		writeDetail(w, http.StatusInternalServerError, "Failed to search songs: %v", err)
		return
	}

	needle := strings.ToLower(query)
	matches := make([]song, 0, limit)
	for _, object := range objects {
		if !strings.Contains(strings.ToLower(object.Name), needle) {
			continue
		}
		matches = append(matches, server.songFromObject(object))
		if len(matches) >= limit {
			break
		}
	}

	writeJSON(w, http.StatusOK, matches)
}

func (server *Server) handleGetSong(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	objects, err := server.blobs.List(r.Context(), songsScanLimit, 0)
	if err != nil {
		logger.Errorw("Unable to list stored tracks", "error", err)
		writeDetail(w, http.StatusInternalServerError, "Failed to fetch song: %v", err)
		return
	}

	for _, object := range objects {
		if object.Name == filename {
			writeJSON(w, http.StatusOK, server.songFromObject(object))
			return
		}
	}

	writeDetail(w, http.StatusNotFound, "Song '%s' not found", filename)
}

func (server *Server) handleDeleteSong(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	if err := server.blobs.Remove(r.Context(), filename); err != nil {
		logger.Errorw("Unable to delete stored track", "filename", filename, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Failed to delete song: %v", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Song '" + filename + "' deleted successfully",
	})
}
