package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bgocumlu/juke/server/src/download"
	"github.com/bgocumlu/juke/server/src/logger"
	"github.com/bgocumlu/juke/server/src/media"
)

const (
	defaultSearchResults = 10
	maxSearchResults     = 50
)

func (server *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeDetail(w, http.StatusBadRequest, "Missing search query")
		return
	}
	maxResults := clamp(queryInt(r, "max_results", defaultSearchResults), 1, maxSearchResults)

	results, err := server.provider.Search(r.Context(), query, maxResults)
	if err != nil {
		logger.Errorw("Search failed", "query", query, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Search failed: %v", err)
		return
	}
	if results == nil {
		results = []media.SearchResult{}
	}

	writeJSON(w, http.StatusOK, results)
}

func (server *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")

	info, err := server.provider.Info(r.Context(), videoID, false)
	if err != nil {
		logger.Errorw("Info lookup failed", "video", videoID, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Failed to get video info: %v", err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

type downloadRequest struct {
	VideoID string `json:"video_id"`
	Format  string `json:"format"`
}

// handleDownload runs the whole ingest synchronously: admission
// window, fail-closed size check, then queue submission and await.
// A timeout surfaces the task id so the client can poll.
func (server *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var request downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil || request.VideoID == "" {
		writeDetail(w, http.StatusBadRequest, "video_id is required")
		return
	}

	identity := clientIP(r)
	if !server.limiter.Allow(identity) {
		retryAfter := int(math.Ceil(server.limiter.RetryAfter(identity).Seconds()))
		w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
		writeDetail(w, http.StatusTooManyRequests, "Download rate limit exceeded. Try again in %d seconds", retryAfter)
		return
	}

	estimate, err := server.provider.SizeEstimate(r.Context(), request.VideoID, server.maxMB)
	if err != nil {
		logger.Errorw("Size estimate failed", "video", request.VideoID, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Failed to inspect video: %v", err)
		return
	}
	if estimate.OverLimit {
		// Unknown duration lands here too: size checks fail closed.
		writeDetail(w, http.StatusBadRequest, "Audio exceeds the %d MB download limit or its size cannot be determined", server.maxMB)
		return
	}

	taskID := server.downloads.Submit(request.VideoID, request.Format)
	result, err := server.downloads.Await(taskID, restAwaitTimeout)
	if errors.Is(err, download.ErrTimedOut) {
		writeJSON(w, http.StatusAccepted, map[string]string{
			"task_id": taskID,
			"status":  string(download.StatusProcessing),
			"detail":  "Download still in progress",
		})
		return
	}
	if err != nil {
		logger.Errorw("Download failed", "video", request.VideoID, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Download failed: %v", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (server *Server) handleDownloadURL(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")

	info, err := server.provider.Info(r.Context(), videoID, false)
	if err != nil {
		logger.Errorw("Info lookup failed", "video", videoID, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Failed to get download URL: %v", err)
		return
	}

	format, ok := media.StreamFormat(info.Formats)
	if !ok {
		writeDetail(w, http.StatusInternalServerError, "Could not extract download URL")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"url":      format.URL,
		"format":   format.FormatID,
		"ext":      format.Ext,
		"filesize": format.Filesize,
	})
}

func (server *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	status, err := server.downloads.Status(taskID)
	if errors.Is(err, download.ErrUnknownTask) {
		writeDetail(w, http.StatusNotFound, "Task '%s' not found", taskID)
		return
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to read task status: %v", err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}
