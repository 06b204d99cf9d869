package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bgocumlu/juke/server/src/clock"
	"github.com/bgocumlu/juke/server/src/communication"
	"github.com/bgocumlu/juke/server/src/download"
	"github.com/bgocumlu/juke/server/src/media"
	"github.com/bgocumlu/juke/server/src/store"
)

var testEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeProvider struct {
	searchResults []media.SearchResult
	searchErr     error
	info          *media.VideoInfo
	infoErr       error
	estimate      *media.SizeEstimate
	estimateErr   error
}

func (provider *fakeProvider) Search(_ context.Context, _ string, _ int) ([]media.SearchResult, error) {
	return provider.searchResults, provider.searchErr
}

func (provider *fakeProvider) Info(_ context.Context, _ string, _ bool) (*media.VideoInfo, error) {
	return provider.info, provider.infoErr
}

func (provider *fakeProvider) SizeEstimate(_ context.Context, _ string, _ int) (*media.SizeEstimate, error) {
	return provider.estimate, provider.estimateErr
}

func (provider *fakeProvider) ExtractAudio(_ context.Context, _ string, _ string, _ string) (string, *media.VideoInfo, error) {
	return "", nil, nil
}

type fakeDownloads struct {
	submitted []string
	result    *download.Result
	awaitErr  error
	status    *download.TaskStatus
	statusErr error
}

func (downloads *fakeDownloads) Submit(videoID string, _ string) string {
	downloads.submitted = append(downloads.submitted, videoID)
	return "task-1"
}

func (downloads *fakeDownloads) Await(_ string, _ time.Duration) (*download.Result, error) {
	return downloads.result, downloads.awaitErr
}

func (downloads *fakeDownloads) Status(_ string) (*download.TaskStatus, error) {
	return downloads.status, downloads.statusErr
}

type fakeLimiter struct {
	allow      bool
	retryAfter time.Duration
}

func (limiter *fakeLimiter) Allow(_ string) bool { return limiter.allow }

func (limiter *fakeLimiter) RetryAfter(_ string) time.Duration { return limiter.retryAfter }

type fakeBlobs struct {
	objects   []store.ObjectInfo
	listErr   error
	removed   []string
	removeErr error
}

func (blobs *fakeBlobs) Exists(_ context.Context, _ string) (bool, error) { return false, nil }

func (blobs *fakeBlobs) Upload(_ context.Context, _ string, _ []byte, _ string, _ bool) (bool, error) {
	return true, nil
}

func (blobs *fakeBlobs) Info(_ context.Context, key string) (*store.ObjectInfo, error) {
	return &store.ObjectInfo{Name: key}, nil
}

func (blobs *fakeBlobs) PublicURL(key string) string {
	return "https://cdn.example/jukebox-tracks/" + key
}

func (blobs *fakeBlobs) List(_ context.Context, limit int, offset int) ([]store.ObjectInfo, error) {
	if blobs.listErr != nil {
		return nil, blobs.listErr
	}
	if offset > len(blobs.objects) {
		offset = len(blobs.objects)
	}
	end := offset + limit
	if end > len(blobs.objects) {
		end = len(blobs.objects)
	}
	return blobs.objects[offset:end], nil
}

func (blobs *fakeBlobs) Remove(_ context.Context, key string) error {
	if blobs.removeErr != nil {
		return blobs.removeErr
	}
	blobs.removed = append(blobs.removed, key)
	return nil
}

type harness struct {
	registry  *communication.Registry
	provider  *fakeProvider
	downloads *fakeDownloads
	limiter   *fakeLimiter
	blobs     *fakeBlobs
	clock     *clock.SteppableClock
	router    http.Handler
}

func newHarness() *harness {
	clk := clock.NewSteppableClock(testEpoch)
	registry := communication.NewRegistry(clk)
	provider := &fakeProvider{}
	downloads := &fakeDownloads{}
	admission := &fakeLimiter{allow: true}
	blobs := &fakeBlobs{}

	sessions := communication.NewSessionServer(registry, downloads, download.NewInflight(), clk)
	server := NewServer(registry, sessions, blobs, provider, downloads, admission, clk,
		Options{MaxMB: 50})

	return &harness{
		registry:  registry,
		provider:  provider,
		downloads: downloads,
		limiter:   admission,
		blobs:     blobs,
		clock:     clk,
		router:    server.Router(),
	}
}

func (h *harness) do(t *testing.T, method string, target string, body string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(method, target, strings.NewReader(body))
	request.RemoteAddr = "203.0.113.7:51000"
	recorder := httptest.NewRecorder()
	h.router.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target interface{}) {
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), target))
}

func TestListRooms(t *testing.T) {
	h := newHarness()

	response := h.do(t, http.MethodGet, "/api/rooms", "")
	require.Equal(t, http.StatusOK, response.Code)

	var page roomsPage
	decodeBody(t, response, &page)
	require.Equal(t, 13, page.Total)
	require.Len(t, page.Rooms, 13)
	require.False(t, page.HasMore)
	require.Equal(t, "room1", page.Rooms[0].Slug)
	require.False(t, page.Rooms[0].HasHost)
	require.InDelta(t, clock.Seconds(testEpoch), page.Rooms[0].CreatedAt, 1e-6)
}

func TestListRoomsPagination(t *testing.T) {
	h := newHarness()

	response := h.do(t, http.MethodGet, "/api/rooms?page=1&limit=10", "")
	require.Equal(t, http.StatusOK, response.Code)

	var page roomsPage
	decodeBody(t, response, &page)
	require.Len(t, page.Rooms, 3)
	require.False(t, page.HasMore)
	require.Equal(t, 13, page.Total)

	response = h.do(t, http.MethodGet, "/api/rooms?page=0&limit=10", "")
	decodeBody(t, response, &page)
	require.Len(t, page.Rooms, 10)
	require.True(t, page.HasMore)
}

func TestListRoomsSearch(t *testing.T) {
	h := newHarness()
	h.clock.Advance(time.Minute)
	h.registry.GetOrCreate("jazz-corner")

	response := h.do(t, http.MethodGet, "/api/rooms?search=jazz", "")
	var page roomsPage
	decodeBody(t, response, &page)
	require.Equal(t, 1, page.Total)
	require.Equal(t, "jazz-corner", page.Rooms[0].Slug)

	// Newest room sorts first in the unfiltered listing.
	response = h.do(t, http.MethodGet, "/api/rooms", "")
	decodeBody(t, response, &page)
	require.Equal(t, "jazz-corner", page.Rooms[0].Slug)
}

func TestRoomUsersNotFound(t *testing.T) {
	h := newHarness()

	response := h.do(t, http.MethodGet, "/api/rooms/nope/users", "")
	require.Equal(t, http.StatusNotFound, response.Code)
	require.Contains(t, response.Body.String(), "not found")
}

func TestRoomUsersEmpty(t *testing.T) {
	h := newHarness()

	response := h.do(t, http.MethodGet, "/api/rooms/room1/users", "")
	require.Equal(t, http.StatusOK, response.Code)

	var users communication.UsersSync
	decodeBody(t, response, &users)
	require.Zero(t, users.Total)
	require.Empty(t, users.Users)
	require.Equal(t, 10, users.Limit)
}

func TestYoutubeSearch(t *testing.T) {
	h := newHarness()
	duration := 242.0
	h.provider.searchResults = []media.SearchResult{{
		ID:       "vid123",
		Title:    "Some Song",
		Duration: &duration,
		URL:      "https://www.youtube.com/watch?v=vid123",
	}}

	response := h.do(t, http.MethodGet, "/api/youtube/search?q=some+song", "")
	require.Equal(t, http.StatusOK, response.Code)

	var results []media.SearchResult
	decodeBody(t, response, &results)
	require.Len(t, results, 1)
	require.Equal(t, "vid123", results[0].ID)
}

func TestYoutubeSearchRequiresQuery(t *testing.T) {
	h := newHarness()

	response := h.do(t, http.MethodGet, "/api/youtube/search", "")
	require.Equal(t, http.StatusBadRequest, response.Code)
}

func TestYoutubeInfo(t *testing.T) {
	h := newHarness()
	duration := 242.0
	h.provider.info = &media.VideoInfo{ID: "vid123", Title: "Some Song", Duration: &duration}

	response := h.do(t, http.MethodGet, "/api/youtube/info/vid123", "")
	require.Equal(t, http.StatusOK, response.Code)

	var info media.VideoInfo
	decodeBody(t, response, &info)
	require.Equal(t, "Some Song", info.Title)
}

func TestDownloadSuccess(t *testing.T) {
	h := newHarness()
	bytes := int64(5 << 20)
	h.provider.estimate = &media.SizeEstimate{Bytes: &bytes}
	h.downloads.result = &download.Result{
		Success:  true,
		VideoID:  "vid123",
		Filename: "yt-vid123.mp3",
		URL:      "https://cdn.example/jukebox-tracks/yt-vid123.mp3",
	}

	response := h.do(t, http.MethodPost, "/api/youtube/download", `{"video_id":"vid123"}`)
	require.Equal(t, http.StatusOK, response.Code)

	var result download.Result
	decodeBody(t, response, &result)
	require.True(t, result.Success)
	require.Equal(t, "yt-vid123.mp3", result.Filename)
	require.Equal(t, []string{"vid123"}, h.downloads.submitted)
}

func TestDownloadRequiresVideoID(t *testing.T) {
	h := newHarness()

	response := h.do(t, http.MethodPost, "/api/youtube/download", `{}`)
	require.Equal(t, http.StatusBadRequest, response.Code)
	require.Empty(t, h.downloads.submitted)
}

func TestDownloadRateLimited(t *testing.T) {
	h := newHarness()
	h.limiter.allow = false
	h.limiter.retryAfter = 42 * time.Second

	response := h.do(t, http.MethodPost, "/api/youtube/download", `{"video_id":"vid123"}`)
	require.Equal(t, http.StatusTooManyRequests, response.Code)
	require.Equal(t, "42", response.Header().Get("Retry-After"))
	require.Empty(t, h.downloads.submitted)
}

func TestDownloadBlocksOversizedAudio(t *testing.T) {
	h := newHarness()
	bytes := int64(200 << 20)
	h.provider.estimate = &media.SizeEstimate{Bytes: &bytes, OverLimit: true}

	response := h.do(t, http.MethodPost, "/api/youtube/download", `{"video_id":"vid123"}`)
	require.Equal(t, http.StatusBadRequest, response.Code)
	require.Empty(t, h.downloads.submitted)
}

func TestDownloadBlocksUnknownSize(t *testing.T) {
	h := newHarness()
	// Fail-closed estimate: no bytes, no duration, flagged over limit.
	h.provider.estimate = &media.SizeEstimate{OverLimit: true}

	response := h.do(t, http.MethodPost, "/api/youtube/download", `{"video_id":"vid123"}`)
	require.Equal(t, http.StatusBadRequest, response.Code)
	require.Empty(t, h.downloads.submitted)
}

func TestDownloadTimeoutSurfacesTask(t *testing.T) {
	h := newHarness()
	bytes := int64(5 << 20)
	h.provider.estimate = &media.SizeEstimate{Bytes: &bytes}
	h.downloads.awaitErr = download.ErrTimedOut

	response := h.do(t, http.MethodPost, "/api/youtube/download", `{"video_id":"vid123"}`)
	require.Equal(t, http.StatusAccepted, response.Code)

	var body map[string]string
	decodeBody(t, response, &body)
	require.Equal(t, "task-1", body["task_id"])
	require.Equal(t, "processing", body["status"])
}

func TestDownloadFailure(t *testing.T) {
	h := newHarness()
	bytes := int64(5 << 20)
	h.provider.estimate = &media.SizeEstimate{Bytes: &bytes}
	h.downloads.awaitErr = context.DeadlineExceeded

	response := h.do(t, http.MethodPost, "/api/youtube/download", `{"video_id":"vid123"}`)
	require.Equal(t, http.StatusInternalServerError, response.Code)
}

func TestDownloadURL(t *testing.T) {
	h := newHarness()
	h.provider.info = &media.VideoInfo{
		ID: "vid123",
		Formats: []media.Format{
			{FormatID: "18", Ext: "mp4", ACodec: "aac", VCodec: "h264", URL: "https://stream.example/muxed"},
			{FormatID: "140", Ext: "m4a", ACodec: "aac", VCodec: "none", Filesize: 4 << 20, URL: "https://stream.example/audio"},
		},
	}

	response := h.do(t, http.MethodGet, "/api/youtube/download-url/vid123", "")
	require.Equal(t, http.StatusOK, response.Code)

	var body map[string]interface{}
	decodeBody(t, response, &body)
	require.Equal(t, "https://stream.example/audio", body["url"])
	require.Equal(t, "140", body["format"])
}

func TestDownloadURLUnavailable(t *testing.T) {
	h := newHarness()
	h.provider.info = &media.VideoInfo{ID: "vid123"}

	response := h.do(t, http.MethodGet, "/api/youtube/download-url/vid123", "")
	require.Equal(t, http.StatusInternalServerError, response.Code)
	require.Contains(t, response.Body.String(), "Could not extract download URL")
}

func TestTaskStatus(t *testing.T) {
	h := newHarness()
	h.downloads.status = &download.TaskStatus{TaskID: "task-1", Status: download.StatusPending, QueuePosition: 2}

	response := h.do(t, http.MethodGet, "/api/youtube/status/task-1", "")
	require.Equal(t, http.StatusOK, response.Code)

	var status download.TaskStatus
	decodeBody(t, response, &status)
	require.Equal(t, download.StatusPending, status.Status)
	require.Equal(t, 2, status.QueuePosition)
}

func TestTaskStatusUnknown(t *testing.T) {
	h := newHarness()
	h.downloads.statusErr = download.ErrUnknownTask

	response := h.do(t, http.MethodGet, "/api/youtube/status/nope", "")
	require.Equal(t, http.StatusNotFound, response.Code)
}

func TestListSongs(t *testing.T) {
	h := newHarness()
	h.blobs.objects = []store.ObjectInfo{
		{Name: "yt-vid123.mp3", Size: 4 << 20, CreatedAt: "2025-06-01T12:00:00Z"},
		{Name: "yt-vid456.mp3", Size: 3 << 20},
	}

	response := h.do(t, http.MethodGet, "/api/songs/", "")
	require.Equal(t, http.StatusOK, response.Code)

	var songs []song
	decodeBody(t, response, &songs)
	require.Len(t, songs, 2)
	require.Equal(t, "yt-vid123.mp3", songs[0].ID)
	require.Equal(t, "https://cdn.example/jukebox-tracks/yt-vid123.mp3", songs[0].URL)
}

func TestSearchSongs(t *testing.T) {
	h := newHarness()
	h.blobs.objects = []store.ObjectInfo{
		{Name: "yt-vid123.mp3"},
		{Name: "other-track.mp3"},
	}

	response := h.do(t, http.MethodGet, "/api/songs/search?q=VID123", "")
	require.Equal(t, http.StatusOK, response.Code)

	var songs []song
	decodeBody(t, response, &songs)
	require.Len(t, songs, 1)
	require.Equal(t, "yt-vid123.mp3", songs[0].Filename)

	response = h.do(t, http.MethodGet, "/api/songs/search", "")
	require.Equal(t, http.StatusBadRequest, response.Code)
}

func TestGetSong(t *testing.T) {
	h := newHarness()
	h.blobs.objects = []store.ObjectInfo{{Name: "yt-vid123.mp3", Size: 1024}}

	response := h.do(t, http.MethodGet, "/api/songs/yt-vid123.mp3", "")
	require.Equal(t, http.StatusOK, response.Code)

	var found song
	decodeBody(t, response, &found)
	require.Equal(t, int64(1024), found.Size)

	response = h.do(t, http.MethodGet, "/api/songs/missing.mp3", "")
	require.Equal(t, http.StatusNotFound, response.Code)
}

func TestDeleteSong(t *testing.T) {
	h := newHarness()

	response := h.do(t, http.MethodDelete, "/api/songs/yt-vid123.mp3", "")
	require.Equal(t, http.StatusOK, response.Code)
	require.Equal(t, []string{"yt-vid123.mp3"}, h.blobs.removed)
	require.Contains(t, response.Body.String(), "deleted successfully")
}
