package communication

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bgocumlu/juke/server/src/clock"
	"github.com/bgocumlu/juke/server/src/download"
	"github.com/bgocumlu/juke/server/src/logger"
)

const ingestAwaitTimeout = 10 * time.Minute

// Ingestor is the slice of the download queue a session needs to run
// an ingest end to end.
type Ingestor interface {
	Submit(videoID string, format string) string
	Await(taskID string, timeout time.Duration) (*download.Result, error)
}

// Worker is one websocket session: it reads client commands, checks
// roles and forwards them to its room. It also implements
// ClientSession so the room can fan out to it.
type Worker struct {
	id        uuid.UUID
	room      *Room
	registry  *Registry
	websocket WebsocketReaderWriter
	downloads Ingestor
	inflight  *download.Inflight
	clock     clock.Clock
	name      string
	ip        string
	port      int

	writeMutex sync.Mutex
	open       atomic.Bool
	closeOnce  sync.Once
}

func NewWorker(room *Room, registry *Registry, webSocket WebsocketReaderWriter, downloads Ingestor,
	inflight *download.Inflight, clk clock.Clock, name string, ip string, port int) *Worker {
	worker := &Worker{
		id:        uuid.New(),
		room:      room,
		registry:  registry,
		websocket: webSocket,
		downloads: downloads,
		inflight:  inflight,
		clock:     clk,
		name:      name,
		ip:        ip,
		port:      port,
	}
	worker.open.Store(true)
	return worker
}

func (worker *Worker) ID() uuid.UUID {
	return worker.id
}

func (worker *Worker) IsOpen() bool {
	return worker.open.Load()
}

func (worker *Worker) IP() string {
	return worker.ip
}

func (worker *Worker) Port() int {
	return worker.port
}

func (worker *Worker) Send(payload []byte) error {
	worker.writeMutex.Lock()
	defer worker.writeMutex.Unlock()

	return worker.websocket.WriteMessage(payload)
}

func (worker *Worker) Close() {
	worker.closeOnce.Do(func() {
		worker.open.Store(false)
		worker.room.Leave(worker)
		worker.websocket.Close()
	})
}

// Start joins the room, pushes the initial sync trio and then blocks
// on the read loop until the connection dies.
func (worker *Worker) Start() {
	if _, err := worker.room.Join(worker, worker.name); err != nil {
		logger.Warnw("Unable to join room", "room", worker.room.Slug(), "error", err)
		worker.websocket.Close()
		return
	}

	worker.room.SendState(worker)
	worker.room.SendQueue(worker)
	worker.room.SendUserInfo(worker)

	worker.readLoop()
}

func (worker *Worker) readLoop() {
	for {
		data, err := worker.websocket.ReadMessage()
		if err != nil {
			logger.Infow("Unable to read from client, closing connection", "session", worker.id, "error", err)
			worker.Close()
			return
		}

		worker.handleMessage(data)
	}
}

// Commands are handled in arrival order on the read goroutine so a
// client's own commands cannot race each other.
func (worker *Worker) handleMessage(data []byte) {
	envelope, err := UnmarshalEnvelope(data)
	if err != nil {
		logger.Debugw("Ignoring malformed client message", "session", worker.id, "error", err)
		return
	}

	switch envelope.Type {
	case PlayType:
		if worker.authorized(OpPlaybackControl) {
			worker.room.Play()
		}
	case PauseType:
		if worker.authorized(OpPlaybackControl) {
			worker.room.Pause()
		}
	case SeekType:
		worker.handleSeek(envelope.Payload)
	case SetTrackType:
		worker.handleSetTrack(envelope.Payload)
	case NextTrackType:
		if worker.authorized(OpPlaybackControl) {
			worker.room.NextTrack()
		}
	case PreviousTrackType:
		if worker.authorized(OpPlaybackControl) {
			worker.room.PreviousTrack()
		}
	case ShuffleQueueType:
		if worker.authorized(OpQueueEdit) {
			worker.room.ShuffleQueue()
		}
	case RepeatTrackType:
		if worker.authorized(OpQueueEdit) {
			worker.room.RepeatTrack()
		}
	case DeleteItemType:
		worker.handleItem(envelope.Payload, worker.room.DeleteItem)
	case ReorderItemType:
		worker.handleReorder(envelope.Payload)
	case ApproveItemType:
		worker.handleItem(envelope.Payload, worker.room.ApproveItem)
	case AddToQueueType:
		worker.handleAddToQueue(envelope.Payload)
	case AddPendingDownloadType:
		worker.handleAddPending(envelope.Payload)
	case SetModeratorType:
		worker.handleSetModerator(envelope.Payload)
	case GetStateType:
		worker.room.SendState(worker)
	case GetQueueType:
		worker.room.SendQueue(worker)
	case GetUsersType:
		worker.handleGetUsers(envelope.Payload)
	case PingType:
		worker.room.SendPong(worker)
	case DanceType:
		worker.room.Dance()
	case CheckRoomExistsType:
		worker.handleCheckRoom(envelope.Payload)
	default:
		logger.Debugw("Ignoring unknown command", "session", worker.id, "type", envelope.Type)
	}
}

func (worker *Worker) authorized(op Operation) bool {
	if err := worker.room.Authorize(worker.id, op); err != nil {
		worker.room.SendError(worker, err.Error())
		return false
	}
	return true
}

func (worker *Worker) handleSeek(raw json.RawMessage) {
	if !worker.authorized(OpPlaybackControl) {
		return
	}

	var payload SeekPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		logger.Debugw("Ignoring malformed seek payload", "session", worker.id, "error", err)
		return
	}
	worker.room.Seek(payload.Position)
}

func (worker *Worker) handleSetTrack(raw json.RawMessage) {
	if !worker.authorized(OpPlaybackControl) {
		return
	}

	var payload SetTrackPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Track == nil {
		logger.Debugw("Ignoring malformed set_track payload", "session", worker.id, "error", err)
		return
	}

	playing := false
	if payload.IsPlaying != nil {
		playing = *payload.IsPlaying
	}
	if err := worker.room.SetTrack(payload.Track, playing); err != nil {
		logger.Debugw("Ignoring malformed track", "session", worker.id, "error", err)
	}
}

func (worker *Worker) handleItem(raw json.RawMessage, apply func(string)) {
	if !worker.authorized(OpQueueEdit) {
		return
	}

	var payload ItemPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.ItemID == "" {
		logger.Debugw("Ignoring malformed item payload", "session", worker.id, "error", err)
		return
	}
	apply(payload.ItemID)
}

func (worker *Worker) handleReorder(raw json.RawMessage) {
	if !worker.authorized(OpQueueEdit) {
		return
	}

	var payload ReorderPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.ItemID == "" {
		logger.Debugw("Ignoring malformed reorder payload", "session", worker.id, "error", err)
		return
	}
	worker.room.ReorderItem(payload.ItemID, payload.Direction)
}

func (worker *Worker) handleAddToQueue(raw json.RawMessage) {
	var payload AddItemPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		logger.Debugw("Ignoring malformed add_to_queue payload", "session", worker.id, "error", err)
		return
	}
	worker.room.AddToQueue(payload.Item)
}

// handleAddPending kicks off an asynchronous ingest. At most one ingest
// runs per client address; further requests get an error reply while
// the first is still in flight.
func (worker *Worker) handleAddPending(raw json.RawMessage) {
	var payload AddItemPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		logger.Debugw("Ignoring malformed add_pending_download payload", "session", worker.id, "error", err)
		return
	}
	if payload.Item.VideoID == "" {
		worker.room.SendError(worker, "video_id is required")
		return
	}

	if !worker.inflight.Acquire(worker.ip) {
		worker.room.SendError(worker, errDownloadsInFlight.Error())
		return
	}

	pending := worker.room.AddPending(payload.Item)
	go worker.runIngest(pending)
}

func (worker *Worker) runIngest(pending Track) {
	defer worker.inflight.Release(worker.ip)

	taskID := worker.downloads.Submit(pending.VideoID, "")
	worker.inflight.Bind(worker.ip, taskID)

	result, err := worker.downloads.Await(taskID, ingestAwaitTimeout)
	if err != nil {
		logger.Warnw("Ingest failed", "room", worker.room.Slug(), "video", pending.VideoID, "error", err)
		worker.room.FailPendingItem(pending.ID)
		return
	}

	logger.Infow("Ingest finished", "room", worker.room.Slug(), "video", pending.VideoID, "url", result.URL)
	worker.room.CompletePendingItem(pending.ID, result.URL, result.Artwork, result.Duration)
	worker.room.SetFirstAvailable()
}

func (worker *Worker) handleSetModerator(raw json.RawMessage) {
	if !worker.authorized(OpSetModerator) {
		return
	}

	var payload SetModeratorPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.ClientIP == "" {
		logger.Debugw("Ignoring malformed set_moderator payload", "session", worker.id, "error", err)
		return
	}

	if err := worker.room.SetModerator(payload.ClientIP, payload.ClientPort, payload.IsModerator); err != nil {
		worker.room.SendError(worker, err.Error())
	}
}

func (worker *Worker) handleGetUsers(raw json.RawMessage) {
	page := 0
	limit := rosterPageLimit

	var payload GetUsersPayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			logger.Debugw("Ignoring malformed get_users payload", "session", worker.id, "error", err)
			return
		}
	}
	if payload.Page != nil {
		page = *payload.Page
	}
	if payload.Limit != nil {
		limit = *payload.Limit
	}

	worker.room.SendUsersPage(worker, page, limit)
}

func (worker *Worker) handleCheckRoom(raw json.RawMessage) {
	var payload CheckRoomPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Slug == "" {
		logger.Debugw("Ignoring malformed check_room_exists payload", "session", worker.id, "error", err)
		return
	}

	exists := RoomExists{Slug: payload.Slug, Exists: worker.registry.Exists(payload.Slug)}
	data, err := MarshalEnvelope(RoomExistsType, exists, clock.Seconds(worker.clock.Now()))
	if err != nil {
		logger.Errorw("Unable to marshal room_exists", "error", err)
		return
	}
	if err := worker.Send(data); err != nil {
		worker.Close()
	}
}
