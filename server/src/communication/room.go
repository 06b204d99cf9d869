package communication

import (
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bgocumlu/juke/server/src/clock"
	"github.com/bgocumlu/juke/server/src/logger"
)

const (
	rosterPageLimit = 10

	// Trailing-silence buffer applied to ingested durations.
	ingestDurationBuffer = 1.25
)

// Operation classes for role checks.
type Operation int

const (
	OpPlaybackControl Operation = iota
	OpQueueEdit
	OpSetModerator
)

var (
	ErrNotConnected      = errors.New("transport is not connected")
	errPlaybackDenied    = errors.New("Only hosts and moderators can control playback")
	errQueueEditDenied   = errors.New("Only hosts and moderators can edit the queue")
	errModeratorDenied   = errors.New("Only the host can manage moderators")
	errUserNotFound      = errors.New("User not found")
	errTargetIsHost      = errors.New("Cannot change the role of the host")
	errUnknownOperation  = errors.New("unknown operation")
	errDownloadsInFlight = errors.New("A download from your address is already in progress")
)

// ClientSession is the transport-facing handle a room keeps per
// connection. Send must be safe for concurrent use; IsOpen reflects
// transport liveness at the moment of the call.
type ClientSession interface {
	ID() uuid.UUID
	Send(payload []byte) error
	IsOpen() bool
	IP() string
	Port() int
}

type member struct {
	session ClientSession
	user    *User
}

// Room owns the authoritative playback state, the queue and the roster
// of one slug. All mutation happens under a single mutex; fan-out
// happens strictly after release so no network write holds the lock.
type Room struct {
	slug      string
	createdAt time.Time
	clock     clock.Clock
	rand      *rand.Rand

	mutex   sync.Mutex
	state   PlaybackState
	queue   []Track
	members map[uuid.UUID]*member
	order   []uuid.UUID
	host    uuid.UUID
}

func NewRoom(slug string, clk clock.Clock) *Room {
	return &Room{
		slug:      slug,
		createdAt: clk.Now(),
		clock:     clk,
		rand:      rand.New(rand.NewSource(clk.Now().UnixNano())),
		members:   make(map[uuid.UUID]*member),
	}
}

func (room *Room) Slug() string {
	return room.slug
}

func (room *Room) CreatedAt() time.Time {
	return room.createdAt
}

func (room *Room) nowSeconds() float64 {
	return clock.Seconds(room.clock.Now())
}

// outbound is one prepared fan-out, executed after the room mutex is
// released.
type outbound struct {
	sessions []ClientSession
	payload  []byte
}

func (room *Room) envelope(messageType MessageType, payload interface{}, serverTime float64) []byte {
	data, err := MarshalEnvelope(messageType, payload, serverTime)
	if err != nil {
		logger.Errorw("Unable to marshal envelope", "type", messageType, "error", err)
		return nil
	}
	return data
}

func (room *Room) sessionsLocked(exclude ...uuid.UUID) []ClientSession {
	sessions := make([]ClientSession, 0, len(room.order))
outer:
	for _, id := range room.order {
		for _, excluded := range exclude {
			if id == excluded {
				continue outer
			}
		}
		sessions = append(sessions, room.members[id].session)
	}
	return sessions
}

func (room *Room) flush(outbounds []outbound) {
	for _, out := range outbounds {
		if out.payload == nil {
			continue
		}
		var dead []ClientSession
		for _, session := range out.sessions {
			if !session.IsOpen() {
				dead = append(dead, session)
				continue
			}
			if err := session.Send(out.payload); err != nil {
				logger.Infow("Send failed, removing user from room", "room", room.slug, "session", session.ID())
				dead = append(dead, session)
			}
		}
		for _, session := range dead {
			room.Leave(session)
		}
	}
}

// Join adds the connection to the roster. The first user, or any user
// joining while the host transport is gone, becomes host.
func (room *Room) Join(session ClientSession, name string) (*User, error) {
	if !session.IsOpen() {
		return nil, ErrNotConnected
	}
	if name == "" {
		name = defaultUserName
	}

	room.mutex.Lock()
	// Defensive deduplication for a transport that re-announces itself.
	if _, exists := room.members[session.ID()]; exists {
		room.removeLocked(session.ID())
	}

	role := RoleListener
	if !room.hostConnectedLocked() {
		role = RoleHost
		room.host = session.ID()
	}

	user := &User{Name: name, Role: role, IP: session.IP(), Port: session.Port()}
	room.members[session.ID()] = &member{session: session, user: user}
	room.order = append(room.order, session.ID())
	room.mutex.Unlock()

	logger.Infow("User joined room", "room", room.slug, "name", name, "role", role)
	room.BroadcastUsers()
	return user, nil
}

func (room *Room) hostConnectedLocked() bool {
	if room.host == uuid.Nil {
		return false
	}
	current, exists := room.members[room.host]
	return exists && current.session.IsOpen()
}

func (room *Room) removeLocked(id uuid.UUID) {
	delete(room.members, id)
	for i, ordered := range room.order {
		if ordered == id {
			room.order = append(room.order[:i], room.order[i+1:]...)
			break
		}
	}
}

// Leave removes the connection and runs host succession. Idempotent: a
// second call for the same session does nothing and broadcasts nothing.
func (room *Room) Leave(session ClientSession) {
	room.mutex.Lock()
	if _, exists := room.members[session.ID()]; !exists {
		room.mutex.Unlock()
		return
	}

	wasHost := room.host == session.ID()
	room.removeLocked(session.ID())

	var outbounds []outbound
	if wasHost {
		room.host = uuid.Nil
		if successor := room.succeedHostLocked(); successor != nil {
			// Only the new host needs its own role flags refreshed.
			payload := room.envelope(UserInfoType, userInfoFor(successor.user), room.nowSeconds())
			outbounds = append(outbounds, outbound{sessions: []ClientSession{successor.session}, payload: payload})
		}
	}
	room.mutex.Unlock()

	logger.Infow("User left room", "room", room.slug, "session", session.ID())
	room.flush(outbounds)
	room.BroadcastUsers()
}

// Host succession: the first connected moderator in join order wins,
// otherwise the first connected user of any role.
func (room *Room) succeedHostLocked() *member {
	var fallback *member
	var fallbackID uuid.UUID
	for _, id := range room.order {
		candidate := room.members[id]
		if !candidate.session.IsOpen() {
			continue
		}
		if candidate.user.Role == RoleModerator {
			candidate.user.Role = RoleHost
			room.host = id
			return candidate
		}
		if fallback == nil {
			fallback = candidate
			fallbackID = id
		}
	}

	if fallback != nil {
		fallback.user.Role = RoleHost
		room.host = fallbackID
		return fallback
	}
	return nil
}

func userInfoFor(user *User) UserInfo {
	return UserInfo{
		Name:        user.Name,
		Role:        user.Role,
		IsHost:      user.Role == RoleHost,
		IsModerator: user.Role == RoleModerator,
	}
}

// Authorize checks the session's role against the operation class.
func (room *Room) Authorize(sessionID uuid.UUID, op Operation) error {
	room.mutex.Lock()
	defer room.mutex.Unlock()

	current, exists := room.members[sessionID]
	if !exists {
		return errUserNotFound
	}

	role := current.user.Role
	switch op {
	case OpPlaybackControl:
		if role != RoleHost && role != RoleModerator {
			return errPlaybackDenied
		}
	case OpQueueEdit:
		if role != RoleHost && role != RoleModerator {
			return errQueueEditDenied
		}
	case OpSetModerator:
		if role != RoleHost {
			return errModeratorDenied
		}
	default:
		return errUnknownOperation
	}

	return nil
}

// --- playback commands ---

func (room *Room) Play() {
	room.mutex.Lock()
	now := room.nowSeconds()
	start := now - room.state.Position
	room.state.IsPlaying = true
	room.state.StartTime = &start
	payload := room.envelope(PlayType, PlayBroadcast{StartTime: start}, now)
	sessions := room.sessionsLocked()
	room.mutex.Unlock()

	room.flush([]outbound{{sessions: sessions, payload: payload}})
}

// Pause while already paused is an observable no-op: nothing changes
// but the envelope still goes out for UI reconciliation.
func (room *Room) Pause() {
	room.mutex.Lock()
	now := room.nowSeconds()
	if room.state.IsPlaying && room.state.StartTime != nil {
		room.state.Position = now - *room.state.StartTime
	}
	room.state.IsPlaying = false
	room.state.StartTime = nil
	payload := room.envelope(PauseType, PauseBroadcast{Position: room.state.Position}, now)
	sessions := room.sessionsLocked()
	room.mutex.Unlock()

	room.flush([]outbound{{sessions: sessions, payload: payload}})
}

func (room *Room) Seek(position float64) {
	room.mutex.Lock()
	now := room.nowSeconds()
	room.state.Position = position
	if room.state.IsPlaying {
		start := now - position
		room.state.StartTime = &start
	}
	payload := room.envelope(SeekType, SeekBroadcast{Position: position, IsPlaying: room.state.IsPlaying}, now)
	sessions := room.sessionsLocked()
	room.mutex.Unlock()

	room.flush([]outbound{{sessions: sessions, payload: payload}})
}

// SetTrack replaces the current track. Raw may be a full Track object
// or a bare URL string.
func (room *Room) SetTrack(raw json.RawMessage, playing bool) error {
	track, err := normalizeTrack(raw)
	if err != nil {
		return err
	}

	room.mutex.Lock()
	now := room.nowSeconds()
	room.setCurrentLocked(track, playing, now)
	payload := room.envelope(SetTrackType, TrackBroadcast{Track: room.state.Track, IsPlaying: playing}, now)
	sessions := room.sessionsLocked()
	room.mutex.Unlock()

	room.flush([]outbound{{sessions: sessions, payload: payload}})
	return nil
}

func normalizeTrack(raw json.RawMessage) (Track, error) {
	var rawURL string
	if err := json.Unmarshal(raw, &rawURL); err == nil {
		return TrackFromURL(rawURL), nil
	}

	var track Track
	if err := json.Unmarshal(raw, &track); err != nil {
		return Track{}, err
	}
	if track.ID == "" {
		track.ID = uuid.NewString()
	}
	if track.Artist == "" {
		track.Artist = defaultArtist
	}
	if track.Source == "" {
		track.Source = SourceHTML5
	}
	return track, nil
}

// setCurrentLocked installs track as the current one, resetting the
// timeline per the playing hint.
func (room *Room) setCurrentLocked(track Track, playing bool, now float64) {
	copied := track
	room.state.Track = &copied
	room.state.Duration = copied.Duration
	room.state.Position = 0
	room.state.IsPlaying = playing
	if playing {
		start := now
		room.state.StartTime = &start
	} else {
		room.state.StartTime = nil
	}
}

func (room *Room) currentIndexLocked() int {
	if room.state.Track == nil {
		return -1
	}
	for i, track := range room.queue {
		if track.ID == room.state.Track.ID {
			return i
		}
	}
	return -1
}

// findAvailableLocked scans queue order starting at from, rotating at
// most len positions, for the first available track.
func (room *Room) findAvailableLocked(from int) (int, bool) {
	length := len(room.queue)
	if length == 0 {
		return 0, false
	}
	for i := 0; i < length; i++ {
		index := (from + i) % length
		if room.queue[index].Available() {
			return index, true
		}
	}
	return 0, false
}

// NextTrack advances to the first available successor. Without a
// current queue entry the scan starts at the head.
func (room *Room) NextTrack() {
	room.mutex.Lock()
	start := 0
	if current := room.currentIndexLocked(); current >= 0 {
		start = (current + 1) % len(room.queue)
	}
	index, found := room.findAvailableLocked(start)
	if !found {
		room.mutex.Unlock()
		return
	}

	now := room.nowSeconds()
	room.setCurrentLocked(room.queue[index], false, now)
	payload := room.envelope(NextTrackType, TrackBroadcast{Track: room.state.Track}, now)
	sessions := room.sessionsLocked()
	room.mutex.Unlock()

	room.flush([]outbound{{sessions: sessions, payload: payload}})
}

// PreviousTrack wraps to the predecessor without the availability
// filter (deliberate asymmetry with NextTrack).
func (room *Room) PreviousTrack() {
	room.mutex.Lock()
	length := len(room.queue)
	if length == 0 {
		room.mutex.Unlock()
		return
	}

	index := length - 1
	if current := room.currentIndexLocked(); current >= 0 {
		index = (current - 1 + length) % length
	}

	now := room.nowSeconds()
	room.setCurrentLocked(room.queue[index], false, now)
	payload := room.envelope(PreviousTrackType, TrackBroadcast{Track: room.state.Track}, now)
	sessions := room.sessionsLocked()
	room.mutex.Unlock()

	room.flush([]outbound{{sessions: sessions, payload: payload}})
}

// ShuffleQueue pins the current track's entry at index 0 and permutes
// the rest uniformly.
func (room *Room) ShuffleQueue() {
	room.mutex.Lock()
	if current := room.currentIndexLocked(); current > 0 {
		room.queue[0], room.queue[current] = room.queue[current], room.queue[0]
	}
	tail := room.queue
	if room.currentIndexLocked() == 0 {
		tail = room.queue[1:]
	}
	room.rand.Shuffle(len(tail), func(i, j int) {
		tail[i], tail[j] = tail[j], tail[i]
	})
	outbounds := []outbound{room.queueSyncLocked()}
	room.mutex.Unlock()

	room.flush(outbounds)
}

func (room *Room) queueSyncLocked() outbound {
	queue := make([]Track, len(room.queue))
	copy(queue, room.queue)
	payload := room.envelope(QueueSyncType, QueueSync{Queue: queue}, room.nowSeconds())
	return outbound{sessions: room.sessionsLocked(), payload: payload}
}

// RepeatTrack inserts a fresh-id copy of the current track right after
// its queue position.
func (room *Room) RepeatTrack() {
	room.mutex.Lock()
	if room.state.Track == nil {
		room.mutex.Unlock()
		return
	}

	copied := *room.state.Track
	copied.ID = uuid.NewString()

	position := room.currentIndexLocked()
	if position < 0 {
		room.queue = append(room.queue, copied)
	} else {
		room.queue = append(room.queue[:position+1], append([]Track{copied}, room.queue[position+1:]...)...)
	}
	outbounds := []outbound{room.queueSyncLocked()}
	room.mutex.Unlock()

	room.flush(outbounds)
}

// DeleteItem removes the first match. Removing the current track picks
// a new one via the selection rule or clears playback entirely.
func (room *Room) DeleteItem(itemID string) {
	room.mutex.Lock()
	index := -1
	for i, track := range room.queue {
		if track.ID == itemID {
			index = i
			break
		}
	}
	if index < 0 {
		room.mutex.Unlock()
		return
	}

	wasCurrent := room.state.Track != nil && room.state.Track.ID == itemID
	room.queue = append(room.queue[:index], room.queue[index+1:]...)

	outbounds := []outbound{room.queueSyncLocked()}
	if wasCurrent {
		now := room.nowSeconds()
		if next, found := room.findAvailableLocked(0); found {
			room.setCurrentLocked(room.queue[next], false, now)
		} else {
			room.state = PlaybackState{}
		}
		payload := room.envelope(SetTrackType, TrackBroadcast{Track: room.state.Track, IsPlaying: false}, now)
		outbounds = append(outbounds, outbound{sessions: room.sessionsLocked(), payload: payload})
	}
	room.mutex.Unlock()

	room.flush(outbounds)
}

func (room *Room) ReorderItem(itemID string, direction string) {
	room.mutex.Lock()
	index := -1
	for i, track := range room.queue {
		if track.ID == itemID {
			index = i
			break
		}
	}

	swapped := false
	switch direction {
	case "up":
		if index > 0 {
			room.queue[index-1], room.queue[index] = room.queue[index], room.queue[index-1]
			swapped = true
		}
	case "down":
		if index >= 0 && index < len(room.queue)-1 {
			room.queue[index+1], room.queue[index] = room.queue[index], room.queue[index+1]
			swapped = true
		}
	}
	if !swapped {
		room.mutex.Unlock()
		return
	}
	outbounds := []outbound{room.queueSyncLocked()}
	room.mutex.Unlock()

	room.flush(outbounds)
}

func (room *Room) ApproveItem(itemID string) {
	room.mutex.Lock()
	for i := range room.queue {
		if room.queue[i].ID == itemID {
			room.queue[i].IsSuggested = false
			break
		}
	}
	outbounds := []outbound{room.queueSyncLocked()}
	room.mutex.Unlock()

	room.flush(outbounds)
}

// AddToQueue appends the item under a fresh id, keeping any provider
// handle in video_id. A ready item may immediately become the current
// track when none is set.
func (room *Room) AddToQueue(item Track) Track {
	item.ID = uuid.NewString()
	if item.Artist == "" {
		item.Artist = defaultArtist
	}
	if item.Source == "" {
		item.Source = SourceHTML5
	}

	room.mutex.Lock()
	room.queue = append(room.queue, item)
	outbounds := []outbound{room.queueSyncLocked()}
	outbounds = append(outbounds, room.promoteFirstAvailableLocked()...)
	room.mutex.Unlock()

	room.flush(outbounds)
	return item
}

// AddPending creates the placeholder queue entry for an ingest: no URL
// yet, provider handle kept in video_id.
func (room *Room) AddPending(item Track) Track {
	pending := Track{
		ID:        uuid.NewString(),
		Title:     item.Title,
		Artist:    item.Artist,
		Artwork:   item.Artwork,
		Source:    SourceHTML5,
		Duration:  item.Duration,
		IsPending: true,
		VideoID:   item.VideoID,
	}
	if pending.Artist == "" {
		pending.Artist = defaultArtist
	}

	room.mutex.Lock()
	room.queue = append(room.queue, pending)
	outbounds := []outbound{room.queueSyncLocked()}
	room.mutex.Unlock()

	room.flush(outbounds)
	return pending
}

// PatchItem applies fn to the queue entry with the given id and
// broadcasts the queue. Returns false when the entry is gone.
func (room *Room) PatchItem(itemID string, fn func(*Track)) bool {
	room.mutex.Lock()
	found := false
	for i := range room.queue {
		if room.queue[i].ID == itemID {
			fn(&room.queue[i])
			found = true
			break
		}
	}
	if !found {
		room.mutex.Unlock()
		return false
	}
	outbounds := []outbound{room.queueSyncLocked()}
	room.mutex.Unlock()

	room.flush(outbounds)
	return true
}

// CompletePendingItem patches a finished ingest into its queue entry.
// The reported duration gets a small buffer shaved off against trailing
// silence.
func (room *Room) CompletePendingItem(itemID string, url string, artwork string, reportedDuration float64) bool {
	return room.PatchItem(itemID, func(track *Track) {
		track.URL = url
		if artwork != "" {
			track.Artwork = artwork
		}
		duration := math.Max(1, reportedDuration-ingestDurationBuffer)
		track.Duration = &duration
		track.IsPending = false
		track.VideoID = ""
	})
}

// FailPendingItem leaves the entry as a visible failure marker.
func (room *Room) FailPendingItem(itemID string) bool {
	return room.PatchItem(itemID, func(track *Track) {
		track.URL = ""
		track.IsPending = false
	})
}

// SetFirstAvailable promotes the first available queue entry to the
// current track when none is set.
func (room *Room) SetFirstAvailable() {
	room.mutex.Lock()
	outbounds := room.promoteFirstAvailableLocked()
	room.mutex.Unlock()

	room.flush(outbounds)
}

func (room *Room) promoteFirstAvailableLocked() []outbound {
	if room.state.Track != nil {
		return nil
	}
	index, found := room.findAvailableLocked(0)
	if !found {
		return nil
	}

	now := room.nowSeconds()
	room.setCurrentLocked(room.queue[index], false, now)
	payload := room.envelope(SetTrackType, TrackBroadcast{Track: room.state.Track, IsPlaying: false}, now)
	return []outbound{{sessions: room.sessionsLocked(), payload: payload}}
}

// SetModerator promotes or demotes a user addressed by ip (and port if
// supplied). The host cannot be targeted.
func (room *Room) SetModerator(clientIP string, clientPort *int, isModerator bool) error {
	room.mutex.Lock()
	var target *member
	var targetID uuid.UUID
	for _, id := range room.order {
		candidate := room.members[id]
		if candidate.user.IP != clientIP {
			continue
		}
		if clientPort != nil && candidate.user.Port != *clientPort {
			continue
		}
		target = candidate
		targetID = id
		break
	}

	if target == nil {
		room.mutex.Unlock()
		return errUserNotFound
	}
	if targetID == room.host {
		room.mutex.Unlock()
		return errTargetIsHost
	}

	if isModerator {
		target.user.Role = RoleModerator
	} else {
		target.user.Role = RoleListener
	}

	payload := room.envelope(UserInfoType, userInfoFor(target.user), room.nowSeconds())
	room.mutex.Unlock()

	room.flush([]outbound{{sessions: []ClientSession{target.session}, payload: payload}})
	room.BroadcastUsers()
	return nil
}

// AdvanceIfEnded moves the room to its next track when the current one
// has elapsed. Called by the global ticker.
func (room *Room) AdvanceIfEnded() bool {
	room.mutex.Lock()
	state := room.state
	now := room.nowSeconds()
	ended := state.IsPlaying && state.StartTime != nil && state.Duration != nil &&
		now-*state.StartTime >= *state.Duration
	room.mutex.Unlock()

	if !ended {
		return false
	}

	logger.Infow("Track ended, advancing", "room", room.slug)
	room.NextTrack()
	return true
}

// --- per-connection sends ---

func (room *Room) SendState(session ClientSession) {
	room.mutex.Lock()
	now := room.nowSeconds()
	if room.state.IsPlaying && room.state.StartTime != nil {
		room.state.Position = now - *room.state.StartTime
	}
	payload := room.envelope(StateSyncType, room.state, now)
	room.mutex.Unlock()

	room.flush([]outbound{{sessions: []ClientSession{session}, payload: payload}})
}

func (room *Room) SendQueue(session ClientSession) {
	room.mutex.Lock()
	queue := make([]Track, len(room.queue))
	copy(queue, room.queue)
	payload := room.envelope(QueueSyncType, QueueSync{Queue: queue}, room.nowSeconds())
	room.mutex.Unlock()

	room.flush([]outbound{{sessions: []ClientSession{session}, payload: payload}})
}

func (room *Room) SendUserInfo(session ClientSession) {
	room.mutex.Lock()
	current, exists := room.members[session.ID()]
	if !exists {
		room.mutex.Unlock()
		return
	}
	payload := room.envelope(UserInfoType, userInfoFor(current.user), room.nowSeconds())
	room.mutex.Unlock()

	room.flush([]outbound{{sessions: []ClientSession{session}, payload: payload}})
}

func (room *Room) SendError(session ClientSession, message string) {
	payload := room.envelope(ErrorType, ErrorPayload{Message: message}, room.nowSeconds())
	room.flush([]outbound{{sessions: []ClientSession{session}, payload: payload}})
}

func (room *Room) SendPong(session ClientSession) {
	payload := room.envelope(PongType, struct{}{}, room.nowSeconds())
	room.flush([]outbound{{sessions: []ClientSession{session}, payload: payload}})
}

func (room *Room) Dance() {
	room.mutex.Lock()
	payload := room.envelope(DanceType, struct{}{}, room.nowSeconds())
	sessions := room.sessionsLocked()
	room.mutex.Unlock()

	room.flush([]outbound{{sessions: sessions, payload: payload}})
}

// --- roster ---

func (room *Room) usersPageLocked(page int, limit int) UsersSync {
	if page < 0 {
		page = 0
	}
	if limit < 1 {
		limit = rosterPageLimit
	}

	active := make([]UserView, 0, len(room.order))
	for _, id := range room.order {
		current := room.members[id]
		if current.session.IsOpen() {
			active = append(active, current.user.View())
		}
	}

	total := len(active)
	start := page * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return UsersSync{
		Users:   active[start:end],
		Page:    page,
		Limit:   limit,
		Total:   total,
		HasMore: end < total,
	}
}

// BroadcastUsers publishes the first roster page to everyone.
func (room *Room) BroadcastUsers() {
	room.mutex.Lock()
	payload := room.envelope(UsersSyncType, room.usersPageLocked(0, rosterPageLimit), room.nowSeconds())
	sessions := room.sessionsLocked()
	room.mutex.Unlock()

	room.flush([]outbound{{sessions: sessions, payload: payload}})
}

func (room *Room) SendUsersPage(session ClientSession, page int, limit int) {
	room.mutex.Lock()
	payload := room.envelope(UsersSyncType, room.usersPageLocked(page, limit), room.nowSeconds())
	room.mutex.Unlock()

	room.flush([]outbound{{sessions: []ClientSession{session}, payload: payload}})
}

// --- REST accessors ---

func (room *Room) UserCount() int {
	room.mutex.Lock()
	defer room.mutex.Unlock()

	count := 0
	for _, id := range room.order {
		if room.members[id].session.IsOpen() {
			count++
		}
	}
	return count
}

func (room *Room) QueueLength() int {
	room.mutex.Lock()
	defer room.mutex.Unlock()

	return len(room.queue)
}

func (room *Room) HasHost() bool {
	room.mutex.Lock()
	defer room.mutex.Unlock()

	return room.hostConnectedLocked()
}

// ActiveUsers returns one roster page for the REST listing.
func (room *Room) ActiveUsers(page int, limit int) UsersSync {
	room.mutex.Lock()
	defer room.mutex.Unlock()

	return room.usersPageLocked(page, limit)
}
