package communication

import (
	"encoding/json"
	"errors"
)

type MessageType string

// Client commands.
const (
	PlayType               MessageType = "play"
	PauseType              MessageType = "pause"
	SeekType               MessageType = "seek"
	SetTrackType           MessageType = "set_track"
	NextTrackType          MessageType = "next-track"
	PreviousTrackType      MessageType = "previous-track"
	ShuffleQueueType       MessageType = "shuffle_queue"
	RepeatTrackType        MessageType = "repeat_track"
	DeleteItemType         MessageType = "delete_item"
	ReorderItemType        MessageType = "reorder_item"
	ApproveItemType        MessageType = "approve_item"
	AddToQueueType         MessageType = "add_to_queue"
	AddPendingDownloadType MessageType = "add_pending_download"
	SetModeratorType       MessageType = "set_moderator"
	GetStateType           MessageType = "get_state"
	GetQueueType           MessageType = "get_queue"
	GetUsersType           MessageType = "get_users"
	PingType               MessageType = "ping"
	DanceType              MessageType = "dance"
	CheckRoomExistsType    MessageType = "check_room_exists"
)

// Server envelopes.
const (
	StateSyncType  MessageType = "state_sync"
	QueueSyncType  MessageType = "queue_sync"
	UsersSyncType  MessageType = "users_sync"
	UserInfoType   MessageType = "user_info"
	PongType       MessageType = "pong"
	RoomExistsType MessageType = "room_exists"
	ErrorType      MessageType = "error"
)

// Envelope is the wire format: one JSON object per message.
type Envelope struct {
	Type       MessageType     `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	ServerTime float64         `json:"server_time,omitempty"`
}

var ErrMissingType = errors.New("message has no type")

func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}
	if envelope.Type == "" {
		return nil, ErrMissingType
	}

	return &envelope, nil
}

func MarshalEnvelope(messageType MessageType, payload interface{}, serverTime float64) ([]byte, error) {
	envelope := Envelope{Type: messageType, ServerTime: serverTime}
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		envelope.Payload = encoded
	}

	return json.Marshal(envelope)
}

// Client command payloads.

type SeekPayload struct {
	Position float64 `json:"position"`
}

// SetTrackPayload carries either a full Track object or a bare URL
// string under the track key.
type SetTrackPayload struct {
	Track     json.RawMessage `json:"track"`
	IsPlaying *bool           `json:"is_playing,omitempty"`
}

type ItemPayload struct {
	ItemID string `json:"item_id"`
}

type ReorderPayload struct {
	ItemID    string `json:"item_id"`
	Direction string `json:"direction"`
}

type AddItemPayload struct {
	Item Track `json:"item"`
}

type SetModeratorPayload struct {
	ClientIP    string `json:"client_ip"`
	ClientPort  *int   `json:"client_port,omitempty"`
	IsModerator bool   `json:"is_moderator"`
}

type GetUsersPayload struct {
	Page  *int `json:"page,omitempty"`
	Limit *int `json:"limit,omitempty"`
}

type CheckRoomPayload struct {
	Slug string `json:"slug"`
}

// Server envelope payloads.

type PlayBroadcast struct {
	StartTime float64 `json:"start_time"`
}

type PauseBroadcast struct {
	Position float64 `json:"position"`
}

type SeekBroadcast struct {
	Position  float64 `json:"position"`
	IsPlaying bool    `json:"is_playing"`
}

type TrackBroadcast struct {
	Track     *Track `json:"track"`
	IsPlaying bool   `json:"is_playing"`
}

type QueueSync struct {
	Queue []Track `json:"queue"`
}

type UsersSync struct {
	Users   []UserView `json:"users"`
	Page    int        `json:"page"`
	Limit   int        `json:"limit"`
	Total   int        `json:"total"`
	HasMore bool       `json:"has_more"`
}

type UserInfo struct {
	Name        string `json:"name"`
	Role        Role   `json:"role"`
	IsHost      bool   `json:"is_host"`
	IsModerator bool   `json:"is_moderator"`
}

type RoomExists struct {
	Slug   string `json:"slug"`
	Exists bool   `json:"exists"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
