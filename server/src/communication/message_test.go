package communication

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnmarshalEnvelope(t *testing.T) {
	envelope, err := UnmarshalEnvelope([]byte(`{"type":"seek","payload":{"position":12.5}}`))
	require.NoError(t, err)
	require.Equal(t, SeekType, envelope.Type)

	var payload SeekPayload
	require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
	require.Equal(t, 12.5, payload.Position)
}

func TestUnmarshalEnvelopeWithoutType(t *testing.T) {
	_, err := UnmarshalEnvelope([]byte(`{"payload":{}}`))
	require.ErrorIs(t, err, ErrMissingType)
}

func TestUnmarshalEnvelopeGarbage(t *testing.T) {
	_, err := UnmarshalEnvelope([]byte(`{"type":`))
	require.Error(t, err)
}

func TestMarshalEnvelope(t *testing.T) {
	data, err := MarshalEnvelope(PlayType, PlayBroadcast{StartTime: 1748779200.5}, 1748779210.25)
	require.NoError(t, err)

	envelope, err := UnmarshalEnvelope(data)
	require.NoError(t, err)
	require.Equal(t, PlayType, envelope.Type)
	require.Equal(t, 1748779210.25, envelope.ServerTime)

	var play PlayBroadcast
	require.NoError(t, json.Unmarshal(envelope.Payload, &play))
	require.Equal(t, 1748779200.5, play.StartTime)
}

func TestMarshalEnvelopeWithoutPayload(t *testing.T) {
	data, err := MarshalEnvelope(DanceType, nil, 1748779210.0)
	require.NoError(t, err)
	require.NotContains(t, string(data), "payload")
}

func TestSetTrackPayloadAcceptsBareURL(t *testing.T) {
	var payload SetTrackPayload
	require.NoError(t, json.Unmarshal([]byte(`{"track":"https://cdn.example/a.mp3"}`), &payload))

	track, err := normalizeTrack(payload.Track)
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example/a.mp3", track.URL)
	require.Equal(t, "a", track.Title)
	require.NotEmpty(t, track.ID)
}

func TestTrackFromURLDetectsYouTube(t *testing.T) {
	track := TrackFromURL("https://www.youtube.com/My_Great_Song.mp3")
	require.Equal(t, SourceYouTube, track.Source)
	require.Equal(t, "My Great Song", track.Title)
	require.Equal(t, "Unknown Artist", track.Artist)

	track = TrackFromURL("https://cdn.example/plain.mp3")
	require.Equal(t, SourceHTML5, track.Source)
}

func TestTrackAvailable(t *testing.T) {
	require.True(t, Track{URL: "https://cdn.example/a.mp3"}.Available())
	require.False(t, Track{URL: "https://cdn.example/a.mp3", IsPending: true}.Available())
	require.False(t, Track{URL: "https://cdn.example/a.mp3", IsSuggested: true}.Available())
	require.False(t, Track{}.Available())
}
