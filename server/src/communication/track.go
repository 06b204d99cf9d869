package communication

import (
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
)

const (
	SourceHTML5   = "html5"
	SourceYouTube = "youtube"

	defaultArtist  = "Unknown Artist"
	defaultArtwork = "https://picsum.photos/id/842/1500/1500"
)

// Track is one queue entry. Ids are unique within a queue and always
// drawn fresh on insertion; the provider-local handle lives in VideoID
// while an ingest is pending.
type Track struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Artist      string   `json:"artist"`
	URL         string   `json:"url"`
	Artwork     string   `json:"artwork,omitempty"`
	Source      string   `json:"source"`
	Duration    *float64 `json:"duration,omitempty"`
	IsSuggested bool     `json:"isSuggested,omitempty"`
	IsPending   bool     `json:"isPending,omitempty"`
	Votes       int      `json:"votes,omitempty"`
	VideoID     string   `json:"video_id,omitempty"`
}

// Available reports whether the track may become the current track:
// ingested, approved and playable.
func (track Track) Available() bool {
	return !track.IsPending && !track.IsSuggested && track.URL != ""
}

// TrackFromURL synthesizes a Track from a bare media URL.
func TrackFromURL(rawURL string) Track {
	title := path.Base(rawURL)
	title = strings.TrimSuffix(title, path.Ext(title))
	title = strings.ReplaceAll(title, "_", " ")

	source := SourceHTML5
	if parsed, err := url.Parse(rawURL); err == nil {
		host := strings.TrimPrefix(parsed.Hostname(), "www.")
		if host == "youtube.com" || host == "youtu.be" {
			source = SourceYouTube
		}
	}

	return Track{
		ID:      uuid.NewString(),
		Title:   title,
		Artist:  defaultArtist,
		URL:     rawURL,
		Artwork: defaultArtwork,
		Source:  source,
	}
}

// PlaybackState is the authoritative per-room timeline.
// Invariants: playing implies StartTime is set and elapsed seconds are
// now−StartTime; paused implies StartTime is nil and Position holds the
// last offset; Duration mirrors Track.Duration.
type PlaybackState struct {
	Track     *Track   `json:"track"`
	IsPlaying bool     `json:"is_playing"`
	StartTime *float64 `json:"start_time"`
	Position  float64  `json:"position"`
	Duration  *float64 `json:"duration"`
}

type Role string

const (
	RoleHost      Role = "host"
	RoleModerator Role = "moderator"
	RoleListener  Role = "listener"
)

const defaultUserName = "No name"

// User is the per-connection identity inside a room.
type User struct {
	Name string
	Role Role
	IP   string
	Port int
}

// UserView is the roster representation sent to clients.
type UserView struct {
	Name        string `json:"name"`
	Role        Role   `json:"role"`
	IsHost      bool   `json:"is_host"`
	IsModerator bool   `json:"is_moderator"`
	ClientIP    string `json:"client_ip"`
	ClientPort  int    `json:"client_port"`
}

func (user *User) View() UserView {
	return UserView{
		Name:        user.Name,
		Role:        user.Role,
		IsHost:      user.Role == RoleHost,
		IsModerator: user.Role == RoleModerator,
		ClientIP:    user.IP,
		ClientPort:  user.Port,
	}
}
