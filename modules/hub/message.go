package hub

import (
	"github.com/zachfi/nowplaying/pkg/metadata"
)

type Type string

// Commands from the UI.
const (
	PlayStation       Type = "PLAY_STATION"
	PauseStation      Type = "PAUSE_STATION"
	StopStation       Type = "STOP_STATION"
	SetVolume         Type = "SET_VOLUME"
	NextStation       Type = "NEXT_STATION"
	PreviousStation   Type = "PREVIOUS_STATION"
	UpdateFavorites   Type = "UPDATE_FAVORITES"
	UpdateCurrentList Type = "UPDATE_CURRENT_LIST"
	GetPlayingState   Type = "GET_PLAYING_STATE"
)

// Events from the audio engine.
const (
	AudioPlaying   Type = "AUDIO_PLAYING"
	AudioPaused    Type = "AUDIO_PAUSED"
	AudioEnded     Type = "AUDIO_ENDED"
	AudioError     Type = "AUDIO_ERROR"
	AudioBuffering Type = "AUDIO_BUFFERING"
	HLSMetadata    Type = "HLS_METADATA"
)

// Messages sent by the service.
const (
	PlayAudio      Type = "PLAY_AUDIO"
	PauseAudio     Type = "PAUSE_AUDIO"
	StopAudio      Type = "STOP_AUDIO"
	MetadataUpdate Type = "METADATA_UPDATE"
	StationChanged Type = "STATION_CHANGED"
	PlayingState   Type = "PLAYING_STATE"
	Error          Type = "ERROR"
)

// Message is the single wire shape of the bus. Only the fields relevant to
// Type are set.
type Message struct {
	Type Type `json:"type"`

	Station  *metadata.Station  `json:"station,omitempty"`
	Metadata *metadata.Result   `json:"metadata,omitempty"`
	Stations []metadata.Station `json:"stations,omitempty"`
	ListID   string             `json:"listId,omitempty"`
	Volume   *float64           `json:"volume,omitempty"`

	// PLAYING_STATE
	IsPlaying      bool              `json:"isPlaying,omitempty"`
	IsPaused       bool              `json:"isPaused,omitempty"`
	CurrentStation *metadata.Station `json:"currentStation,omitempty"`

	// AUDIO_ERROR and ERROR
	Error       string `json:"message,omitempty"`
	IsCorsError bool   `json:"isCorsError,omitempty"`

	// HLS_METADATA
	NowPlaying string `json:"nowPlaying,omitempty"`
	Artist     string `json:"artist,omitempty"`
	Title      string `json:"title,omitempty"`
	Source     string `json:"source,omitempty"`
}

// Envelope is an inbound message. Reply answers the sending client only.
type Envelope struct {
	Message Message
	From    string
	Reply   func(Message)
}
