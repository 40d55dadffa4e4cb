package radio

import (
	"sync"

	"github.com/zachfi/nowplaying/pkg/metadata"
)

// Playback is what the service knows about the audio engine.
type Playback struct {
	mu      sync.Mutex
	playing bool
	paused  bool
	station *metadata.Station
}

func NewPlayback() *Playback {
	return &Playback{}
}

func (p *Playback) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *Playback) IsPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *Playback) CurrentStation() (metadata.Station, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.station == nil {
		return metadata.Station{}, false
	}
	return *p.station, true
}

func (p *Playback) setStation(s metadata.Station) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.station = &s
}

// play records a station change. Playing is only set once the audio
// engine confirms it.
func (p *Playback) play(s metadata.Station) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.station = &s
	p.paused = false
}

func (p *Playback) pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	p.paused = true
}

func (p *Playback) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	p.paused = false
}

// started handles AUDIO_PLAYING, which a paused engine may still emit.
func (p *Playback) started() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		p.playing = true
	}
}

func (p *Playback) ended() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
}
