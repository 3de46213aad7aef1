// ABOUTME: Plays the notification sound without blocking the event loop.
// ABOUTME: A configured mp3/wav file goes through gopxl/beep; otherwise a system beep.
package sound

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/wav"

	"github.com/777genius/agent-toast/internal/errorhandler"
	"github.com/777genius/agent-toast/internal/logging"
)

// outputRate is the speaker rate; every file is resampled to it.
const outputRate beep.SampleRate = 44100

// Player plays one sound per notification.
type Player struct {
	mu          sync.Mutex
	wg          sync.WaitGroup
	closing     bool
	speakerInit sync.Once
	speakerErr  error

	// fallback plays the default sound; replaced in tests.
	fallback func() error
}

func New() *Player {
	return &Player{
		fallback: func() error { return beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration) },
	}
}

// Play starts path, or the default beep when path is empty, in the
// background. Errors are logged.
func (p *Player) Play(path string) {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		logging.Debug("Skipping sound playback: player is closing")
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	errorhandler.SafeGo(func() {
		defer p.wg.Done()
		if err := p.play(path); err != nil {
			logging.Warn("Failed to play sound %q: %v", path, err)
		}
	})
}

// PlayNow plays path and waits for it to finish.
func (p *Player) PlayNow(path string) error {
	return p.play(path)
}

func (p *Player) play(path string) error {
	if path == "" {
		return p.fallback()
	}

	streamer, format, err := decode(path)
	if err != nil {
		return err
	}
	defer streamer.Close()

	p.speakerInit.Do(func() {
		p.speakerErr = speaker.Init(outputRate, outputRate.N(time.Second/10))
	})
	if p.speakerErr != nil {
		return fmt.Errorf("init speaker: %w", p.speakerErr)
	}

	done := make(chan struct{})
	var s beep.Streamer = streamer
	if format.SampleRate != outputRate {
		s = beep.Resample(4, format.SampleRate, outputRate, streamer)
	}
	speaker.Play(beep.Seq(s, beep.Callback(func() { close(done) })))

	select {
	case <-done:
	case <-time.After(format.SampleRate.D(streamer.Len()) + 2*time.Second):
		logging.Debug("sound %s did not finish in time", path)
	}
	logging.Debug("Sound played: %s", path)
	return nil
}

// decode opens path and picks a decoder by extension.
func decode(path string) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".mp3" && ext != ".wav" {
		return nil, beep.Format{}, fmt.Errorf("unsupported sound format: %s", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch ext {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".wav":
		streamer, format, err = wav.Decode(f)
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return streamer, format, nil
}

// Close waits for sounds in flight and refuses new ones.
func (p *Player) Close() {
	p.mu.Lock()
	p.closing = true
	p.mu.Unlock()
	p.wg.Wait()
}
