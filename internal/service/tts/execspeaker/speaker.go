// Package execspeaker speaks through a device text-to-speech binary such as
// espeak-ng. Each utterance is one process; cancelling kills it.
package execspeaker

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"ai-scene-narrator-service/internal/observability/logging"
	"ai-scene-narrator-service/internal/service/tts"
)

const (
	// espeak-ng speaks at 175 words per minute at its default rate.
	baseWordsPerMinute = 175
	voicesKey          = "voices"
	// waitDelay bounds how long a killed process may hold its output pipes.
	waitDelay = time.Second
)

// Config holds speaker configuration.
type Config struct {
	Command       string        // TTS binary, e.g. "espeak-ng"
	VoiceCacheTTL time.Duration // how long the installed voice list is trusted
}

// DefaultConfig returns the espeak-ng configuration.
func DefaultConfig() Config {
	return Config{
		Command:       "espeak-ng",
		VoiceCacheTTL: 10 * time.Minute,
	}
}

// Speaker implements tts.Speaker by running the configured binary.
// A new utterance interrupts whatever is still playing or waiting.
type Speaker struct {
	command string
	voices  *cache.Cache
	slot    chan struct{}
	logger  zerolog.Logger

	mu       sync.Mutex
	inflight map[uint64]context.CancelFunc
	nextID   uint64
}

var _ tts.Speaker = (*Speaker)(nil)

// New creates a speaker. The voice cache belongs to the speaker instance.
func New(cfg Config) *Speaker {
	if cfg.Command == "" {
		cfg.Command = DefaultConfig().Command
	}
	if cfg.VoiceCacheTTL <= 0 {
		cfg.VoiceCacheTTL = DefaultConfig().VoiceCacheTTL
	}
	return &Speaker{
		command:  cfg.Command,
		voices:   cache.New(cfg.VoiceCacheTTL, 2*cfg.VoiceCacheTTL),
		slot:     make(chan struct{}, 1),
		logger:   logging.WithProvider("tts", "exec"),
		inflight: make(map[uint64]context.CancelFunc),
	}
}

// Speak runs the binary with the text on stdin and waits for it to exit.
func (s *Speaker) Speak(ctx context.Context, text, lang string, rate float64) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	id := s.track(cancel)
	defer s.untrack(id)
	s.preempt(id)

	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return nil
	}
	defer func() { <-s.slot }()

	cmd := exec.CommandContext(ctx, s.command,
		"-v", strings.ToLower(lang),
		"-s", strconv.Itoa(wordsPerMinute(rate)),
		"--stdin",
	)
	cmd.Stdin = strings.NewReader(text)
	cmd.WaitDelay = waitDelay

	out, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		// Killed by CancelAll or the caller: an interruption, not a failure.
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w: %s", s.command, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// CancelAll kills the playing utterance and releases every waiting one.
func (s *Speaker) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cancel := range s.inflight {
		cancel()
		delete(s.inflight, id)
	}
}

// preempt cancels every utterance other than keep.
func (s *Speaker) preempt(keep uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cancel := range s.inflight {
		if id == keep {
			continue
		}
		cancel()
		delete(s.inflight, id)
	}
}

// VoiceAvailable checks lang against the installed voices, listing them
// with "--voices" at most once per cache period.
func (s *Speaker) VoiceAvailable(ctx context.Context, lang string) (bool, error) {
	voices, err := s.installedVoices(ctx)
	if err != nil {
		return false, err
	}
	return tts.MatchVoice(voices, lang), nil
}

func (s *Speaker) installedVoices(ctx context.Context) ([]string, error) {
	if v, ok := s.voices.Get(voicesKey); ok {
		return v.([]string), nil
	}

	out, err := exec.CommandContext(ctx, s.command, "--voices").Output()
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	voices := parseVoices(out)
	s.voices.Set(voicesKey, voices, cache.DefaultExpiration)

	s.logger.Debug().
		Int("voices", len(voices)).
		Msg("Loaded installed voices")
	return voices, nil
}

func (s *Speaker) track(cancel context.CancelFunc) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.inflight[s.nextID] = cancel
	return s.nextID
}

func (s *Speaker) untrack(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
}

// parseVoices extracts the language column from "--voices" output:
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 5  en-us           --/M      English_(America)  gmw/en-US
func parseVoices(out []byte) []string {
	var voices []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 || fields[0] == "Pty" {
			continue
		}
		voices = append(voices, fields[1])
	}
	return voices
}

func wordsPerMinute(rate float64) int {
	if rate <= 0 {
		rate = 1
	}
	return int(math.Round(baseWordsPerMinute * rate))
}
