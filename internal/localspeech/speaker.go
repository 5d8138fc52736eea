package localspeech

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"
)

// DefaultRate is the speaking rate relative to normal, slightly slowed for a
// lecture.
const DefaultRate = 0.9

// normalWPM is the default rate of both say and espeak-ng.
const normalWPM = 175

// ErrNoDriver is returned when no speech program is installed.
var ErrNoDriver = errors.New("no system speech synthesizer found (install say or espeak-ng)")

// Driver speaks one chunk of text and blocks until it is done.
type Driver interface {
	Name() string
	Voices(ctx context.Context) ([]Voice, error)
	Speak(ctx context.Context, text string, voice Voice, rate float64) error
}

// Options are the per-utterance callbacks. Each is optional.
type Options struct {
	OnStart func()
	// OnBoundary receives the rune offset of each sentence as it begins.
	OnBoundary func(charIndex int)
	OnEnd      func()
}

// Speaker speaks one utterance at a time; a new Speak cancels the previous.
type Speaker struct {
	driver Driver
	pref   Preference
	rate   float64

	mu      sync.Mutex
	cancel  context.CancelFunc
	current uint64
	seq     uint64
}

// NewSpeaker creates a speaker over driver with the default preference and
// rate.
func NewSpeaker(driver Driver) *Speaker {
	return &Speaker{driver: driver, pref: DefaultPreferred, rate: DefaultRate}
}

// SetPreference overrides the voice preference.
func (s *Speaker) SetPreference(p Preference) { s.pref = p }

// SetRate overrides the relative speaking rate.
func (s *Speaker) SetRate(rate float64) {
	if rate > 0 {
		s.rate = rate
	}
}

// Voice returns the voice Speak would use.
func (s *Speaker) Voice(ctx context.Context) (Voice, error) {
	voices, err := s.driver.Voices(ctx)
	if err != nil {
		return Voice{}, err
	}
	v, _ := PickVoice(voices, s.pref)
	return v, nil
}

// Speak cancels any utterance in progress and speaks text sentence by
// sentence. It returns when speaking finishes, ctx is cancelled or Cancel is
// called; OnEnd runs only on natural completion.
func (s *Speaker) Speak(ctx context.Context, text string, opts Options) error {
	voice, err := s.Voice(ctx)
	if err != nil {
		return fmt.Errorf("list voices: %w", err)
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.seq++
	id := s.seq
	s.cancel = cancel
	s.current = id
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.current == id {
			s.current = 0
			s.cancel = nil
		}
		s.mu.Unlock()
		cancel()
	}()

	if opts.OnStart != nil {
		opts.OnStart()
	}
	for _, sent := range Sentences(text) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if opts.OnBoundary != nil {
			opts.OnBoundary(sent.Offset)
		}
		if err := s.driver.Speak(ctx, sent.Text, voice, s.rate); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%s: %w", s.driver.Name(), err)
		}
	}
	if opts.OnEnd != nil {
		opts.OnEnd()
	}
	return nil
}

// Cancel stops the utterance in progress, if any.
func (s *Speaker) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Speaking reports whether an utterance is in progress.
func (s *Speaker) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != 0
}

// Sentence is one chunk of text with its rune offset in the original.
type Sentence struct {
	Offset int
	Text   string
}

// Sentences splits text after sentence-ending punctuation, Chinese or
// Latin. Whitespace-only chunks are dropped.
func Sentences(text string) []Sentence {
	var out []Sentence
	start, runeIdx, startRune := 0, 0, 0
	for i, r := range text {
		runeIdx++
		if !strings.ContainsRune("。！？；.!?;\n", r) {
			continue
		}
		end := i + utf8.RuneLen(r)
		if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
			out = append(out, Sentence{Offset: startRune, Text: chunk})
		}
		start = end
		startRune = runeIdx
	}
	if chunk := strings.TrimSpace(text[start:]); chunk != "" {
		out = append(out, Sentence{Offset: startRune, Text: chunk})
	}
	return out
}

// Detect returns the driver for this system: say on macOS, espeak-ng (or
// espeak) elsewhere.
func Detect() (Driver, error) {
	if runtime.GOOS == "darwin" {
		if path, err := exec.LookPath("say"); err == nil {
			return &execDriver{name: "say", path: path}, nil
		}
	}
	for _, name := range []string{"espeak-ng", "espeak"} {
		if path, err := exec.LookPath(name); err == nil {
			return &execDriver{name: name, path: path}, nil
		}
	}
	return nil, ErrNoDriver
}

type execDriver struct {
	name string
	path string
}

func (d *execDriver) Name() string { return d.name }

func (d *execDriver) Voices(ctx context.Context) ([]Voice, error) {
	if d.name == "say" {
		out, err := exec.CommandContext(ctx, d.path, "-v", "?").Output()
		if err != nil {
			return nil, err
		}
		return parseSayVoices(string(out)), nil
	}
	out, err := exec.CommandContext(ctx, d.path, "--voices").Output()
	if err != nil {
		return nil, err
	}
	return parseEspeakVoices(string(out)), nil
}

func (d *execDriver) Speak(ctx context.Context, text string, voice Voice, rate float64) error {
	return exec.CommandContext(ctx, d.path, d.args(text, voice, rate)...).Run()
}

func (d *execDriver) args(text string, voice Voice, rate float64) []string {
	wpm := strconv.Itoa(int(normalWPM*rate + 0.5))
	if d.name == "say" {
		args := []string{"-r", wpm}
		if voice.Name != "" {
			args = append(args, "-v", voice.Name)
		}
		return append(args, safeArg(text))
	}
	args := []string{"-s", wpm}
	if voice.Lang != "" {
		args = append(args, "-v", voice.Lang)
	}
	return append(args, safeArg(text))
}

// safeArg keeps text that starts with a dash from being read as a flag.
func safeArg(text string) string {
	if strings.HasPrefix(text, "-") {
		return " " + text
	}
	return text
}
