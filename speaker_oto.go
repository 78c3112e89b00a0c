//go:build !headless

// speaker_oto.go - PC speaker beeper over OTO v3
//
// A square-wave generator wired to the console bell. Beep() arms a
// burst of cycles at the classic 800 Hz bell pitch; the oto player
// pulls samples on its own schedule so the emulation never blocks
// on audio.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"math"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/oto/v3"
)

const (
	speakerSampleRate = 44100
	bellFreq          = 800.0
	bellDurationMs    = 150
	bellVolume        = 0.25
)

type Speaker struct {
	ctx    *oto.Context
	player *oto.Player

	// Samples left in the current beep, decremented on the audio
	// goroutine
	remaining atomic.Int64
	phase     float64

	sampleBuf []float32
	started   bool
	mutex     sync.Mutex
}

func NewSpeaker() (*Speaker, error) {
	op := &oto.NewContextOptions{
		SampleRate:   speakerSampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   4,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	s := &Speaker{
		ctx:       ctx,
		sampleBuf: make([]float32, 4096),
	}
	s.player = ctx.NewPlayer(s)
	return s, nil
}

// Beep arms one BEL burst. Safe to call from the scheduler goroutine.
func (s *Speaker) Beep() {
	s.remaining.Store(int64(speakerSampleRate * bellDurationMs / 1000))
}

// Read generates square-wave samples while a beep is armed, silence
// otherwise. Called by oto on the audio goroutine.
func (s *Speaker) Read(p []byte) (n int, err error) {
	numSamples := len(p) / 4
	if numSamples == 0 {
		return 0, nil
	}
	if len(s.sampleBuf) < numSamples {
		s.sampleBuf = make([]float32, numSamples)
	}
	samples := s.sampleBuf[:numSamples]

	step := bellFreq / speakerSampleRate
	for i := 0; i < numSamples; i++ {
		if s.remaining.Load() <= 0 {
			samples[i] = 0
			continue
		}
		s.remaining.Add(-1)
		s.phase += step
		if s.phase >= 1 {
			s.phase -= math.Floor(s.phase)
		}
		if s.phase < 0.5 {
			samples[i] = bellVolume
		} else {
			samples[i] = -bellVolume
		}
	}

	copy(p, (*[1 << 30]byte)(unsafe.Pointer(&samples[0]))[:len(p)])
	return len(p), nil
}

func (s *Speaker) Start() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.started && s.player != nil {
		s.player.Play()
		s.started = true
	}
}

func (s *Speaker) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.started && s.player != nil {
		s.player.Pause()
		s.started = false
	}
}

func (s *Speaker) Close() {
	s.Stop()
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.player != nil {
		_ = s.player.Close()
		s.player = nil
	}
}
