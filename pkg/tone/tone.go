// Package tone renders reference tones for semitones as WAV audio
package tone

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/wav"

	"github.com/armorclaw/pitchscope/pkg/pitch"
)

const (
	// DefaultSampleRate is used when a zero sample rate is requested
	DefaultSampleRate = 48000

	// MaxDuration caps a single rendered tone
	MaxDuration = 10 * time.Second

	// log2 gain applied to the raw sine
	volume = -1.0
)

var (
	ErrInvalidDuration   = errors.New("tone duration must be positive and at most 10s")
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	ErrAboveNyquist      = errors.New("tone is above the Nyquist limit")
)

// Spec describes a tone to render
type Spec struct {
	Semitone   int
	Duration   time.Duration
	SampleRate int
}

// Frequency returns the pitch of the tone in Hz
func (s Spec) Frequency() float64 {
	return pitch.FrequencyFromSemitone(s.Semitone)
}

// Format returns the WAV format the tone is encoded with
func (s Spec) Format() beep.Format {
	sr := s.SampleRate
	if sr == 0 {
		sr = DefaultSampleRate
	}
	return beep.Format{
		SampleRate:  beep.SampleRate(sr),
		NumChannels: 2,
		Precision:   2,
	}
}

// Samples returns the number of sample frames the tone spans
func (s Spec) Samples() int {
	return s.Format().SampleRate.N(s.Duration)
}

func (s Spec) validate() error {
	if s.Duration <= 0 || s.Duration > MaxDuration {
		return fmt.Errorf("%w: %s", ErrInvalidDuration, s.Duration)
	}
	if s.SampleRate < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSampleRate, s.SampleRate)
	}
	return nil
}

// Encode writes the tone described by spec to w as a 16-bit stereo WAV file
func Encode(w io.WriteSeeker, spec Spec) error {
	if err := spec.validate(); err != nil {
		return err
	}

	format := spec.Format()
	freq := spec.Frequency()
	if freq >= float64(format.SampleRate)/2 {
		return fmt.Errorf("%w: semitone %d (%.1f Hz) at %d Hz",
			ErrAboveNyquist, spec.Semitone, freq, format.SampleRate)
	}

	sine, err := generators.SineTone(format.SampleRate, freq)
	if err != nil {
		return fmt.Errorf("failed to create sine generator: %w", err)
	}

	quieter := &effects.Volume{
		Streamer: sine,
		Base:     2,
		Volume:   volume,
	}

	if err := wav.Encode(w, beep.Take(spec.Samples(), quieter), format); err != nil {
		return fmt.Errorf("failed to encode wav: %w", err)
	}
	return nil
}
