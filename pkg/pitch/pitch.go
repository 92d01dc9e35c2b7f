// Package pitch converts between frequency, equal-tempered semitone index and
// cents offset. A4 = 440 Hz = semitone 69, matching MIDI note numbering.
//
// All functions are pure and safe for concurrent use.
package pitch

import (
	"errors"
	"fmt"
	"math"
)

const (
	// ReferenceFrequency is the pitch of the reference semitone (A4)
	ReferenceFrequency = 440.0

	// ReferenceSemitone is the semitone index of A4
	ReferenceSemitone = 69

	// OctaveCents is the number of cents in one octave
	OctaveCents = 1200

	semitonesPerOctave = 12
)

var (
	// ErrInvalidFrequency is returned for frequencies that are not positive
	// finite numbers, or too small to place on the scale
	ErrInvalidFrequency = errors.New("frequency must be a positive finite number")

	// ErrSemitoneOutOfRange is returned when a semitone's frequency is not
	// representable as a positive finite float64
	ErrSemitoneOutOfRange = errors.New("semitone frequency out of range")
)

var noteNames = [semitonesPerOctave]string{
	"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B",
}

// Reading is one frequency projected onto the equal-tempered scale
type Reading struct {
	Frequency float64 `json:"frequency"`
	Semitone  int     `json:"semitone"`
	Note      string  `json:"note"`
	Cents     int     `json:"cents"`
	Reference float64 `json:"reference_frequency"`
}

func validate(hz float64) error {
	if math.IsNaN(hz) || math.IsInf(hz, 0) || hz <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidFrequency, hz)
	}
	return nil
}

// SemitoneFromPitch returns the nearest semitone index for a frequency in Hz
func SemitoneFromPitch(hz float64) (int, error) {
	if err := validate(hz); err != nil {
		return 0, err
	}
	noteNum := semitonesPerOctave * math.Log2(hz/ReferenceFrequency)
	if !finite(noteNum) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFrequency, hz)
	}
	// Half-way values round up, not away from zero.
	return int(math.Floor(noteNum+0.5)) + ReferenceSemitone, nil
}

// FrequencyFromSemitone returns the frequency in Hz of a semitone index
func FrequencyFromSemitone(semitone int) float64 {
	return ReferenceFrequency * math.Pow(2, float64(semitone-ReferenceSemitone)/semitonesPerOctave)
}

// SemitoneFrequency is FrequencyFromSemitone for callers that must not
// publish an overflowed (+Inf) or underflowed (0) frequency
func SemitoneFrequency(semitone int) (float64, error) {
	freq := FrequencyFromSemitone(semitone)
	if !finite(freq) || freq <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrSemitoneOutOfRange, semitone)
	}
	return freq, nil
}

// CentsOffFromPitch returns how far hz sits from the pitch of semitone, in
// cents, floored toward negative infinity.
func CentsOffFromPitch(hz float64, semitone int) (int, error) {
	if err := validate(hz); err != nil {
		return 0, err
	}
	ref, err := SemitoneFrequency(semitone)
	if err != nil {
		return 0, err
	}
	cents := OctaveCents * math.Log2(hz/ref)
	if !finite(cents) {
		return 0, fmt.Errorf("%w: %v against semitone %d", ErrInvalidFrequency, hz, semitone)
	}
	return int(math.Floor(cents)), nil
}

// NoteName returns the scientific pitch name of a semitone index, e.g. "A4"
func NoteName(semitone int) string {
	octave := floorDiv(semitone, semitonesPerOctave) - 1
	idx := semitone - (octave+1)*semitonesPerOctave
	return fmt.Sprintf("%s%d", noteNames[idx], octave)
}

// Analyze projects a frequency onto its nearest semitone
func Analyze(hz float64) (Reading, error) {
	semitone, err := SemitoneFromPitch(hz)
	if err != nil {
		return Reading{}, err
	}
	cents, err := CentsOffFromPitch(hz, semitone)
	if errors.Is(err, ErrSemitoneOutOfRange) {
		// the semitone came from hz, so hz itself is off the scale
		return Reading{}, fmt.Errorf("%w: %v", ErrInvalidFrequency, hz)
	}
	if err != nil {
		return Reading{}, err
	}
	return Reading{
		Frequency: hz,
		Semitone:  semitone,
		Note:      NoteName(semitone),
		Cents:     cents,
		Reference: FrequencyFromSemitone(semitone),
	}, nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
