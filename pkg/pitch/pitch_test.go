package pitch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrequencyFromSemitone_Reference(t *testing.T) {
	assert.Equal(t, 440.0, FrequencyFromSemitone(69))
	assert.Equal(t, 880.0, FrequencyFromSemitone(81))
	assert.Equal(t, 220.0, FrequencyFromSemitone(57))
	assert.InDelta(t, 261.6256, FrequencyFromSemitone(60), 1e-4)
}

func TestSemitoneFromPitch_Reference(t *testing.T) {
	n, err := SemitoneFromPitch(440)
	require.NoError(t, err)
	assert.Equal(t, 69, n)

	n, err = SemitoneFromPitch(261.63)
	require.NoError(t, err)
	assert.Equal(t, 60, n)
}

func TestSemitoneFromPitch_RoundTrip(t *testing.T) {
	for n := -48; n <= 180; n++ {
		got, err := SemitoneFromPitch(FrequencyFromSemitone(n))
		require.NoError(t, err)
		assert.Equal(t, n, got, "semitone %d", n)
	}
}

func TestSemitoneFromPitch_NearestNeighbour(t *testing.T) {
	// 30 cents sharp of A4 still rounds to A4, 70 cents sharp rounds up to A#4
	n, err := SemitoneFromPitch(440 * math.Pow(2, 30.0/1200))
	require.NoError(t, err)
	assert.Equal(t, 69, n)

	n, err = SemitoneFromPitch(440 * math.Pow(2, 70.0/1200))
	require.NoError(t, err)
	assert.Equal(t, 70, n)
}

func TestSemitoneFromPitch_InvalidInput(t *testing.T) {
	for _, hz := range []float64{0, -440, math.NaN(), math.Inf(1), math.Inf(-1), math.SmallestNonzeroFloat64, 1e-321} {
		_, err := SemitoneFromPitch(hz)
		assert.ErrorIs(t, err, ErrInvalidFrequency, "hz=%v", hz)
	}
}

func TestCentsOffFromPitch(t *testing.T) {
	tests := []struct {
		name     string
		hz       float64
		semitone int
		want     int
	}{
		{name: "in tune", hz: 440, semitone: 69, want: 0},
		{name: "octave above", hz: 880, semitone: 69, want: 1200},
		{name: "octave below", hz: 220, semitone: 69, want: -1200},
		{name: "just above 50 cents", hz: 440 * math.Pow(2, 50.001/1200), semitone: 69, want: 50},
		{name: "just below 50 cents", hz: 440 * math.Pow(2, 49.999/1200), semitone: 69, want: 49},
		{name: "slightly flat floors down", hz: 440 * math.Pow(2, -0.001/1200), semitone: 69, want: -1},
		{name: "half a cent flat", hz: 440 * math.Pow(2, -0.5/1200), semitone: 69, want: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CentsOffFromPitch(tt.hz, tt.semitone)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCentsOffFromPitch_ASharp(t *testing.T) {
	got, err := CentsOffFromPitch(466.16, 69)
	require.NoError(t, err)
	assert.InDelta(t, 100, got, 1)
}

func TestCentsOffFromPitch_InvalidInput(t *testing.T) {
	_, err := CentsOffFromPitch(0, 69)
	assert.ErrorIs(t, err, ErrInvalidFrequency)

	// 5e-324 / 440 underflows to zero
	_, err = CentsOffFromPitch(math.SmallestNonzeroFloat64, 69)
	assert.ErrorIs(t, err, ErrInvalidFrequency)

	_, err = CentsOffFromPitch(440, 20000)
	assert.ErrorIs(t, err, ErrSemitoneOutOfRange)
}

func TestSemitoneFrequency(t *testing.T) {
	freq, err := SemitoneFrequency(69)
	require.NoError(t, err)
	assert.Equal(t, 440.0, freq)

	for _, n := range []int{12357, 20000, -13000} {
		_, err := SemitoneFrequency(n)
		assert.ErrorIs(t, err, ErrSemitoneOutOfRange, "semitone %d", n)
	}
}

func TestNoteName(t *testing.T) {
	tests := map[int]string{
		69:  "A4",
		60:  "C4",
		61:  "C#4",
		0:   "C-1",
		-1:  "B-2",
		127: "G9",
		21:  "A0",
	}
	for semitone, want := range tests {
		assert.Equal(t, want, NoteName(semitone), "semitone %d", semitone)
	}
}

func TestAnalyze(t *testing.T) {
	r, err := Analyze(445)
	require.NoError(t, err)
	assert.Equal(t, 69, r.Semitone)
	assert.Equal(t, "A4", r.Note)
	assert.Equal(t, 19, r.Cents)
	assert.Equal(t, 440.0, r.Reference)

	_, err = Analyze(-1)
	assert.ErrorIs(t, err, ErrInvalidFrequency)

	r, err = Analyze(math.SmallestNonzeroFloat64)
	assert.ErrorIs(t, err, ErrInvalidFrequency)
	assert.Equal(t, Reading{}, r)
}

func TestLcFirst(t *testing.T) {
	assert.Equal(t, "hello", LcFirst("Hello"))
	assert.Equal(t, "", LcFirst(""))
	assert.Equal(t, "42", LcFirst(42))
	assert.Equal(t, "hELLO", LcFirst("HELLO"))
	assert.Equal(t, "éclair", LcFirst("Éclair"))
	assert.Equal(t, "true", LcFirst(true))
}
