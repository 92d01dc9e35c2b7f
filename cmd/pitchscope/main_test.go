package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armorclaw/pitchscope/pkg/errors"
	"github.com/armorclaw/pitchscope/pkg/pitch"
)

func TestRunNoteCommand(t *testing.T) {
	var buf bytes.Buffer
	err := runNoteCommand(cliConfig{args: []string{"440", "261.63"}}, &buf)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "A4")
	assert.Contains(t, lines[0], "(69)")
	assert.Contains(t, lines[0], "+0 cents")
	assert.Contains(t, lines[1], "C4")
}

func TestRunNoteCommandJSON(t *testing.T) {
	var buf bytes.Buffer
	err := runNoteCommand(cliConfig{args: []string{"880"}, jsonOutput: true}, &buf)
	require.NoError(t, err)

	var readings []pitch.Reading
	require.NoError(t, json.Unmarshal(buf.Bytes(), &readings))
	require.Len(t, readings, 1)
	assert.Equal(t, 81, readings[0].Semitone)
	assert.Equal(t, "A5", readings[0].Note)
}

func TestRunNoteCommandErrors(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, runNoteCommand(cliConfig{}, &buf))
	assert.Error(t, runNoteCommand(cliConfig{args: []string{"loud"}}, &buf))

	err := runNoteCommand(cliConfig{args: []string{"-3"}}, &buf)
	assert.ErrorIs(t, err, pitch.ErrInvalidFrequency)
}

func TestRunFreqCommand(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runFreqCommand(cliConfig{args: []string{"69", "57"}}, &buf))

	out := buf.String()
	assert.Contains(t, out, "440.00 Hz")
	assert.Contains(t, out, "220.00 Hz")
	assert.Contains(t, out, "A3")

	assert.Error(t, runFreqCommand(cliConfig{args: []string{"A4"}}, &buf))

	buf.Reset()
	err := runFreqCommand(cliConfig{args: []string{"20000"}, jsonOutput: true}, &buf)
	assert.ErrorIs(t, err, pitch.ErrSemitoneOutOfRange)
	assert.Empty(t, buf.String())
}

func TestRunToneCommand(t *testing.T) {
	out := filepath.Join(t.TempDir(), "a4.wav")
	var buf bytes.Buffer

	err := runToneCommand(cliConfig{
		args:       []string{"69"},
		toneMillis: 100,
		toneOutput: out,
		sampleRate: 8000,
	}, &buf)
	require.NoError(t, err)

	info, err := os.Stat(out)
	require.NoError(t, err)
	// 44-byte header, 800 stereo 16-bit frames
	assert.Equal(t, int64(44+800*4), info.Size())
	assert.Contains(t, buf.String(), "440.00 Hz")
}

func TestRunToneCommandInvalid(t *testing.T) {
	out := filepath.Join(t.TempDir(), "bad.wav")
	err := runToneCommand(cliConfig{args: []string{"69"}, toneMillis: 0, toneOutput: out}, &bytes.Buffer{})
	require.Error(t, err)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "failed render should not leave a file behind")
}

func TestRunErrorsAction(t *testing.T) {
	store, err := errors.NewErrorStore(errors.StoreConfig{Path: filepath.Join(t.TempDir(), "errors.db")})
	require.NoError(t, err)
	defer store.Close()

	agg := errors.NewAggregator(errors.AggregatorConfig{Sink: store})
	agg.CaptureWindow("TypeError: boom", "app.js", 3, 9, nil)
	agg.CaptureWindow("late", "app.js", 4, 1, nil)
	require.NoError(t, agg.Close())
	records := agg.Errors()
	require.Len(t, records, 2)

	ctx := t.Context()

	var out bytes.Buffer
	get := cliConfig{args: []string{"get", records[0].ID}}
	require.NoError(t, runErrorsAction(ctx, store, "get", get, &out))
	assert.Contains(t, out.String(), "TypeError: boom")
	assert.Contains(t, out.String(), "app.js:3:9")

	out.Reset()
	del := cliConfig{args: []string{"delete", records[1].ID}}
	require.NoError(t, runErrorsAction(ctx, store, "delete", del, &out))
	assert.Contains(t, out.String(), "Deleted record "+records[1].ID)

	err = runErrorsAction(ctx, store, "get", del, &out)
	assert.ErrorIs(t, err, errors.ErrRecordNotFound)
	assert.Error(t, runErrorsAction(ctx, store, "get", cliConfig{args: []string{"get"}}, &out))

	var buf bytes.Buffer
	require.NoError(t, runErrorsAction(ctx, store, "list", cliConfig{limit: 10}, &buf))
	assert.Contains(t, buf.String(), "TypeError: boom")
	assert.Contains(t, buf.String(), "window.onerror")

	buf.Reset()
	require.NoError(t, runErrorsAction(ctx, store, "stats", cliConfig{jsonOutput: true}, &buf))
	var stats errors.StoreStats
	require.NoError(t, json.Unmarshal(buf.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalRecords)

	buf.Reset()
	require.NoError(t, runErrorsAction(ctx, store, "purge", cliConfig{}, &buf))
	assert.Contains(t, buf.String(), "Removed 1 records")

	assert.Error(t, runErrorsAction(ctx, store, "explode", cliConfig{}, &buf))
}

func TestPrinterCentsStyle(t *testing.T) {
	p := newPrinter(&bytes.Buffer{})
	assert.False(t, p.styled)
	assert.Equal(t, "+12 cents", formatCents(12))
	assert.Equal(t, "-49 cents", formatCents(-49))
	assert.Equal(t, p.good, p.centsStyle(-5))
	assert.Equal(t, p.warn, p.centsStyle(20))
	assert.Equal(t, p.bad, p.centsStyle(-21))
}
