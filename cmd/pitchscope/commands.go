package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/armorclaw/pitchscope/pkg/config"
	"github.com/armorclaw/pitchscope/pkg/errors"
	"github.com/armorclaw/pitchscope/pkg/pitch"
	"github.com/armorclaw/pitchscope/pkg/tone"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// runInitCommand generates an example configuration file
func runInitCommand(cliCfg cliConfig) error {
	outputPath := cliCfg.configOutput
	if outputPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to determine home directory: %w", err)
		}
		outputPath = filepath.Join(homeDir, ".pitchscope", "config.toml")
	}
	if err := config.GenerateExampleConfig(outputPath); err != nil {
		return fmt.Errorf("failed to generate example config: %w", err)
	}

	fmt.Printf("✓ Example configuration written to: %s\n", outputPath)
	fmt.Println("✓ Edit this file to customize pitchscope")
	fmt.Println("")
	fmt.Println("Quick start:")
	fmt.Println("  pitchscope serve")
	return nil
}

// runValidateCommand validates the configuration
func runValidateCommand(cliCfg cliConfig) error {
	cfg, err := loadConfig(cliCfg)
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	fmt.Println("✓ Configuration is valid!")
	fmt.Printf("  Listen: %s\n", cfg.Server.Addr)
	fmt.Printf("  Error log bound: %d\n", cfg.Errors.MaxRecords)
	if cfg.Errors.Store.Enabled {
		fmt.Printf("  Error store: %s (%d days, cleanup %s)\n",
			cfg.Errors.Store.Path, cfg.Errors.Store.RetentionDays, cfg.Errors.Store.CleanupSchedule)
	} else {
		fmt.Println("  Error store: disabled")
	}
	return nil
}

// runNoteCommand analyzes each frequency argument
func runNoteCommand(cliCfg cliConfig, w io.Writer) error {
	if len(cliCfg.args) == 0 {
		return fmt.Errorf("usage: pitchscope note <hz> [hz...]")
	}

	readings := make([]pitch.Reading, 0, len(cliCfg.args))
	for _, arg := range cliCfg.args {
		hz, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("%q is not a frequency", arg)
		}
		r, err := pitch.Analyze(hz)
		if err != nil {
			return err
		}
		readings = append(readings, r)
	}

	if cliCfg.jsonOutput {
		return writeJSON(w, readings)
	}

	p := newPrinter(w)
	for _, r := range readings {
		p.println(p.reading(r))
	}
	return nil
}

// runFreqCommand prints the frequency of each semitone argument
func runFreqCommand(cliCfg cliConfig, w io.Writer) error {
	if len(cliCfg.args) == 0 {
		return fmt.Errorf("usage: pitchscope freq <semitone> [semitone...]")
	}

	type entry struct {
		Semitone  int     `json:"semitone"`
		Note      string  `json:"note"`
		Frequency float64 `json:"frequency"`
	}
	entries := make([]entry, 0, len(cliCfg.args))
	for _, arg := range cliCfg.args {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("%q is not a semitone number", arg)
		}
		freq, err := pitch.SemitoneFrequency(n)
		if err != nil {
			return err
		}
		entries = append(entries, entry{Semitone: n, Note: pitch.NoteName(n), Frequency: freq})
	}

	if cliCfg.jsonOutput {
		return writeJSON(w, entries)
	}

	p := newPrinter(w)
	for _, e := range entries {
		p.println(p.semitone(e.Semitone, e.Frequency))
	}
	return nil
}

// runToneCommand renders a reference tone to a WAV file
func runToneCommand(cliCfg cliConfig, w io.Writer) error {
	if len(cliCfg.args) != 1 {
		return fmt.Errorf("usage: pitchscope [-ms n] [-out file] tone <semitone>")
	}
	semitone, err := strconv.Atoi(cliCfg.args[0])
	if err != nil {
		return fmt.Errorf("%q is not a semitone number", cliCfg.args[0])
	}

	sampleRate := cliCfg.sampleRate
	if sampleRate == 0 {
		sampleRate = tone.DefaultSampleRate
	}
	spec := tone.Spec{
		Semitone:   semitone,
		Duration:   time.Duration(cliCfg.toneMillis) * time.Millisecond,
		SampleRate: sampleRate,
	}

	out := cliCfg.toneOutput
	if out == "" {
		out = pitch.NoteName(semitone) + ".wav"
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	if err := tone.Encode(f, spec); err != nil {
		f.Close()
		os.Remove(out)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	p := newPrinter(w)
	p.println(fmt.Sprintf("✓ %s  %.2f Hz  %s  → %s",
		p.render(p.note, pitch.NoteName(semitone)), spec.Frequency(), spec.Duration, out))
	return nil
}

// runErrorsCommand inspects the persisted error store
func runErrorsCommand(cliCfg cliConfig, w io.Writer) error {
	cfg, err := loadConfig(cliCfg)
	if err != nil {
		return err
	}

	store, err := errors.NewErrorStore(cfg.ToStoreConfig())
	if err != nil {
		return fmt.Errorf("failed to open error store: %w", err)
	}
	defer store.Close()

	action := "list"
	if len(cliCfg.args) > 0 {
		action = cliCfg.args[0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return runErrorsAction(ctx, store, action, cliCfg, w)
}

func runErrorsAction(ctx context.Context, store *errors.ErrorStore, action string, cliCfg cliConfig, w io.Writer) error {
	p := newPrinter(w)

	switch action {
	case "list":
		records, err := store.Query(ctx, errors.RecordQuery{
			Origin:    errors.Origin(cliCfg.origin),
			Limit:     cliCfg.limit,
			OrderDesc: true,
		})
		if err != nil {
			return err
		}
		if cliCfg.jsonOutput {
			if records == nil {
				records = []errors.ErrorRecord{}
			}
			return writeJSON(w, records)
		}
		if len(records) == 0 {
			p.println("No stored errors")
			return nil
		}
		p.println(p.heading(fmt.Sprintf("%d most recent errors", len(records))))
		for _, rec := range records {
			p.println(p.record(rec))
		}

	case "stats":
		stats, err := store.Stats(ctx)
		if err != nil {
			return err
		}
		if cliCfg.jsonOutput {
			return writeJSON(w, stats)
		}
		p.println(p.heading("Error store"))
		p.println(fmt.Sprintf("  Path:     %s", store.Path()))
		p.println(fmt.Sprintf("  Records:  %d", stats.TotalRecords))
		for origin, n := range stats.ByOrigin {
			p.println(fmt.Sprintf("  %-24s %d", origin, n))
		}
		if stats.Oldest != nil && stats.Newest != nil {
			p.println(fmt.Sprintf("  Span:     %s .. %s",
				stats.Oldest.UTC().Format(time.RFC3339), stats.Newest.UTC().Format(time.RFC3339)))
		}

	case "get":
		id, err := recordIDArg(action, cliCfg.args)
		if err != nil {
			return err
		}
		rec, err := store.Get(ctx, id)
		if err != nil {
			return err
		}
		if cliCfg.jsonOutput {
			return writeJSON(w, rec)
		}
		fmt.Fprint(w, rec.FormatSummary())

	case "delete":
		id, err := recordIDArg(action, cliCfg.args)
		if err != nil {
			return err
		}
		if err := store.Delete(ctx, id); err != nil {
			return err
		}
		p.println(fmt.Sprintf("✓ Deleted record %s", id))

	case "cleanup":
		removed, err := store.Cleanup(ctx)
		if err != nil {
			return err
		}
		p.println(fmt.Sprintf("✓ Removed %d records older than %d days", removed, store.RetentionDays()))

	case "purge":
		removed, err := store.Purge(ctx)
		if err != nil {
			return err
		}
		p.println(fmt.Sprintf("✓ Removed %d records", removed))

	default:
		return fmt.Errorf("unknown errors action %q (list, get, delete, stats, cleanup, purge)", action)
	}

	return nil
}

// recordIDArg returns the id in "errors <action> <id>"
func recordIDArg(action string, args []string) (string, error) {
	if len(args) != 2 || args[1] == "" {
		return "", fmt.Errorf("usage: pitchscope errors %s <record-id>", action)
	}
	return args[1], nil
}
