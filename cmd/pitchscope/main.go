// pitchscope - Main entry point
//
// pitchscope serves equal-tempered pitch conversions and reference tones
// and keeps an ordered log of faults captured from its clients and from
// itself.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/armorclaw/pitchscope/pkg/config"
	"github.com/armorclaw/pitchscope/pkg/logger"
)

var (
	version   = "0.3.0"
	buildTime = "unknown"
)

type cliConfig struct {
	command      string
	args         []string
	configPath   string
	configOutput string
	addr         string
	logLevel     string
	verbose      bool
	version      bool
	help         bool
	jsonOutput   bool
	// tone flags
	toneMillis int
	toneOutput string
	sampleRate int
	// errors flags
	limit  int
	origin string
}

func main() {
	cliCfg := parseFlags()

	if cliCfg.version || cliCfg.command == "version" {
		printVersion()
		return
	}

	if cliCfg.help {
		printHelp()
		return
	}

	var err error
	switch cliCfg.command {
	case "help":
		printHelp()
	case "init":
		err = runInitCommand(cliCfg)
	case "validate":
		err = runValidateCommand(cliCfg)
	case "note":
		err = runNoteCommand(cliCfg, os.Stdout)
	case "freq":
		err = runFreqCommand(cliCfg, os.Stdout)
	case "tone":
		err = runToneCommand(cliCfg, os.Stdout)
	case "errors":
		err = runErrorsCommand(cliCfg, os.Stdout)
	case "serve", "":
		err = runServeCommand(cliCfg)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cliCfg.command)
		printHelp()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() cliConfig {
	cfg := cliConfig{}

	flag.StringVar(&cfg.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&cfg.configOutput, "config-output", "", "Output path for 'init' command")
	flag.StringVar(&cfg.addr, "addr", "", "Listen address (overrides config)")
	flag.StringVar(&cfg.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.BoolVar(&cfg.verbose, "v", false, "Verbose logging (sets log level to debug)")
	flag.BoolVar(&cfg.version, "version", false, "Print version and exit")
	flag.BoolVar(&cfg.help, "help", false, "Show help message")
	flag.BoolVar(&cfg.jsonOutput, "json", false, "Print JSON instead of text")

	flag.IntVar(&cfg.toneMillis, "ms", 1000, "Tone length in milliseconds (tone command)")
	flag.StringVar(&cfg.toneOutput, "out", "", "Output WAV file (tone command, default <note>.wav)")
	flag.IntVar(&cfg.sampleRate, "rate", 0, "Sample rate in Hz (tone command, default from config)")

	flag.IntVar(&cfg.limit, "limit", 20, "Maximum records to show (errors command)")
	flag.StringVar(&cfg.origin, "origin", "", "Only show records from this capture path (errors command)")

	flag.Parse()

	args := flag.Args()
	if len(args) > 0 {
		cfg.command = args[0]
		cfg.args = args[1:]
	}

	if cfg.verbose {
		cfg.logLevel = "debug"
	}

	return cfg
}

// loadConfig loads the configuration and applies CLI overrides
func loadConfig(cliCfg cliConfig) (*config.Config, error) {
	cfg, err := config.Load(cliCfg.configPath)
	if err != nil {
		return nil, err
	}

	if cliCfg.addr != "" {
		cfg.Server.Addr = cliCfg.addr
	}
	if cliCfg.logLevel != "" {
		cfg.Logging.Level = cliCfg.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	if err := logger.Initialize(cfg.Logging.Level, cfg.Logging.Format, cfg.LogOutput()); err != nil {
		log.Printf("Warning: Failed to initialize structured logger: %v", err)
		log.Printf("Falling back to stderr logging")
	}
}

func printVersion() {
	fmt.Printf("pitchscope v%s\n", version)
	fmt.Printf("Build time: %s\n", buildTime)
}

func printHelp() {
	helpText := `USAGE:
    pitchscope [flags] [command] [args]

COMMANDS:
    serve       Start the HTTP server (default)
    note        Analyze frequencies:          pitchscope note 440 446.2
    freq        Frequencies of semitones:     pitchscope freq 60 69
    tone        Render a reference tone:      pitchscope -ms 500 tone 69
    errors      Inspect stored error records: pitchscope errors [list|get <id>|delete <id>|stats|cleanup|purge]
    init        Write an example configuration file
    validate    Validate configuration
    version     Show version information
    help        Show this help message

FLAGS:
    -config <path>     Configuration file (default: ~/.pitchscope/config.toml)
    -addr <addr>       Listen address (serve)
    -json              Print JSON output
    -ms <n>            Tone length in milliseconds (tone)
    -out <path>        Tone output file (tone)
    -limit <n>         Records to show (errors)
    -origin <from>     window.onerror or app.config.errorHandler (errors)
    -log-level <lvl>   debug, info, warn, error
    -v                 Verbose logging

ENDPOINTS (serve):
    GET    /api/pitch?hz=440          Nearest semitone and cents offset
    GET    /api/note?semitone=69      Frequency of a semitone
    GET    /api/tone?semitone=69      Reference tone (audio/wav)
    GET    /api/errors                Captured faults in capture order
    POST   /api/errors                Report a client fault
    DELETE /api/errors                Clear the error log
    GET    /ws/errors                 Live error stream (websocket)
    GET    /metrics                   Prometheus metrics
    GET    /healthz                   Health check
`
	fmt.Print(helpText)
}
