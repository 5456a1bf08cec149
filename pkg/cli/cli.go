package cli

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the settings parsed from the demo harness's command line.
type Config struct {
	ScorePath    string        // path to a Standard MIDI File to load, or "" for none
	SoundFontPath string       // optional .sf2 path; empty falls back to the modeled piano
	Timeout      time.Duration // 0 means run until stopped
	LogLevel     string        // debug, info, warn, error
	Headless     bool          // skip opening audio/MIDI devices and run the control loop only
	ShowHelp     bool
}

// ParseArgs parses command-line arguments into a Config, with environment
// variables as a fallback for anything not given on the command line.
func ParseArgs(args []string) (*Config, error) {
	reorderedArgs := reorderArgs(args)

	fs := flag.NewFlagSet("practicecore-demo", flag.ContinueOnError)

	config := &Config{}

	var timeoutSec int
	fs.IntVar(&timeoutSec, "timeout", 0, "exit after this many seconds (0 = unlimited)")
	fs.IntVar(&timeoutSec, "t", 0, "exit after this many seconds (short form)")
	fs.StringVar(&config.SoundFontPath, "soundfont", "", "path to a .sf2 soundfont (optional)")
	fs.StringVar(&config.SoundFontPath, "f", "", "path to a .sf2 soundfont (short form)")
	fs.StringVar(&config.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&config.LogLevel, "l", "info", "log level (short form)")
	fs.BoolVar(&config.Headless, "headless", false, "run without opening an audio/MIDI device")
	fs.BoolVar(&config.ShowHelp, "help", false, "show this help")
	fs.BoolVar(&config.ShowHelp, "h", false, "show this help (short form)")

	if err := fs.Parse(reorderedArgs); err != nil {
		return nil, err
	}

	if !config.Headless {
		if headlessEnv := os.Getenv("HEADLESS"); headlessEnv != "" {
			config.Headless = headlessEnv == "1" || strings.ToLower(headlessEnv) == "true"
		}
	}

	if timeoutSec == 0 {
		if timeoutEnv := os.Getenv("TIMEOUT"); timeoutEnv != "" {
			if t, err := strconv.Atoi(timeoutEnv); err == nil && t > 0 {
				timeoutSec = t
			}
		}
	}

	if config.LogLevel == "info" {
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			config.LogLevel = strings.ToLower(logLevelEnv)
		}
	}

	if config.SoundFontPath == "" {
		if sf2Env := os.Getenv("SOUNDFONT_PATH"); sf2Env != "" {
			config.SoundFontPath = sf2Env
		}
	}

	if timeoutSec < 0 {
		return nil, fmt.Errorf("timeout must be non-negative, got %d", timeoutSec)
	}
	config.Timeout = time.Duration(timeoutSec) * time.Second

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[config.LogLevel] {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}

	if fs.NArg() > 0 {
		config.ScorePath = fs.Arg(0)
	}

	return config, nil
}

// reorderArgs moves flags (and their values) before positional arguments so
// flag.FlagSet can parse a score path given anywhere on the command line.
func reorderArgs(args []string) []string {
	var flags []string
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if len(arg) > 0 && arg[0] == '-' {
			flags = append(flags, arg)

			if i+1 < len(args) && len(args[i+1]) > 0 && args[i+1][0] != '-' {
				if arg != "-h" && arg != "--help" && arg != "--headless" {
					i++
					flags = append(flags, args[i])
				}
			}
		} else {
			positional = append(positional, arg)
		}
	}

	return append(flags, positional...)
}

// PrintHelp writes the usage message to stdout.
func PrintHelp() {
	fmt.Fprintf(os.Stdout, `practicecore-demo - piano practice core demo harness

Usage:
  practicecore-demo [options] [score-path]

Arguments:
  score-path                  path to a Standard MIDI File to load (optional)

Options:
  -t, --timeout <seconds>     exit after this many seconds (default: unlimited)
  -f, --soundfont <path>      path to a .sf2 soundfont (default: modeled piano)
  -l, --log-level <level>     log level: debug, info, warn, error (default: info)
  --headless                  run without opening an audio/MIDI device
  -h, --help                  show this help

Environment Variables:
  HEADLESS=1                  enable headless mode
  TIMEOUT=<seconds>           exit timeout in seconds
  LOG_LEVEL=<level>           log level
  SOUNDFONT_PATH=<path>       default soundfont path

Examples:
  practicecore-demo score.mid
  practicecore-demo --soundfont piano.sf2 score.mid
  practicecore-demo --headless --timeout 30 score.mid
`)
}
