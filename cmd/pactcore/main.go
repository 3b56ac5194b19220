// PactCore is a deterministic, turn-based demon negotiation engine.
// Usage: pactcore [--version] [--plain] [--new] [--script <file>] [--seed <n>] [--debug] <world_directory>
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"

	"github.com/nathoo/pactcore/cli"
	"github.com/nathoo/pactcore/engine"
	"github.com/nathoo/pactcore/engine/save"
	"github.com/nathoo/pactcore/engine/state"
	"github.com/nathoo/pactcore/loader"
	"github.com/nathoo/pactcore/tui"
	"github.com/nathoo/pactcore/types"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// config holds settings that can come from the environment; flags override.
type config struct {
	SaveDir string `env:"PACTCORE_SAVE_DIR"`
	Seed    int64  `env:"PACTCORE_SEED"`
	Plain   bool   `env:"PACTCORE_PLAIN"`
	Debug   bool   `env:"PACTCORE_DEBUG"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading environment: %v\n", err)
		os.Exit(1)
	}

	fresh := false
	var worldDir string
	var scriptFile string

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version":
			fmt.Printf("pactcore %s (commit %s, built %s)\n", version, commit, date)
			return
		case "--plain":
			cfg.Plain = true
		case "--debug":
			cfg.Debug = true
		case "--new":
			fresh = true
		case "--seed":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "--seed requires a number\n")
				os.Exit(1)
			}
			i++
			n, err := strconv.ParseInt(args[i], 10, 64)
			if err != nil {
				fmt.Fprintf(os.Stderr, "--seed: %v\n", err)
				os.Exit(1)
			}
			cfg.Seed = n
		case "--save-dir":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "--save-dir requires a path\n")
				os.Exit(1)
			}
			i++
			cfg.SaveDir = args[i]
		case "--script":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "--script requires a file path\n")
				os.Exit(1)
			}
			i++
			scriptFile = args[i]
		default:
			if worldDir == "" {
				worldDir = args[i]
			}
		}
	}

	if worldDir == "" {
		fmt.Fprintf(os.Stderr, "Usage: pactcore [--version] [--plain] [--new] [--script <file>] [--seed <n>] [--debug] <world_directory>\n")
		os.Exit(1)
	}
	if cfg.SaveDir == "" {
		cfg.SaveDir = filepath.Join(worldDir, "saves")
	}

	logger := zap.NewNop()
	if cfg.Debug {
		zc := zap.NewDevelopmentConfig()
		zc.OutputPaths = []string{filepath.Join(cfg.SaveDir, "pactcore.log")}
		if err := os.MkdirAll(cfg.SaveDir, 0o755); err == nil {
			if l, err := zc.Build(); err == nil {
				logger = l
			}
		}
	}
	defer logger.Sync()

	// Load and compile the Lua world content.
	cat, err := loader.Load(worldDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading world: %v\n", err)
		os.Exit(1)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = cat.RNGSeed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	store := save.NewStore(cfg.SaveDir)

	player := state.NewPlayer(types.Alignment{})
	rng := engine.NewRNG(seed)
	var resumed *engine.Session

	if store.Exists() && !fresh {
		d, err := store.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading save: %v\n", err)
			os.Exit(1)
		}
		p, err := save.Rehydrate(d, cat)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error applying save: %v\n", err)
			os.Exit(1)
		}
		player = p
		rng = engine.RestoreRNG(d.RNG.Seed, d.RNG.Position)
		s, err := d.Resume(cat,
			engine.WithLogger(logger),
			engine.WithCheckpointer(store))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resuming session: %v\n", err)
			os.Exit(1)
		}
		if s != nil {
			resumed = s
			rng = s.RNG()
		}
		logger.Info("save restored",
			zap.String("path", store.Path()),
			zap.Bool("in_session", resumed != nil))
	}

	// Script mode: open file, force plain, echo commands.
	if scriptFile != "" {
		f, err := os.Open(scriptFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening script: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		c := cli.New(cat, player, rng, store)
		c.In = f
		c.EchoInput = true
		c.Logger = logger
		c.Resumed = resumed
		c.Run()
		return
	}

	// Use the plain CLI if requested or when stdout is not a terminal.
	if cfg.Plain || !isTerminal() {
		c := cli.New(cat, player, rng, store)
		c.Logger = logger
		c.Resumed = resumed
		c.Run()
		return
	}

	if err := tui.Run(cat, player, rng, store, logger, resumed); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// isTerminal returns true if stdout is a terminal (not piped/redirected).
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
