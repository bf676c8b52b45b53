package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/trellisdb/trellis"
	"github.com/trellisdb/trellis/engine/badger"
)

// Build-time variables set via ldflags.
var (
	version   = "0.3.0"
	commit    = ""
	buildDate = ""
)

var (
	db          *trellis.DB
	flagDB      string
	flagSchema  string
	flagFmt     string
	flagVerbose bool
)

func versionString() string {
	if commit != "" && buildDate != "" {
		return fmt.Sprintf("trellis version %s (commit: %s, built: %s)", version, commit, buildDate)
	}
	return fmt.Sprintf("trellis version %s-dev", version)
}

type configFile struct {
	// Flat format (single graph)
	DB     string `yaml:"db"`
	Schema string `yaml:"schema"`
	// Profile format
	Profiles      map[string]configProfile `yaml:"profiles"`
	ActiveProfile string                   `yaml:"active_profile"`
}

type configProfile struct {
	DB     string `yaml:"db"`
	Schema string `yaml:"schema"`
}

func main() {
	rootCmd := &cobra.Command{
		Use:     "trellis",
		Short:   "Trellis CLI — embedded graph database",
		Version: versionString(),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			resolveConfig()
			openDB()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if db == nil {
				return
			}
			if err := db.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: close database: %v\n", err)
			}
		},
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "Database directory (env: TRELLIS_DB)")
	rootCmd.PersistentFlags().StringVar(&flagSchema, "schema", "", "Schema file (env: TRELLIS_SCHEMA)")
	rootCmd.PersistentFlags().StringVar(&flagFmt, "format", "json", "Output format: json|table|quiet")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")

	initCmd := newInitCmd()
	initCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {} // skip database open

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(newSchemaCmd())
	rootCmd.AddCommand(newNodeCmd())
	rootCmd.AddCommand(newEdgeCmd())
	rootCmd.AddCommand(newTraverseCmd())
	rootCmd.AddCommand(newPathCmd())
	rootCmd.AddCommand(newStatsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfig() {
	// Flag takes precedence, then env, then config file.
	if flagDB == "" {
		flagDB = os.Getenv("TRELLIS_DB")
	}
	if flagSchema == "" {
		flagSchema = os.Getenv("TRELLIS_SCHEMA")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	data, err := os.ReadFile(filepath.Join(home, ".config", "trellis", "config.yaml"))
	if err == nil {
		var cfg configFile
		if yaml.Unmarshal(data, &cfg) == nil {
			// Resolve from profiles if available, fall back to flat format.
			resolvedDB := cfg.DB
			resolvedSchema := cfg.Schema
			if cfg.Profiles != nil {
				profileName := cfg.ActiveProfile
				if profileName == "" {
					profileName = "default"
				}
				if p, ok := cfg.Profiles[profileName]; ok {
					if p.DB != "" {
						resolvedDB = p.DB
					}
					if p.Schema != "" {
						resolvedSchema = p.Schema
					}
				}
			}
			if flagDB == "" {
				flagDB = resolvedDB
			}
			if flagSchema == "" {
				flagSchema = resolvedSchema
			}
		}
	}

	if flagDB == "" {
		flagDB = filepath.Join(home, ".local", "share", "trellis", "graph.db")
	}
}

// openDB opens the embedded engine under the resolved database directory and
// loads the schema file. Commands read and write through the db global.
func openDB() {
	sch, err := loadSchema(flagSchema)
	if err != nil {
		fatal("load schema", err)
	}

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	if flagVerbose {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg := badger.DefaultConfig(flagDB)
	cfg.GCInterval = 0 // one-shot process, GC loop never gets a turn
	cfg.Logger = log
	eng, err := badger.Open(cfg)
	if err != nil {
		fatal("open database", err)
	}

	db, err = trellis.Open(context.Background(), eng, sch, trellis.WithLogger(log))
	if err != nil {
		_ = eng.Close()
		fatal("open graph", err)
	}
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	exit(1)
}

// exit closes the database, if open, and terminates with the given status.
// os.Exit skips the PersistentPostRun that normally closes it.
func exit(code int) {
	if db != nil {
		_ = db.Close()
	}
	os.Exit(code)
}
