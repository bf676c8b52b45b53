package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// starterSchema seeds a new installation with something to traverse.
const starterSchema = `nodes:
  - name: person
    props:
      - {name: name, kind: string}
      - {name: age, kind: int}
edges:
  - name: knows
`

func newInitCmd() *cobra.Command {
	var (
		initDB     string
		initSchema string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set up Trellis CLI configuration",
		Long:  "Creates ~/.config/trellis/config.yaml and a starter schema file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(initDB, initSchema, force)
		},
	}

	cmd.Flags().StringVar(&initDB, "db", "", "Database directory to record in the config")
	cmd.Flags().StringVar(&initSchema, "schema", "", "Schema file to record in the config")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config")
	return cmd
}

func runInit(dbPath, schemaPath string, force bool) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolve home directory: %w", err)
	}

	cfgDir := filepath.Join(home, ".config", "trellis")
	if err := os.MkdirAll(cfgDir, 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if dbPath == "" {
		dbPath = filepath.Join(home, ".local", "share", "trellis", "graph.db")
	}
	if schemaPath == "" {
		schemaPath = filepath.Join(cfgDir, "schema.yaml")
	}

	cfgPath := filepath.Join(cfgDir, "config.yaml")
	if _, err := os.Stat(cfgPath); err == nil && !force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", cfgPath)
	}

	// Seed the schema file unless the user pointed at their own.
	if _, err := os.Stat(schemaPath); os.IsNotExist(err) {
		if err := os.WriteFile(schemaPath, []byte(starterSchema), 0o600); err != nil {
			return fmt.Errorf("write schema: %w", err)
		}
		fmt.Printf("Schema saved to %s\n", schemaPath)
	}
	// The starter schema must parse, user-supplied files get checked too.
	if _, err := loadSchema(schemaPath); err != nil {
		return err
	}

	cfg := configFile{
		Profiles: map[string]configProfile{
			"default": {DB: dbPath, Schema: schemaPath},
		},
		ActiveProfile: "default",
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Config saved to %s\n", cfgPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  trellis schema       # Inspect the declared types")
	fmt.Println("  trellis node add     # Create your first node")
	fmt.Println("  trellis --help       # See all commands")
	return nil
}
