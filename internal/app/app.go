// Package app wires a workspace into a ready Engine: database opened,
// migrations applied, configuration loaded.
package app

import (
	"database/sql"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"crewline/internal/config"
	"crewline/internal/db"
	"crewline/internal/engine"
	"crewline/internal/migrate"
)

// Open prepares the workspace and returns a ready engine. The caller owns
// the returned *sql.DB and must close it.
func Open(workspace string) (engine.Engine, *sql.DB, error) {
	cfg, err := config.Load(workspace)
	if err != nil {
		return engine.Engine{}, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return engine.Engine{}, nil, fmt.Errorf("invalid config: %w", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return engine.Engine{}, nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return engine.Engine{}, nil, fmt.Errorf("migrate: %w", err)
	}
	return engine.New(conn, cfg), conn, nil
}

// Init seeds a new workspace: writes the catalog config (copied from
// configFile when given, the built-in default otherwise), creates the
// database and applies migrations.
func Init(workspace, configFile string) error {
	existing, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	switch {
	case configFile != "":
		if existing != nil {
			return fmt.Errorf("config already exists at %s", config.Path(workspace))
		}
		cfg, err := config.FromFile(configFile)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", configFile, err)
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		if err := os.WriteFile(config.Path(workspace), data, 0o644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
	case existing == nil:
		if err := os.WriteFile(config.Path(workspace), []byte(config.GenerateDefault()), 0o644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()
	return migrate.Migrate(conn)
}
