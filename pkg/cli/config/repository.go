package config

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/potenza-io/opsbot/pkg/domain/interfaces"
	"github.com/potenza-io/opsbot/pkg/repository/memory"
	"github.com/potenza-io/opsbot/pkg/repository/sqlite"
	"github.com/potenza-io/opsbot/pkg/utils/logging"
)

// Repository holds CLI flags for the persistence backend
type Repository struct {
	backend string
	dbPath  string
}

func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repository-backend",
			Usage:       "Repository backend type (sqlite or memory)",
			Category:    "Repository",
			Value:       "sqlite",
			Sources:     cli.EnvVars("OPSBOT_REPOSITORY_BACKEND"),
			Destination: &r.backend,
		},
		&cli.StringFlag{
			Name:        "db-path",
			Usage:       "SQLite database file path",
			Category:    "Repository",
			Value:       "opsbot.db",
			Sources:     cli.EnvVars("OPSBOT_DB_PATH"),
			Destination: &r.dbPath,
		},
	}
}

// DBPath returns the configured SQLite file path
func (r *Repository) DBPath() string {
	return r.dbPath
}

// Configure initializes the repository. The caller owns Close().
func (r *Repository) Configure() (interfaces.Repository, error) {
	switch r.backend {
	case "sqlite", "":
		repo, err := sqlite.New(r.dbPath)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize sqlite repository")
		}
		logging.Default().Info("Using SQLite repository", "path", r.dbPath)
		return repo, nil

	case "memory":
		logging.Default().Info("Using in-memory repository (development mode)")
		return memory.New(), nil

	default:
		return nil, goerr.New("unknown repository backend", goerr.V("backend", r.backend))
	}
}
