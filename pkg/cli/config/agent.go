package config

import (
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// Agent holds flags for the delegate definitions and scheduled jobs
type Agent struct {
	delegatesDir     string
	refreshAt        string
	maintenanceAt    string
	bootstrapAdminID int64
}

func (x *Agent) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "delegates-dir",
			Usage:       "Directory holding delegate definitions",
			Category:    "Agent",
			Value:       "delegates",
			Destination: &x.delegatesDir,
			Sources:     cli.EnvVars("OPSBOT_DELEGATES_DIR"),
		},
		&cli.StringFlag{
			Name:        "entity-refresh-at",
			Usage:       "Daily UTC time (HH:MM) to refresh the special-entity cache",
			Category:    "Agent",
			Value:       "06:00",
			Destination: &x.refreshAt,
			Sources:     cli.EnvVars("OPSBOT_ENTITY_REFRESH_AT"),
		},
		&cli.StringFlag{
			Name:        "maintenance-at",
			Usage:       "Daily UTC time (HH:MM) for conversation reset and event pruning",
			Category:    "Agent",
			Value:       "09:00",
			Destination: &x.maintenanceAt,
			Sources:     cli.EnvVars("OPSBOT_MAINTENANCE_AT"),
		},
		&cli.Int64Flag{
			Name:        "bootstrap-admin-id",
			Usage:       "Corporate id elevated to admin when no admin exists",
			Category:    "Agent",
			Destination: &x.bootstrapAdminID,
			Sources:     cli.EnvVars("OPSBOT_BOOTSTRAP_ADMIN_ID"),
		},
	}
}

// DelegatesDir returns the delegate definitions directory
func (x *Agent) DelegatesDir() string {
	return x.delegatesDir
}

// BootstrapAdminID returns the corporate id used for admin bootstrap,
// zero when unset
func (x *Agent) BootstrapAdminID() int64 {
	return x.bootstrapAdminID
}

// RefreshAt returns the entity-cache refresh clock time (UTC)
func (x *Agent) RefreshAt() (hour, minute int, err error) {
	return parseClock(x.refreshAt)
}

// MaintenanceAt returns the maintenance clock time (UTC)
func (x *Agent) MaintenanceAt() (hour, minute int, err error) {
	return parseClock(x.maintenanceAt)
}

func parseClock(s string) (int, int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, goerr.New("clock time must be HH:MM", goerr.V("value", s))
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, goerr.New("invalid hour", goerr.V("value", s))
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, goerr.New("invalid minute", goerr.V("value", s))
	}
	return hour, minute, nil
}
