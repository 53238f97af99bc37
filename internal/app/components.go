package app

import (
	"go.porto.sh/porto/internal/core/ports"
)

// Components bundles the fully wired application surface the CLI consumes.
type Components struct {
	App       *App
	Logger    ports.Logger
	Telemetry ports.Telemetry
}
