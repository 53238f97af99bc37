// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.porto.sh/porto/internal/adapters/cas"
	_ "go.porto.sh/porto/internal/adapters/classify"
	_ "go.porto.sh/porto/internal/adapters/config"
	_ "go.porto.sh/porto/internal/adapters/fetch"
	_ "go.porto.sh/porto/internal/adapters/inspect"
	_ "go.porto.sh/porto/internal/adapters/logger"
	_ "go.porto.sh/porto/internal/adapters/pkgdb"
	_ "go.porto.sh/porto/internal/adapters/policy"
	_ "go.porto.sh/porto/internal/adapters/recipes"
	_ "go.porto.sh/porto/internal/adapters/shell"
	_ "go.porto.sh/porto/internal/adapters/telemetry"
	// Register app and engine nodes.
	_ "go.porto.sh/porto/internal/app"
	_ "go.porto.sh/porto/internal/engine/installer"
	_ "go.porto.sh/porto/internal/engine/pipeline"
	_ "go.porto.sh/porto/internal/engine/resolver"
	_ "go.porto.sh/porto/internal/engine/upgrade"
	_ "go.porto.sh/porto/internal/engine/verify"
)
