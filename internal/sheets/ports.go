package sheets

import (
	"context"

	"asistencia/internal/core"
)

// Ports for outbound adapters.
type (
	// TableReader returns the whole attendance sheet as a raw table.
	TableReader interface {
		ReadTable(ctx context.Context) (core.Table, error)
	}

	// TableWriter replaces a stored copy of the sheet in one step.
	TableWriter interface {
		ReplaceTable(ctx context.Context, source string, t core.Table) error
	}
)
