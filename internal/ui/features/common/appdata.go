package common

import (
	"context"
	"errors"

	"github.com/leapstack-labs/dbbrowser/internal/console"
	"github.com/leapstack-labs/dbbrowser/internal/ui/features/common/components"
)

// BuildAppData assembles the view of session s. A failure to list tables
// is reported through the flash instead of failing the render.
func BuildAppData(ctx context.Context, c *console.Console, s *console.Session) components.AppData {
	data := components.AppData{
		Mode:        string(c.Registry().Mode()),
		Databases:   c.ListDatabases(s),
		MaxPageSize: c.MaxPageSize(),
	}

	tables, err := c.ListTables(ctx, s)
	if err != nil && !errors.Is(err, console.ErrNoDatabase) {
		data.Flash.Error = ErrorMessage(err)
	}
	data.Tables = tables
	// Listing may deselect a database that no longer exists.
	data.State = s.State()
	return data
}
