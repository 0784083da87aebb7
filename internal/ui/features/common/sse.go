package common

import (
	"github.com/a-h/templ"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/dbbrowser/internal/console"
	"github.com/leapstack-labs/dbbrowser/internal/ui/features/common/components"
)

// PatchPanels replaces the database, table and browser panels. The query
// panel and the flash area are left alone.
func PatchPanels(sse *datastar.ServerSentEventGenerator, data components.AppData) {
	for _, c := range []func(components.AppData) templ.Component{components.Databases, components.Tables, components.Browser} {
		if err := sse.PatchElementTempl(c(data)); err != nil {
			_ = sse.ConsoleError(err)
			return
		}
	}
}

// SyncSignals resets the filter and page size inputs to the session's
// state after a command changed them.
func SyncSignals(sse *datastar.ServerSentEventGenerator, st console.State) {
	signals := map[string]any{"filter": st.Filter, "pageSize": st.PageSize}
	if err := sse.MarshalAndPatchSignals(signals); err != nil {
		_ = sse.ConsoleError(err)
	}
}

// PatchFlash replaces the flash area.
func PatchFlash(sse *datastar.ServerSentEventGenerator, f components.Flash) {
	if err := sse.PatchElementTempl(components.FlashMessage(f)); err != nil {
		_ = sse.ConsoleError(err)
	}
}

// PatchError shows err in the flash area.
func PatchError(sse *datastar.ServerSentEventGenerator, err error) {
	PatchFlash(sse, components.Flash{Error: ErrorMessage(err)})
}

// PatchInfo shows msg in the flash area.
func PatchInfo(sse *datastar.ServerSentEventGenerator, msg string) {
	PatchFlash(sse, components.Flash{Info: msg})
}
