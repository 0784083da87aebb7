package output_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/dbbrowser/internal/cli/output"
	"github.com/leapstack-labs/dbbrowser/internal/cli/testutil"
)

func TestRendererModes(t *testing.T) {
	tests := []struct {
		name string
		tr   *testutil.TestRenderer
		want output.Mode
	}{
		{name: "auto without tty", tr: testutil.NewTestRendererAuto(), want: output.ModeMarkdown},
		{name: "json", tr: testutil.NewTestRenderer(output.ModeJSON, false), want: output.ModeJSON},
		{name: "text", tr: testutil.NewTestRendererText(), want: output.ModeText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tr.EffectiveMode())

			tt.tr.Header(2, "Databases")
			tt.tr.KeyValue("demo.sqlite", "3 tables")
			tt.tr.Warning("unsaved changes")
			testutil.AssertOutputMode(t, tt.tr, tt.want)
			assert.Contains(t, tt.tr.Output(), "Databases")
			assert.Contains(t, tt.tr.ErrorOutput(), "unsaved changes")

			tt.tr.Reset()
			assert.Empty(t, tt.tr.Output())
		})
	}
}
