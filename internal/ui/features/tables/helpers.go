package tables

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/leapstack-labs/dbbrowser/internal/console"
)

// readDraft decodes the row editor form against the columns of the page
// the session shows. Field v<i> holds column i; n<i> marks it NULL.
func readDraft(r *http.Request, st console.State) (console.RowDraft, error) {
	if st.Page == nil {
		return console.RowDraft{}, console.ErrNoTable
	}
	idx, err := rowIndex(r)
	if err != nil {
		return console.RowDraft{}, err
	}
	if err := r.ParseForm(); err != nil {
		return console.RowDraft{}, fmt.Errorf("read row form: %w", err)
	}

	cols := st.Page.Columns
	draft := console.RowDraft{
		Index:   idx,
		Columns: append([]string(nil), cols...),
		Values:  make([]string, len(cols)),
		Null:    make([]bool, len(cols)),
	}
	for i := range cols {
		n := strconv.Itoa(i)
		draft.Values[i] = r.PostForm.Get("v" + n)
		draft.Null[i] = r.PostForm.Get("n"+n) != ""
	}
	return draft, nil
}
