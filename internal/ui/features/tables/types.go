// Package tables provides the table commands of the console: create, drop,
// open, filter, paginate, edit rows and CSV transfer.
package tables

import (
	"encoding/json"
	"strconv"
	"strings"
)

// createSignals is posted by "Create table".
type createSignals struct {
	TableName  string `json:"tableName"`
	ColumnDefs string `json:"columnDefs"`
}

type filterSignals struct {
	Filter string `json:"filter"`
}

type pageSizeSignals struct {
	PageSize flexInt `json:"pageSize"`
}

// flexInt decodes a JSON number or a numeric string, as bound select
// elements may post either.
type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var i int
		if err := json.Unmarshal(b, &i); err != nil {
			return err
		}
		*n = flexInt(i)
		return nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*n = flexInt(i)
	return nil
}
