package domain

import (
	"encoding/json"
	"strings"
)

type SortDir string

const (
	SortAsc  SortDir = "asc"
	SortDesc SortDir = "desc"
)

// ParseSortDir defaults anything unrecognised to ascending.
func ParseSortDir(s string) SortDir {
	if strings.EqualFold(s, string(SortDesc)) {
		return SortDesc
	}
	return SortAsc
}

type OrderSpec struct {
	Column int     `json:"column"`
	Dir    SortDir `json:"dir"`
}

// PageParams is the server-side paging request of one grid.
type PageParams struct {
	Start        int            `json:"start"`
	Length       int            `json:"length"`
	Order        []OrderSpec    `json:"order,omitempty"`
	Search       string         `json:"search,omitempty"`
	ColumnSearch map[int]string `json:"column_search,omitempty"`
}

func (p PageParams) Clone() PageParams {
	out := p
	out.Order = append([]OrderSpec(nil), p.Order...)
	if p.ColumnSearch != nil {
		out.ColumnSearch = make(map[int]string, len(p.ColumnSearch))
		for k, v := range p.ColumnSearch {
			out.ColumnSearch[k] = v
		}
	}
	return out
}

// SelectionCommand carries the ids selected at the moment a bulk action fired.
type SelectionCommand struct {
	IDs []string `json:"ids"`
}

func (c SelectionCommand) Empty() bool { return len(c.IDs) == 0 }

// ColumnRef is what the backend needs to know about one grid column.
type ColumnRef struct {
	Data       string `json:"data"`
	Name       string `json:"name,omitempty"`
	Searchable bool   `json:"searchable"`
	Orderable  bool   `json:"orderable"`
}

// PageQuery is a single list request against a paginated endpoint.
type PageQuery struct {
	Endpoint string
	Draw     int
	Columns  []ColumnRef
	Params   PageParams
}

// Page is exactly one page of rows plus the dataset counters.
type Page struct {
	Data            []json.RawMessage `json:"data"`
	Draw            int               `json:"draw"`
	RecordsTotal    int               `json:"recordsTotal"`
	RecordsFiltered int               `json:"recordsFiltered"`
}
