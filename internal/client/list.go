package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/CaioWing/harbor-console/internal/domain"
)

// FetchPage requests one page from a server-side paginated endpoint.
func (c *Client) FetchPage(ctx context.Context, q domain.PageQuery) (*domain.Page, error) {
	req, err := c.newRequest(ctx, http.MethodGet, q.Endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = EncodePageQuery(q).Encode()

	var page domain.Page
	if err := c.do(req, &page); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", q.Endpoint, err)
	}
	if page.Data == nil {
		return nil, fmt.Errorf("fetch %s: response has no data array", q.Endpoint)
	}
	return &page, nil
}

// EncodePageQuery renders the paging request in the bracketed form the
// backend's list endpoints parse.
func EncodePageQuery(q domain.PageQuery) url.Values {
	v := url.Values{}
	v.Set("draw", strconv.Itoa(q.Draw))
	v.Set("start", strconv.Itoa(q.Params.Start))
	v.Set("length", strconv.Itoa(q.Params.Length))
	v.Set("search[value]", q.Params.Search)
	v.Set("search[regex]", "false")

	for i, col := range q.Columns {
		prefix := "columns[" + strconv.Itoa(i) + "]"
		v.Set(prefix+"[data]", col.Data)
		v.Set(prefix+"[name]", col.Name)
		v.Set(prefix+"[searchable]", strconv.FormatBool(col.Searchable))
		v.Set(prefix+"[orderable]", strconv.FormatBool(col.Orderable))
		v.Set(prefix+"[search][value]", q.Params.ColumnSearch[i])
		v.Set(prefix+"[search][regex]", "false")
	}

	for i, o := range q.Params.Order {
		prefix := "order[" + strconv.Itoa(i) + "]"
		v.Set(prefix+"[column]", strconv.Itoa(o.Column))
		v.Set(prefix+"[dir]", string(o.Dir))
		if o.Column >= 0 && o.Column < len(q.Columns) {
			v.Set(prefix+"[name]", q.Columns[o.Column].Name)
		}
	}
	return v
}
