package grid

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/CaioWing/harbor-console/internal/domain"
)

// Cell is one rendered grid value. Class is a presentation hint such as
// "success" or "danger" for status dots.
type Cell struct {
	Text  string `json:"text"`
	Class string `json:"class,omitempty"`
}

// RenderFunc turns a decoded JSON value (nil, bool, float64, string,
// []interface{} or map[string]interface{}) into a cell.
type RenderFunc func(v interface{}) Cell

type Column struct {
	Title string
	// Data is the column identifier sent to the backend.
	Data string
	// Name is the backend sort key; defaults to Data.
	Name string
	// Field is the dotted path into the row payload; defaults to Data.
	Field      string
	Searchable bool
	Orderable  bool
	Hidden     bool
	Render     RenderFunc
}

func (c Column) ref() domain.ColumnRef {
	name := c.Name
	if name == "" {
		name = c.Data
	}
	return domain.ColumnRef{Data: c.Data, Name: name, Searchable: c.Searchable, Orderable: c.Orderable}
}

func (c Column) field() string {
	if c.Field != "" {
		return c.Field
	}
	return c.Data
}

func (c Column) render(v interface{}) Cell {
	if c.Render != nil {
		return c.Render(v)
	}
	return RenderDefault(v)
}

// Lookup walks a dotted path ("hardware.model") through a decoded row.
func Lookup(row map[string]interface{}, path string) interface{} {
	var cur interface{} = row
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

const placeholder = "-"

func RenderDefault(v interface{}) Cell {
	switch x := v.(type) {
	case nil:
		return Cell{Text: placeholder}
	case string:
		if x == "" {
			return Cell{Text: placeholder}
		}
		return Cell{Text: x}
	case bool:
		return Cell{Text: strconv.FormatBool(x)}
	case float64:
		return Cell{Text: strconv.FormatFloat(x, 'f', -1, 64)}
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return Cell{Text: placeholder}
		}
		return Cell{Text: string(b)}
	}
}

// RenderDot shows a boolean as a colored dot.
func RenderDot(onClass, offClass string) RenderFunc {
	return func(v interface{}) Cell {
		b, ok := v.(bool)
		if !ok {
			return Cell{Text: placeholder}
		}
		if b {
			return Cell{Text: "●", Class: onClass}
		}
		return Cell{Text: "●", Class: offClass}
	}
}

// RenderRelative shows an age in seconds using its largest unit.
func RenderRelative(v interface{}) Cell {
	f, ok := v.(float64)
	if !ok {
		return Cell{Text: placeholder}
	}
	return Cell{Text: RelativeSeconds(int64(f))}
}

func RelativeSeconds(t int64) string {
	if t < 0 {
		t = 0
	}
	d := t / 86400
	h := (t % 86400) / 3600
	m := (t % 3600) / 60
	s := t % 60

	switch {
	case d > 0:
		return plural(d, "day")
	case h > 0:
		return plural(h, "hour")
	case m > 0:
		return plural(m, "minute")
	default:
		return plural(s, "second")
	}
}

func plural(n int64, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.FormatInt(n, 10) + " " + unit + "s"
}

// RenderTimestamp formats epoch milliseconds in loc.
func RenderTimestamp(layout string, loc *time.Location) RenderFunc {
	return func(v interface{}) Cell {
		f, ok := v.(float64)
		if !ok {
			return Cell{Text: placeholder}
		}
		return Cell{Text: time.UnixMilli(int64(f)).In(loc).Format(layout)}
	}
}

func RenderPercent(v interface{}) Cell {
	f, ok := v.(float64)
	if !ok {
		return Cell{Text: placeholder}
	}
	return Cell{Text: strconv.FormatFloat(f, 'f', -1, 64) + "%"}
}

func RenderMegabytes(v interface{}) Cell {
	f, ok := v.(float64)
	if !ok {
		return Cell{Text: placeholder}
	}
	return Cell{Text: fmt.Sprintf("%.2f MB", f/1024/1024)}
}

// RenderList joins the items of an array, formatting each with item.
func RenderList(sep string, item func(interface{}) string) RenderFunc {
	return func(v interface{}) Cell {
		list, ok := v.([]interface{})
		if !ok || len(list) == 0 {
			return Cell{Text: placeholder}
		}
		parts := make([]string, 0, len(list))
		for _, x := range list {
			parts = append(parts, item(x))
		}
		return Cell{Text: strings.Join(parts, sep)}
	}
}
