package grid

import "github.com/CaioWing/harbor-console/internal/domain"

// Selection is the selected subset of the visible rows, in row order.
type Selection[R any] struct {
	IDs     []string
	Rows    []R
	Visible int
}

func (s Selection[R]) Len() int { return len(s.IDs) }

func (s Selection[R]) Command() domain.SelectionCommand {
	return domain.SelectionCommand{IDs: append([]string(nil), s.IDs...)}
}

// Gate enables one bulk-action control from the current selection.
type Gate[R any] struct {
	Name    string
	Enabled func(Selection[R]) bool
}

func AnySelected[R any](s Selection[R]) bool { return len(s.IDs) > 0 }

func ExactlyOne[R any](s Selection[R]) bool { return len(s.IDs) == 1 }

func NotAllSelected[R any](s Selection[R]) bool { return len(s.IDs) < s.Visible }

// AnyRow is true when at least one selected row satisfies pred.
func AnyRow[R any](pred func(R) bool) func(Selection[R]) bool {
	return func(s Selection[R]) bool {
		for _, r := range s.Rows {
			if pred(r) {
				return true
			}
		}
		return false
	}
}
