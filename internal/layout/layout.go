// Package layout is the Grid Layout Binder collaborator: it knows the
// valid pane counts and their grid shapes, and exposes the narrow
// interface a real window toolkit would implement to hand out native
// window handles per pane index. No GUI binding is implemented here —
// that crosses into the rendering Non-goal — only the shape table and a
// headless stub usable in tests and non-GUI hosts.
package layout

import "fmt"

// Cell describes one pane's placement within the grid, in row/column
// units, with an optional span for the larger preview tile some shapes
// give their first pane.
type Cell struct {
	Row, Col         int
	RowSpan, ColSpan int
}

// ValidWays reports whether ways is one of the supported pane counts.
func ValidWays(ways int) bool {
	switch ways {
	case 1, 4, 6, 8, 9, 16:
		return true
	default:
		return false
	}
}

// Grid returns the cell placement for ways panes, in pane-index order
// (the first cell is always the, possibly spanned, preview tile).
func Grid(ways int) ([]Cell, error) {
	switch ways {
	case 1:
		return []Cell{{RowSpan: 1, ColSpan: 1}}, nil
	case 4:
		return uniformGrid(2, 2), nil
	case 6:
		return spannedGrid(3, 3, 2, 2), nil
	case 8:
		return spannedGrid(4, 4, 3, 3), nil
	case 9:
		return uniformGrid(3, 3), nil
	case 16:
		return uniformGrid(4, 4), nil
	default:
		return nil, fmt.Errorf("layout: invalid ways %d", ways)
	}
}

func uniformGrid(rows, cols int) []Cell {
	cells := make([]Cell, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cells = append(cells, Cell{Row: r, Col: c, RowSpan: 1, ColSpan: 1})
		}
	}
	return cells
}

// spannedGrid places a spanRows x spanCols preview tile at the origin,
// then fills the remaining rows x cols grid positions row-major.
func spannedGrid(rows, cols, spanRows, spanCols int) []Cell {
	cells := []Cell{{Row: 0, Col: 0, RowSpan: spanRows, ColSpan: spanCols}}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if r < spanRows && c < spanCols {
				continue
			}
			cells = append(cells, Cell{Row: r, Col: c, RowSpan: 1, ColSpan: 1})
		}
	}
	return cells
}

// WindowHandleProvider is the contract a real window toolkit binding
// would implement: a native window handle per pane index, and visibility
// control. The supervisor depends on this interface, never on a concrete
// GUI library.
type WindowHandleProvider interface {
	WindowHandle(index int) (uint64, error)
	SetVisible(index int, visible bool)
}

// Headless is a no-op WindowHandleProvider for tests and server-side
// hosts driving tilewall without a display.
type Headless struct {
	visible map[int]bool
}

// NewHeadless returns a Headless provider that synthesizes a stable
// handle (index+1) per pane index.
func NewHeadless() *Headless {
	return &Headless{visible: make(map[int]bool)}
}

func (h *Headless) WindowHandle(index int) (uint64, error) {
	return uint64(index + 1), nil
}

func (h *Headless) SetVisible(index int, visible bool) {
	h.visible[index] = visible
}

// Visible reports the last visibility value set for index, for tests.
func (h *Headless) Visible(index int) bool {
	return h.visible[index]
}
