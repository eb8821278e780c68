package hazard

import (
	"fmt"
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"github.com/embernav/embernav/geo"
)

// DisjointSet is a union-find over cell ids, used to merge adjacent
// scored cells into zones.
type DisjointSet struct {
	Map map[h3.Cell]h3.Cell
}

func NewDisjointSet() *DisjointSet {
	return &DisjointSet{Map: make(map[h3.Cell]h3.Cell)}
}

func (d *DisjointSet) Add(x h3.Cell) error {
	if _, ok := d.Map[x]; ok {
		return fmt.Errorf("existed %v in set", x)
	}
	d.Map[x] = x
	return nil
}

func (d *DisjointSet) GetRoot(x h3.Cell) h3.Cell {
	r := d.Map[x]
	if r == x {
		return r
	}
	d.Map[x] = d.GetRoot(r)
	return d.Map[x]
}

func (d *DisjointSet) Union(x, y h3.Cell) {
	d.Map[d.GetRoot(x)] = d.GetRoot(y)
}

func (d *DisjointSet) Simplify() {
	for k := range d.Map {
		d.GetRoot(k)
	}
}

// cellScore is the per-cell scoring result before merging.
type cellScore struct {
	cell    h3.Cell
	score   float64
	level   RiskLevel
	factors []Factor
}

// mergeCells groups grid-adjacent cells of the same classification
// into zone candidates, so one fire front becomes one zone instead of
// thousands of hexes.
func mergeCells(scores map[h3.Cell]*cellScore) [][]h3.Cell {
	set := NewDisjointSet()
	for c := range scores {
		set.Add(c)
	}
	for c, sc := range scores {
		for _, n := range geo.Neighbors(c) {
			other, ok := scores[n]
			if !ok {
				continue
			}
			// merging across classification boundaries would dilute
			// the lower side or inflate it to the higher level
			if other.level == sc.level {
				set.Union(c, n)
			}
		}
	}
	set.Simplify()

	groups := make(map[h3.Cell][]h3.Cell)
	for c := range scores {
		root := set.GetRoot(c)
		groups[root] = append(groups[root], c)
	}
	out := make([][]h3.Cell, 0, len(groups))
	for _, cells := range groups {
		sort.Slice(cells, func(i, j int) bool { return cells[i] < cells[j] })
		out = append(out, cells)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
