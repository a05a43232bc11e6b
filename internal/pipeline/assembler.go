package pipeline

import (
	"sort"

	"github.com/OCAP2/featurex/pkg/core"
)

type stepKey struct {
	episode int
	step    int
}

// Assembler joins the friendly and enemy halves of the rows of one replay.
// Rows are keyed by the friendly perspective, or by the enemy perspective
// when no friendly extractor is declared. An enemy half without a friendly
// counterpart is dropped.
type Assembler struct {
	p      *Pipeline
	halves map[core.Side]map[stepKey]core.Row
}

// NewAssembler returns an empty assembler for rows of p.
func NewAssembler(p *Pipeline) *Assembler {
	return &Assembler{
		p: p,
		halves: map[core.Side]map[stepKey]core.Row{
			core.SideFriendly: {},
			core.SideEnemy:    {},
		},
	}
}

// Add stores the values side produced at (episode, step). A later value for
// the same key replaces the earlier one.
func (a *Assembler) Add(side core.Side, episode, step int, values core.Row) {
	a.halves[side][stepKey{episode, step}] = values
}

func (a *Assembler) primary() core.Side {
	if a.p.HasSide(core.SideFriendly) {
		return core.SideFriendly
	}
	return core.SideEnemy
}

// Dropped returns the number of enemy halves with no friendly half.
func (a *Assembler) Dropped() int {
	if a.primary() == core.SideEnemy {
		return 0
	}
	n := 0
	for k := range a.halves[core.SideEnemy] {
		if _, ok := a.halves[core.SideFriendly][k]; !ok {
			n++
		}
	}
	return n
}

// Rows returns the joined rows sorted by episode then timestep. Missing
// enemy halves are filled with undefined values.
func (a *Assembler) Rows() []core.Row {
	primary := a.halves[a.primary()]
	keys := make([]stepKey, 0, len(primary))
	for k := range primary {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].episode != keys[j].episode {
			return keys[i].episode < keys[j].episode
		}
		return keys[i].step < keys[j].step
	})

	width := a.p.Width(core.SideFriendly) + a.p.Width(core.SideEnemy)
	rows := make([]core.Row, 0, len(keys))
	for _, k := range keys {
		row := make(core.Row, 0, width)
		row = append(row, a.halves[core.SideFriendly][k]...)
		enemy, ok := a.halves[core.SideEnemy][k]
		if !ok {
			enemy = a.p.sentinels(core.SideEnemy)
		}
		row = append(row, enemy...)
		rows = append(rows, row)
	}
	return rows
}
