package wcrp

import (
	"sort"

	"github.com/sky-flux/wcrp/randx"
)

// unassigned marks an item with no current skill, which only occurs
// mid-flight during a Gibbs step.
const unassigned = -1

// partition is the ledger of the item-to-skill seating arrangement. It
// exclusively owns skill lifecycle: a skill (table) exists exactly while at
// least one item is assigned to it, and its parameter record and per-student
// trial-index lists are created and destroyed with it.
type partition struct {
	rng randx.Source

	assignment []int                 // item -> table id, or unassigned
	sizes      map[int]int           // table id -> number of items seated
	params     map[int]skillParams   // table id -> parameter record
	trials     map[int]map[int][]int // table id -> student -> ascending trial indices

	nextTable int // ever-instantiated counter, ids are never reused

	// Read-only dataset indexes shared with the chain.
	studiedBy  [][]int   // item -> training students who ever studied it
	itemTrials [][][]int // student -> item -> ascending trial indices
}

func newPartition(numItems int, studiedBy [][]int, itemTrials [][][]int, rng randx.Source) *partition {
	p := &partition{
		rng:        rng,
		assignment: make([]int, numItems),
		sizes:      make(map[int]int),
		params:     make(map[int]skillParams),
		trials:     make(map[int]map[int][]int),
		studiedBy:  studiedBy,
		itemTrials: itemTrials,
	}
	for i := range p.assignment {
		p.assignment[i] = unassigned
	}
	return p
}

// newTable reserves a fresh, never-before-used table id.
func (p *partition) newTable() int {
	id := p.nextTable
	p.nextTable++
	return id
}

// numActive returns the number of skills with at least one item.
func (p *partition) numActive() int {
	return len(p.sizes)
}

// activeTables returns the active table ids in ascending order. Sorted
// iteration keeps a seeded chain reproducible.
func (p *partition) activeTables() []int {
	ids := make([]int, 0, len(p.sizes))
	for id := range p.sizes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// assign seats item at table. For a new table it draws a parameter record
// from the prior, registers the table with size one, and seeds the table's
// trial lists from the item's own history; otherwise it increments the size
// and merges the item's trial indices into each affected student's list.
func (p *partition) assign(item, table int, isNew bool) {
	if isNew {
		p.params[table] = drawParamsPrior(p.rng)
		p.assignment[item] = table
		p.sizes[table] = 1

		byStudent := make(map[int][]int)
		for _, student := range p.studiedBy[item] {
			src := p.itemTrials[student][item]
			byStudent[student] = append([]int(nil), src...)
		}
		p.trials[table] = byStudent
		return
	}

	p.assignment[item] = table
	p.sizes[table]++
	for _, student := range p.studiedBy[item] {
		p.trials[table][student] = mergeSorted(p.trials[table][student], p.itemTrials[student][item])
	}
}

// unassign removes item from table. Returns true if the table emptied and
// was destroyed along with its parameter record and trial lists.
func (p *partition) unassign(item, table int) bool {
	p.sizes[table]--
	p.assignment[item] = unassigned

	if p.sizes[table] == 0 {
		delete(p.sizes, table)
		delete(p.params, table)
		delete(p.trials, table)
		return true
	}

	for _, student := range p.studiedBy[item] {
		remaining := removeSorted(p.trials[table][student], p.itemTrials[student][item])
		if len(remaining) == 0 {
			delete(p.trials[table], student)
		} else {
			p.trials[table][student] = remaining
		}
	}
	return false
}

// mergeSorted merges two ascending index lists into a new ascending list.
func mergeSorted(a, b []int) []int {
	if len(a) == 0 {
		return append([]int(nil), b...)
	}
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// removeSorted returns a with every element of b removed. Both inputs are
// ascending; every element of b occurs in a.
func removeSorted(a, b []int) []int {
	if len(b) == 0 {
		return a
	}
	out := make([]int, 0, len(a)-len(b))
	j := 0
	for _, x := range a {
		if j < len(b) && x == b[j] {
			j++
			continue
		}
		out = append(out, x)
	}
	return out
}
