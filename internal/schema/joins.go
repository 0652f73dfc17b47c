package schema

import (
	"github.com/yourbasic/graph"
)

// JoinConditions renders the foreign keys relevant to a selection as
// table."col"=ref."col" strings. Edges between two selected tables are always
// included. Selected tables without a direct edge are bridged through the
// shortest foreign-key path, so the intermediate tables' edges are included
// as well. An empty selection yields every edge.
func (g *Graph) JoinConditions(sel Selection) []string {
	if len(sel) == 0 {
		out := make([]string, 0, len(g.ForeignKeys))
		for _, fk := range g.ForeignKeys {
			out = append(out, fk.String())
		}
		return out
	}

	index := make(map[string]int, len(g.Tables))
	for i, table := range g.Tables {
		index[table.Name] = i
	}
	keep := make(map[string]bool, len(sel))
	for table := range sel {
		keep[table] = true
	}

	links := graph.New(len(g.Tables))
	linked := make(map[[2]int]bool)
	for _, fk := range g.ForeignKeys {
		a, okA := index[fk.Table]
		b, okB := index[fk.RefTable]
		if !okA || !okB || a == b {
			continue
		}
		links.AddBothCost(a, b, 1)
		if keep[fk.Table] && keep[fk.RefTable] {
			linked[[2]int{a, b}] = true
			linked[[2]int{b, a}] = true
		}
	}

	selected := sel.Tables()
	for i := 0; i < len(selected); i++ {
		for j := i + 1; j < len(selected); j++ {
			a, okA := index[selected[i]]
			b, okB := index[selected[j]]
			if !okA || !okB || linked[[2]int{a, b}] {
				continue
			}
			path, dist := graph.ShortestPath(links, a, b)
			if dist < 0 {
				continue
			}
			for _, v := range path {
				keep[g.Tables[v].Name] = true
			}
		}
	}

	out := make([]string, 0)
	seen := make(map[string]bool)
	for _, fk := range g.ForeignKeys {
		if !keep[fk.Table] || !keep[fk.RefTable] {
			continue
		}
		rendered := fk.String()
		if seen[rendered] {
			continue
		}
		seen[rendered] = true
		out = append(out, rendered)
	}
	return out
}
