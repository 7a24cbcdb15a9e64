package model

// GroupedRuns maps a source (host server) to its runs in fetch order.
// Source iteration follows Order; runs keep upstream order. Both matter:
// the content hash and the rendered output are defined over this ordering.
type GroupedRuns struct {
	Order []string
	Runs  map[string][]Run
}

// Add appends runs for one source, registering it on first use.
func (g *GroupedRuns) Add(source string, runs []Run) {
	if g.Runs == nil {
		g.Runs = make(map[string][]Run)
	}
	if _, ok := g.Runs[source]; !ok {
		g.Order = append(g.Order, source)
	}
	g.Runs[source] = append(g.Runs[source], runs...)
}

// Empty reports whether no source contributed any run.
func (g *GroupedRuns) Empty() bool {
	for _, runs := range g.Runs {
		if len(runs) > 0 {
			return false
		}
	}
	return true
}
