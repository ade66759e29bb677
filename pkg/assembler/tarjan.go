package assembler

// tarjanSCCs computes the strongly connected components of the predicate
// graph and returns them ordered so that every predicate's dependencies
// appear in an earlier or equal stratum (a valid evaluation order).
//
// Standard Tarjan completes components in the reverse of that order (a
// component is finished only after every component reachable from it),
// so the raw completion list is reversed before returning.
func tarjanSCCs(preds []string, graph map[string][]string) [][]string {
	t := &tarjan{
		graph:   graph,
		index:   make(map[string]int),
		lowlink: make(map[string]int),
		onStack: make(map[string]bool),
	}
	for _, p := range preds {
		if _, visited := t.index[p]; !visited {
			t.strongConnect(p)
		}
	}

	// t.sccs is in completion order (targets before sources); reverse to
	// get dependency order (sources before targets).
	for i, j := 0, len(t.sccs)-1; i < j; i, j = i+1, j-1 {
		t.sccs[i], t.sccs[j] = t.sccs[j], t.sccs[i]
	}
	return t.sccs
}

type tarjan struct {
	graph   map[string][]string
	index   map[string]int
	lowlink map[string]int
	onStack map[string]bool
	stack   []string
	counter int
	sccs    [][]string
}

func (t *tarjan) strongConnect(v string) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.graph[v] {
		if _, visited := t.index[w]; !visited {
			t.strongConnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.lowlink[v] {
				t.lowlink[v] = t.index[w]
			}
		}
	}

	if t.lowlink[v] == t.index[v] {
		var scc []string
		for {
			n := len(t.stack) - 1
			w := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		t.sccs = append(t.sccs, scc)
	}
}
