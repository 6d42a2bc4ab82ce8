package dag

import "sort"

// StronglyConnectedComponents returns the components that contain a cycle,
// i.e. components with more than one member. Members are sorted and the
// components are ordered by their first member.
func (g *Graph) StronglyConnectedComponents() [][]string {
	index := 0
	indices := make(map[string]int)
	lowlink := make(map[string]int)
	onStack := make(map[string]bool)
	var stack []string
	var components [][]string

	var strongConnect func(v string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.GetChildren(v) {
			if _, seen := indices[w]; !seen {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] != indices[v] {
			return
		}

		var component []string
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			component = append(component, w)
			if w == v {
				break
			}
		}
		if len(component) > 1 {
			sort.Strings(component)
			components = append(components, component)
		}
	}

	for _, id := range g.Nodes() {
		if _, seen := indices[id]; !seen {
			strongConnect(id)
		}
	}

	sort.Slice(components, func(i, j int) bool {
		return components[i][0] < components[j][0]
	})
	return components
}

// SimpleCycles enumerates elementary cycles. Each cycle starts at its
// lexically smallest member and follows edge direction. A limit of zero or
// less means no limit.
func (g *Graph) SimpleCycles(limit int) [][]string {
	var cycles [][]string

	for _, component := range g.StronglyConnectedComponents() {
		for i, start := range component {
			allowed := make(map[string]bool, len(component)-i)
			for _, id := range component[i:] {
				allowed[id] = true
			}

			path := []string{start}
			onPath := map[string]bool{start: true}

			var search func(v string) bool
			search = func(v string) bool {
				for _, w := range g.GetChildren(v) {
					if !allowed[w] {
						continue
					}
					if w == start {
						cycle := make([]string, len(path))
						copy(cycle, path)
						cycles = append(cycles, cycle)
						if limit > 0 && len(cycles) >= limit {
							return true
						}
						continue
					}
					if onPath[w] {
						continue
					}
					path = append(path, w)
					onPath[w] = true
					if search(w) {
						return true
					}
					path = path[:len(path)-1]
					onPath[w] = false
				}
				return false
			}

			if search(start) {
				return cycles
			}
		}
	}

	return cycles
}
