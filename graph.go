package cache

// graph holds the reverse dependency edges: a key maps to the set of keys that declared it as a
// dependency. Forward edges live on the definitions.
type graph[K comparable] struct {
	dependents map[K]map[K]struct{}
}

func newGraph[K comparable]() *graph[K] {
	return &graph[K]{
		dependents: make(map[K]map[K]struct{}),
	}
}

func (g *graph[K]) addEdges(key K, dependencies []K) {
	for _, dep := range dependencies {
		set, ok := g.dependents[dep]
		if !ok {
			set = make(map[K]struct{})
			g.dependents[dep] = set
		}
		set[key] = struct{}{}
	}
}

// removeEdges drops key from the dependent sets of its dependencies. Edges pointing into key are
// kept so that a redefinition is notified by the same dependents.
func (g *graph[K]) removeEdges(key K, dependencies []K) {
	for _, dep := range dependencies {
		set, ok := g.dependents[dep]
		if !ok {
			continue
		}
		delete(set, key)
		if len(set) == 0 {
			delete(g.dependents, dep)
		}
	}
}

func (g *graph[K]) directDependents(key K) []K {
	set := g.dependents[key]
	out := make([]K, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

// transitiveDependents returns every key reachable from key through reverse edges. Cyclic
// declarations terminate because each key is visited once.
func (g *graph[K]) transitiveDependents(key K) []K {
	stack := g.directDependents(key)
	seen := map[K]bool{key: true}

	var out []K
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)

		for dep := range g.dependents[k] {
			if !seen[dep] {
				stack = append(stack, dep)
			}
		}
	}
	return out
}

func (g *graph[K]) edgeCount() int {
	n := 0
	for _, set := range g.dependents {
		n += len(set)
	}
	return n
}
