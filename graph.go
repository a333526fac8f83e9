package harbor

// DependencyGraph records bean-to-bean dependencies for cycle detection.
// Only edges into pseudo-scoped beans are added: a normal-scoped dependency
// is injected as a client proxy and cannot form a construction cycle.
type DependencyGraph struct {
	nodes map[string]*node
	order []string // Preserve registration order
}

type node struct {
	id           string
	dependencies []string
}

// NewDependencyGraph creates a new dependency graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[string]*node),
		order: make([]string, 0),
	}
}

// AddNode adds a node with its dependencies. Nodes without dependencies keep
// their insertion order in the topological sort.
func (g *DependencyGraph) AddNode(id string, dependencies []string) {
	if n, ok := g.nodes[id]; ok {
		n.dependencies = append(n.dependencies, dependencies...)

		return
	}

	g.nodes[id] = &node{id: id, dependencies: dependencies}
	g.order = append(g.order, id)
}

// AddEdge adds a single dependency from id to dep.
func (g *DependencyGraph) AddEdge(id, dep string) {
	g.AddNode(id, []string{dep})
}

// GetDependencies returns the dependencies of a node.
func (g *DependencyGraph) GetDependencies(id string) []string {
	if n, ok := g.nodes[id]; ok {
		return n.dependencies
	}

	return nil
}

// HasNode checks if a node exists in the graph.
func (g *DependencyGraph) HasNode(id string) bool {
	_, ok := g.nodes[id]

	return ok
}

// TopologicalSort returns nodes in dependency order, or a circular dependency
// error naming the full cycle.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	visited := make(map[string]bool)
	visiting := make(map[string]bool)
	result := make([]string, 0, len(g.nodes))

	for _, id := range g.order {
		var path []string
		if err := g.visit(id, visited, visiting, &path, &result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// visit performs DFS traversal.
func (g *DependencyGraph) visit(id string, visited, visiting map[string]bool, path, result *[]string) error {
	if visited[id] {
		return nil
	}

	if visiting[id] {
		return ErrCircularDependency(cycleFrom(*path, id))
	}

	n := g.nodes[id]
	if n == nil {
		return nil
	}

	visiting[id] = true
	*path = append(*path, id)

	for _, dep := range n.dependencies {
		if err := g.visit(dep, visited, visiting, path, result); err != nil {
			return err
		}
	}

	*path = (*path)[:len(*path)-1]
	visiting[id] = false
	visited[id] = true
	*result = append(*result, id)

	return nil
}

// cycleFrom returns the part of path starting at id, closed by id again.
func cycleFrom(path []string, id string) []string {
	for i, p := range path {
		if p == id {
			cycle := append([]string(nil), path[i:]...)

			return append(cycle, id)
		}
	}

	return []string{id, id}
}
