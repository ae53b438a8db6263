package graph

import "github.com/imageflow/imageflow/internal/ferror"

// Graph is the operation DAG submitted to a Job: a set of Nodes connected
// by input/canvas Edges.
type Graph struct {
	Nodes  map[ID]*Node
	Edges  []Edge
	nextID ID
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{Nodes: make(map[ID]*Node)}
}

// AddNode appends a node of the given type and params, returning its ID.
func (g *Graph) AddNode(t Type, params any) ID {
	g.nextID++
	id := g.nextID
	g.Nodes[id] = &Node{ID: id, Type: t, Params: params}
	return id
}

// Connect adds an edge from -> to of the given kind.
func (g *Graph) Connect(from, to ID, kind EdgeKind) error {
	if _, ok := g.Nodes[from]; !ok {
		return ferror.New(ferror.KindInvalidNodeConnections, "graph: edge source node %d does not exist", from)
	}
	if _, ok := g.Nodes[to]; !ok {
		return ferror.New(ferror.KindInvalidNodeConnections, "graph: edge destination node %d does not exist", to)
	}
	g.Edges = append(g.Edges, Edge{From: from, To: to, Kind: kind})
	return nil
}

// InputOf returns the node feeding id's primary input, if any.
func (g *Graph) InputOf(id ID) (ID, bool) {
	for _, e := range g.Edges {
		if e.To == id && e.Kind == EdgeInput {
			return e.From, true
		}
	}
	return 0, false
}

// CanvasOf returns the node feeding id's canvas input, if any.
func (g *Graph) CanvasOf(id ID) (ID, bool) {
	for _, e := range g.Edges {
		if e.To == id && e.Kind == EdgeCanvas {
			return e.From, true
		}
	}
	return 0, false
}

// ConsumerCount returns how many edges (of any kind) read from id.
func (g *Graph) ConsumerCount(id ID) int {
	n := 0
	for _, e := range g.Edges {
		if e.From == id {
			n++
		}
	}
	return n
}

// TopoOrder returns node IDs in a dependency-respecting order (inputs and
// canvases before their consumers), erroring on a cycle.
func (g *Graph) TopoOrder() ([]ID, error) {
	visited := make(map[ID]int) // 0=unvisited,1=visiting,2=done
	var order []ID
	var visit func(id ID) error
	visit = func(id ID) error {
		switch visited[id] {
		case 2:
			return nil
		case 1:
			return ferror.New(ferror.KindInvalidNodeConnections, "graph: cycle detected at node %d", id)
		}
		visited[id] = 1
		if in, ok := g.InputOf(id); ok {
			if err := visit(in); err != nil {
				return err
			}
		}
		if cv, ok := g.CanvasOf(id); ok {
			if err := visit(cv); err != nil {
				return err
			}
		}
		visited[id] = 2
		order = append(order, id)
		return nil
	}
	for id := range g.Nodes {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// FullyExecuted reports whether every node has produced output (spec
// §4.9's job_graph_fully_executed).
func (g *Graph) FullyExecuted() bool {
	for _, n := range g.Nodes {
		if n.state() != stateExecuted {
			return false
		}
	}
	return true
}
