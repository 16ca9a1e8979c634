// Package depgraph exposes the dependency-graph collaborator interface:
// a black-box status query for upstream tasks. The settlement evaluator
// never consults it; projection callers may.
package depgraph

import (
	"fmt"
	"sync"
)

// NodeStatus is the black-box status of an upstream task node.
type NodeStatus string

const (
	NodePending   NodeStatus = "PENDING"
	NodeReady     NodeStatus = "READY"
	NodeFinalized NodeStatus = "FINALIZED"
	NodeBlocked   NodeStatus = "BLOCKED"
)

// StatusSource answers upstream-task status queries.
type StatusSource interface {
	NodeStatus(id string) (NodeStatus, bool)
}

// Graph is an in-memory DAG of task nodes. Edges point from a node to
// the nodes it depends on; adding an edge that would close a cycle is
// refused.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]NodeStatus
	edges map[string][]string
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]NodeStatus),
		edges: make(map[string][]string),
	}
}

// AddNode registers a node in PENDING.
func (g *Graph) AddNode(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[id]; !ok {
		g.nodes[id] = NodePending
	}
}

// AddEdge declares that from depends on to. Both nodes must exist and
// the edge must not close a cycle.
func (g *Graph) AddEdge(from, to string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[from]; !ok {
		return fmt.Errorf("depgraph: unknown node %q", from)
	}
	if _, ok := g.nodes[to]; !ok {
		return fmt.Errorf("depgraph: unknown node %q", to)
	}
	if g.reachable(to, from) {
		return fmt.Errorf("depgraph: edge %s -> %s would close a cycle", from, to)
	}
	g.edges[from] = append(g.edges[from], to)
	return nil
}

// reachable reports whether target is reachable from start. Callers
// hold the lock.
func (g *Graph) reachable(start, target string) bool {
	if start == target {
		return true
	}
	visited := map[string]bool{}
	stack := []string{start}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[node] {
			continue
		}
		visited[node] = true
		for _, dep := range g.edges[node] {
			if dep == target {
				return true
			}
			stack = append(stack, dep)
		}
	}
	return false
}

// SetStatus updates a node's status.
func (g *Graph) SetStatus(id string, status NodeStatus) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[id]; !ok {
		return fmt.Errorf("depgraph: unknown node %q", id)
	}
	g.nodes[id] = status
	return nil
}

// NodeStatus returns a node's status.
func (g *Graph) NodeStatus(id string) (NodeStatus, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	status, ok := g.nodes[id]
	return status, ok
}

// UpstreamBlocked reports whether any dependency of id is BLOCKED,
// walking transitively.
func (g *Graph) UpstreamBlocked(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := map[string]bool{}
	stack := append([]string(nil), g.edges[id]...)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[node] {
			continue
		}
		visited[node] = true
		if g.nodes[node] == NodeBlocked {
			return true
		}
		stack = append(stack, g.edges[node]...)
	}
	return false
}
