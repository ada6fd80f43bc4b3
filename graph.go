package metro

import (
	"container/heap"

	"kharkivmetro.dev/metro/model"
)

// Graph is the weighted directed graph derived from the network:
// adjacency edges between consecutive stations on a line, transfer edges
// between interchange pairs, both bidirectional.
type Graph struct {
	edges map[string][]Edge
}

type Edge struct {
	To         string
	Weight     float64
	IsTransfer bool
}

// NewGraph derives the edge set from the network.
func NewGraph(n *Network) *Graph {
	g := &Graph{edges: map[string][]Edge{}}

	for _, line := range model.Lines {
		stations := n.StationsOnLine(line)
		for i := 0; i < len(stations)-1; i++ {
			a, b := stations[i].ID, stations[i+1].ID
			g.addEdge(a, b, model.HopMinutes, false)
			g.addEdge(b, a, model.HopMinutes, false)
		}
	}

	for from, to := range n.Data.Transfers {
		g.addEdge(from, to, model.TransferMinutes, true)
	}

	return g
}

func (g *Graph) addEdge(from, to string, weight float64, isTransfer bool) {
	g.edges[from] = append(g.edges[from], Edge{To: to, Weight: weight, IsTransfer: isTransfer})
}

// Edges returns the outgoing edges of a station id.
func (g *Graph) Edges(id string) []Edge {
	return g.edges[id]
}

// FindShortestPath runs Dijkstra over the graph and returns the station
// id path and its total weight. ok is false when either endpoint is
// unknown or unreachable. Ties are decided by queue order; alternatives
// are not enumerated.
func (g *Graph) FindShortestPath(start, end string) (path []string, weight float64, ok bool) {
	if _, found := g.edges[start]; !found {
		return nil, 0, false
	}
	if _, found := g.edges[end]; !found {
		return nil, 0, false
	}

	dist := map[string]float64{start: 0}
	prev := map[string]string{}
	visited := map[string]bool{}

	pq := &vertexQueue{{id: start, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(vertexItem)
		if visited[cur.id] {
			continue
		}
		visited[cur.id] = true
		if cur.id == end {
			break
		}

		for _, e := range g.edges[cur.id] {
			if visited[e.To] {
				continue
			}
			next := cur.dist + e.Weight
			if d, seen := dist[e.To]; !seen || next < d {
				dist[e.To] = next
				prev[e.To] = cur.id
				heap.Push(pq, vertexItem{id: e.To, dist: next})
			}
		}
	}

	total, reached := dist[end]
	if !reached {
		return nil, 0, false
	}

	path = []string{end}
	for cur := end; cur != start; {
		cur = prev[cur]
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, total, true
}

type vertexItem struct {
	id   string
	dist float64
}

// Binary heap keyed on distance.
type vertexQueue []vertexItem

func (q vertexQueue) Len() int            { return len(q) }
func (q vertexQueue) Less(i, j int) bool  { return q[i].dist < q[j].dist }
func (q vertexQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *vertexQueue) Push(x interface{}) { *q = append(*q, x.(vertexItem)) }
func (q *vertexQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
