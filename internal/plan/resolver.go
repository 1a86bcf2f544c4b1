package plan

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kingrea/baca/internal/errs"
	"github.com/kingrea/baca/internal/metadata"
	"github.com/kingrea/baca/internal/segment"
)

// NodeState represents the resolver's understanding of a segment's readiness.
type NodeState string

const (
	NodeStateUnknown  NodeState = "unknown"
	NodeStatePending  NodeState = "pending"
	NodeStateReady    NodeState = "ready"
	NodeStateBlocked  NodeState = "blocked"
	NodeStateComplete NodeState = "complete"
	NodeStateError    NodeState = "error"
)

// BuildStatus describes the stored build of a segment.
type BuildStatus string

const (
	BuildStatusUnknown  BuildStatus = "unknown"
	BuildStatusMissing  BuildStatus = "missing"
	BuildStatusOutdated BuildStatus = "outdated"
	BuildStatusFresh    BuildStatus = "fresh"
	BuildStatusError    BuildStatus = "error"
)

// Node captures one segment plus its place in the chain.
type Node struct {
	ID           string
	Definition   segment.Definition
	Dependencies []string
	Dependents   []string

	State     NodeState
	Build     BuildStatus
	Reason    string
	BlockedBy []string
	Err       error
	Metadata  *metadata.Metadata
}

// Resolver builds and evaluates the segment dependency graph.
type Resolver struct {
	nodes      map[string]*Node
	orderedIDs []string
	topo       []string
}

// New constructs a resolver over defs. Every previous segment must be one
// of defs and the chain may not loop.
func New(defs []segment.Definition) (*Resolver, error) {
	nodes := make(map[string]*Node, len(defs))
	ordered := make([]string, 0, len(defs))
	for _, def := range defs {
		if _, dup := nodes[def.Name]; dup {
			return nil, fmt.Errorf("plan: segment %s declared twice: %w", def.Name, errs.ErrInvalidParameter)
		}
		node := &Node{ID: def.Name, Definition: def, State: NodeStateUnknown, Build: BuildStatusUnknown}
		if def.Previous != "" {
			node.Dependencies = []string{def.Previous}
		}
		nodes[def.Name] = node
		ordered = append(ordered, def.Name)
	}
	for _, id := range ordered {
		node := nodes[id]
		for _, depID := range node.Dependencies {
			dep, ok := nodes[depID]
			if !ok {
				return nil, fmt.Errorf("plan: previous segment %s referenced by %s not declared: %w", depID, node.ID, errs.ErrInvalidParameter)
			}
			dep.Dependents = append(dep.Dependents, node.ID)
		}
	}
	for _, node := range nodes {
		if len(node.Dependents) > 1 {
			sort.Strings(node.Dependents)
		}
	}
	r := &Resolver{nodes: nodes, orderedIDs: ordered}
	topo, err := r.sort()
	if err != nil {
		return nil, err
	}
	r.topo = topo
	return r, nil
}

// sort returns ids with every dependency before its dependents.
func (r *Resolver) sort() ([]string, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	marks := make(map[string]int, len(r.nodes))
	out := make([]string, 0, len(r.nodes))
	var visit func(id string, path []string) error
	visit = func(id string, path []string) error {
		switch marks[id] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("plan: segments loop through %v: %w", append(path, id), errs.ErrInvalidParameter)
		}
		marks[id] = visiting
		for _, dep := range r.nodes[id].Dependencies {
			if err := visit(dep, append(path, id)); err != nil {
				return err
			}
		}
		marks[id] = done
		out = append(out, id)
		return nil
	}
	for _, id := range r.orderedIDs {
		if err := visit(id, nil); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Nodes returns the nodes in declaration order.
func (r *Resolver) Nodes() []*Node {
	out := make([]*Node, 0, len(r.orderedIDs))
	for _, id := range r.orderedIDs {
		if node, ok := r.nodes[id]; ok {
			out = append(out, node)
		}
	}
	return out
}

// Node retrieves a segment node by name.
func (r *Resolver) Node(id string) (*Node, bool) {
	node, ok := r.nodes[id]
	return node, ok
}

// Refresh re-evaluates every segment against the metadata store. Callers
// should invoke Refresh before Ready or Queue so the snapshot reflects what
// is on disk.
func (r *Resolver) Refresh(store *metadata.Store) error {
	if store == nil {
		return fmt.Errorf("plan: metadata store is required")
	}
	for _, id := range r.topo {
		node := r.nodes[id]
		node.Err = nil
		node.BlockedBy = nil
		node.Metadata = nil
		node.Reason = ""
		r.check(store, node)
	}
	for _, id := range r.topo {
		node := r.nodes[id]
		if node.State == NodeStateComplete || node.State == NodeStateError {
			continue
		}
		blockers := r.blockers(node)
		if len(blockers) == 0 {
			node.State = NodeStateReady
		} else {
			node.State = NodeStateBlocked
			node.BlockedBy = blockers
		}
	}
	return nil
}

// check runs in dependency order so a node can compare itself with the
// build its previous segment has now.
func (r *Resolver) check(store *metadata.Store, node *Node) {
	meta, err := store.Read(node.ID)
	switch {
	case errors.Is(err, metadata.ErrNotFound):
		node.State = NodeStatePending
		node.Build = BuildStatusMissing
		node.Reason = "never built"
		return
	case err != nil:
		node.State = NodeStateError
		node.Build = BuildStatusError
		node.Err = err
		return
	}
	node.Metadata = &meta
	if meta.Fingerprint != segment.Fingerprint(node.Definition) {
		node.State = NodeStatePending
		node.Build = BuildStatusOutdated
		node.Reason = "definition changed"
		return
	}
	for _, depID := range node.Dependencies {
		dep := r.nodes[depID]
		if dep.State != NodeStateComplete {
			node.State = NodeStatePending
			node.Build = BuildStatusOutdated
			node.Reason = fmt.Sprintf("%s needs a build", depID)
			return
		}
		if dep.Metadata.BuildID != meta.PreviousBuildID {
			node.State = NodeStatePending
			node.Build = BuildStatusOutdated
			node.Reason = fmt.Sprintf("%s was rebuilt", depID)
			return
		}
	}
	node.State = NodeStateComplete
	node.Build = BuildStatusFresh
}

// Ready returns nodes that can build now because their previous segment is
// complete.
func (r *Resolver) Ready() []*Node {
	var ready []*Node
	for _, id := range r.orderedIDs {
		node := r.nodes[id]
		if node.State == NodeStateReady {
			ready = append(ready, node)
		}
	}
	return ready
}

// Queue returns segments that must build to satisfy the requested targets.
// If no targets are provided, every incomplete segment is considered.
// Previous segments are returned before the segments that continue them,
// and complete segments are skipped.
func (r *Resolver) Queue(targets ...string) ([]*Node, error) {
	if len(targets) == 0 {
		targets = append([]string{}, r.orderedIDs...)
	}
	visited := make(map[string]bool, len(targets))
	ordered := make([]*Node, 0, len(r.nodes))
	var visit func(string) error
	visit = func(id string) error {
		if visited[id] {
			return nil
		}
		node, ok := r.nodes[id]
		if !ok {
			return fmt.Errorf("plan: unknown segment %s: %w", id, errs.ErrInvalidParameter)
		}
		visited[id] = true
		for _, dep := range node.Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		if node.State != NodeStateComplete {
			ordered = append(ordered, node)
		}
		return nil
	}
	for _, id := range targets {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

func (r *Resolver) blockers(node *Node) []string {
	if len(node.Dependencies) == 0 {
		return nil
	}
	blockers := make([]string, 0, len(node.Dependencies))
	for _, depID := range node.Dependencies {
		dep, ok := r.nodes[depID]
		if !ok || dep.State != NodeStateComplete {
			blockers = append(blockers, depID)
		}
	}
	if len(blockers) == 0 {
		return nil
	}
	return blockers
}
