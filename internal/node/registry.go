package node

import (
	"fmt"

	"github.com/zosci/ce/internal/registry"
)

// Registry holds the nodes of one play, keyed by hostname.
type Registry struct {
	*registry.Map[string, *Node]
}

func NewRegistry() *Registry {
	return &Registry{Map: registry.New[string, *Node]()}
}

func (r *Registry) Add(n *Node) {
	r.Update(n.Hostname, n)
}

// Lookup returns the node for hostname. A missing node is an error: every
// hostname a job carries came from this registry.
func (r *Registry) Lookup(hostname string) (*Node, error) {
	n, ok, err := r.Get(hostname, registry.DefaultGetTimeout)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("node %q is not registered", hostname)
	}
	return n, nil
}

// Hostnames returns all hostnames sorted.
func (r *Registry) Hostnames() []string {
	return registry.SortedKeys(r.Map)
}

// Nodes returns all nodes ordered by hostname.
func (r *Registry) Nodes() []*Node {
	return registry.SortedValues(r.Map)
}

// OnlineNodes returns the online nodes ordered by hostname.
func (r *Registry) OnlineNodes() []*Node {
	var out []*Node
	for _, n := range r.Nodes() {
		if n.Online() {
			out = append(out, n)
		}
	}
	return out
}

func (r *Registry) OnlineHostnames() []string {
	var out []string
	for _, n := range r.OnlineNodes() {
		out = append(out, n.Hostname)
	}
	return out
}

func (r *Registry) OnlineCount() int {
	return len(r.OnlineNodes())
}

func (r *Registry) OfflineCount() int {
	count := 0
	for _, n := range r.Nodes() {
		if !n.Online() {
			count++
		}
	}
	return count
}
