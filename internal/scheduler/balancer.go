package scheduler

import (
	"github.com/zosci/ce/internal/job"
	"github.com/zosci/ce/internal/logger"
	"github.com/zosci/ce/internal/node"
)

// Balancer moves jobs away from failing or busy nodes and takes nodes
// offline once too many jobs have been moved off them.
type Balancer struct {
	nodes   *node.Registry
	maxNode int
	log     logger.Logger
}

func NewBalancer(nodes *node.Registry, maxNode int, log logger.Logger) *Balancer {
	if log == nil {
		log = logger.Default()
	}
	return &Balancer{nodes: nodes, maxNode: maxNode, log: log}
}

// Reassign moves j to the online node it has not tried yet with the fewest
// assigned jobs, preferring the lower hostname on ties. When every online
// node is already in the job's history the job stays put and Reassign
// returns false.
func (b *Balancer) Reassign(j *job.Job) (string, bool) {
	tried := make(map[string]struct{})
	for _, h := range j.Hostnames() {
		tried[h] = struct{}{}
	}

	best := leastAssigned(b.nodes.OnlineNodes(), tried)
	if best == nil {
		b.log.Debug("job %d has tried every online node, keeping %s", j.ID(), j.Hostname())
		return j.Hostname(), false
	}
	return b.move(j, best), true
}

// Evacuate moves j off a node that went offline. Untried nodes come first;
// failing that the job goes back to the least loaded online node, since an
// offline node never runs it again. It returns false only when no node is
// online.
func (b *Balancer) Evacuate(j *job.Job) (string, bool) {
	if host, ok := b.Reassign(j); ok {
		return host, true
	}
	best := leastAssigned(b.nodes.OnlineNodes(), nil)
	if best == nil {
		return j.Hostname(), false
	}
	return b.move(j, best), true
}

func (b *Balancer) move(j *job.Job, to *node.Node) string {
	j.Assign(to.Hostname)
	to.AddAssigned()
	return to.Hostname
}

// leastAssigned picks the node with the fewest assigned jobs outside skip.
// nodes is sorted by hostname, so the first minimum wins ties.
func leastAssigned(nodes []*node.Node, skip map[string]struct{}) *node.Node {
	var best *node.Node
	bestCount := 0
	for _, n := range nodes {
		if _, ok := skip[n.Hostname]; ok {
			continue
		}
		count := n.AssignedCount()
		if best == nil || count < bestCount {
			best, bestCount = n, count
		}
	}
	return best
}

// MarkBalanced records that jobID was moved off n and applies the offline
// rule. It reports whether this call took the node offline.
func (b *Balancer) MarkBalanced(n *node.Node, jobID int) bool {
	wasOnline := n.Online()
	n.AddBalancedJob(jobID)
	if n.SetOfflineIfExceeded(b.maxNode) && wasOnline {
		b.log.Warn("managed node %s is offline after %d balanced jobs", n.Hostname, n.BalancedCount())
		return true
	}
	return false
}
