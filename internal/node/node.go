// Package node models the managed nodes jobs are dispatched to: their
// identity, health status, and load counters.
package node

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/atomic"
)

// Status is the health of a node.
type Status int

const (
	Offline Status = 0
	Online  Status = 1
)

func (s Status) Code() int {
	return int(s)
}

func (s Status) Label() string {
	if s == Online {
		return "online"
	}
	return "offline"
}

func (s Status) String() string {
	if s == Online {
		return "ONLINE"
	}
	return "OFFLINE"
}

// NoJob is the running job id of an idle node.
const NoJob = -1

// Identity holds the fixed attributes a node is discovered with.
type Identity struct {
	Hostname   string
	User       string
	Zoau       string
	Pyz        string
	Pythonpath string
	Volumes    []string
}

// Node is one execution target. The running-job slot is a lock-free
// compare-and-swap; every other mutable field is guarded by mu.
type Node struct {
	Identity

	running *atomic.Int64

	mu       sync.Mutex
	status   Status
	assigned int
	failed   map[int]struct{}
	balanced map[int]struct{}
}

// New creates an online, idle node.
func New(id Identity) *Node {
	return &Node{
		Identity: id,
		running:  atomic.NewInt64(NoJob),
		status:   Online,
		failed:   make(map[int]struct{}),
		balanced: make(map[int]struct{}),
	}
}

func (n *Node) Status() Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.status
}

func (n *Node) Online() bool {
	return n.Status() == Online
}

// SetOffline marks the node offline. Offline is terminal for the
// lifetime of a node; there is no way back online.
func (n *Node) SetOffline() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = Offline
}

// TryAcquire claims the node's single execution slot for jobID. It
// succeeds when the node is idle or already running jobID.
func (n *Node) TryAcquire(jobID int) bool {
	if n.running.CompareAndSwap(NoJob, int64(jobID)) {
		return true
	}
	return n.running.Load() == int64(jobID)
}

// Release frees the slot if it is held by jobID.
func (n *Node) Release(jobID int) {
	n.running.CompareAndSwap(int64(jobID), NoJob)
}

// RunningJobID returns the id of the job holding the slot, or NoJob.
func (n *Node) RunningJobID() int {
	return int(n.running.Load())
}

// AddAssigned records that a job was routed to this node.
func (n *Node) AddAssigned() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.assigned++
}

func (n *Node) AssignedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.assigned
}

// AddFailedJob records that jobID failed on this node. Repeated failures of
// the same job count once.
func (n *Node) AddFailedJob(jobID int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed[jobID] = struct{}{}
}

func (n *Node) FailedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.failed)
}

// AddBalancedJob records that jobID was moved off this node.
func (n *Node) AddBalancedJob(jobID int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.balanced[jobID] = struct{}{}
}

func (n *Node) BalancedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.balanced)
}

// SetOfflineIfExceeded takes the node offline once more than maxnode jobs
// have been balanced away from it. It reports whether the node is offline.
func (n *Node) SetOfflineIfExceeded(maxnode int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.balanced) > maxnode {
		n.status = Offline
	}
	return n.status == Offline
}

type inventory struct {
	Host       string          `json:"host"`
	User       string          `json:"user"`
	Zoau       string          `json:"zoau"`
	Pyz        string          `json:"pyz"`
	Pythonpath string          `json:"pythonpath"`
	ExtraArgs  inventoryExtras `json:"extra_args"`
}

type inventoryExtras struct {
	Volumes []string `json:"volumes"`
}

// Inventory renders the node as the raw inventory JSON passed to the test
// runner.
func (n *Node) Inventory() string {
	volumes := n.Volumes
	if volumes == nil {
		volumes = []string{}
	}
	b, err := json.Marshal(inventory{
		Host:       n.Hostname,
		User:       n.User,
		Zoau:       n.Zoau,
		Pyz:        n.Pyz,
		Pythonpath: n.Pythonpath,
		ExtraArgs:  inventoryExtras{Volumes: volumes},
	})
	if err != nil {
		// Only strings are marshaled.
		panic(err)
	}
	return string(b)
}

func (n *Node) String() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return fmt.Sprintf("%s(status=%s, assigned=%d, failed=%d, balanced=%d)",
		n.Hostname, n.status.Label(), n.assigned, len(n.failed), len(n.balanced))
}
