package job

import (
	"fmt"

	"github.com/zosci/ce/internal/registry"
)

// Registry holds the jobs of one play, keyed by id.
type Registry struct {
	*registry.Map[int, *Job]
}

func NewRegistry() *Registry {
	return &Registry{Map: registry.New[int, *Job]()}
}

func (r *Registry) Add(j *Job) {
	r.Update(j.ID(), j)
}

func (r *Registry) Lookup(id int) (*Job, error) {
	j, ok, err := r.Get(id, registry.DefaultGetTimeout)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("job %d is not registered", id)
	}
	return j, nil
}

// Jobs returns all jobs in id order.
func (r *Registry) Jobs() []*Job {
	return registry.SortedValues(r.Map)
}

// Pending returns the ids of jobs that still need to run: not successful
// and still within the failure budget.
func (r *Registry) Pending(maxjob int) []int {
	var ids []int
	for _, j := range r.Jobs() {
		if j.Successful() || j.Exceeded(maxjob) {
			continue
		}
		ids = append(ids, j.ID())
	}
	return ids
}
