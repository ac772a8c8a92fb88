package discovery

import (
	"context"

	"github.com/zosci/ce/internal/job"
	"github.com/zosci/ce/internal/node"
)

// Service bundles discovery settings so each play can rediscover nodes
// and rebuild its jobs the same way.
type Service struct {
	NodeOptions NodeOptions
	JobOptions  JobOptions
	Lister      Lister
	Prober      Prober
	Collector   Collector
}

func (s *Service) DiscoverNodes(ctx context.Context) (*node.Registry, error) {
	return GetNodes(ctx, s.NodeOptions, s.Lister, s.Prober)
}

func (s *Service) BuildJobs(ctx context.Context, nodes *node.Registry, replay []string) (*job.Registry, error) {
	return GetJobs(ctx, nodes, s.JobOptions, s.Collector, replay)
}
