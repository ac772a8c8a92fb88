package discovery

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/zosci/ce/internal/errors"
	"github.com/zosci/ce/internal/logger"
	"github.com/zosci/ce/internal/node"
)

// DefaultProbeConcurrency caps how many candidates are probed at once.
const DefaultProbeConcurrency = 8

// NodeOptions describe the nodes to discover. Every discovered node shares
// the same identity apart from its hostname.
type NodeOptions struct {
	User       string
	Zoau       string
	Pyz        string
	Pythonpath string
	Volumes    []string

	// Hostnames skips the Lister when non-empty.
	Hostnames []string

	Concurrency int
	Log         logger.Logger
}

// GetNodes probes every candidate and returns a registry of the ones that
// answered, all online. Candidates come from opts.Hostnames or, when that
// is empty, from lister. An empty result is not an error here.
func GetNodes(ctx context.Context, opts NodeOptions, lister Lister, prober Prober) (*node.Registry, error) {
	log := opts.Log
	if log == nil {
		log = logger.Default()
	}

	candidates := opts.Hostnames
	if len(candidates) == 0 {
		if lister == nil {
			return nil, errors.New(errors.ErrDiscovery,
				"No managed nodes to probe",
				"Pass --hostnames or configure a discovery command.")
		}
		listed, err := lister.List(ctx)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrDiscovery,
				"Couldn't list candidate managed nodes",
				"Check the discovery command, or pass --hostnames explicitly.")
		}
		candidates = listed
	}
	candidates = dedupe(candidates)

	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultProbeConcurrency
	}

	alive := make([]bool, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, host := range candidates {
		i, host := i, host
		g.Go(func() error {
			if err := prober.Probe(gctx, host); err != nil {
				log.Debug("dropping %s: %v", host, err)
				return nil
			}
			alive[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	nodes := node.NewRegistry()
	for i, host := range candidates {
		if !alive[i] {
			continue
		}
		nodes.Add(node.New(node.Identity{
			Hostname:   host,
			User:       opts.User,
			Zoau:       opts.Zoau,
			Pyz:        opts.Pyz,
			Pythonpath: opts.Pythonpath,
			Volumes:    opts.Volumes,
		}))
	}
	log.Debug("%d of %d candidate nodes online", nodes.Len(), len(candidates))
	return nodes, nil
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
