package usage

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"golang.org/x/sync/errgroup"

	"github.com/solacedev/component-docs-mcp/app/github"
)

const defaultMaxConcurrency = 8

// RemoteSource is the subset of the contents API the aggregator needs
type RemoteSource interface {
	ListDir(ctx context.Context, path, ref string) ([]github.DirEntry, bool, error)
	GetContent(ctx context.Context, path, ref string) ([]byte, error)
}

// AggregatorParams contains parameters for creating an aggregator
type AggregatorParams struct {
	UsageRoot      string // repository path holding one directory per application
	Ref            string // data branch with the usage reports
	MaxConcurrency int
}

// Aggregator collects component usage recorded per application in a repository
type Aggregator struct {
	source         RemoteSource
	usageRoot      string
	ref            string
	maxConcurrency int
}

// NewAggregator creates an aggregator reading through source
func NewAggregator(source RemoteSource, params AggregatorParams) *Aggregator {
	a := &Aggregator{
		source:         source,
		usageRoot:      params.UsageRoot,
		ref:            params.Ref,
		maxConcurrency: params.MaxConcurrency,
	}
	if a.maxConcurrency <= 0 {
		a.maxConcurrency = defaultMaxConcurrency
	}
	return a
}

// Applications lists the application directories of the usage root
func (a *Aggregator) Applications(ctx context.Context) ([]string, error) {
	entries, ok, err := a.source.ListDir(ctx, a.usageRoot, a.ref)
	if err != nil {
		if github.IsNotFound(err) {
			return []string{}, nil
		}
		return nil, err // nolint:wrapcheck // remote error carries method and url
	}
	if !ok {
		return []string{}, nil
	}

	dirs := github.Dirs(entries)
	res := make([]string, len(dirs))
	for i, d := range dirs {
		res[i] = d.Name
	}
	return res, nil
}

// UsageForComponent returns the instances of a component across all applications,
// in application listing order. An application without a file for the component
// contributes nothing; other per-application failures are logged and skipped,
// except authorization failures which fail the call.
func (a *Aggregator) UsageForComponent(ctx context.Context, component string) ([]Instance, error) {
	if err := checkComponent(component); err != nil {
		return nil, err
	}

	apps, err := a.Applications(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}

	type result struct {
		instances []Instance
		err       error
	}
	results := make([]result, len(apps))

	var g errgroup.Group
	g.SetLimit(a.maxConcurrency)
	for i, app := range apps {
		g.Go(func() error {
			instances, err := a.appInstances(ctx, app, component)
			results[i] = result{instances: instances, err: err}
			return nil
		})
	}
	_ = g.Wait() // tasks never return errors, failures are kept per application

	res := []Instance{}
	for i, app := range apps {
		if github.IsUnauthorized(results[i].err) {
			return nil, fmt.Errorf("failed to read usage of %s in %s: %w", component, app, results[i].err)
		}
		if results[i].err != nil {
			slog.Warn("failed to read component usage", "application", app, "component", component, "error", results[i].err)
			continue
		}
		res = append(res, results[i].instances...)
	}
	return res, nil
}

// appInstances reads one application's instances file, a missing file is zero instances
func (a *Aggregator) appInstances(ctx context.Context, app, component string) ([]Instance, error) {
	p := path.Join(a.usageRoot, app, component, component+".json")
	data, err := a.source.GetContent(ctx, p, a.ref)
	if err != nil {
		if github.IsNotFound(err) {
			return nil, nil
		}
		return nil, err // nolint:wrapcheck // remote error carries method and url
	}
	instances, err := DecodeAll(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return instances, nil
}
