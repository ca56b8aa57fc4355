package main

import (
	"context"

	"github.com/JonMunkholm/maintetl/internal/config"
	"github.com/JonMunkholm/maintetl/internal/pipeline"
	"github.com/JonMunkholm/maintetl/internal/warehouse"
)

// app bundles the pipeline with the resources it owns.
type app struct {
	pipeline *pipeline.Pipeline
	metrics  *pipeline.Metrics
	close    func()
}

// newApp wires the pipeline from configuration. The warehouse pool is
// opened only when loading is enabled.
func newApp(ctx context.Context, c *config.Config) (*app, error) {
	a := &app{metrics: pipeline.NewMetrics(), close: func() {}}

	opts := []pipeline.Option{
		pipeline.WithMetrics(a.metrics),
	}
	if pusher := pipeline.NewPusher(c.Metrics); pusher != nil {
		opts = append(opts, pipeline.WithPusher(pusher))
	}

	if c.Warehouse.Enabled {
		pool, err := warehouse.Connect(ctx, c.Warehouse)
		if err != nil {
			return nil, err
		}
		a.close = pool.Close
		opts = append(opts, pipeline.WithLoader(warehouse.NewLoader(pool)))
	}

	p, err := pipeline.New(c.Pipeline, opts...)
	if err != nil {
		a.close()
		return nil, err
	}
	a.pipeline = p
	return a, nil
}
