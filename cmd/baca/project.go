package main

import (
	"path/filepath"
	"sort"

	"github.com/kingrea/baca/internal/command"
	"github.com/kingrea/baca/internal/config"
	"github.com/kingrea/baca/internal/logbook"
	"github.com/kingrea/baca/internal/metadata"
	"github.com/kingrea/baca/internal/plan"
	"github.com/kingrea/baca/internal/segment"
)

func newStore(cfg *config.Config) *metadata.Store {
	return metadata.NewStore(cfg.MetadataDir())
}

// newMaker wires a segment maker to the project's config, journal and
// metadata store.
func newMaker(cfg *config.Config) (*segment.Maker, *logbook.Logbook, error) {
	lb, err := logbook.New(filepath.Join(cfg.LogsDir(), logbook.DefaultName))
	if err != nil {
		return nil, nil, err
	}
	opts := []segment.Option{
		segment.WithLogbook(lb),
		segment.WithDefaults(segment.Defaults{
			MinimumDuration:        cfg.MinimumDuration(),
			Multiplier:             cfg.Multiplier(),
			FermataMeasureDuration: cfg.FermataMeasureDuration(),
		}),
		segment.WithStore(newStore(cfg)),
	}
	return segment.NewMaker(command.DefaultRegistry(cfg.Parts()), opts...), lb, nil
}

// loadPlan reads every segment definition and checks it against the
// metadata store. Unreadable definitions fail the whole plan.
func loadPlan(cfg *config.Config) (*plan.Resolver, error) {
	defs, err := segment.LoadDir(cfg.SegmentsDir())
	if err != nil {
		return nil, err
	}
	resolver, err := plan.New(defs)
	if err != nil {
		return nil, err
	}
	if err := resolver.Refresh(newStore(cfg)); err != nil {
		return nil, err
	}
	return resolver, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
