package references

import (
	"context"
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"aura/internal/logging"
)

//go:embed seed.yaml
var seedYAML []byte

// SeedData maps a global kind name to its default entries.
type SeedData map[string][]string

func DefaultSeed() (SeedData, error) {
	var data SeedData
	if err := yaml.Unmarshal(seedYAML, &data); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return data, nil
}

// Seed resolves every entry, so running it again creates nothing.
// It returns the number of rows created.
func Seed(ctx context.Context, r *Resolver, data SeedData) (int, error) {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	created := 0
	for _, name := range names {
		k, ok := Lookup(name)
		if !ok || k.Scope != Global {
			return created, fmt.Errorf("seed: %q is not a global kind", name)
		}
		for _, entry := range data[name] {
			res, err := r.Resolve(ctx, k, "", entry)
			if err != nil {
				return created, fmt.Errorf("seed %s %q: %w", name, entry, err)
			}
			if res.Created {
				created++
			}
		}
	}
	logging.Ctx(ctx).Info().Int("created", created).Msg("reference seed applied")
	return created, nil
}
