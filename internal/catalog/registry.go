package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
)

//go:embed datasets/*.yaml
var builtin embed.FS

// Limits are the expected shape of every dataset.
type Limits struct {
	Total    int
	Pictures int
	Riddles  int
}

// Registry maps dataset ids to catalogs.
type Registry struct {
	datasets map[string]*Dataset
	catalogs map[string]Catalog
}

// NewRegistry registers the datasets. When shuffle is set every team sees
// its own ordering of each dataset.
func NewRegistry(shuffle bool, datasets ...*Dataset) (*Registry, error) {
	r := &Registry{
		datasets: make(map[string]*Dataset, len(datasets)),
		catalogs: make(map[string]Catalog, len(datasets)),
	}
	for _, d := range datasets {
		if _, dup := r.datasets[d.ID()]; dup {
			return nil, fmt.Errorf("duplicate dataset %q", d.ID())
		}
		r.datasets[d.ID()] = d
		if shuffle {
			r.catalogs[d.ID()] = NewShuffled(d)
		} else {
			r.catalogs[d.ID()] = d
		}
	}
	return r, nil
}

// LoadBuiltin parses the datasets embedded in the binary.
func LoadBuiltin(shuffle bool) (*Registry, error) {
	return Load(builtin, "datasets", shuffle)
}

// Load parses every *.yaml file in dir of fsys.
func Load(fsys fs.FS, dir string, shuffle bool) (*Registry, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read datasets: %w", err)
	}

	var datasets []*Dataset
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		d, err := ParseDataset(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		datasets = append(datasets, d)
	}
	return NewRegistry(shuffle, datasets...)
}

func (r *Registry) Get(id string) (Catalog, error) {
	c, ok := r.catalogs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataset, id)
	}
	return c, nil
}

// IDs returns the registered dataset ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.catalogs))
	for id := range r.catalogs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Counts returns the picture and riddle counts of a dataset.
func (r *Registry) Counts(id string) (pictures, riddles int, err error) {
	d, ok := r.datasets[id]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownDataset, id)
	}
	pictures, riddles = d.Counts()
	return pictures, riddles, nil
}

// Validate checks every dataset against the configured limits.
func (r *Registry) Validate(l Limits) error {
	for _, id := range r.IDs() {
		d := r.datasets[id]
		if d.Len() != l.Total {
			return fmt.Errorf("dataset %s has %d challenges, want %d", id, d.Len(), l.Total)
		}
		p, q := d.Counts()
		if p != l.Pictures || q != l.Riddles {
			return fmt.Errorf("dataset %s has %d pictures and %d riddles, want %d and %d",
				id, p, q, l.Pictures, l.Riddles)
		}
	}
	return nil
}
