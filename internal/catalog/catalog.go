// Package catalog provides the challenge datasets a game is played with.
//
// A Catalog resolves a challenge id for a given team. Ids are always dense
// in [0, Len()). The plain Dataset returns the same challenge for every
// team; Shuffled reorders the dataset per team and renumbers it.
package catalog

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/playperu/geohunt/internal/geo"
)

var (
	ErrNotFound       = errors.New("challenge not found")
	ErrUnknownDataset = errors.New("unknown dataset")
)

type Kind string

const (
	KindPicture Kind = "picture"
	KindRiddle  Kind = "riddle"
)

type Challenge struct {
	ID           int            `yaml:"id" json:"id"`
	Kind         Kind           `yaml:"kind" json:"kind"`
	Title        string         `yaml:"title" json:"title"`
	Description  string         `yaml:"description" json:"description"`
	Image        string         `yaml:"image,omitempty" json:"image,omitempty"`
	Place        string         `yaml:"place,omitempty" json:"place,omitempty"`
	Target       geo.Coordinate `yaml:"target" json:"target"`
	RadiusMeters float64        `yaml:"radius_meters" json:"radiusMeters"`
	Points       int            `yaml:"points" json:"points"`

	// SourceID is the id in the unshuffled dataset.
	SourceID int `yaml:"-" json:"sourceId"`
}

// Contains reports whether c lies within the challenge radius of the target.
func (ch Challenge) Contains(c geo.Coordinate) (float64, bool) {
	d := geo.DistanceMeters(c, ch.Target)
	return d, d <= ch.RadiusMeters
}

type Catalog interface {
	ID() string
	Version() string
	Name() string
	Len() int
	Challenge(id int, actorID string) (Challenge, error)
}

// Dataset is an immutable, YAML-defined list of challenges.
type Dataset struct {
	id         string
	version    string
	name       string
	challenges []Challenge
}

type datasetFile struct {
	ID         string      `yaml:"id"`
	Version    string      `yaml:"version"`
	Name       string      `yaml:"name"`
	Challenges []Challenge `yaml:"challenges"`
}

// ParseDataset decodes and validates a YAML dataset. Challenge ids must be
// exactly 0..n-1; they may appear in any order in the file.
func ParseDataset(data []byte) (*Dataset, error) {
	var f datasetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	if f.ID == "" {
		return nil, errors.New("dataset id is required")
	}
	if len(f.Challenges) == 0 {
		return nil, fmt.Errorf("dataset %s: no challenges", f.ID)
	}

	ordered := make([]Challenge, len(f.Challenges))
	seen := make([]bool, len(f.Challenges))
	for _, c := range f.Challenges {
		if c.ID < 0 || c.ID >= len(ordered) {
			return nil, fmt.Errorf("dataset %s: challenge id %d out of range", f.ID, c.ID)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("dataset %s: duplicate challenge id %d", f.ID, c.ID)
		}
		if c.Kind != KindPicture && c.Kind != KindRiddle {
			return nil, fmt.Errorf("dataset %s: challenge %d: unknown kind %q", f.ID, c.ID, c.Kind)
		}
		if c.RadiusMeters <= 0 {
			return nil, fmt.Errorf("dataset %s: challenge %d: radius must be positive", f.ID, c.ID)
		}
		if c.Points <= 0 {
			return nil, fmt.Errorf("dataset %s: challenge %d: points must be positive", f.ID, c.ID)
		}
		if !c.Target.Valid() {
			return nil, fmt.Errorf("dataset %s: challenge %d: invalid target", f.ID, c.ID)
		}
		c.SourceID = c.ID
		ordered[c.ID] = c
		seen[c.ID] = true
	}

	return &Dataset{id: f.ID, version: f.Version, name: f.Name, challenges: ordered}, nil
}

func (d *Dataset) ID() string      { return d.id }
func (d *Dataset) Version() string { return d.version }
func (d *Dataset) Name() string    { return d.name }
func (d *Dataset) Len() int        { return len(d.challenges) }

func (d *Dataset) Challenge(id int, _ string) (Challenge, error) {
	if id < 0 || id >= len(d.challenges) {
		return Challenge{}, fmt.Errorf("dataset %s id %d: %w", d.id, id, ErrNotFound)
	}
	return d.challenges[id], nil
}

// Counts returns the number of picture and riddle challenges.
func (d *Dataset) Counts() (pictures, riddles int) {
	for _, c := range d.challenges {
		switch c.Kind {
		case KindPicture:
			pictures++
		case KindRiddle:
			riddles++
		}
	}
	return pictures, riddles
}
