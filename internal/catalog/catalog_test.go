package catalog

import (
	"sort"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/playperu/geohunt/internal/geo"
)

const tinyDataset = `
id: T
version: "1"
name: Tiny
challenges:
  - id: 1
    kind: riddle
    title: Second
    description: riddle text
    target: {lat: 1, lng: 1}
    radius_meters: 25
    points: 20
  - id: 0
    kind: picture
    title: First
    description: find it
    image: /img/a.jpg
    target: {lat: 0, lng: 0}
    radius_meters: 50
    points: 10
`

func TestParseDataset(t *testing.T) {
	d, err := ParseDataset([]byte(tinyDataset))
	require.NoError(t, err)
	require.Equal(t, "T", d.ID())
	require.Equal(t, 2, d.Len())

	c, err := d.Challenge(0, "anyone")
	require.NoError(t, err)
	require.Equal(t, "First", c.Title)
	require.Equal(t, KindPicture, c.Kind)
	require.Equal(t, 50.0, c.RadiusMeters)

	_, err = d.Challenge(2, "anyone")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = d.Challenge(-1, "anyone")
	require.ErrorIs(t, err, ErrNotFound)

	p, r := d.Counts()
	require.Equal(t, 1, p)
	require.Equal(t, 1, r)
}

func TestParseDataset_Invalid(t *testing.T) {
	tests := map[string]string{
		"no id":        "challenges: [{id: 0, kind: picture, target: {lat: 0, lng: 0}, radius_meters: 1, points: 1}]",
		"empty":        "id: X\nchallenges: []",
		"gap":          "id: X\nchallenges: [{id: 1, kind: picture, target: {lat: 0, lng: 0}, radius_meters: 1, points: 1}]",
		"duplicate":    "id: X\nchallenges: [{id: 0, kind: picture, target: {lat: 0, lng: 0}, radius_meters: 1, points: 1}, {id: 0, kind: riddle, target: {lat: 0, lng: 0}, radius_meters: 1, points: 1}]",
		"bad kind":     "id: X\nchallenges: [{id: 0, kind: video, target: {lat: 0, lng: 0}, radius_meters: 1, points: 1}]",
		"zero radius":  "id: X\nchallenges: [{id: 0, kind: picture, target: {lat: 0, lng: 0}, radius_meters: 0, points: 1}]",
		"zero points":  "id: X\nchallenges: [{id: 0, kind: picture, target: {lat: 0, lng: 0}, radius_meters: 1, points: 0}]",
		"bad target":   "id: X\nchallenges: [{id: 0, kind: picture, target: {lat: 100, lng: 0}, radius_meters: 1, points: 1}]",
		"not yaml map": "- 1\n- 2",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDataset([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestChallengeContains(t *testing.T) {
	c := Challenge{Target: geo.Coordinate{Lat: 0, Lng: 0}, RadiusMeters: 50}
	d, ok := c.Contains(geo.Coordinate{Lat: 0, Lng: 0})
	require.True(t, ok)
	require.Zero(t, d)

	_, ok = c.Contains(geo.Coordinate{Lat: 0.001, Lng: 0})
	require.False(t, ok)
}

func TestPermutation(t *testing.T) {
	a := Permutation("v1/team-a", 40)
	require.Equal(t, a, Permutation("v1/team-a", 40))

	sorted := append([]int(nil), a...)
	sort.Ints(sorted)
	for i, v := range sorted {
		require.Equal(t, i, v)
	}

	require.NotEqual(t, a, Permutation("v1/team-b", 40))
	require.NotEqual(t, a, Permutation("v2/team-a", 40))
	require.Empty(t, Permutation("x", 0))
}

func TestShuffled(t *testing.T) {
	reg, err := LoadBuiltin(true)
	require.NoError(t, err)
	cat, err := reg.Get("A")
	require.NoError(t, err)

	seen := make(map[int]bool)
	for id := 0; id < cat.Len(); id++ {
		c, err := cat.Challenge(id, "team-1")
		require.NoError(t, err)
		require.Equal(t, id, c.ID)
		require.False(t, seen[c.SourceID], "source %d repeated", c.SourceID)
		seen[c.SourceID] = true

		again, err := cat.Challenge(id, "team-1")
		require.NoError(t, err)
		require.Equal(t, c, again)
	}
	require.Len(t, seen, cat.Len())

	_, err = cat.Challenge(cat.Len(), "team-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBuiltinRegistry(t *testing.T) {
	reg, err := LoadBuiltin(false)
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, reg.IDs())
	require.NoError(t, reg.Validate(Limits{Total: 40, Pictures: 20, Riddles: 20}))
	require.Error(t, reg.Validate(Limits{Total: 30, Pictures: 15, Riddles: 15}))

	c, err := reg.Get("A")
	require.NoError(t, err)
	first, err := c.Challenge(0, "team-1")
	require.NoError(t, err)
	require.InDelta(t, 12.924031356648811, first.Target.Lat, 1e-12)

	_, err = reg.Get("Z")
	require.ErrorIs(t, err, ErrUnknownDataset)
	_, _, err = reg.Counts("Z")
	require.ErrorIs(t, err, ErrUnknownDataset)
}

func TestLoad_DuplicateDataset(t *testing.T) {
	fsys := fstest.MapFS{
		"sets/one.yaml": {Data: []byte(tinyDataset)},
		"sets/two.yaml": {Data: []byte(tinyDataset)},
		"sets/README":   {Data: []byte("ignored")},
	}
	_, err := Load(fsys, "sets", false)
	require.ErrorContains(t, err, "duplicate dataset")
}
