// Package catalog lists songs and loads their notation from a directory or
// over HTTP.
package catalog

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a song, its notation or the index cannot be found.
var ErrNotFound = errors.New("song not found")

// Entry is one song in the index. BaseOctave and Tempo are optional; the
// catalog's defaults fill them in when a song is loaded.
type Entry struct {
	ID           string  `json:"id" yaml:"id"`
	Title        string  `json:"title" yaml:"title"`
	NotationPath string  `json:"notationPath" yaml:"notationPath"`
	BaseOctave   *int    `json:"baseOctave,omitempty" yaml:"baseOctave,omitempty"`
	Tempo        float64 `json:"tempo,omitempty" yaml:"tempo,omitempty"`
}

// Index is the catalog's index document.
type Index struct {
	Songs []Entry `json:"songs" yaml:"songs"`
}

// Song is an entry with its notation text loaded and defaults applied.
type Song struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Notation   string  `json:"notation"`
	BaseOctave int     `json:"baseOctave"`
	Tempo      float64 `json:"tempo"`
}

// Source fetches the raw index document and notation files.
type Source interface {
	ReadIndex(ctx context.Context) ([]byte, error)
	ReadNotation(ctx context.Context, path string) (string, error)
}

// Catalog resolves song IDs against a Source.
type Catalog struct {
	src        Source
	baseOctave int
	tempo      float64
}

// New returns a catalog reading from src. baseOctave and tempo are used for
// entries that leave them out.
func New(src Source, baseOctave int, tempo float64) *Catalog {
	return &Catalog{src: src, baseOctave: baseOctave, tempo: tempo}
}

// ParseIndex decodes an index as JSON, falling back to YAML.
func ParseIndex(data []byte) (Index, error) {
	var idx Index
	if errJSON := json.Unmarshal(data, &idx); errJSON != nil {
		idx = Index{}
		if errYAML := yaml.Unmarshal(data, &idx); errYAML != nil {
			return Index{}, errors.Errorf("parse index: %v / %v", errJSON, errYAML)
		}
	}
	return idx, nil
}

// List returns every entry in the index.
func (c *Catalog) List(ctx context.Context) ([]Entry, error) {
	data, err := c.src.ReadIndex(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read index")
	}
	idx, err := ParseIndex(data)
	if err != nil {
		return nil, err
	}
	return idx.Songs, nil
}

// Song loads the song with the given ID. Any failure to find or read it
// is ErrNotFound; only a done ctx is reported as itself.
func (c *Catalog) Song(ctx context.Context, id string) (Song, error) {
	entries, err := c.List(ctx)
	if err != nil {
		return Song{}, c.notFound(ctx, err, id)
	}
	for _, e := range entries {
		if e.ID != id {
			continue
		}
		text, err := c.src.ReadNotation(ctx, e.NotationPath)
		if err != nil {
			return Song{}, c.notFound(ctx, err, id)
		}
		s := Song{
			ID:         e.ID,
			Title:      e.Title,
			Notation:   strings.TrimSpace(text),
			BaseOctave: c.baseOctave,
			Tempo:      c.tempo,
		}
		if e.BaseOctave != nil {
			s.BaseOctave = *e.BaseOctave
		}
		if e.Tempo > 0 {
			s.Tempo = e.Tempo
		}
		log.WithFields(log.Fields{"id": s.ID, "title": s.Title}).Debug("song loaded")
		return s, nil
	}
	return Song{}, errors.Wrapf(ErrNotFound, "id %q", id)
}

func (c *Catalog) notFound(ctx context.Context, err error, id string) error {
	if ctx.Err() != nil {
		return errors.Wrapf(ctx.Err(), "song %q", id)
	}
	if errors.Is(err, ErrNotFound) {
		return errors.Wrapf(err, "song %q", id)
	}
	log.WithError(err).WithField("id", id).Warn("song unavailable")
	return errors.Wrapf(ErrNotFound, "song %q: %v", id, err)
}
