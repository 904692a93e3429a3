// Package registry seeds and maintains the catalog of monitored sources.
package registry

import (
	_ "embed"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/Dean-Rough/transferjuice-sub005/model"
	"github.com/Dean-Rough/transferjuice-sub005/reliability"
	"github.com/Dean-Rough/transferjuice-sub005/storage"
	Logger "github.com/Dean-Rough/transferjuice-sub005/utils/log"
)

//go:embed seeds.yaml
var seedsYaml []byte

type seedSource struct {
	Handle      string  `yaml:"handle"`
	DisplayName string  `yaml:"display_name"`
	Kind        string  `yaml:"kind"`
	FeedURL     string  `yaml:"feed_url"`
	Tier        int     `yaml:"tier"`
	Region      string  `yaml:"region"`
	Language    string  `yaml:"language"`
	Reliability float64 `yaml:"reliability"`
}

type seedFile struct {
	Sources []seedSource `yaml:"sources"`
}

// ParseSeeds decodes a seed catalog. Exposed for tests that need a custom
// catalog.
func ParseSeeds(raw []byte) ([]model.Source, error) {
	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, errors.Wrap(err, "fail to parse source seeds")
	}

	sources := make([]model.Source, 0, len(file.Sources))
	for _, seed := range file.Sources {
		if seed.Handle == "" {
			return nil, errors.New("source seed without handle")
		}
		kind := model.SourceKind(seed.Kind)
		if kind != model.SourceKindTwitter && kind != model.SourceKindFeed {
			return nil, errors.Errorf("source %s has unknown kind %q", seed.Handle, seed.Kind)
		}
		if kind == model.SourceKindFeed && seed.FeedURL == "" {
			return nil, errors.Errorf("feed source %s has no feed_url", seed.Handle)
		}
		sources = append(sources, model.Source{
			Id:          uuid.New().String(),
			Handle:      seed.Handle,
			DisplayName: seed.DisplayName,
			Kind:        kind,
			FeedURL:     seed.FeedURL,
			Tier:        seed.Tier,
			Region:      seed.Region,
			Language:    seed.Language,
			Reliability: seed.Reliability,
			Active:      true,
		})
	}
	return sources, nil
}

// Seed upserts the embedded catalog into the repository and primes the
// tracker with each source's current stored reliability. Safe to run on
// every startup: metadata is refreshed, learned reliability is kept.
func Seed(repo storage.Repository, tracker *reliability.Tracker) error {
	sources, err := ParseSeeds(seedsYaml)
	if err != nil {
		return err
	}

	for i := range sources {
		if err := repo.UpsertSource(&sources[i]); err != nil {
			return errors.Wrapf(err, "fail to seed source %s", sources[i].Handle)
		}
		stored, err := repo.GetSource(sources[i].Handle)
		if err != nil {
			return err
		}
		if stored != nil {
			tracker.Prime(stored.Handle, stored.Reliability)
		}
	}
	Logger.Log.Infoln("seeded source registry with", len(sources), "sources")
	return nil
}

// EnsureSource returns the stored source for a handle, auto-creating a
// tier-3 twitter source with the default reliability prior when the handle
// has never been seen. Keeps first-seen sources flowing without manual
// catalog edits.
func EnsureSource(repo storage.Repository, tracker *reliability.Tracker, handle string) (*model.Source, error) {
	source, err := repo.GetSource(handle)
	if err != nil {
		return nil, err
	}
	if source != nil {
		return source, nil
	}

	source = &model.Source{
		Id:          uuid.New().String(),
		Handle:      handle,
		DisplayName: handle,
		Kind:        model.SourceKindTwitter,
		Tier:        3,
		Reliability: reliability.DefaultScore,
		Active:      true,
	}
	if err := repo.UpsertSource(source); err != nil {
		return nil, errors.Wrapf(err, "fail to auto-create source %s", handle)
	}
	tracker.Prime(handle, reliability.DefaultScore)
	return repo.GetSource(handle)
}
