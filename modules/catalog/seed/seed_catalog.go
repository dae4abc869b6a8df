// Package seed loads the baseline catalog fixtures so a fresh install
// can resolve common references without manual data entry.
package seed

import (
	"context"
	"embed"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/agrovault/trialbase/modules/catalog/domain/entities/cultivar"
	"github.com/agrovault/trialbase/modules/catalog/domain/entities/site"
	"github.com/agrovault/trialbase/modules/catalog/domain/entities/species"
	"github.com/agrovault/trialbase/modules/catalog/domain/entities/treatment"
	"github.com/agrovault/trialbase/modules/catalog/infrastructure/persistence"
	"github.com/agrovault/trialbase/pkg/application"
)

//go:embed fixtures/catalog.yml
var fixtureFiles embed.FS

type fixtures struct {
	Sites []struct {
		Name      string `yaml:"name"`
		City      string `yaml:"city"`
		State     string `yaml:"state"`
		Country   string `yaml:"country"`
		Latitude  string `yaml:"latitude"`
		Longitude string `yaml:"longitude"`
	} `yaml:"sites"`
	Species []struct {
		ScientificName string   `yaml:"scientific_name"`
		Genus          string   `yaml:"genus"`
		CommonName     string   `yaml:"common_name"`
		Cultivars      []string `yaml:"cultivars"`
	} `yaml:"species"`
	Treatments []struct {
		Name       string `yaml:"name"`
		Definition string `yaml:"definition"`
		Control    bool   `yaml:"control"`
	} `yaml:"treatments"`
}

func CatalogSeedFunc() application.SeedFunc {
	return seedCatalog
}

func seedCatalog(ctx context.Context, app application.Application) error {
	raw, err := fixtureFiles.ReadFile("fixtures/catalog.yml")
	if err != nil {
		return errors.Wrap(err, "failed to read catalog fixtures")
	}
	var data fixtures
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return errors.Wrap(err, "failed to parse catalog fixtures")
	}

	if err := seedSites(ctx, data); err != nil {
		return err
	}
	if err := seedSpecies(ctx, data); err != nil {
		return err
	}
	return seedTreatments(ctx, data)
}

func seedSites(ctx context.Context, data fixtures) error {
	repo := persistence.NewSiteRepository()
	for _, f := range data.Sites {
		opts := []site.Option{
			site.WithCity(f.City),
			site.WithState(f.State),
			site.WithCountry(f.Country),
		}
		if f.Latitude != "" && f.Longitude != "" {
			lat, err := decimal.NewFromString(f.Latitude)
			if err != nil {
				return errors.Wrapf(err, "site %q latitude", f.Name)
			}
			lon, err := decimal.NewFromString(f.Longitude)
			if err != nil {
				return errors.Wrapf(err, "site %q longitude", f.Name)
			}
			opts = append(opts, site.WithCoordinates(lat, lon))
		}
		if _, err := repo.GetOrCreate(ctx, site.New(f.Name, opts...)); err != nil {
			return errors.Wrapf(err, "failed to seed site %q", f.Name)
		}
	}
	return nil
}

func seedSpecies(ctx context.Context, data fixtures) error {
	speciesRepo := persistence.NewSpeciesRepository()
	cultivarRepo := persistence.NewCultivarRepository()
	for _, f := range data.Species {
		created, err := speciesRepo.GetOrCreate(ctx, species.New(
			f.ScientificName,
			species.WithGenus(f.Genus),
			species.WithCommonName(f.CommonName),
		))
		if err != nil {
			return errors.Wrapf(err, "failed to seed species %q", f.ScientificName)
		}
		for _, name := range f.Cultivars {
			if _, err := cultivarRepo.GetOrCreate(ctx, cultivar.New(created.ID(), name)); err != nil {
				return errors.Wrapf(err, "failed to seed cultivar %q", name)
			}
		}
	}
	return nil
}

func seedTreatments(ctx context.Context, data fixtures) error {
	repo := persistence.NewTreatmentRepository()
	for _, f := range data.Treatments {
		t := treatment.New(f.Name, treatment.WithDefinition(f.Definition), treatment.WithControl(f.Control))
		if _, err := repo.GetOrCreate(ctx, t); err != nil {
			return errors.Wrapf(err, "failed to seed treatment %q", f.Name)
		}
	}
	return nil
}
