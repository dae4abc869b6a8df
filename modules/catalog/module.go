package catalog

import (
	"embed"

	"github.com/agrovault/trialbase/modules/catalog/infrastructure/persistence"
	"github.com/agrovault/trialbase/modules/catalog/presentation/controllers"
	"github.com/agrovault/trialbase/modules/catalog/seed"
	"github.com/agrovault/trialbase/modules/catalog/services"
	"github.com/agrovault/trialbase/pkg/application"
)

//go:embed infrastructure/persistence/schema/*.sql
var migrationFiles embed.FS

func NewModule() application.Module {
	return &Module{}
}

type Module struct{}

func (m *Module) Register(app application.Application) error {
	app.Migrations().RegisterSchema(&migrationFiles)

	siteRepo := persistence.NewSiteRepository()
	speciesRepo := persistence.NewSpeciesRepository()
	citationRepo := persistence.NewCitationRepository()
	cultivarRepo := persistence.NewCultivarRepository()
	treatmentRepo := persistence.NewTreatmentRepository()

	app.RegisterServices(
		services.NewSiteService(siteRepo, app.EventPublisher()),
		services.NewSpeciesService(speciesRepo, app.EventPublisher()),
		services.NewCitationService(citationRepo, app.EventPublisher()),
		services.NewCultivarService(cultivarRepo, app.EventPublisher()),
		services.NewTreatmentService(treatmentRepo, app.EventPublisher()),
		services.NewResolverService(siteRepo, speciesRepo, citationRepo, cultivarRepo, treatmentRepo),
	)

	app.RegisterControllers(
		controllers.NewCatalogController(app),
	)

	app.RegisterSeedFuncs(seed.CatalogSeedFunc())

	return nil
}

func (m *Module) Name() string {
	return "catalog"
}
