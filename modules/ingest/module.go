package ingest

import (
	"embed"

	"github.com/jackc/pgx/v5"

	catalogpersistence "github.com/agrovault/trialbase/modules/catalog/infrastructure/persistence"
	catalogservices "github.com/agrovault/trialbase/modules/catalog/services"
	"github.com/agrovault/trialbase/modules/ingest/domain/validation"
	"github.com/agrovault/trialbase/modules/ingest/infrastructure/persistence"
	"github.com/agrovault/trialbase/modules/ingest/infrastructure/storage"
	"github.com/agrovault/trialbase/modules/ingest/presentation/controllers"
	"github.com/agrovault/trialbase/modules/ingest/services"
	"github.com/agrovault/trialbase/pkg/application"
	"github.com/agrovault/trialbase/pkg/configuration"
	"github.com/agrovault/trialbase/pkg/excel"
	"github.com/agrovault/trialbase/pkg/outbox"
)

//go:embed infrastructure/persistence/schema/*.sql
var migrationFiles embed.FS

// OutboxTable is where commits enqueue their events. The relay picks it
// up through OUTBOX_RELAY_TABLES.
var OutboxTable = pgx.Identifier{"public", "upload_outbox"}

func NewModule() application.Module {
	return &Module{}
}

type Module struct{}

func (m *Module) Register(app application.Application) error {
	app.Migrations().RegisterSchema(&migrationFiles)

	conf := configuration.Use()

	dict, err := validation.LoadDictionary()
	if err != nil {
		return err
	}

	sessionRepo := persistence.NewUploadSessionRepository()
	observationRepo := persistence.NewObservationRepository()
	resolver := app.Service(catalogservices.ResolverService{}).(*catalogservices.ResolverService)

	committer := services.NewCommitService(services.CommitServiceConfig{
		Observations: observationRepo,
		Sites:        catalogpersistence.NewSiteRepository(),
		Species:      catalogpersistence.NewSpeciesRepository(),
		Citations:    catalogpersistence.NewCitationRepository(),
		Cultivars:    catalogpersistence.NewCultivarRepository(),
		Treatments:   catalogpersistence.NewTreatmentRepository(),
		Outbox:       outbox.NewPublisher(),
		OutboxTable:  OutboxTable,
		Dictionary:   dict,
	})

	wizard := services.NewWizardService(services.WizardServiceConfig{
		Sessions:     sessionRepo,
		Lookup:       resolver,
		Committer:    committer,
		Files:        storage.NewLocalFileStore(conf.Upload.Dir),
		Dictionary:   dict,
		HeaderPolicy: validation.HeaderPolicy(conf.Upload.UnknownHeaderPolicy),
		DateFormats:  []string{conf.Upload.DateFormat},
		Publisher:    app.EventPublisher(),
	})

	app.RegisterServices(
		committer,
		wizard,
		services.NewReportService(wizard, observationRepo, excel.NewExcelExporter(
			excel.DefaultExportOptions(),
			excel.DefaultStyleOptions(),
		)),
	)

	app.RegisterControllers(
		controllers.NewWizardController(app),
	)

	return nil
}

func (m *Module) Name() string {
	return "ingest"
}
