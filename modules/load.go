package modules

import (
	"github.com/agrovault/trialbase/modules/catalog"
	"github.com/agrovault/trialbase/modules/ingest"
	"github.com/agrovault/trialbase/pkg/application"
)

// BuiltInModules lists every module in registration order. Catalog
// registers first so ingest can look up its resolver service.
var BuiltInModules = []application.Module{
	catalog.NewModule(),
	ingest.NewModule(),
}

func Load(app application.Application, externalModules ...application.Module) error {
	for _, module := range externalModules {
		if err := module.Register(app); err != nil {
			return err
		}
	}
	return nil
}
