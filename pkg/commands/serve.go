package commands

import (
	"log"

	"github.com/agrovault/trialbase/internal/server"
	"github.com/agrovault/trialbase/pkg/application"
	"github.com/agrovault/trialbase/pkg/commands/common"
	"github.com/agrovault/trialbase/pkg/configuration"
)

// Serve assembles the application and blocks on the HTTP listener. The
// long-running production entrypoint is cmd/server, which also starts
// the outbox relay; this command is for local runs and smoke tests.
func Serve(mods ...application.Module) error {
	conf := configuration.Use()

	app, pool, err := common.NewApplicationWithDefaults(mods...)
	if err != nil {
		return err
	}
	defer pool.Close()

	serverInstance, err := server.Default(&server.DefaultOptions{
		Logger:        conf.Logger(),
		Configuration: conf,
		Application:   app,
		Pool:          pool,
	})
	if err != nil {
		return err
	}
	log.Printf("Listening on: %s\n", conf.Origin)
	return serverInstance.Start(conf.SocketAddress)
}
