package main

import (
	"github.com/jogi47/pm-cli/internal/config"
	"github.com/jogi47/pm-cli/internal/plugin"
)

// buildProviders assembles the provider backends for this invocation.
// Concrete clients register here; the binary ships without any until their
// credentials plumbing lands.
//
// TODO: register the asana backend once its OAuth token flow is ported.
func buildProviders(env *config.Env) []plugin.Provider {
	return nil
}
