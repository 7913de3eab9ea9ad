package app

import (
	"context"

	"streamgrab/internal/config"
	"streamgrab/internal/logger"
	"streamgrab/internal/model"
)

// ExecuteAuthLoginCommand validates every enabled provider's configured
// credential by calling its Login, the way zvuk-grabber's auth login
// drives a browser flow -- but since every provider here is configured
// with a pre-obtained credential (token, cookie, app id) rather than a
// username/password pair, "login" means confirming that credential
// still authenticates, not acquiring a new one.
func ExecuteAuthLoginCommand(ctx context.Context, cfg *config.Config) {
	env, err := Build(ctx, cfg)
	if err != nil {
		logger.Fatalf(ctx, "Failed to initialize providers: %v", err)

		return
	}

	defer func() {
		if closeErr := env.Close(); closeErr != nil {
			logger.WarnKV(ctx, "app: close env failed", "error", closeErr)
		}
	}()

	anyFailed := false

	for _, source := range config.AllSources {
		if !cfg.Enabled(source) {
			continue
		}

		client, clientErr := env.Providers.Get(model.Source(source))
		if clientErr != nil {
			continue
		}

		loginErr := env.RateLimits.WithProviderLimiter(ctx, string(source), func() error {
			return client.Login(ctx)
		})
		if loginErr != nil {
			logger.ErrorKV(ctx, "app: login failed", "source", source, "error", loginErr)

			anyFailed = true

			continue
		}

		logger.InfoKV(ctx, "app: credential is valid", "source", source)
	}

	if anyFailed {
		logger.Fatalf(ctx, "One or more providers failed to authenticate; check their configured credentials.")
	}
}
