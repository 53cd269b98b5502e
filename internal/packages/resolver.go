package packages

import (
	"go.uber.org/zap"

	"github.com/temirov/ghcr-cleaner/internal/ghcr"
)

// ServiceSettings carries the per-invocation values needed to reach the registry.
type ServiceSettings struct {
	Token     string
	BaseURL   string
	UserAgent string
	PageSize  int
}

// DefaultCleanupServiceResolver builds cleanup services backed by the GHCR REST client.
type DefaultCleanupServiceResolver struct {
	HTTPClient ghcr.HTTPClient
}

// Resolve creates a cleanup executor talking to the registry described by settings.
func (resolver *DefaultCleanupServiceResolver) Resolve(logger *zap.Logger, settings ServiceSettings) (CleanupExecutor, error) {
	clientConfiguration := ghcr.ClientConfiguration{
		BaseURL:   settings.BaseURL,
		Token:     settings.Token,
		UserAgent: settings.UserAgent,
		PageSize:  settings.PageSize,
	}

	registryClient, clientCreationError := ghcr.NewPackageVersionClient(logger, resolver.HTTPClient, clientConfiguration)
	if clientCreationError != nil {
		return nil, clientCreationError
	}

	cleanupService, cleanupServiceError := NewCleanupService(logger, registryClient)
	if cleanupServiceError != nil {
		return nil, cleanupServiceError
	}

	return cleanupService, nil
}
