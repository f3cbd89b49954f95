package router

import (
	"fmt"
	"strings"

	"rebook-service/internal/usecase"
	"rebook-service/pkg/logger"
)

// ProviderRouter routes webhook payloads to the adapter of their survey provider
type ProviderRouter struct {
	adapters []usecase.PayloadAdapter
	logger   logger.Logger
}

// NewProviderRouter creates a new provider router
func NewProviderRouter(logger logger.Logger) *ProviderRouter {
	return &ProviderRouter{
		adapters: make([]usecase.PayloadAdapter, 0),
		logger:   logger,
	}
}

// Register registers an adapter
func (r *ProviderRouter) Register(adapter usecase.PayloadAdapter) {
	r.adapters = append(r.adapters, adapter)
	r.logger.Info("Registered payload adapter", "adapter", fmt.Sprintf("%T", adapter))
}

// GetAdapter returns the adapter for a provider name, case-insensitively
func (r *ProviderRouter) GetAdapter(provider string) usecase.PayloadAdapter {
	provider = strings.ToLower(strings.TrimSpace(provider))
	for _, adapter := range r.adapters {
		if adapter.CanHandle(provider) {
			return adapter
		}
	}
	return nil
}
