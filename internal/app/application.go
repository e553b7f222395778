package app

import (
	"context"
	"fmt"

	"github.com/plaza-social/plaza/internal/app/services/accounts"
	"github.com/plaza-social/plaza/internal/app/services/messages"
	"github.com/plaza-social/plaza/internal/app/storage"
	"github.com/plaza-social/plaza/internal/app/storage/memory"
	"github.com/plaza-social/plaza/internal/app/system"
	"github.com/plaza-social/plaza/pkg/logger"
)

// Stores encapsulates persistence dependencies. A nil gateway defaults to
// the in-memory implementation.
type Stores struct {
	Gateway storage.Gateway
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger
	health  *system.HealthReporter

	Accounts *accounts.Service
	Messages *messages.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if stores.Gateway == nil {
		stores.Gateway = memory.New()
	}

	manager := system.NewManager()
	for _, name := range []string{"accounts", "messages"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	return &Application{
		manager:  manager,
		log:      log,
		health:   system.NewHealthReporter(),
		Accounts: accounts.New(stores.Gateway, log),
		Messages: messages.New(stores.Gateway, log),
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// Health reports a snapshot of process health.
func (a *Application) Health() system.Health {
	return a.health.Snapshot()
}
