// Package app composes the application from its layers: domain models,
// storage gateways, rule-engine services, and the HTTP boundary.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── account/        # Account record
//	│   └── message/        # Message record
//	├── storage/            # Gateway contract and implementations
//	│   ├── interfaces.go   # AccountStore, MessageStore, Gateway
//	│   ├── memory/         # In-memory gateway for tests and prototyping
//	│   └── postgres/       # PostgreSQL gateway for production
//	├── services/           # Rule engines with closed failure sets
//	│   ├── accounts/       # Registration and login rules
//	│   └── messages/       # Posting and update rules
//	├── httpapi/            # REST boundary: routing, codecs, status mapping
//	├── system/             # Lifecycle manager and health reporting
//	└── metrics/            # Prometheus collectors and HTTP instrumentation
//
// Business rules live in services/; app wires them to a storage gateway and
// manages startup and shutdown. The HTTP layer translates rule-engine
// sentinel errors into status codes and never invents outcomes of its own.
package app
