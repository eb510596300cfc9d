// Package schema holds the types and constants shared by the cache core, the CLI and persistence.
package schema

import "time"

// Custom string types for type safety.
type (
	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for snapshot storage.
	DatabaseBackend string

	// SubscriptionState represents where a subscription is in its fetch lifecycle.
	SubscriptionState string

	// Resource names a dashboard query served by the simulated backend.
	Resource string
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All snapshot backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// Subscription states.
const (
	IdleState     SubscriptionState = "idle"
	LoadingState  SubscriptionState = "loading"
	ReadyState    SubscriptionState = "ready"
	ErrorState    SubscriptionState = "error"
	TerminalState SubscriptionState = "terminal" // absorbing
)

// Dashboard resources.
const (
	NetworkStats Resource = "networkStats"
	Members      Resource = "members"
	Groups       Resource = "groups"
	Cultes       Resource = "cultes"
	Testimonies  Resource = "testimonies"
)

// DefaultAggregateTTL is the freshness window for dashboard aggregates.
const DefaultAggregateTTL = 2 * time.Minute

// AllResources returns every resource in display order.
var AllResources = []Resource{NetworkStats, Members, Groups, Cultes, Testimonies}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid snapshot backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// ValidResources lists all resources the simulated backend can serve.
var ValidResources = map[Resource]struct{}{
	NetworkStats: {},
	Members:      {},
	Groups:       {},
	Cultes:       {},
	Testimonies:  {},
}

// ResourceTTL returns the freshness window used for a resource.
// Aggregates churn quickly; member and group lists change less often.
func ResourceTTL(r Resource) time.Duration {
	switch r {
	case NetworkStats:
		return DefaultAggregateTTL
	case Members, Groups:
		return 5 * time.Minute
	case Cultes, Testimonies:
		return 10 * time.Minute
	default:
		return DefaultAggregateTTL
	}
}

// IsSettled reports whether the state no longer has a fetch in flight.
func (s SubscriptionState) IsSettled() bool {
	return s == ReadyState || s == ErrorState || s == TerminalState
}
