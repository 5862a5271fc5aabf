// Package app is the composition layer of the exchange.
//
// It builds the ledger, royalty registry, asset registry, trade config and
// exchange engine, wires them to the event journal, and bootstraps them from
// configuration. Business rules live in internal/app/services; this package
// only composes.
//
//	internal/app/
//	├── application.go   # wiring and lifecycle
//	├── domain/          # plain records: chain, asset, market
//	├── events/          # event records, emitter, in-memory journal
//	├── httpapi/         # read-only ops API
//	├── metrics/         # prometheus collectors
//	├── services/        # registry, market, tradeconfig, royalty, ledger, value, access
//	├── storage/         # EventLog contract, memory, postgres and redis sinks
//	├── system/          # Service interface and lifecycle manager
//	└── txn/             # compensation journal
//
// The dependency flow is cmd/exchanged -> internal/app -> internal/app/services
// -> internal/app/domain.
package app
