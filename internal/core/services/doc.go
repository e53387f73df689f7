// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The embedding pipeline and query orchestrator hold no state between
// calls; the document store is the only shared resource.
package services
