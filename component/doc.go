// Package component defines lifecycle-managed services owned by a host.
//
// A host starts its components after the container is built and before the
// application runs, and stops them in reverse order when the host closes.
//
// # Interfaces
//
//   - Component: Core lifecycle interface (Name/Start/Stop/Health)
//   - Registry: Ordered start, reverse-order stop, aggregated health
//   - Background: Runs a function for the lifetime of the host
package component
