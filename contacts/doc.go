// Package contacts implements the contact fetching pipeline: resolve
// the caller's Google access token, pull connections from the People
// API, normalize them, and cache the result per user.
//
// Snapshots are namespaced by UserID and expire after a fixed TTL.
//
// Architecture:
//   - Cache: snapshot storage (ristretto in-memory tier, sqlite durable tier)
//   - Service: orchestrates cache lookup, upstream fetch, and fallback
//   - Publisher: optional hook that fans refresh events out to the sync hub
//
// Failure behavior follows the original deployment: when the People API
// is down, an expired snapshot is better than an empty contact list, so
// the service falls back to stale data when the durable tier has any.
package contacts
