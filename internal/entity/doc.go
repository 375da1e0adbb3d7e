// Package entity resolves local bus entities to their cloud identities.
//
// An entity is a device or service addressed on the local bus by a
// four-segment topic identifier ("device/main//", "device/child1//",
// "device/main/service/collectd") and in the cloud by an external id.
//
// # Snapshots
//
// Operation routines never touch the Registry. The converter takes a
// Snapshot once per incoming message and hands that value to the routine,
// so registration traffic can mutate the registry while operations run.
//
// # Auto-registration
//
// With auto-registration enabled, an unknown child device or service is
// registered on first sight and persisted through the Repository. Child
// external ids are derived from the main device id:
//
//	device/child1//            -> <main>:device:child1
//	device/main/service/agent  -> <main>:device:main:service:agent
//
// The registration record for the cloud is returned alongside the snapshot
// and must be published before any status record of the new entity.
package entity
