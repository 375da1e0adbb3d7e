// Package cloudhttp talks to the cloud REST API through the local HTTP proxy.
//
// The mapper needs only a handful of calls: resolve a device's internal id
// from its external id, create an event to attach an uploaded file to, and
// update the legacy software list fragment of a managed object.
package cloudhttp
