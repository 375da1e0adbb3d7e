// Package mapper converts operation traffic on the local bus into cloud
// records and dispatches operation routines.
//
// The Converter subscribes to every command and command metadata topic of
// the local scheme:
//
//	te/<entity topic id>/cmd/<operation>            capability metadata
//	te/<entity topic id>/cmd/<operation>/<cmd id>   command state
//
// Metadata messages register the matching cloud capability and publish its
// value list. Command messages are resolved to an entity snapshot and handed
// to the operations.Handler, which runs them concurrently.
//
// Every failure is wrapped with the topic it was raised for and logged;
// the converter keeps processing the next message.
package mapper
