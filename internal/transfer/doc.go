// Package transfer moves files between the local file transfer service,
// the cloud and the local filesystem on behalf of operation routines.
//
// Every transfer is keyed by the correlation id of the operation that asked
// for it, so logs of concurrent transfers can be told apart. The HTTP
// implementation bounds concurrent transfers with a weighted semaphore;
// callers block until a slot is free or their context ends.
package transfer
