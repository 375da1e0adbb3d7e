// Package capability keeps the on-disk record of which cloud operations each
// device supports and produces the announcements that tell the cloud.
//
// Each supported operation is an empty marker file named after the cloud
// operation:
//
//	<operations_dir>/c8y_Restart                        main device
//	<operations_dir>/<child-xid>/c8y_LogfileRequest     child device
//
// A marker is created at most once. Only the call that creates it yields a
// supported-operations record, so repeated capability metadata from a local
// agent does not flood the cloud with identical announcements.
//
// The Watcher picks up marker files added or removed by other tools and asks
// for the affected device to be re-announced.
package capability
