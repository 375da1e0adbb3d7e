// Package smartrest builds the cloud status records published by the mapper.
//
// Records are CSV lines whose first field is a numeric template code, e.g.
// "501,c8y_Restart" or "502,c8y_LogfileRequest,Upload failed with EOF".
// Fields are quoted only when needed, so a failure reason is embedded
// verbatim whatever characters it contains.
//
// Every function here is pure: no I/O, no shared state.
package smartrest
