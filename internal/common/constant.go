package common

// SessionHeaderName is the gRPC metadata key carrying the session handle, both
// on requests and on the Login response header.
const SessionHeaderName = "session_id"
