// Package cli implements the gatekeeper command-line client. Each
// invocation runs one command (register, login, whoami, passwd, profile,
// set-status, logout); the session handle is kept in a file between runs.
package cli
