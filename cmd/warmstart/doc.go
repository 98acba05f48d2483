// Package main is the warmstart client.
//
// Invoked as `warmstart daemon ARGS...` it forwards ARGS and its standard
// streams to the resident warmstart-daemon, starting one when none is
// listening, and exits with the status the daemon replies with. Any other
// invocation replaces the process with warmstart-daemon itself, so the client
// can stand in for the daemon binary everywhere.
package main
