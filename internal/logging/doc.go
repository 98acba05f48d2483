// Package logging assembles the structured slog loggers shared by the
// warmstart client and the reference daemon.
//
// It owns the console and JSON handlers, maps configuration onto level and
// output routing, and defines the attribute keys both processes use so a
// single invocation can be followed across the socket boundary. Output never
// defaults to stdout: the client's stdout belongs to the forwarded command.
package logging
