// Package ipc is the daemon side of the warmstart protocol.
//
// A Server adopts the listening socket the client created during spawn,
// accepts connections, and for each request reads the framed arguments and the
// passed stdin/stdout/stderr descriptors, hands them to a Handler, and writes
// the handler's status back as a single byte. Connections carry any number of
// sequential requests; a malformed frame ends the connection without a reply,
// which the client reports as a generic failure.
package ipc
