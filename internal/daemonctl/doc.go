// Package daemonctl finds the warmstart daemon for a client, starting one when
// nothing is listening.
//
// The Connector first tries a plain connect. When that fails it binds and
// listens on the rendezvous path itself and hands the listening descriptor to
// a freshly started daemon as descriptor 3, so the client can connect right
// away and its request waits in the backlog until the daemon accepts. Two
// clients racing to start the daemon are tolerated without a lock: the loser
// sees EADDRINUSE from bind and simply connects to the winner's socket.
package daemonctl
