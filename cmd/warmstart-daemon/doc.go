// Command warmstart-daemon is the reference daemon for warmstart. Spawned as
// "warmstart-daemon daemon FD" it serves clients on the inherited listening
// socket until signalled or idle. "warmstart-daemon config-init [PATH]" writes
// a sample configuration file. Run any other way it executes one command in
// the foreground.
package main
