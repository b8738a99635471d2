// Package cli provides fkctl, the interactive filekeeper command-line client.
//
// It wires configuration and the gRPC client into a REPL. Login mints an
// access token from the user id and the shared signing secret, which is read
// from the terminal without echo. A background watcher pings the server and
// flips the prompt between online and offline.
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher and runREPL for details.
package cli
