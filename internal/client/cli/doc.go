// Package cli provides the interactive memosync command-line client.
//
// It opens the configured account (a memos server, or the local-only
// account when no server is set), optionally syncs on a timer, and runs a
// REPL over the memo engine. Memos are addressed by a prefix of their
// local id as shown by "list".
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
// See App, StartAutoSync, and runREPL for details.
package cli
