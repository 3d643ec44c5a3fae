// Package cli provides the interactive CueSync command-line client.
//
// It wires configuration, the local record store, the gRPC client, the
// syncer, the connectivity router and the push listener, then serves a
// REPL. Typical flow: prompt for credentials (online, with offline
// fallback), start the background probe and push listener, and execute
// user commands against whichever store the router picks.
//
// Key features:
//   - Login / Logout / Register
//   - Characters and cues: list, show, add, edit, delete
//   - Foreground sync with interactive conflict decisions
//   - Presence notices while others edit a record
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
