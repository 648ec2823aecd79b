// Package cli is the VisionLock administration tool. It talks to the user
// store directly, using the server's configuration, and offers:
//
//   - migrate  apply the database schema
//   - users    list enrolled identities in registration order
//   - enroll   enroll a user from an embedding file, prompting for the PIN
//
// Run with a command to execute it once, or without one for an interactive
// prompt (see runREPL).
package cli
