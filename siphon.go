// Package siphon launches external processes and captures their output.
// The engine lives in internal/proc; this package only pins the version.
package siphon

// Version is the siphon release version.
const Version = "0.2.0"
