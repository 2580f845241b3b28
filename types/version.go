package types

// Version is the canonical project version.
// The CLI, the harness wire protocol, and the embedded harness bundle share
// this version under the lockstep versioning policy.
const Version = "0.4.0"
