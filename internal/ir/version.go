package ir

// EngineVersion is recorded with every persisted run so traces can be
// matched against the runtime that produced them.
const EngineVersion = "0.3.0"

// IRVersion is the schema version of the compiled representation.
// Bump on any change to canonical marshaling or hashing inputs.
const IRVersion = "1"
