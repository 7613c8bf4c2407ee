package core

// Version is the runtime ABI version that instruction streams are checked
// against.
const Version = "1.0.0"
