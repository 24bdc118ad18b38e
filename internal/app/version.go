package app

// Version is injected at build time via ldflags.
var Version = "0.1.0"
