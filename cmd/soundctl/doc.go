// Command soundctl drives the sound-health engine from the shell. It seeds
// synthetic clips, rebuilds baselines and scores clips either in process,
// against the configured database and clip store, or over HTTP against a
// running server (probe).
package main
