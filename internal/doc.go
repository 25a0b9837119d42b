// Package internal groups helpers private to the moodjournal module.
//
// # Sub-packages
//
//   - events: async session event dispatch (Dispatcher and Sink implementations)
//   - logger: zap logger construction for the commands
//   - metrics: lock-free counters and the refresh latency histogram
package internal
