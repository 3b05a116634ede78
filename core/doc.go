// Package core defines the shared data model of the steward pipeline:
// conversation messages, tool execution records, trigger schedules and the
// store interfaces every component depends on. Components receive concrete
// store implementations at construction; nothing in this package performs
// I/O itself.
package core
