// Package operations defines the native operation and result model: one
// tagged variant per opcode, the key attribute types they carry, and the
// Converter contract that turns opaque request bodies into operations
// and results back into bodies.
package operations
