// Package requests defines the wire-level request and response model of
// the keyops service: opcodes, provider identifiers, body encodings,
// response statuses and the framed header format used on the socket.
//
// The package is deliberately free of any provider or crypto logic so
// that both the service and client tooling can depend on it.
package requests
