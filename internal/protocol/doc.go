// Package protocol owns the byte-stream abstraction and the primitive wire codec.
//
// Ownership boundary:
// - Stream backends (in-memory MemStream, socket-backed ConnStream)
// - fixed-width, varint/varlong and string primitives
// - error taxonomy shared by frame, packet and session
//
// Fixed-width fields are big-endian on the wire, matching the Java edition protocol.
package protocol
