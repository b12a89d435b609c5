// Package session owns one client connection's protocol lifecycle.
//
// Ownership boundary:
// - the per-connection state machine (handshake -> status | login -> play)
// - the (state, packet id) dispatch table and default handlers
// - the read-dispatch-write loop and its close policy
// - server list status document
//
// Close policy: codec and framing errors close the connection. Packet IDs
// with no decoder or handler in the current state are logged and dropped,
// and the connection keeps reading.
package session
