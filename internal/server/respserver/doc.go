// Package respserver provides the TCP server for the keymesh wire
// protocol.
//
// It owns the accept loop and one goroutine per client session. A session
// cycles through read, dispatch, write: the decoder frames one request,
// the command registry validates arity and shapes the reply, and the reply
// is flushed in full before the next read. Codec faults answer with an
// error reply and close the connection; command faults answer and keep it
// open; transport faults drop it silently.
//
// Supported commands:
//   - PING, QUIT, SHUTDOWN
//   - GET, SET, MGET, MSET, DELETE (alias DEL), EXISTS
//   - EXPIRE, PEXPIRE, TTL, PTTL
//   - KEYS, FLUSH (alias FLUSHDB)
package respserver
