// Package resp implements the framed wire protocol spoken by keymesh.
//
// Frames are tagged values: simple strings ("+"), errors ("-"), integers
// (":"), bulk strings ("$", with "$-1" as nil) and arrays ("*", with "*-1"
// as the nil array). Every frame delimiter is CRLF; any other terminator is
// a protocol error.
//
// The package is shared by the server (internal/server/respserver) and the
// convenience client (pkg/client). Readers operate on a bufio.Reader and
// keep no state of their own, writers emit the single canonical byte form
// of each value.
//
// Servers additionally accept the inline ingress form: a plain text line
// whose whitespace-split tokens become a bulk-string array, so line
// oriented clients (netcat, telnet) can drive a server directly.
package resp
