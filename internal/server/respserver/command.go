package respserver

import (
	"bytes"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/keymesh-go/internal/storage/memory"
	"github.com/yndnr/keymesh-go/pkg/resp"
)

// action tells the session loop what to do after the reply is flushed.
type action int

const (
	actionNone action = iota
	// actionQuit closes this session.
	actionQuit
	// actionShutdown initiates orderly shutdown of the whole server.
	actionShutdown
)

// handlerFunc consumes the already-parsed argument vector (command name
// excluded) and shapes the reply.
type handlerFunc func(h *CommandHandler, args [][]byte) (resp.Value, action)

// command describes one registry entry.
type command struct {
	name    string
	minArgs int
	maxArgs int // -1 means variadic
	handler handlerFunc
}

// checkArity reports whether n arguments satisfy the descriptor.
func (c *command) checkArity(n int) bool {
	if n < c.minArgs {
		return false
	}
	if c.maxArgs >= 0 && n > c.maxArgs {
		return false
	}
	return true
}

// Byte-exact error replies; clients match on these strings.
func errUnknownCommand(name string) resp.Value {
	return resp.ErrorString("ERR unknown command '" + name + "'")
}

func errWrongArity(name string) resp.Value {
	return resp.ErrorString("ERR wrong number of arguments for '" + name + "'")
}

func errNotInteger() resp.Value {
	return resp.ErrorString("ERR value is not an integer or out of range")
}

func errSyntax() resp.Value {
	return resp.ErrorString("ERR syntax error")
}

var okReply = resp.SimpleString("OK")

// CommandHandler dispatches parsed requests against the keyspace.
type CommandHandler struct {
	store    *memory.Store
	logger   *slog.Logger
	registry map[string]*command
}

// NewCommandHandler creates a handler bound to store.
func NewCommandHandler(store *memory.Store, logger *slog.Logger) *CommandHandler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &CommandHandler{
		store:  store,
		logger: logger,
	}
	h.registry = buildRegistry()
	return h
}

// buildRegistry maps command names (and aliases) to their descriptors.
func buildRegistry() map[string]*command {
	cmds := []*command{
		{name: "GET", minArgs: 1, maxArgs: 1, handler: (*CommandHandler).handleGet},
		{name: "SET", minArgs: 2, maxArgs: 4, handler: (*CommandHandler).handleSet},
		{name: "MGET", minArgs: 1, maxArgs: -1, handler: (*CommandHandler).handleMGet},
		{name: "MSET", minArgs: 2, maxArgs: -1, handler: (*CommandHandler).handleMSet},
		{name: "DELETE", minArgs: 1, maxArgs: -1, handler: (*CommandHandler).handleDelete},
		{name: "EXISTS", minArgs: 1, maxArgs: -1, handler: (*CommandHandler).handleExists},
		{name: "EXPIRE", minArgs: 2, maxArgs: 2, handler: (*CommandHandler).handleExpire},
		{name: "PEXPIRE", minArgs: 2, maxArgs: 2, handler: (*CommandHandler).handlePExpire},
		{name: "TTL", minArgs: 1, maxArgs: 1, handler: (*CommandHandler).handleTTL},
		{name: "PTTL", minArgs: 1, maxArgs: 1, handler: (*CommandHandler).handlePTTL},
		{name: "KEYS", minArgs: 1, maxArgs: 1, handler: (*CommandHandler).handleKeys},
		{name: "FLUSH", minArgs: 0, maxArgs: 0, handler: (*CommandHandler).handleFlush},
		{name: "PING", minArgs: 0, maxArgs: 1, handler: (*CommandHandler).handlePing},
		{name: "QUIT", minArgs: 0, maxArgs: 0, handler: (*CommandHandler).handleQuit},
		{name: "SHUTDOWN", minArgs: 0, maxArgs: 0, handler: (*CommandHandler).handleShutdown},
	}

	registry := make(map[string]*command, len(cmds)+2)
	for _, c := range cmds {
		registry[c.name] = c
	}
	registry["DEL"] = registry["DELETE"]
	registry["FLUSHDB"] = registry["FLUSH"]
	return registry
}

// Handle dispatches one request and returns the reply to write. Command
// lookup is case-insensitive; all validation happens here, before the
// keyspace is touched.
func (h *CommandHandler) Handle(args [][]byte) (resp.Value, action) {
	name := normalizeCommandName(args[0])

	cmd, ok := h.registry[name]
	if !ok {
		return errUnknownCommand(name), actionNone
	}
	if !cmd.checkArity(len(args) - 1) {
		return errWrongArity(name), actionNone
	}

	return cmd.handler(h, args[1:])
}

// IsError reports whether v is an error reply.
func IsError(v resp.Value) bool {
	return v.Type == resp.TypeError
}

func normalizeCommandName(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	// Uppercase ASCII without allocating for already uppercased tokens.
	if bytes.ContainsAny(b, "abcdefghijklmnopqrstuvwxyz") {
		return strings.ToUpper(string(b))
	}
	return string(b)
}

// parsePositiveInt parses a TTL-style argument. The value must be a
// positive integer that survives conversion to a duration in the given
// unit.
func parsePositiveInt(arg []byte, unit time.Duration) (int64, bool) {
	n, err := strconv.ParseInt(string(arg), 10, 64)
	if err != nil {
		return 0, false
	}
	if n <= 0 || n > math.MaxInt64/int64(unit) {
		return 0, false
	}
	return n, true
}

// GET <key>
func (h *CommandHandler) handleGet(args [][]byte) (resp.Value, action) {
	v, ok := h.store.Get(string(args[0]))
	if !ok {
		return resp.Null(), actionNone
	}
	return resp.Bulk(v), actionNone
}

// SET <key> <value> [EX seconds | PX milliseconds]
//
// Without an option any prior expiry on the key is cleared.
func (h *CommandHandler) handleSet(args [][]byte) (resp.Value, action) {
	var ttl time.Duration

	if len(args) > 2 {
		if len(args) != 4 {
			return errSyntax(), actionNone
		}
		unit := time.Duration(0)
		switch normalizeCommandName(args[2]) {
		case "EX":
			unit = time.Second
		case "PX":
			unit = time.Millisecond
		default:
			return errSyntax(), actionNone
		}
		n, ok := parsePositiveInt(args[3], unit)
		if !ok {
			return errNotInteger(), actionNone
		}
		ttl = time.Duration(n) * unit
	}

	h.store.Set(string(args[0]), args[1], ttl)
	return okReply, actionNone
}

// MGET <key> [key ...]
func (h *CommandHandler) handleMGet(args [][]byte) (resp.Value, action) {
	keys := make([]string, len(args))
	for i, a := range args {
		keys[i] = string(a)
	}

	vals := h.store.MGet(keys)
	out := make([]resp.Value, len(vals))
	for i, v := range vals {
		out[i] = resp.Bulk(v)
	}
	return resp.ArrayOf(out...), actionNone
}

// MSET <key> <value> [key value ...]
func (h *CommandHandler) handleMSet(args [][]byte) (resp.Value, action) {
	if len(args)%2 != 0 {
		return errWrongArity("MSET"), actionNone
	}

	pairs := make([]memory.Pair, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		pairs = append(pairs, memory.Pair{Key: string(args[i]), Value: args[i+1]})
	}
	h.store.MSet(pairs)
	return okReply, actionNone
}

// DELETE <key> [key ...]
func (h *CommandHandler) handleDelete(args [][]byte) (resp.Value, action) {
	keys := make([]string, len(args))
	for i, a := range args {
		keys[i] = string(a)
	}
	return resp.Integer(int64(h.store.Delete(keys))), actionNone
}

// EXISTS <key> [key ...]
//
// Counts with multiplicity: EXISTS a a on a present key returns 2.
func (h *CommandHandler) handleExists(args [][]byte) (resp.Value, action) {
	keys := make([]string, len(args))
	for i, a := range args {
		keys[i] = string(a)
	}
	return resp.Integer(int64(h.store.Exists(keys))), actionNone
}

// EXPIRE <key> <seconds>
func (h *CommandHandler) handleExpire(args [][]byte) (resp.Value, action) {
	n, ok := parsePositiveInt(args[1], time.Second)
	if !ok {
		return errNotInteger(), actionNone
	}
	if h.store.Expire(string(args[0]), time.Duration(n)*time.Second) {
		return resp.Integer(1), actionNone
	}
	return resp.Integer(0), actionNone
}

// PEXPIRE <key> <milliseconds>
func (h *CommandHandler) handlePExpire(args [][]byte) (resp.Value, action) {
	n, ok := parsePositiveInt(args[1], time.Millisecond)
	if !ok {
		return errNotInteger(), actionNone
	}
	if h.store.Expire(string(args[0]), time.Duration(n)*time.Millisecond) {
		return resp.Integer(1), actionNone
	}
	return resp.Integer(0), actionNone
}

// TTL <key>
//
// Returns -2 if the key does not exist, -1 if it has no expiry, else the
// remaining seconds truncated toward zero.
func (h *CommandHandler) handleTTL(args [][]byte) (resp.Value, action) {
	ms := h.store.TTL(string(args[0]))
	if ms < 0 {
		return resp.Integer(ms), actionNone
	}
	return resp.Integer(ms / 1000), actionNone
}

// PTTL <key>
func (h *CommandHandler) handlePTTL(args [][]byte) (resp.Value, action) {
	return resp.Integer(h.store.TTL(string(args[0]))), actionNone
}

// KEYS <pattern>
func (h *CommandHandler) handleKeys(args [][]byte) (resp.Value, action) {
	keys := h.store.Keys(string(args[0]))
	out := make([]resp.Value, len(keys))
	for i, k := range keys {
		out[i] = resp.BulkString(k)
	}
	return resp.ArrayOf(out...), actionNone
}

// FLUSH
func (h *CommandHandler) handleFlush(_ [][]byte) (resp.Value, action) {
	h.store.Flush()
	return okReply, actionNone
}

// PING [message]
func (h *CommandHandler) handlePing(args [][]byte) (resp.Value, action) {
	if len(args) == 1 {
		return resp.Bulk(args[0]), actionNone
	}
	return resp.SimpleString("PONG"), actionNone
}

// QUIT
func (h *CommandHandler) handleQuit(_ [][]byte) (resp.Value, action) {
	return okReply, actionQuit
}

// SHUTDOWN
func (h *CommandHandler) handleShutdown(_ [][]byte) (resp.Value, action) {
	return okReply, actionShutdown
}
