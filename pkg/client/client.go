// Package client provides a convenience client for the keymesh wire
// protocol.
//
// A Client owns one TCP connection and is safe for concurrent use; each
// command is one request/reply exchange, serialized on the connection.
package client

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/yndnr/keymesh-go/pkg/resp"
)

// ReplyError is an error reply from the server, e.g.
// "ERR unknown command 'FOO'".
type ReplyError string

func (e ReplyError) Error() string { return string(e) }

// Client is a connection to a keymesh server.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
	br   *bufio.Reader
	bw   *bufio.Writer
}

// Dial connects to the server at addr ("host:port").
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{
		conn: conn,
		br:   bufio.NewReader(conn),
		bw:   bufio.NewWriter(conn),
	}, nil
}

// DialTimeout is Dial with a connect timeout.
func DialTimeout(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	return &Client{
		conn: conn,
		br:   bufio.NewReader(conn),
		bw:   bufio.NewWriter(conn),
	}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Do sends one command and returns its reply. Error replies are returned
// as a ReplyError alongside the decoded value.
func (c *Client) Do(args ...[]byte) (resp.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := resp.WriteCommand(c.bw, args...); err != nil {
		return resp.Value{}, err
	}
	if err := c.bw.Flush(); err != nil {
		return resp.Value{}, err
	}

	v, err := resp.ReadValue(c.br)
	if err != nil {
		return resp.Value{}, err
	}
	if v.Type == resp.TypeError {
		return v, ReplyError(v.Str)
	}
	return v, nil
}

func (c *Client) doStrings(args ...string) (resp.Value, error) {
	b := make([][]byte, len(args))
	for i, a := range args {
		b[i] = []byte(a)
	}
	return c.Do(b...)
}

// Get returns the value of key. ok is false if the key does not exist.
func (c *Client) Get(key string) (value []byte, ok bool, err error) {
	v, err := c.doStrings("GET", key)
	if err != nil {
		return nil, false, err
	}
	if v.IsNull() {
		return nil, false, nil
	}
	return v.Str, true, nil
}

// Set stores value under key without an expiry.
func (c *Client) Set(key string, value []byte) error {
	_, err := c.Do([]byte("SET"), []byte(key), value)
	return err
}

// SetTTL stores value under key with the given time to live.
func (c *Client) SetTTL(key string, value []byte, ttl time.Duration) error {
	ms := ttl.Milliseconds()
	if ms <= 0 {
		return fmt.Errorf("client: ttl must be at least 1ms, got %v", ttl)
	}
	_, err := c.Do([]byte("SET"), []byte(key), value,
		[]byte("PX"), []byte(strconv.FormatInt(ms, 10)))
	return err
}

// MGet returns one value per key, nil for missing keys.
func (c *Client) MGet(keys ...string) ([][]byte, error) {
	args := append([]string{"MGET"}, keys...)
	v, err := c.doStrings(args...)
	if err != nil {
		return nil, err
	}

	out := make([][]byte, len(v.Array))
	for i, e := range v.Array {
		if !e.IsNull() {
			out[i] = e.Str
		}
	}
	return out, nil
}

// MSet stores the alternating key/value arguments atomically.
func (c *Client) MSet(keysAndValues ...string) error {
	if len(keysAndValues)%2 != 0 {
		return fmt.Errorf("client: MSet requires key/value pairs, got %d arguments", len(keysAndValues))
	}
	args := append([]string{"MSET"}, keysAndValues...)
	_, err := c.doStrings(args...)
	return err
}

// Delete removes keys and returns how many existed.
func (c *Client) Delete(keys ...string) (int64, error) {
	args := append([]string{"DELETE"}, keys...)
	v, err := c.doStrings(args...)
	if err != nil {
		return 0, err
	}
	return v.Int, nil
}

// Exists counts, with multiplicity, how many of keys are present.
func (c *Client) Exists(keys ...string) (int64, error) {
	args := append([]string{"EXISTS"}, keys...)
	v, err := c.doStrings(args...)
	if err != nil {
		return 0, err
	}
	return v.Int, nil
}

// Expire sets a deadline of seconds on key. Returns false if the key does
// not exist.
func (c *Client) Expire(key string, seconds int64) (bool, error) {
	v, err := c.doStrings("EXPIRE", key, strconv.FormatInt(seconds, 10))
	if err != nil {
		return false, err
	}
	return v.Int == 1, nil
}

// PExpire sets a deadline of milliseconds on key.
func (c *Client) PExpire(key string, milliseconds int64) (bool, error) {
	v, err := c.doStrings("PEXPIRE", key, strconv.FormatInt(milliseconds, 10))
	if err != nil {
		return false, err
	}
	return v.Int == 1, nil
}

// TTL returns the remaining lifetime of key in seconds: -2 if the key
// does not exist, -1 if it has no expiry.
func (c *Client) TTL(key string) (int64, error) {
	v, err := c.doStrings("TTL", key)
	if err != nil {
		return 0, err
	}
	return v.Int, nil
}

// PTTL is TTL in milliseconds.
func (c *Client) PTTL(key string) (int64, error) {
	v, err := c.doStrings("PTTL", key)
	if err != nil {
		return 0, err
	}
	return v.Int, nil
}

// Keys returns all keys matching the glob pattern.
func (c *Client) Keys(pattern string) ([]string, error) {
	v, err := c.doStrings("KEYS", pattern)
	if err != nil {
		return nil, err
	}

	out := make([]string, len(v.Array))
	for i, e := range v.Array {
		out[i] = string(e.Str)
	}
	return out, nil
}

// Flush empties the keyspace.
func (c *Client) Flush() error {
	_, err := c.doStrings("FLUSH")
	return err
}

// Ping checks the connection. With a message the server echoes it back,
// without one it replies PONG.
func (c *Client) Ping(message ...string) (string, error) {
	args := append([]string{"PING"}, message...)
	v, err := c.doStrings(args...)
	if err != nil {
		return "", err
	}
	return string(v.Str), nil
}

// Quit asks the server to close the session, then closes the connection.
func (c *Client) Quit() error {
	if _, err := c.doStrings("QUIT"); err != nil {
		return err
	}
	return c.Close()
}

// Shutdown asks the server to shut down.
func (c *Client) Shutdown() error {
	_, err := c.doStrings("SHUTDOWN")
	return err
}
