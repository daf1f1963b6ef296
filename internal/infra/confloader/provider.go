package confloader

import (
	"errors"
	"strings"
)

// ErrReadBytesNotSupported is returned when ReadBytes is called on the
// override provider; koanf uses Read() for map-backed providers.
var ErrReadBytesNotSupported = errors.New("confloader: ReadBytes not supported by override provider, use Read() instead")

// overrideProvider serves the Loader's flag overrides to koanf as the
// highest-precedence layer. Keys are dotted config paths.
type overrideProvider map[string]any

// ReadBytes returns an error; the override map has no byte serialization.
func (p overrideProvider) ReadBytes() ([]byte, error) {
	return nil, ErrReadBytesNotSupported
}

// Read returns the overrides as a nested map: each dotted key is split
// into its path so the value lands on the same field as the file and env
// layers.
func (p overrideProvider) Read() (map[string]any, error) {
	out := make(map[string]any)
	for key, val := range p {
		parts := strings.Split(key, ".")
		m := out
		for _, part := range parts[:len(parts)-1] {
			sub, ok := m[part].(map[string]any)
			if !ok {
				sub = make(map[string]any)
				m[part] = sub
			}
			m = sub
		}
		m[parts[len(parts)-1]] = val
	}
	return out, nil
}
