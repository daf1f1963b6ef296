// Package glob implements the key pattern language used by KEYS.
//
// Supported metacharacters: '*' (any run of bytes, including empty), '?'
// (exactly one byte), '[...]' (character class with optional '^' negation
// and 'a-z' ranges) and '\x' (literal escape). Matching is over raw bytes
// and case sensitive. A malformed pattern fails closed: it matches nothing.
package glob

// Match reports whether s matches pattern.
//
// The matcher is an iterative two-pointer machine: on a mismatch after a
// '*', it backs up to the byte after the last star and retries one byte
// further into s. No regex engine, no allocation.
func Match(pattern, s string) bool {
	var (
		p, i         int  // cursors into pattern and s
		starP, starI = -1, 0
	)

	for i < len(s) {
		if p < len(pattern) {
			switch pattern[p] {
			case '*':
				starP, starI = p, i
				p++
				continue
			case '?':
				p++
				i++
				continue
			case '[':
				ok, next, valid := matchClass(pattern, p, s[i])
				if !valid {
					return false
				}
				if ok {
					p = next
					i++
					continue
				}
			case '\\':
				if p+1 >= len(pattern) {
					return false // dangling escape
				}
				if pattern[p+1] == s[i] {
					p += 2
					i++
					continue
				}
			default:
				if pattern[p] == s[i] {
					p++
					i++
					continue
				}
			}
		}

		// Mismatch: retry from the last star, consuming one more byte.
		if starP == -1 {
			return false
		}
		starI++
		p, i = starP+1, starI
	}

	// s consumed; remaining pattern must be all stars.
	for p < len(pattern) {
		if pattern[p] != '*' {
			return false
		}
		p++
	}
	return true
}

// matchClass evaluates the class starting at pattern[start] ('[') against c.
// Returns whether c is in the class, the index just past ']', and whether
// the class is well formed.
func matchClass(pattern string, start int, c byte) (matched bool, next int, valid bool) {
	p := start + 1
	negate := false
	if p < len(pattern) && pattern[p] == '^' {
		negate = true
		p++
	}

	found := false
	empty := true
	for {
		if p >= len(pattern) {
			return false, 0, false // no closing bracket
		}
		if pattern[p] == ']' && !empty {
			p++
			break
		}

		var lo byte
		switch pattern[p] {
		case '\\':
			if p+1 >= len(pattern) {
				return false, 0, false
			}
			lo = pattern[p+1]
			p += 2
		case ']':
			// A ']' in first position is a literal member.
			lo = pattern[p]
			p++
		default:
			lo = pattern[p]
			p++
		}
		empty = false

		// Range: "a-z", unless '-' is the closing member.
		if p+1 < len(pattern) && pattern[p] == '-' && pattern[p+1] != ']' {
			hi := pattern[p+1]
			p += 2
			if hi == '\\' {
				if p >= len(pattern) {
					return false, 0, false
				}
				hi = pattern[p]
				p++
			}
			if lo <= c && c <= hi {
				found = true
			}
			continue
		}

		if c == lo {
			found = true
		}
	}

	if negate {
		found = !found
	}
	return found, p, true
}
