// Package device models the fixed set of GPU identifiers a batch run is
// allowed to use. Identifiers are opaque strings so plain indices ("0", "3")
// and UUID-style ids ("GPU-...", "MIG-...") work the same way.
package device

import (
	"strings"

	"github.com/pkg/errors"
)

// Pool is an ordered, read-only sequence of GPU identifiers. The pool size
// bounds how many jobs run concurrently; it does not give any single id
// exclusive use, so when jobs outnumber ids several jobs may share one id
// within a round.
type Pool []string

// ParsePool parses a comma-separated list of GPU identifiers.
func ParsePool(s string) (Pool, error) {
	var pool Pool
	for _, id := range strings.Split(s, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		pool = append(pool, id)
	}
	if len(pool) == 0 {
		return nil, errors.Errorf("no valid GPU ids in %q", s)
	}
	return pool, nil
}

// ForIndex returns the id assigned to the job at position i within a round:
// round-robin by position modulo pool size.
func (p Pool) ForIndex(i int) string {
	return p[i%len(p)]
}

func (p Pool) String() string {
	return strings.Join(p, ",")
}
