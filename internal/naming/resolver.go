package naming

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ExistsFunc reports whether a destination is already taken outside the
// current run, typically by a file on disk.
type ExistsFunc func(path string) bool

// Resolver hands out collision-free destinations for one run. It is not
// safe for concurrent use; create one per batch.
type Resolver struct {
	exists  ExistsFunc
	claimed map[string]struct{}
}

// NewResolver returns a Resolver. A nil exists treats nothing outside the
// run as taken.
func NewResolver(exists ExistsFunc) *Resolver {
	if exists == nil {
		exists = func(string) bool { return false }
	}
	return &Resolver{
		exists:  exists,
		claimed: make(map[string]struct{}),
	}
}

// Resolve returns path, or path with "_N" appended to its stem for the
// smallest N >= 1 that is free, and claims the result.
func (r *Resolver) Resolve(path string) string {
	candidate := path
	if r.taken(candidate) {
		ext := filepath.Ext(path)
		stem := strings.TrimSuffix(path, ext)
		for n := 1; ; n++ {
			candidate = fmt.Sprintf("%s_%d%s", stem, n, ext)
			if !r.taken(candidate) {
				break
			}
		}
	}
	r.claimed[candidate] = struct{}{}
	return candidate
}

func (r *Resolver) taken(path string) bool {
	if _, ok := r.claimed[path]; ok {
		return true
	}
	return r.exists(path)
}
