// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transaction

import (
	"github.com/armon/go-radix"

	"github.com/joshuaword2alt/reapack/index"
)

// pathTrie is a typed wrapper of a radix tree mapping target paths to
// the key of the package claiming them within the current transaction.
type pathTrie struct {
	t *radix.Tree
}

func newPathTrie() *pathTrie {
	return &pathTrie{t: radix.New()}
}

// owner returns the claiming package key of p, if any.
func (pt *pathTrie) owner(p index.Path) (string, bool) {
	v, ok := pt.t.Get(string(p))
	if !ok {
		return "", false
	}
	return v.(string), true
}

// claim records key as the owner of p, replacing a previous claim.
func (pt *pathTrie) claim(p index.Path, key string) {
	pt.t.Insert(string(p), key)
}
