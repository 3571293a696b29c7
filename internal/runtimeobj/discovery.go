// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runtimeobj

import (
	"context"
	"fmt"
	"unsafe"

	"github.com/tripwire/eveprobe/internal/memview"
)

// DefaultVerifyNames is the minimum verification list: a candidate
// meta-type only verifies once "UIRoot" is reachable through it.
var DefaultVerifyNames = []string{"UIRoot"}

const typeNamePrefixLen = 4 // len("type")

// Init locates the runtime's meta-type (the self-typed type-of-types)
// and, from it, the named application root type.
//
// Step 1 scans for self-typed TypeHeader candidates whose tp_name starts
// with "type". Step 2 verifies each candidate by requiring every name in
// verifyNames to be reachable as a type descriptor whose own type is the
// candidate. Step 3 commits: the object cache is cleared, nodes are
// created for the meta-type and each verified named type, and
// MetaTypeAddr/UIRootTypeAddr are recorded.
//
// Init returns ErrNotFound, leaving the EngineState untouched, if no
// candidate verifies.
func (e *EngineState) Init(ctx context.Context, verifyNames []string) error {
	if len(verifyNames) == 0 {
		verifyNames = DefaultVerifyNames
	}

	candidates, err := e.scanMetaTypeCandidates(ctx)
	if err != nil {
		return fmt.Errorf("runtimeobj: scan meta-type candidates: %w", err)
	}
	e.Log.WithField("candidates", len(candidates)).Debug("meta-type candidates found")

	for _, c := range candidates {
		named, ok := e.verifyCandidate(ctx, c, verifyNames)
		if !ok {
			continue
		}
		e.commit(c, named)
		return nil
	}

	e.Log.WithFields(map[string]any{
		"candidates": len(candidates),
		"names":      verifyNames,
	}).Warn("no meta-type candidate verified")
	return fmt.Errorf("%w: no meta-type candidate verified against %v (tested %d candidates)", ErrNotFound, verifyNames, len(candidates))
}

// scanMetaTypeCandidates finds every self-typed TypeHeader whose
// tp_name starts with "type".
func (e *EngineState) scanMetaTypeCandidates(ctx context.Context) ([]uint64, error) {
	hits, err := memview.Scan(ctx, e.Cache, e.Workers, func(base uint64, tmpl *TypeHeader) (uint64, bool) {
		if tmpl.ObType != base {
			return 0, false
		}
		// ReadCached only, never ReadThrough: the predicate runs on
		// multiple goroutines concurrently and must not mutate the
		// cache's region list out from under sibling scans.
		prefix, err := e.Cache.ReadCached(tmpl.TPName, typeNamePrefixLen)
		if err != nil {
			return 0, false
		}
		if string(prefix) != "type" {
			return 0, false
		}
		return base, true
	})
	if err != nil {
		return nil, err
	}
	return dedup(hits), nil
}

// verifyCandidate checks that candidate c verifies: every name in
// verifyNames must have at least one type descriptor whose ob_type is c.
func (e *EngineState) verifyCandidate(ctx context.Context, c uint64, verifyNames []string) (map[string]uint64, bool) {
	named := make(map[string]uint64, len(verifyNames))
	for _, name := range verifyNames {
		addrs, err := e.searchTypeByContext(ctx, name, c)
		if err != nil || len(addrs) == 0 {
			return nil, false
		}
		named[name] = addrs[0]
	}
	return named, true
}

// searchTypeByContext scans for type descriptors whose ob_type equals
// typeContext and whose tp_name decodes to name.
func (e *EngineState) searchTypeByContext(ctx context.Context, name string, typeContext uint64) ([]uint64, error) {
	hits, err := memview.Scan(ctx, e.Cache, e.Workers, func(base uint64, tmpl *TypeHeader) (uint64, bool) {
		if tmpl.ObType != typeContext {
			return 0, false
		}
		// ReadCached only: see scanMetaTypeCandidates.
		buf, err := e.Cache.ReadCached(tmpl.TPName, maxTypeNameLen)
		if err != nil {
			return 0, false
		}
		if cStringLossy(buf) != name {
			return 0, false
		}
		return base, true
	})
	if err != nil {
		return nil, err
	}
	return dedup(hits), nil
}

// SearchType returns the addresses of every type descriptor whose
// meta-type equals typeContext (or e.MetaTypeAddr if typeContext is
// zero) and whose tp_name equals name.
func (e *EngineState) SearchType(ctx context.Context, name string, typeContext uint64) ([]uint64, error) {
	if typeContext == 0 {
		typeContext = e.MetaTypeAddr
	}
	return e.searchTypeByContext(ctx, name, typeContext)
}

// commit clears the object cache and creates nodes for the meta-type
// and each verified named type, recording MetaTypeAddr/UIRootTypeAddr.
func (e *EngineState) commit(metaTypeAddr uint64, named map[string]uint64) {
	e.nodes = make(map[uint64]*Node)

	e.nodes[metaTypeAddr] = &Node{
		BaseAddr:   metaTypeAddr,
		TypeAddr:   metaTypeAddr,
		TypeName:   "type",
		Attrs:      make(map[string]uint64),
		Extras:     make(map[uint64]bool),
		headerSize: int(unsafe.Sizeof(TypeHeader{})),
	}
	e.MetaTypeAddr = metaTypeAddr

	for name, addr := range named {
		e.nodes[addr] = &Node{
			BaseAddr:   addr,
			TypeAddr:   metaTypeAddr,
			TypeName:   "type",
			Attrs:      make(map[string]uint64),
			Extras:     make(map[uint64]bool),
			headerSize: int(unsafe.Sizeof(TypeHeader{})),
		}
		if name == "UIRoot" {
			e.UIRootTypeAddr = addr
		}
	}
}

func dedup(addrs []uint64) []uint64 {
	seen := make(map[uint64]bool, len(addrs))
	out := addrs[:0]
	for _, a := range addrs {
		if seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}
