// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runtimeobj

import (
	"context"
	"fmt"
	"iter"
	"unsafe"

	"github.com/tripwire/eveprobe/internal/memview"
)

// FindUIRootCandidates scans for objects of UIRootTypeAddr whose
// attribute pointer dereferences to a well-formed dict. Requiring the
// attribute pointer to look like a dict eliminates most false positives
// from UIRoot-typed objects that happen to live at a stale address.
func (e *EngineState) FindUIRootCandidates(ctx context.Context) ([]uint64, error) {
	if e.UIRootTypeAddr == 0 {
		return nil, fmt.Errorf("%w: UIRoot type not discovered (call Init first)", ErrNotFound)
	}

	hits, err := memview.Scan(ctx, e.Cache, e.Workers, func(base uint64, tmpl *CustomHeader) (uint64, bool) {
		if tmpl.ObType != e.UIRootTypeAddr {
			return 0, false
		}
		if !e.attributesLookLikeDict(tmpl.Attributes) {
			return 0, false
		}
		return base, true
	})
	if err != nil {
		return nil, err
	}
	return dedup(hits), nil
}

// attributesLookLikeDict reports whether the object at attrsAddr has a
// type whose name resolves to "dict". Runs inside a Scan predicate, so
// it reads only the immutable bulk snapshot (via ReadCached) and never
// falls back to the target — a fallback would mutate the cache's region
// list concurrently with sibling scan goroutines.
func (e *EngineState) attributesLookLikeDict(attrsAddr uint64) bool {
	if attrsAddr == 0 {
		return false
	}
	hdrBytes, err := e.Cache.ReadCached(attrsAddr, int(unsafe.Sizeof(Header{})))
	if err != nil {
		return false
	}
	hdr := (*Header)(unsafe.Pointer(&hdrBytes[0]))
	name, err := e.resolveTypeNameCached(attrsAddr, hdr.ObType)
	return err == nil && name == "dict"
}

// Expand lazily walks the object graph rooted at rootAddr, yielding one
// Node at a time in discovery order, bounded by maxDepth (the number of
// pointer hops from the root). Within one walk each address is expanded
// at most once, at the depth at which it was first reached; nodes already
// in the object cache from earlier calls are decoded and walked again.
//
// Expansion is lazy and iterative, driven by a worklist, rather than
// eagerly materializing the whole graph before the caller sees anything.
func (e *EngineState) Expand(rootAddr uint64, maxDepth int) iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		type item struct {
			addr  uint64
			depth int
		}
		visited := make(map[uint64]bool)
		queue := []item{{addr: rootAddr, depth: 0}}

		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if visited[cur.addr] || cur.depth > maxDepth {
				continue
			}
			visited[cur.addr] = true

			node, err := e.NewNode(cur.addr)
			if err != nil {
				// Per-node decode failures prune this edge, not the walk.
				continue
			}
			children := e.decodeChildren(node)
			if !yield(node) {
				return
			}
			if cur.depth == maxDepth {
				continue
			}
			for _, child := range children {
				if child != 0 && !visited[child] {
					queue = append(queue, item{addr: child, depth: cur.depth + 1})
				}
			}
		}
	}
}

// decodeChildren decodes node according to its type name and returns the
// addresses it references, for Expand's worklist. Decode failures are
// swallowed here (they already leave the node IsParsed=false); Expand
// treats a node with no decodable children as a leaf.
func (e *EngineState) decodeChildren(node *Node) []uint64 {
	switch node.TypeName {
	case "list", "tuple":
		items, err := DecodeList(e, node)
		if err != nil {
			return nil
		}
		return items
	case "dict":
		attrs, err := DecodeDict(e, node)
		if err != nil {
			return nil
		}
		children := make([]uint64, 0, len(attrs))
		for _, addr := range attrs {
			children = append(children, addr)
		}
		return children
	default:
		if _, known := dispatch[node.TypeName]; known {
			return nil // scalar/opaque built-in: no children to expand
		}
		attrsAddr, err := DecodeCustom(e, node)
		if err != nil {
			return nil
		}
		node.IsParsed = true
		if attrsAddr == 0 {
			return nil
		}
		attrNode, err := e.NewNode(attrsAddr)
		if err != nil {
			return nil
		}
		return []uint64{attrNode.BaseAddr}
	}
}
