// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package memview owns immutable snapshots of a target process's readable
// memory regions and provides bounds-checked, cached address lookups and
// typed reinterpretation of the underlying bytes. It is the sole point
// through which every other package touches raw target bytes, so that
// every pointer read from an untrusted target is bounds-checked in one
// place.
package memview

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"unsafe"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tripwire/eveprobe/platform"
)

// ErrNotMapped is returned by Locate/ReadCached/ViewAs when an address
// falls outside every snapshotted region.
var ErrNotMapped = errors.New("memview: address not mapped")

// ErrOutOfBounds is returned when a read or typed view would extend past
// the end of the region it targets.
var ErrOutOfBounds = errors.New("memview: read out of bounds")

// MemoryRegion is an immutable snapshot of one contiguous readable range
// of a target's address space, taken at a single instant.
type MemoryRegion struct {
	Start  uint64
	Length int
	Bytes  []byte
}

func (r *MemoryRegion) end() uint64 { return r.Start + uint64(r.Length) }

// locateResult is the value cached by the LRU: which region an address
// fell in, and its offset within that region.
type locateResult struct {
	regionIndex int
	offset      int
}

// Cache holds the region snapshots of one target, sorted ascending and
// non-overlapping, plus a bounded LRU of recent address lookups. The LRU
// is the only mutable state shared across Locate calls; it never changes
// what Locate returns, only how quickly it returns it (spec requirement:
// "cache is advisory and must never be consulted in a way that changes
// observable behavior").
type Cache struct {
	regions []MemoryRegion

	mu  sync.Mutex
	lru *lru.Cache[uint64, locateResult]
}

const lruSize = 64

// Snapshot enumerates every committed, readable region of target and
// copies each one with a single block read, the Go analogue of the
// teacher's core.Core constructor reading mappings out of an ELF core
// file in one pass per internal/core/process.go.
func Snapshot(target platform.TargetMemory) (*Cache, error) {
	infos, err := target.EnumerateRegions()
	if err != nil {
		return nil, fmt.Errorf("memview: enumerate regions: %w", err)
	}

	regions := make([]MemoryRegion, 0, len(infos))
	for _, info := range infos {
		b, err := target.Read(info.Start, info.Length)
		if err != nil {
			// A region disappearing or failing to read between
			// enumeration and copy is tolerated: skip it rather than
			// fail the whole snapshot, since the target is live and
			// racy reads are expected.
			continue
		}
		regions = append(regions, MemoryRegion{Start: info.Start, Length: info.Length, Bytes: b})
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].Start < regions[j].Start })

	l, err := lru.New[uint64, locateResult](lruSize)
	if err != nil {
		return nil, fmt.Errorf("memview: build lru: %w", err)
	}
	return &Cache{regions: regions, lru: l}, nil
}

// NewCache builds a Cache directly from already-sorted, non-overlapping
// regions, bypassing TargetMemory. Used by tests to synthesize literal
// byte layouts directly.
func NewCache(regions []MemoryRegion) *Cache {
	sort.Slice(regions, func(i, j int) bool { return regions[i].Start < regions[j].Start })
	l, _ := lru.New[uint64, locateResult](lruSize)
	return &Cache{regions: regions, lru: l}
}

// Regions returns the cache's region list, sorted ascending by Start.
func (c *Cache) Regions() []MemoryRegion { return c.regions }

// AddRegion inserts or replaces a single on-demand snapshot taken outside
// the bulk Snapshot pass (e.g. a per-object header+tail read, or a
// type-name buffer). Insertion keeps the region list sorted; an existing
// region with the same Start is replaced outright. Mutation methods like
// AddRegion are not safe to call concurrently with each other or with a
// Locate/Scan in flight — the engine's mutation surface is single
// threaded by design.
func (c *Cache) AddRegion(r MemoryRegion) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := sort.Search(len(c.regions), func(i int) bool { return c.regions[i].Start >= r.Start })
	if i < len(c.regions) && c.regions[i].Start == r.Start {
		c.regions[i] = r
	} else {
		c.regions = append(c.regions, MemoryRegion{})
		copy(c.regions[i+1:], c.regions[i:])
		c.regions[i] = r
	}
	c.lru.Purge() // region indices may have shifted
}

// RemoveRegion deletes the region starting exactly at addr, if any. It
// reports whether a region was removed. Used by node eviction to free
// regions the engine snapshotted exclusively on a node's behalf.
func (c *Cache) RemoveRegion(addr uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := sort.Search(len(c.regions), func(i int) bool { return c.regions[i].Start >= addr })
	if i >= len(c.regions) || c.regions[i].Start != addr {
		return false
	}
	c.regions = append(c.regions[:i], c.regions[i+1:]...)
	c.lru.Purge()
	return true
}

// Locate finds which region addr falls in and the offset within it,
// binary-searching the sorted region list and updating the LRU on a hit.
func (c *Cache) Locate(addr uint64) (regionIndex, offset int, err error) {
	c.mu.Lock()
	if hit, ok := c.lru.Get(addr); ok {
		c.mu.Unlock()
		return hit.regionIndex, hit.offset, nil
	}
	c.mu.Unlock()

	i := sort.Search(len(c.regions), func(i int) bool { return c.regions[i].Start > addr })
	if i == 0 {
		return 0, 0, ErrNotMapped
	}
	i--
	r := &c.regions[i]
	if addr < r.Start || addr >= r.end() {
		return 0, 0, ErrNotMapped
	}
	off := int(addr - r.Start)

	c.mu.Lock()
	c.lru.Add(addr, locateResult{regionIndex: i, offset: off})
	c.mu.Unlock()
	return i, off, nil
}

// ReadCached returns a borrowed slice of size bytes starting at addr, or
// ErrOutOfBounds / ErrNotMapped.
func (c *Cache) ReadCached(addr uint64, size int) ([]byte, error) {
	i, off, err := c.Locate(addr)
	if err != nil {
		return nil, err
	}
	r := &c.regions[i]
	if off+size > r.Length {
		return nil, ErrOutOfBounds
	}
	return r.Bytes[off : off+size], nil
}

// ReadThrough returns size bytes starting at addr, reusing an already
// snapshotted region when one covers the whole range, and otherwise
// falling back to a fresh target.Read that is cached via AddRegion for
// next time. It reports whether it took the fallback path, so a caller
// can record the new region's key for later eviction (see Node.Extras in
// package runtimeobj).
func (c *Cache) ReadThrough(target platform.TargetMemory, addr uint64, size int) (bytes []byte, fetched bool, err error) {
	if b, err := c.ReadCached(addr, size); err == nil {
		return b, false, nil
	}
	if addr == 0 {
		return nil, false, ErrNotMapped
	}
	raw, err := target.Read(addr, size)
	if err != nil {
		return nil, false, err
	}
	c.AddRegion(MemoryRegion{Start: addr, Length: size, Bytes: raw})
	b, err := c.ReadCached(addr, size)
	return b, true, err
}

// ViewAs reinterprets size bytes at addr as *T. The implementation
// verifies offset+size <= region length before taking the unsafe pointer;
// alignment is guaranteed by the scanner's 8-byte stride and every
// template's leading pointer-sized field.
func ViewAs[T any](c *Cache, addr uint64, size int) (*T, error) {
	b, err := c.ReadCached(addr, size)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, ErrOutOfBounds
	}
	return (*T)(unsafe.Pointer(&b[0])), nil
}

// ViewThrough reinterprets sizeof(T) bytes at addr as *T, reading through
// the cache with a TargetMemory fallback exactly like ReadThrough. This
// is the typed counterpart callers reach for instead of composing
// ReadThrough with a manual unsafe cast.
func ViewThrough[T any](c *Cache, target platform.TargetMemory, addr uint64) (*T, bool, error) {
	var zero T
	size := int(unsafe.Sizeof(zero))
	b, fetched, err := c.ReadThrough(target, addr, size)
	if err != nil {
		return nil, fetched, err
	}
	if len(b) == 0 {
		return nil, fetched, ErrOutOfBounds
	}
	return (*T)(unsafe.Pointer(&b[0])), fetched, nil
}

// ViewAsSlice returns a borrowed byte slice of length bytes at addr,
// equivalent to ReadCached but named for symmetry with ViewAsSliceT.
func ViewAsSlice(c *Cache, addr uint64, length int) ([]byte, error) {
	return c.ReadCached(addr, length)
}

// ViewAsSliceT reinterprets count contiguous elements of T starting at
// addr as a []T, copied out of the cache (not aliased, since a []T
// reinterpretation of borrowed bytes would violate Go's alignment and
// aliasing rules for non-byte element types).
func ViewAsSliceT[T any](c *Cache, addr uint64, count int) ([]T, error) {
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	b, err := c.ReadCached(addr, elemSize*count)
	if err != nil {
		return nil, err
	}
	out := make([]T, count)
	for i := range out {
		out[i] = *(*T)(unsafe.Pointer(&b[i*elemSize]))
	}
	return out, nil
}
