// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runtimeobj

import (
	"fmt"
	"unsafe"

	"github.com/sirupsen/logrus"

	"github.com/tripwire/eveprobe/internal/memview"
	"github.com/tripwire/eveprobe/platform"
)

// Node is the engine's handle to one runtime object at one point in
// time, keyed uniquely by BaseAddr. Re-parsing is idempotent: a decoder
// observing IsParsed may short-circuit.
type Node struct {
	BaseAddr uint64
	TypeAddr uint64 // equals BaseAddr iff this node IS the meta-type
	TypeName string

	Attrs map[string]uint64 // populated after decoding a dict-like body
	Items []uint64          // populated after decoding a list/tuple-like body

	// Extras holds the keys of auxiliary regions (e.g. a type-name
	// buffer) the engine snapshotted exclusively on this node's behalf;
	// they are freed alongside the node on eviction.
	Extras map[uint64]bool

	IsParsed bool

	headerSize int
	tailSize   int
}

// shape describes how to size one entry of the closed dispatch table:
// a fixed header size, and whether ObSize (read from a VarHeader)
// selects a variable-length tail and, if so, its element size.
type shape struct {
	headerSize int
	tailElem   int // 0 means no variable tail
}

// dispatch is the closed set of type names this engine knows how to size
// and decode. Any type name outside this set falls through to the
// "custom" shape: a bare header plus an attribute-dictionary pointer.
var dispatch = map[string]shape{
	"type":      {headerSize: int(unsafe.Sizeof(TypeHeader{}))},
	"str":       {headerSize: strHeaderSize, tailElem: 1},
	"bytes":     {headerSize: strHeaderSize, tailElem: 1},
	"bytearray": {headerSize: strHeaderSize, tailElem: 1},
	"list":      {headerSize: int(unsafe.Sizeof(ListHeader{})), tailElem: PtrSize},
	"tuple":     {headerSize: int(unsafe.Sizeof(TupleHeader{})), tailElem: PtrSize},
	"long":      {headerSize: int(unsafe.Sizeof(LongHeader{})), tailElem: 4},
	"dict":      {headerSize: int(unsafe.Sizeof(DictHeader{}))},
	"set":       {headerSize: int(unsafe.Sizeof(SetHeader{}))},
	"int":       {headerSize: int(unsafe.Sizeof(IntHeader{}))},
	"bool":      {headerSize: int(unsafe.Sizeof(IntHeader{}))},
	"float":     {headerSize: int(unsafe.Sizeof(FloatHeader{}))},
	"unicode":   {headerSize: int(unsafe.Sizeof(UnicodeHeader{}))},
	"NoneType":  {headerSize: int(unsafe.Sizeof(Header{}))},
}

const customHeaderSize = int(unsafe.Sizeof(CustomHeader{}))

// strHeaderSize is the offset of ob_sval in the narrow-string layouts:
// the body begins right after ObSState (see StringHeader).
const strHeaderSize = int(unsafe.Offsetof(StringHeader{}.ObSState) + unsafe.Sizeof(StringHeader{}.ObSState))

// maxTypeNameLen bounds how many bytes are read while hunting for the
// NUL terminator of a type's tp_name buffer.
const maxTypeNameLen = 255

// EngineState owns the region cache, the object cache, and the two
// distinguished addresses discovered during Init. It is the exclusive
// owner of every Node and MemoryRegion; decoders only ever borrow them.
type EngineState struct {
	Target platform.TargetMemory
	Cache  *memview.Cache

	// Workers bounds how many regions memview.Scan walks concurrently
	// during discovery and graph search; 0 means unbounded.
	Workers int

	nodes map[uint64]*Node

	MetaTypeAddr   uint64
	UIRootTypeAddr uint64

	Log *logrus.Logger
}

// NewEngineState builds an EngineState over an already-snapshotted
// region cache, ready for Init.
func NewEngineState(target platform.TargetMemory, cache *memview.Cache, log *logrus.Logger) *EngineState {
	if log == nil {
		log = logrus.New()
	}
	return &EngineState{
		Target: target,
		Cache:  cache,
		nodes:  make(map[uint64]*Node),
		Log:    log,
	}
}

// Get returns the already-cached node at addr, if any.
func (e *EngineState) Get(addr uint64) (*Node, bool) {
	n, ok := e.nodes[addr]
	return n, ok
}

// NewNode returns the node at addr, creating and caching it if
// necessary.
func (e *EngineState) NewNode(addr uint64) (*Node, error) {
	if addr == 0 {
		return nil, fmt.Errorf("%w: zero address", ErrInvalidAddr)
	}
	if n, ok := e.nodes[addr]; ok {
		return n, nil
	}

	hdr, _, err := memview.ViewThrough[Header](e.Cache, e.Target, addr)
	if err != nil {
		return nil, fmt.Errorf("%w: read header at 0x%x: %v", ErrInvalidAddr, addr, err)
	}

	typeName, err := e.resolveTypeName(addr, hdr.ObType)
	if err != nil {
		return nil, err
	}

	sh, known := dispatch[typeName]
	headerSize := customHeaderSize
	tailSize := 0
	if known {
		headerSize = sh.headerSize
		if sh.tailElem > 0 {
			vh, _, err := memview.ViewThrough[VarHeader](e.Cache, e.Target, addr)
			if err != nil {
				return nil, fmt.Errorf("%w: read var header at 0x%x: %v", ErrOutOfBounds, addr, err)
			}
			n := vh.ObSize
			if n < 0 {
				n = -n
			}
			tailSize = int(n) * sh.tailElem
		}
	}

	extras := make(map[uint64]bool)
	if headerSize+tailSize > 0 {
		if _, fetched, err := e.Cache.ReadThrough(e.Target, addr, headerSize+tailSize); err != nil {
			return nil, fmt.Errorf("%w: snapshot object at 0x%x: %v", ErrOutOfBounds, addr, err)
		} else if fetched {
			extras[addr] = true
		}
	}

	node := &Node{
		BaseAddr:   addr,
		TypeAddr:   hdr.ObType,
		TypeName:   typeName,
		Attrs:      make(map[string]uint64),
		Items:      nil,
		Extras:     extras,
		IsParsed:   false,
		headerSize: headerSize,
		tailSize:   tailSize,
	}
	e.nodes[addr] = node
	return node, nil
}

// resolveTypeName determines the canonical type name for an object whose
// header's ob_type field is typeAddr.
func (e *EngineState) resolveTypeName(addr, typeAddr uint64) (string, error) {
	if typeAddr == addr {
		// Self-typed: this object IS the meta-type.
		if n, ok := e.nodes[typeAddr]; ok {
			return n.TypeName, nil
		}
		return "type", nil
	}

	th, _, err := memview.ViewThrough[TypeHeader](e.Cache, e.Target, typeAddr)
	if err != nil {
		return "", fmt.Errorf("%w: read type descriptor at 0x%x: %v", ErrDecodeFail, typeAddr, err)
	}

	nameBuf, fetched, err := e.Cache.ReadThrough(e.Target, th.TPName, maxTypeNameLen)
	if err != nil {
		return "", fmt.Errorf("%w: read tp_name buffer at 0x%x: %v", ErrDecodeFail, th.TPName, err)
	}
	name := cStringLossy(nameBuf)
	if len(name) == 0 {
		return "", fmt.Errorf("%w: empty type name at 0x%x", ErrDecodeFail, th.TPName)
	}

	if typeNode, ok := e.nodes[typeAddr]; ok {
		// The cached type node's own TypeName is "type"; the name it
		// describes is the one just read from its tp_name buffer.
		if fetched {
			typeNode.Extras[th.TPName] = true
		}
		return name, nil
	}
	typeNode := &Node{
		BaseAddr:   typeAddr,
		TypeAddr:   th.ObType,
		TypeName:   "type",
		Attrs:      make(map[string]uint64),
		Extras:     make(map[uint64]bool),
		headerSize: int(unsafe.Sizeof(TypeHeader{})),
	}
	if fetched {
		typeNode.Extras[th.TPName] = true
	}
	e.nodes[typeAddr] = typeNode

	return name, nil
}

// resolveTypeNameCached is resolveTypeName restricted to the immutable
// bulk snapshot: it never falls back to Target and never caches a new
// node, so it is safe to call from inside a Scan predicate, where
// multiple goroutines run concurrently and must not mutate shared state.
func (e *EngineState) resolveTypeNameCached(addr, typeAddr uint64) (string, error) {
	if typeAddr == addr {
		if n, ok := e.nodes[typeAddr]; ok {
			return n.TypeName, nil
		}
		return "type", nil
	}

	thBytes, err := e.Cache.ReadCached(typeAddr, int(unsafe.Sizeof(TypeHeader{})))
	if err != nil {
		return "", fmt.Errorf("%w: read type descriptor at 0x%x: %v", ErrDecodeFail, typeAddr, err)
	}
	th := (*TypeHeader)(unsafe.Pointer(&thBytes[0]))

	nameBuf, err := e.Cache.ReadCached(th.TPName, maxTypeNameLen)
	if err != nil {
		return "", fmt.Errorf("%w: read tp_name buffer at 0x%x: %v", ErrDecodeFail, th.TPName, err)
	}
	name := cStringLossy(nameBuf)
	if len(name) == 0 {
		return "", fmt.Errorf("%w: empty type name at 0x%x", ErrDecodeFail, th.TPName)
	}
	return name, nil
}

// cStringLossy decodes the NUL-terminated, UTF-8-lossy string found at
// the start of buf.
func cStringLossy(buf []byte) string {
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n])
}

// DelNode removes the node at addr, freeing every region it held
// exclusively. It reports whether a node was present.
func (e *EngineState) DelNode(addr uint64) bool {
	n, ok := e.nodes[addr]
	if !ok {
		return false
	}
	for key := range n.Extras {
		e.Cache.RemoveRegion(key)
	}
	e.Cache.RemoveRegion(addr)
	delete(e.nodes, addr)
	return true
}

// Size returns the total snapshotted byte size (header + variable tail)
// of n's on-target representation.
func (n *Node) Size() int { return n.headerSize + n.tailSize }
