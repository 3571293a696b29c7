// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runtimeobj

import (
	"fmt"
	"unicode/utf16"
	"unsafe"

	"github.com/tripwire/eveprobe/internal/memview"
)

// requireType returns a DecodeFail error if n isn't of the expected type
// name. Every decoder below validates its node first, mirroring the
// guard clauses of the original pyobject_parser.rs.
func requireType(n *Node, want string) error {
	if n.TypeName != want {
		return fmt.Errorf("%w: expected %q node, got %q", ErrDecodeFail, want, n.TypeName)
	}
	return nil
}

func header[T any](e *EngineState, n *Node) (*T, error) {
	b, _, err := memview.ViewThrough[T](e.Cache, e.Target, n.BaseAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutOfBounds, err)
	}
	return b, nil
}

// DecodeInt reads the boxed integer value of an "int" node.
func DecodeInt(e *EngineState, n *Node) (int64, error) {
	if err := requireType(n, "int"); err != nil {
		return 0, err
	}
	h, err := header[IntHeader](e, n)
	if err != nil {
		return 0, err
	}
	return h.ObIval, nil
}

// DecodeBool reads an "bool" node; the layout is identical to "int" and
// any non-zero value is true.
func DecodeBool(e *EngineState, n *Node) (bool, error) {
	if err := requireType(n, "bool"); err != nil {
		return false, err
	}
	h, err := header[IntHeader](e, n)
	if err != nil {
		return false, err
	}
	return h.ObIval != 0, nil
}

// DecodeFloat reads the boxed double of a "float" node.
func DecodeFloat(e *EngineState, n *Node) (float64, error) {
	if err := requireType(n, "float"); err != nil {
		return 0, err
	}
	h, err := header[FloatHeader](e, n)
	if err != nil {
		return 0, err
	}
	return h.ObFval, nil
}

// DecodeNone validates that n is the singleton "NoneType" object.
func DecodeNone(n *Node) error {
	return requireType(n, "NoneType")
}

// DecodeStr reads the narrow ("str") string body: ObSize bytes starting
// immediately after ObSState (not after Go's padded StringHeader size),
// decoded as UTF-8 lossy.
func DecodeStr(e *EngineState, n *Node) (string, error) {
	if err := requireType(n, "str"); err != nil {
		return "", err
	}
	h, err := header[VarHeader](e, n)
	if err != nil {
		return "", err
	}
	size := int(h.ObSize)
	if size < 0 {
		return "", fmt.Errorf("%w: negative ob_size on str node 0x%x", ErrDecodeFail, n.BaseAddr)
	}
	off := int(unsafe.Offsetof(StringHeader{}.ObSState)) + int(unsafe.Sizeof(StringHeader{}.ObSState))
	b, err := memview.ViewAsSlice(e.Cache, n.BaseAddr+uint64(off), size)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOutOfBounds, err)
	}
	return string(b), nil
}

// DecodeUnicode reads the wide ("unicode") string body: Length wchar_t
// units at the out-of-line Str pointer, two bytes each on the target
// platform, decoded as UTF-16 lossy. A 4-byte wchar_t target would need
// a build-time switch this function does not attempt to auto-detect.
func DecodeUnicode(e *EngineState, n *Node) (string, error) {
	if err := requireType(n, "unicode"); err != nil {
		return "", err
	}
	h, err := header[UnicodeHeader](e, n)
	if err != nil {
		return "", err
	}
	if h.Length < 0 {
		return "", fmt.Errorf("%w: negative length on unicode node 0x%x", ErrDecodeFail, n.BaseAddr)
	}
	byteLen := int(h.Length) * 2
	raw, _, err := e.Cache.ReadThrough(e.Target, h.Str, byteLen)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecodeFail, err)
	}
	units := make([]uint16, h.Length)
	for i := range units {
		units[i] = uint16(raw[2*i]) | uint16(raw[2*i+1])<<8
	}
	return string(utf16.Decode(units)), nil
}

// DecodeLong reads an arbitrary-precision "long" node: |ob_size| 32-bit
// digits in base 2^30, least-significant first, combined as
// sgn(ob_size) * sum(digit_i * 2^(30*i)). Overflow into int64 is not
// detected.
func DecodeLong(e *EngineState, n *Node) (int64, error) {
	if err := requireType(n, "long"); err != nil {
		return 0, err
	}
	h, err := header[LongHeader](e, n)
	if err != nil {
		return 0, err
	}
	count := h.ObSize
	sign := int64(1)
	if count < 0 {
		sign = -1
		count = -count
	} else if count == 0 {
		return 0, nil
	}
	off := int(unsafe.Sizeof(LongHeader{}))
	digits, err := memview.ViewAsSliceT[uint32](e.Cache, n.BaseAddr+uint64(off), int(count))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDecodeFail, err)
	}
	var total int64
	for i, d := range digits {
		total += int64(d) << uint(30*i)
	}
	return sign * total, nil
}

// DecodeList reads the inline item-pointer array of a "list" or "tuple"
// node. Pointed-to objects are not materialized here; that is left to
// the graph walker.
func DecodeList(e *EngineState, n *Node) ([]uint64, error) {
	if n.TypeName != "list" && n.TypeName != "tuple" {
		return nil, fmt.Errorf("%w: expected list or tuple node, got %q", ErrDecodeFail, n.TypeName)
	}
	h, err := header[VarHeader](e, n)
	if err != nil {
		return nil, err
	}
	if h.ObSize < 0 {
		return nil, fmt.Errorf("%w: negative ob_size on list node 0x%x", ErrDecodeFail, n.BaseAddr)
	}
	off := int(unsafe.Sizeof(VarHeader{}))
	items, err := memview.ViewAsSliceT[uint64](e.Cache, n.BaseAddr+uint64(off), int(h.ObSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFail, err)
	}
	n.Items = items
	n.IsParsed = true
	return items, nil
}

// DecodeDict reads a "dict" node's open-addressed hash table, which
// lives out-of-line at MaTable with MaMask+1 slots. Every slot in
// [0, MaMask] is visited — dicts use sentinel (zeroed) unoccupied slots,
// so a partial scan would silently miss high-index occupied entries.
// Keys that don't decode to a string ("str" or "unicode") are skipped;
// on a duplicate decoded key, the later slot (by scan order) wins.
func DecodeDict(e *EngineState, n *Node) (map[string]uint64, error) {
	if err := requireType(n, "dict"); err != nil {
		return nil, err
	}
	h, err := header[DictHeader](e, n)
	if err != nil {
		return nil, err
	}
	if h.MaMask < 0 {
		return nil, fmt.Errorf("%w: negative ma_mask on dict node 0x%x", ErrDecodeFail, n.BaseAddr)
	}

	result := make(map[string]uint64)
	entrySize := uint64(unsafe.Sizeof(DictEntry{}))
	for i := int64(0); i <= h.MaMask; i++ {
		entryAddr := h.MaTable + uint64(i)*entrySize
		entry, fetched, err := e.Cache.ReadThrough(e.Target, entryAddr, int(entrySize))
		if err != nil {
			continue // a single unreadable slot is a local skip, not a failure
		}
		ent := (*DictEntry)(unsafe.Pointer(&entry[0]))
		if ent.MeKey == 0 || ent.MeValue == 0 {
			if fetched {
				e.Cache.RemoveRegion(entryAddr)
			}
			continue
		}
		keyNode, err := e.NewNode(ent.MeKey)
		if err != nil {
			continue
		}
		var key string
		switch keyNode.TypeName {
		case "str":
			key, err = DecodeStr(e, keyNode)
		case "unicode":
			key, err = DecodeUnicode(e, keyNode)
		default:
			continue
		}
		if err != nil {
			continue
		}
		result[key] = ent.MeValue
	}
	n.Attrs = result
	n.IsParsed = true
	return result, nil
}

// DecodeCustom returns the attribute-dictionary pointer of an opaque
// custom object (any type name outside the closed dispatch table).
func DecodeCustom(e *EngineState, n *Node) (uint64, error) {
	if _, known := dispatch[n.TypeName]; known {
		return 0, fmt.Errorf("%w: %q is a known type, not a custom object", ErrDecodeFail, n.TypeName)
	}
	h, err := header[CustomHeader](e, n)
	if err != nil {
		return 0, err
	}
	return h.Attributes, nil
}
