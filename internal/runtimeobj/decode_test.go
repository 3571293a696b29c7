// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runtimeobj

import (
	"reflect"
	"testing"
)

func TestDecodeIntViaFallback(t *testing.T) {
	ft := buildIntScenario()
	e := newTestEngine(ft, nil)

	n, err := e.NewNode(testIntObjAddr)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	v, err := DecodeInt(e, n)
	if err != nil {
		t.Fatalf("DecodeInt: %v", err)
	}
	if v != -42 {
		t.Fatalf("DecodeInt = %d, want -42", v)
	}
}

func TestDecodeIntWrongType(t *testing.T) {
	ft := buildIntScenario()
	e := newTestEngine(ft, nil)
	n, err := e.NewNode(testMetaAddr)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	if _, err := DecodeInt(e, n); err == nil {
		t.Fatal("expected error decoding a type node as int")
	}
}

const (
	testListTypeAddr     = 0x4900
	testListTypeNameAddr = 0x4980
	testListAddr         = 0x4000
)

// buildListScenario places a 3-element list, with two elements pointing at
// the int scenario's boxed int and one NULL slot, entirely in fakeTarget.
func buildListScenario() *fakeTarget {
	ft := buildIntScenario()
	ft.set(testListTypeAddr, typeHeaderBytes(1, testMetaAddr, testListTypeNameAddr))
	ft.set(testListTypeNameAddr, nameBuf("list"))

	body := newBuilder().
		i64(1).u64(testListTypeAddr).i64(3). // VarHeader
		u64(testIntObjAddr).u64(testIntObjAddr).u64(0).
		build()
	ft.set(testListAddr, body)
	return ft
}

func TestDecodeList(t *testing.T) {
	ft := buildListScenario()
	e := newTestEngine(ft, nil)

	n, err := e.NewNode(testListAddr)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	if n.TypeName != "list" {
		t.Fatalf("TypeName = %q, want list", n.TypeName)
	}

	items, err := DecodeList(e, n)
	if err != nil {
		t.Fatalf("DecodeList: %v", err)
	}
	want := []uint64{testIntObjAddr, testIntObjAddr, 0}
	if !reflect.DeepEqual(items, want) {
		t.Fatalf("DecodeList = %v, want %v", items, want)
	}
	if !n.IsParsed {
		t.Fatal("expected IsParsed after DecodeList")
	}
	if !reflect.DeepEqual(n.Items, want) {
		t.Fatalf("n.Items = %v, want %v", n.Items, want)
	}
}

const (
	testDictTypeAddr     = 0x5900
	testDictTypeNameAddr = 0x5980
	testDictAddr         = 0x5000
	testDictTableAddr    = 0x5100

	testStrTypeAddr     = 0x7900
	testStrTypeNameAddr = 0x7980
	testStrKeyAAddr     = 0x7000
	testStrKeyBAddr     = 0x7100
)

// buildDictScenario places a dict with 8 table slots (ma_mask=7), two of
// them occupied by string keys "a" and "b" both mapping to the int
// scenario's boxed int, exercising the mask-driven slot enumeration of
// DecodeDict across mostly-empty slots.
func buildDictScenario() *fakeTarget {
	ft := buildIntScenario()

	ft.set(testDictTypeAddr, typeHeaderBytes(1, testMetaAddr, testDictTypeNameAddr))
	ft.set(testDictTypeNameAddr, nameBuf("dict"))

	ft.set(testStrTypeAddr, typeHeaderBytes(1, testMetaAddr, testStrTypeNameAddr))
	ft.set(testStrTypeNameAddr, nameBuf("str"))

	ft.set(testStrKeyAAddr, newBuilder().
		i64(1).u64(testStrTypeAddr).i64(1). // VarHeader, ob_size=1
		i64(0).i32(0).                      // ob_shash, ob_sstate
		bytes([]byte("a")).build())
	ft.set(testStrKeyBAddr, newBuilder().
		i64(1).u64(testStrTypeAddr).i64(1).
		i64(0).i32(0).
		bytes([]byte("b")).build())

	entrySize := 24
	table := make([]byte, 8*entrySize)
	putEntry := func(slot int, keyAddr, valueAddr uint64) {
		e := newBuilder().i64(0).u64(keyAddr).u64(valueAddr).build()
		copy(table[slot*entrySize:], e)
	}
	putEntry(2, testStrKeyAAddr, testIntObjAddr)
	putEntry(5, testStrKeyBAddr, testIntObjAddr)
	ft.set(testDictTableAddr, table)

	ft.set(testDictAddr, newBuilder().
		i64(1).u64(testDictTypeAddr). // Header
		i64(2).i64(2).i64(7).         // ma_fill, ma_used, ma_mask
		u64(testDictTableAddr).build())
	return ft
}

func TestDecodeDict(t *testing.T) {
	ft := buildDictScenario()
	e := newTestEngine(ft, nil)

	n, err := e.NewNode(testDictAddr)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	if n.TypeName != "dict" {
		t.Fatalf("TypeName = %q, want dict", n.TypeName)
	}

	attrs, err := DecodeDict(e, n)
	if err != nil {
		t.Fatalf("DecodeDict: %v", err)
	}
	want := map[string]uint64{"a": testIntObjAddr, "b": testIntObjAddr}
	if !reflect.DeepEqual(attrs, want) {
		t.Fatalf("DecodeDict = %v, want %v", attrs, want)
	}
	if !n.IsParsed {
		t.Fatal("expected IsParsed after DecodeDict")
	}
}
