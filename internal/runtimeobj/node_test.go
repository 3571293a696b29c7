// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runtimeobj

import (
	"testing"
)

const (
	testMetaAddr     = 0x1000
	testMetaNameAddr = 0x1100

	testIntTypeAddr     = 0x3900
	testIntTypeNameAddr = 0x3980
	testIntObjAddr      = 0x3000
)

// buildIntScenario wires a self-typed meta-type and an "int" type and
// instance entirely through fakeTarget, so NewNode must reach every one of
// them via the TargetMemory fallback path (memview.ViewThrough) rather
// than an address already present in the bulk region cache.
func buildIntScenario() *fakeTarget {
	ft := newFakeTarget()
	ft.set(testMetaAddr, typeHeaderBytes(1, testMetaAddr, testMetaNameAddr))
	ft.set(testMetaNameAddr, nameBuf("type"))
	ft.set(testIntTypeAddr, typeHeaderBytes(1, testMetaAddr, testIntTypeNameAddr))
	ft.set(testIntTypeNameAddr, nameBuf("int"))
	ft.set(testIntObjAddr, newBuilder().i64(1).u64(testIntTypeAddr).i64(-42).build())
	return ft
}

func TestNewNodeScalarViaFallback(t *testing.T) {
	ft := buildIntScenario()
	e := newTestEngine(ft, nil)

	n, err := e.NewNode(testIntObjAddr)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	if n.TypeName != "int" {
		t.Fatalf("TypeName = %q, want int", n.TypeName)
	}
	if n.TypeAddr != testIntTypeAddr {
		t.Fatalf("TypeAddr = 0x%x, want 0x%x", n.TypeAddr, testIntTypeAddr)
	}
	if n.Size() != 24 {
		t.Fatalf("Size() = %d, want 24", n.Size())
	}

	// Re-fetching the same address must return the cached node, not
	// re-decode it.
	again, err := e.NewNode(testIntObjAddr)
	if err != nil {
		t.Fatalf("NewNode (cached): %v", err)
	}
	if again != n {
		t.Fatalf("expected cached node identity")
	}
}

func TestNewNodeZeroAddr(t *testing.T) {
	e := newTestEngine(newFakeTarget(), nil)
	if _, err := e.NewNode(0); err == nil {
		t.Fatal("expected error for zero address")
	}
}

func TestNewNodeSelfTyped(t *testing.T) {
	ft := buildIntScenario()
	e := newTestEngine(ft, nil)

	n, err := e.NewNode(testMetaAddr)
	if err != nil {
		t.Fatalf("NewNode(meta): %v", err)
	}
	if n.TypeName != "type" {
		t.Fatalf("TypeName = %q, want type", n.TypeName)
	}
	if n.TypeAddr != testMetaAddr {
		t.Fatalf("TypeAddr = 0x%x, want self (0x%x)", n.TypeAddr, testMetaAddr)
	}
}

func TestDelNodeFreesExtras(t *testing.T) {
	ft := buildIntScenario()
	e := newTestEngine(ft, nil)

	if _, err := e.NewNode(testIntObjAddr); err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	before := len(e.Cache.Regions())
	if before == 0 {
		t.Fatal("expected fallback reads to have populated the cache")
	}

	if !e.DelNode(testIntObjAddr) {
		t.Fatal("DelNode reported no node present")
	}
	if _, ok := e.Get(testIntObjAddr); ok {
		t.Fatal("node still present after DelNode")
	}
	if len(e.Cache.Regions()) >= before {
		t.Fatalf("expected region count to drop after DelNode, still %d", len(e.Cache.Regions()))
	}
	if e.DelNode(testIntObjAddr) {
		t.Fatal("second DelNode should report false")
	}
}
