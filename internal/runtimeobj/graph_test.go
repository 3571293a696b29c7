// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runtimeobj

import (
	"context"
	"testing"

	"github.com/tripwire/eveprobe/internal/memview"
)

const testUIRootObjAddr = 0x6000

// buildUIRootScenario layers a UIRoot-typed custom object (attributes
// pointing at the dict built by buildDictScenario) on top of the
// meta-type/UIRoot-type discovery scenario, entirely reachable through
// Init followed by FindUIRootCandidates.
//
// FindUIRootCandidates's predicate only ever reads the bulk snapshot (see
// attributesLookLikeDict / resolveTypeNameCached), and so do Init's, so the
// meta-type and UIRoot name buffers, the dict header, its type descriptor,
// and its type name must all be present as bulk regions here, not merely
// reachable through fakeTarget's per-address fallback.
func buildUIRootScenario() (*fakeTarget, []memview.MemoryRegion) {
	ft := buildDictScenario()
	ft.set(testMetaNameAddr, nameBuf("type"))
	ft.set(testUIRootTypeNameAddr, nameBuf("UIRoot"))

	customObj := newBuilder().i64(1).u64(testUIRootTypeAddr).u64(testDictAddr).build()

	regions := []memview.MemoryRegion{
		{Start: testMetaAddr, Length: 32, Bytes: typeHeaderBytes(1, testMetaAddr, testMetaNameAddr)},
		{Start: testUIRootTypeAddr, Length: 32, Bytes: typeHeaderBytes(1, testMetaAddr, testUIRootTypeNameAddr)},
		{Start: testMetaNameAddr, Length: maxTypeNameLen, Bytes: nameBuf("type")},
		{Start: testUIRootTypeNameAddr, Length: maxTypeNameLen, Bytes: nameBuf("UIRoot")},
		{Start: testUIRootObjAddr, Length: 24, Bytes: customObj},
		{Start: testDictAddr, Length: len(ft.blobs[testDictAddr]), Bytes: ft.blobs[testDictAddr]},
		{Start: testDictTypeAddr, Length: 32, Bytes: typeHeaderBytes(1, testMetaAddr, testDictTypeNameAddr)},
		{Start: testDictTypeNameAddr, Length: len(ft.blobs[testDictTypeNameAddr]), Bytes: ft.blobs[testDictTypeNameAddr]},
	}
	return ft, regions
}

func TestFindUIRootCandidates(t *testing.T) {
	ft, regions := buildUIRootScenario()
	e := newTestEngine(ft, regions)

	if err := e.Init(context.Background(), nil); err != nil {
		t.Fatalf("Init: %v", err)
	}

	hits, err := e.FindUIRootCandidates(context.Background())
	if err != nil {
		t.Fatalf("FindUIRootCandidates: %v", err)
	}
	if len(hits) != 1 || hits[0] != testUIRootObjAddr {
		t.Fatalf("FindUIRootCandidates = %v, want [0x%x]", hits, uint64(testUIRootObjAddr))
	}
}

func TestFindUIRootCandidatesBeforeInit(t *testing.T) {
	ft, regions := buildUIRootScenario()
	e := newTestEngine(ft, regions)

	if _, err := e.FindUIRootCandidates(context.Background()); err == nil {
		t.Fatal("expected error before Init discovers UIRootTypeAddr")
	}
}

func TestExpandWalksCustomObjectIntoDict(t *testing.T) {
	ft, regions := buildUIRootScenario()
	e := newTestEngine(ft, regions)
	if err := e.Init(context.Background(), nil); err != nil {
		t.Fatalf("Init: %v", err)
	}

	var visited []uint64
	for n := range e.Expand(testUIRootObjAddr, 2) {
		visited = append(visited, n.BaseAddr)
	}

	addrSet := make(map[uint64]bool, len(visited))
	for _, a := range visited {
		addrSet[a] = true
	}
	for _, want := range []uint64{testUIRootObjAddr, testDictAddr, testIntObjAddr} {
		if !addrSet[want] {
			t.Fatalf("Expand did not visit 0x%x; visited=%v", want, visited)
		}
	}
	if visited[0] != testUIRootObjAddr {
		t.Fatalf("Expand root = 0x%x, want 0x%x", visited[0], uint64(testUIRootObjAddr))
	}
}

func TestExpandRespectsMaxDepth(t *testing.T) {
	ft, regions := buildUIRootScenario()
	e := newTestEngine(ft, regions)
	if err := e.Init(context.Background(), nil); err != nil {
		t.Fatalf("Init: %v", err)
	}

	var visited []uint64
	for n := range e.Expand(testUIRootObjAddr, 0) {
		visited = append(visited, n.BaseAddr)
	}
	if len(visited) != 1 || visited[0] != testUIRootObjAddr {
		t.Fatalf("Expand(maxDepth=0) = %v, want only the root", visited)
	}
}
