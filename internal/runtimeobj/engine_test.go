// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runtimeobj

import (
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/tripwire/eveprobe/internal/memview"
	"github.com/tripwire/eveprobe/platform"
)

// fakeTarget is a platform.TargetMemory test double backed by a set of
// fixed byte blobs keyed by their starting address, standing in for the
// pointer-chased addresses a real target would serve out-of-band from the
// engine's bulk snapshot.
type fakeTarget struct {
	blobs map[uint64][]byte
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{blobs: make(map[uint64][]byte)}
}

func (f *fakeTarget) set(addr uint64, b []byte) { f.blobs[addr] = b }

func (f *fakeTarget) EnumerateRegions() ([]platform.RegionInfo, error) {
	out := make([]platform.RegionInfo, 0, len(f.blobs))
	for start, b := range f.blobs {
		out = append(out, platform.RegionInfo{Start: start, Length: len(b)})
	}
	return out, nil
}

func (f *fakeTarget) Read(addr uint64, length int) ([]byte, error) {
	for start, b := range f.blobs {
		if addr >= start && addr+uint64(length) <= start+uint64(len(b)) {
			off := addr - start
			out := make([]byte, length)
			copy(out, b[off:off+uint64(length)])
			return out, nil
		}
	}
	return nil, &platform.ReadError{Addr: addr, Length: length, Err: errors.New("fake: not mapped")}
}

func (f *fakeTarget) Close() error { return nil }

// builder assembles a little-endian byte blob field by field, mirroring the
// struct layouts in layout.go.
type builder struct{ b []byte }

func newBuilder() *builder { return &builder{} }

func (w *builder) u64(v uint64) *builder {
	w.b = binary.LittleEndian.AppendUint64(w.b, v)
	return w
}

func (w *builder) i64(v int64) *builder { return w.u64(uint64(v)) }

func (w *builder) i32(v int32) *builder {
	w.b = binary.LittleEndian.AppendUint32(w.b, uint32(v))
	return w
}

func (w *builder) f64(v float64) *builder {
	return w.u64(math.Float64bits(v))
}

func (w *builder) bytes(b []byte) *builder {
	w.b = append(w.b, b...)
	return w
}

func (w *builder) pad(n int) *builder {
	w.b = append(w.b, make([]byte, n)...)
	return w
}

func (w *builder) build() []byte { return w.b }

// nameBuf builds a tp_name buffer: a NUL-terminated name padded out to
// maxTypeNameLen bytes, long enough to satisfy both the 4-byte prefix read
// of scanMetaTypeCandidates and the full-length read of resolveTypeName.
func nameBuf(name string) []byte {
	b := make([]byte, maxTypeNameLen)
	copy(b, name)
	return b
}

// headerBytes builds a Header blob: ob_refcnt, ob_type.
func headerBytes(refcnt int64, obType uint64) []byte {
	return newBuilder().i64(refcnt).u64(obType).build()
}

// varHeaderBytes builds a VarHeader blob: Header + ob_size.
func varHeaderBytes(refcnt int64, obType uint64, obSize int64) []byte {
	return newBuilder().i64(refcnt).u64(obType).i64(obSize).build()
}

// typeHeaderBytes builds a TypeHeader blob: VarHeader + tp_name.
func typeHeaderBytes(refcnt int64, obType uint64, tpName uint64) []byte {
	return newBuilder().i64(refcnt).u64(obType).i64(0).u64(tpName).build()
}

func newTestEngine(target platform.TargetMemory, cacheRegions []memview.MemoryRegion) *EngineState {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewEngineState(target, memview.NewCache(cacheRegions), log)
}
