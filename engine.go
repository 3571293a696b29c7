// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package eveprobe is a thin façade over internal/memview and
// internal/runtimeobj: it owns the lifecycle of one attached target
// (snapshot, discover, decode, detach) so that callers — the CLI in
// cmd/eveprobe, or a caller embedding this package directly — never touch
// the two internal packages themselves. The public type is a handle; the
// internal packages do the work.
package eveprobe

import (
	"context"
	"fmt"
	"iter"

	"github.com/sirupsen/logrus"

	"github.com/tripwire/eveprobe/internal/memview"
	"github.com/tripwire/eveprobe/internal/runtimeobj"
	"github.com/tripwire/eveprobe/platform"
)

// ListTargets enumerates running processes matching filter, the entry
// point for locating a candidate target process before attaching.
func ListTargets(filter platform.ProcessFilter) ([]platform.ProcessInfo, error) {
	return platform.ListProcesses(filter)
}

// Engine owns one attached target's memory snapshot and discovered object
// graph state. The zero value is not usable; build one with Attach.
type Engine struct {
	target platform.TargetMemory
	state  *runtimeobj.EngineState
}

// Attach opens pid for read-only memory access and takes an initial
// snapshot of every readable region. The returned Engine must be Closed
// when the caller is done with it.
func Attach(pid int, log *logrus.Logger) (*Engine, error) {
	target, err := platform.Attach(pid)
	if err != nil {
		return nil, fmt.Errorf("eveprobe: attach pid %d: %w", pid, err)
	}
	cache, err := memview.Snapshot(target)
	if err != nil {
		target.Close()
		return nil, fmt.Errorf("eveprobe: snapshot pid %d: %w", pid, err)
	}
	return &Engine{
		target: target,
		state:  runtimeobj.NewEngineState(target, cache, log),
	}, nil
}

// Close releases the underlying target handle. Safe to call more than
// once.
func (e *Engine) Close() error { return e.target.Close() }

// Resnapshot discards the current region cache and takes a fresh one,
// without losing the meta-type/UIRoot addresses Init already discovered —
// those are process-layout facts that don't change between snapshots of
// the same running target.
func (e *Engine) Resnapshot() error {
	cache, err := memview.Snapshot(e.target)
	if err != nil {
		return fmt.Errorf("eveprobe: resnapshot: %w", err)
	}
	metaAddr, uiRootAddr, workers := e.state.MetaTypeAddr, e.state.UIRootTypeAddr, e.state.Workers
	e.state = runtimeobj.NewEngineState(e.target, cache, e.state.Log)
	e.state.MetaTypeAddr = metaAddr
	e.state.UIRootTypeAddr = uiRootAddr
	e.state.Workers = workers
	return nil
}

// Init discovers the runtime's meta-type and, from it, the named
// verification types (UIRoot by default). See runtimeobj.EngineState.Init.
func (e *Engine) Init(ctx context.Context, verifyNames []string) error {
	return e.state.Init(ctx, verifyNames)
}

// SetWorkers bounds how many regions memview.Scan walks concurrently
// during Init and SearchUIRoot; 0 means unbounded.
func (e *Engine) SetWorkers(n int) { e.state.Workers = n }

// MetaTypeAddr returns the address Init discovered for the self-typed
// meta-type, or 0 if Init hasn't succeeded yet.
func (e *Engine) MetaTypeAddr() uint64 { return e.state.MetaTypeAddr }

// UIRootTypeAddr returns the address Init discovered for the "UIRoot"
// type, or 0 if Init hasn't succeeded yet.
func (e *Engine) UIRootTypeAddr() uint64 { return e.state.UIRootTypeAddr }

// SearchType finds every type descriptor named name whose meta-type is
// typeContext (or the discovered meta-type, if typeContext is 0).
func (e *Engine) SearchType(ctx context.Context, name string, typeContext uint64) ([]uint64, error) {
	return e.state.SearchType(ctx, name, typeContext)
}

// SearchUIRoot finds every live UIRoot-typed object in the current
// snapshot.
func (e *Engine) SearchUIRoot(ctx context.Context) ([]uint64, error) {
	return e.state.FindUIRootCandidates(ctx)
}

// Node returns the cached node at addr, decoding it from the snapshot if
// this is the first time addr has been seen.
func (e *Engine) Node(addr uint64) (*runtimeobj.Node, error) {
	return e.state.NewNode(addr)
}

// Expand lazily walks the object graph rooted at addr, up to maxDepth
// pointer hops.
func (e *Engine) Expand(addr uint64, maxDepth int) iter.Seq[*runtimeobj.Node] {
	return e.state.Expand(addr, maxDepth)
}

// DecodeInt decodes the node at addr as a boxed integer.
func (e *Engine) DecodeInt(addr uint64) (int64, error) {
	n, err := e.state.NewNode(addr)
	if err != nil {
		return 0, err
	}
	return runtimeobj.DecodeInt(e.state, n)
}

// DecodeBool decodes the node at addr as a boxed boolean.
func (e *Engine) DecodeBool(addr uint64) (bool, error) {
	n, err := e.state.NewNode(addr)
	if err != nil {
		return false, err
	}
	return runtimeobj.DecodeBool(e.state, n)
}

// DecodeFloat decodes the node at addr as a boxed double.
func (e *Engine) DecodeFloat(addr uint64) (float64, error) {
	n, err := e.state.NewNode(addr)
	if err != nil {
		return 0, err
	}
	return runtimeobj.DecodeFloat(e.state, n)
}

// DecodeStr decodes the node at addr as a narrow string.
func (e *Engine) DecodeStr(addr uint64) (string, error) {
	n, err := e.state.NewNode(addr)
	if err != nil {
		return "", err
	}
	return runtimeobj.DecodeStr(e.state, n)
}

// DecodeUnicode decodes the node at addr as a wide string.
func (e *Engine) DecodeUnicode(addr uint64) (string, error) {
	n, err := e.state.NewNode(addr)
	if err != nil {
		return "", err
	}
	return runtimeobj.DecodeUnicode(e.state, n)
}

// DecodeLong decodes the node at addr as an arbitrary-precision integer.
func (e *Engine) DecodeLong(addr uint64) (int64, error) {
	n, err := e.state.NewNode(addr)
	if err != nil {
		return 0, err
	}
	return runtimeobj.DecodeLong(e.state, n)
}

// DecodeList decodes the node at addr as a list or tuple's item pointers.
func (e *Engine) DecodeList(addr uint64) ([]uint64, error) {
	n, err := e.state.NewNode(addr)
	if err != nil {
		return nil, err
	}
	return runtimeobj.DecodeList(e.state, n)
}

// DecodeDict decodes the node at addr as a string-keyed attribute dict.
func (e *Engine) DecodeDict(addr uint64) (map[string]uint64, error) {
	n, err := e.state.NewNode(addr)
	if err != nil {
		return nil, err
	}
	return runtimeobj.DecodeDict(e.state, n)
}

// DecodeCustom decodes the node at addr as an opaque custom object,
// returning its attribute-dictionary pointer.
func (e *Engine) DecodeCustom(addr uint64) (uint64, error) {
	n, err := e.state.NewNode(addr)
	if err != nil {
		return 0, err
	}
	return runtimeobj.DecodeCustom(e.state, n)
}
