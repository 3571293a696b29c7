// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux

package platform

import (
	"fmt"
	"runtime"
)

// PtraceTarget is unavailable outside Linux; callers should supply their
// own TargetMemory implementation on other platforms (e.g. ReadProcessMemory
// on Windows, the original target of this tool's pyevereader ancestor).
type PtraceTarget struct{}

// Attach always fails on non-Linux platforms.
func Attach(pid int) (*PtraceTarget, error) {
	return nil, fmt.Errorf("platform: ptrace attach not supported on %s", runtime.GOOS)
}

func (t *PtraceTarget) EnumerateRegions() ([]RegionInfo, error) {
	return nil, fmt.Errorf("platform: not supported on %s", runtime.GOOS)
}

func (t *PtraceTarget) Read(addr uint64, length int) ([]byte, error) {
	return nil, fmt.Errorf("platform: not supported on %s", runtime.GOOS)
}

func (t *PtraceTarget) Close() error { return nil }

var _ TargetMemory = (*PtraceTarget)(nil)
