// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package platform

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"syscall"
)

// PtraceTarget is a TargetMemory backed by PTRACE_ATTACH to a running
// Linux process, reading its committed regions out of /proc/<pid>/maps
// and /proc/<pid>/mem. All ptrace calls run on a single OS thread that is
// locked for the lifetime of the attach, since ptrace state is bound to
// the thread that issued PTRACE_ATTACH.
type PtraceTarget struct {
	pid int
	mem *os.File

	fc chan func() error
	ec chan error
	done chan struct{}
}

// Attach opens a PtraceTarget on the given pid. The calling goroutine
// blocks until the attach completes or fails.
func Attach(pid int) (*PtraceTarget, error) {
	t := &PtraceTarget{
		pid:  pid,
		fc:   make(chan func() error),
		ec:   make(chan error),
		done: make(chan struct{}),
	}
	go t.run()

	if err := t.do(func() error { return syscall.PtraceAttach(pid) }); err != nil {
		t.Close()
		return nil, fmt.Errorf("ptrace attach pid %d: %w", pid, err)
	}
	var ws syscall.WaitStatus
	if _, err := syscall.Wait4(pid, &ws, 0, nil); err != nil {
		t.Close()
		return nil, fmt.Errorf("wait4 pid %d: %w", pid, err)
	}

	mem, err := os.OpenFile(fmt.Sprintf("/proc/%d/mem", pid), os.O_RDONLY, 0)
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("open /proc/%d/mem: %w", pid, err)
	}
	t.mem = mem
	return t, nil
}

// run dedicates an OS thread to this target's ptrace calls.
func (t *PtraceTarget) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	for {
		select {
		case f := <-t.fc:
			t.ec <- f()
		case <-t.done:
			return
		}
	}
}

func (t *PtraceTarget) do(f func() error) error {
	t.fc <- f
	return <-t.ec
}

// EnumerateRegions parses /proc/<pid>/maps for committed, readable,
// non-guard ranges. Lines lacking the 'r' permission bit are skipped.
func (t *PtraceTarget) EnumerateRegions() ([]RegionInfo, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", t.pid))
	if err != nil {
		return nil, fmt.Errorf("open /proc/%d/maps: %w", t.pid, err)
	}
	defer f.Close()

	var regions []RegionInfo
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if !strings.Contains(fields[1], "r") {
			continue
		}
		bounds := strings.SplitN(fields[0], "-", 2)
		if len(bounds) != 2 {
			continue
		}
		lo, err1 := strconv.ParseUint(bounds[0], 16, 64)
		hi, err2 := strconv.ParseUint(bounds[1], 16, 64)
		if err1 != nil || err2 != nil || hi <= lo {
			continue
		}
		regions = append(regions, RegionInfo{Start: lo, Length: int(hi - lo)})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan /proc/%d/maps: %w", t.pid, err)
	}
	return regions, nil
}

// Read copies length bytes starting at addr via pread on /proc/<pid>/mem.
func (t *PtraceTarget) Read(addr uint64, length int) ([]byte, error) {
	buf := make([]byte, length)
	n, err := t.mem.ReadAt(buf, int64(addr))
	if err != nil && n < length {
		return nil, &ReadError{Addr: addr, Length: length, Err: err}
	}
	return buf, nil
}

// Close detaches from the target and releases the /proc/<pid>/mem handle.
func (t *PtraceTarget) Close() error {
	select {
	case <-t.done:
		return nil
	default:
	}
	t.do(func() error { return syscall.PtraceDetach(t.pid) })
	close(t.done)
	var err error
	if t.mem != nil {
		err = t.mem.Close()
	}
	return err
}

var _ TargetMemory = (*PtraceTarget)(nil)
