// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package platform

import (
	"os"
	"strconv"
	"strings"
)

// ListProcesses enumerates every process visible under /proc and narrows
// it to filter by pid, executable path glob, and title glob. A process
// this call cannot read (permission denied, or it exited mid-scan) is
// silently skipped rather than failing the whole listing.
func ListProcesses(filter ProcessFilter) ([]ProcessInfo, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}

	var all []ProcessInfo
	for _, ent := range entries {
		pid, err := strconv.ParseUint(ent.Name(), 10, 32)
		if err != nil {
			continue // not a pid directory
		}
		info, ok := readProcessInfo(uint32(pid))
		if !ok {
			continue
		}
		all = append(all, info)
	}
	return FilterProcesses(all, filter)
}

func readProcessInfo(pid uint32) (ProcessInfo, bool) {
	base := "/proc/" + strconv.FormatUint(uint64(pid), 10)

	exe, err := os.Readlink(base + "/exe")
	if err != nil {
		// Kernel threads and processes we don't own have no /exe link;
		// they are never a game client so skip them.
		return ProcessInfo{}, false
	}

	title := exe
	if comm, err := os.ReadFile(base + "/comm"); err == nil {
		title = strings.TrimSpace(string(comm))
	}

	return ProcessInfo{PID: pid, Path: exe, Title: title}, true
}
