// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux

package platform

import "fmt"

// ListProcesses is not implemented on this platform; only the Linux
// /proc-based process table enumeration (enumerate_linux.go) is wired up,
// matching PtraceTarget's Linux-only attach support.
func ListProcesses(filter ProcessFilter) ([]ProcessInfo, error) {
	return nil, fmt.Errorf("platform: ListProcesses not supported on this platform")
}
