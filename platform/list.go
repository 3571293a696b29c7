// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package platform

import (
	"fmt"

	wildcard "github.com/IGLOU-EU/go-wildcard/v2"
)

// ErrNoProcess is returned by ListProcesses when no running process
// matches the filter.
var ErrNoProcess = fmt.Errorf("no matching process")

// FilterProcesses narrows all to the processes matching every non-zero
// field of filter. It is the pure, OS-independent half of ListProcesses,
// split out so it can be unit tested without a real process table.
func FilterProcesses(all []ProcessInfo, filter ProcessFilter) ([]ProcessInfo, error) {
	var out []ProcessInfo
	for _, p := range all {
		if filter.PID != 0 && p.PID != filter.PID {
			continue
		}
		if filter.PathGlob != "" && !wildcard.Match(filter.PathGlob, p.Path) {
			continue
		}
		if filter.TitleGlob != "" && !wildcard.Match(filter.TitleGlob, p.Title) {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w (pid=%v, path=%q, title=%q)", ErrNoProcess, filter.PID, filter.PathGlob, filter.TitleGlob)
	}
	return out, nil
}
