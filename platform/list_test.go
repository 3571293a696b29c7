// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package platform

import (
	"errors"
	"testing"
)

func TestFilterProcesses(t *testing.T) {
	all := []ProcessInfo{
		{PID: 100, Path: `C:\Games\eve\bin\exefile.exe`, Title: "EVE - myaccount"},
		{PID: 200, Path: `C:\Games\eve\bin\exefile.exe`, Title: "EVE - altaccount"},
		{PID: 300, Path: `C:\Windows\explorer.exe`, Title: "Program Manager"},
	}

	tests := []struct {
		name   string
		filter ProcessFilter
		want   []uint32
	}{
		{"by pid", ProcessFilter{PID: 200}, []uint32{200}},
		{"by path glob", ProcessFilter{PathGlob: `*\eve\bin\exefile.exe`}, []uint32{100, 200}},
		{"by title glob", ProcessFilter{TitleGlob: "EVE - alt*"}, []uint32{200}},
		{"no filter matches all", ProcessFilter{}, []uint32{100, 200, 300}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FilterProcesses(all, tt.filter)
			if err != nil {
				t.Fatalf("FilterProcesses: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d processes, want %d", len(got), len(tt.want))
			}
			for i, p := range got {
				if p.PID != tt.want[i] {
					t.Errorf("got[%d].PID = %d, want %d", i, p.PID, tt.want[i])
				}
			}
		})
	}
}

func TestFilterProcessesNotFound(t *testing.T) {
	_, err := FilterProcesses(nil, ProcessFilter{PID: 9999})
	if !errors.Is(err, ErrNoProcess) {
		t.Fatalf("err = %v, want wrapping ErrNoProcess", err)
	}
}
