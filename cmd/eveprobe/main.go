// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The eveprobe tool attaches read-only to a running target process,
// discovers its embedded dynamically-typed object runtime, and decodes
// objects out of a point-in-time snapshot of its memory.
// Run "eveprobe help" for a list of commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tripwire/eveprobe/platform"
)

var (
	flagPID       uint32
	flagPathGlob  string
	flagTitleGlob string
	flagWorkers   int
	flagVerbose   bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "eveprobe",
		Short:         "Read-only memory forensics for an embedded dynamically-typed object runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Uint32Var(&flagPID, "pid", 0, "target process id")
	root.PersistentFlags().StringVar(&flagPathGlob, "path", "", "glob matched against the target's executable path")
	root.PersistentFlags().StringVar(&flagTitleGlob, "title", "", "glob matched against the target's process name")
	root.PersistentFlags().IntVar(&flagWorkers, "workers", 0, "region scanner worker pool size (0 = unbounded)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newScanCmd(), newSearchTypeCmd(), newDecodeCmd(), newShellCmd(), newListCmd())
	return root
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List running processes matching --pid/--path/--title",
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := resolveTargets()
			if err != nil {
				return err
			}
			for _, t := range targets {
				fmt.Printf("%d\t%s\t%s\n", t.PID, t.Path, t.Title)
			}
			return nil
		},
	}
}

func resolveTargets() ([]platform.ProcessInfo, error) {
	return platform.ListProcesses(platform.ProcessFilter{
		PID:       flagPID,
		PathGlob:  flagPathGlob,
		TitleGlob: flagTitleGlob,
	})
}

// resolveTarget narrows the filter to exactly one process, the precondition
// every command below requires before it can attach.
func resolveTarget() (platform.ProcessInfo, error) {
	targets, err := resolveTargets()
	if err != nil {
		return platform.ProcessInfo{}, err
	}
	if len(targets) > 1 {
		return platform.ProcessInfo{}, fmt.Errorf("%d processes matched; narrow with --pid, --path or --title", len(targets))
	}
	return targets[0], nil
}
