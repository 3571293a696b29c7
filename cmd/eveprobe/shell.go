// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/tripwire/eveprobe"
)

// errShellExit signals runShell to stop reading input; it is never
// reported as a command failure.
var errShellExit = errors.New("shell: exit requested")

// newShellCmd opens a readline REPL against an already-attached, already-
// Init'd engine, for ad hoc search-type/decode/expand queries without
// re-attaching and re-scanning on every command.
func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Attach once and open an interactive REPL for search-type/decode/expand queries",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := attachAndInit(cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			return runShell(cmd, e)
		},
	}
}

func runShell(cmd *cobra.Command, e *eveprobe.Engine) error {
	rl, err := readline.New("eveprobe> ")
	if err != nil {
		return fmt.Errorf("shell: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			return nil
		}
		if err != nil {
			return err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if err := runShellCommand(cmd, e, fields); err != nil {
			if errors.Is(err, errShellExit) {
				return nil
			}
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func runShellCommand(cmd *cobra.Command, e *eveprobe.Engine, fields []string) error {
	switch fields[0] {
	case "search-type":
		if len(fields) != 2 {
			return fmt.Errorf("usage: search-type NAME")
		}
		hits, err := e.SearchType(cmd.Context(), fields[1], 0)
		if err != nil {
			return err
		}
		for _, addr := range hits {
			fmt.Printf("0x%x\n", addr)
		}
	case "decode":
		if len(fields) != 2 {
			return fmt.Errorf("usage: decode ADDR")
		}
		addr, err := strconv.ParseUint(fields[1], 0, 64)
		if err != nil {
			return fmt.Errorf("invalid address %q: %w", fields[1], err)
		}
		return decodeAndPrint(e, addr)
	case "expand":
		if len(fields) != 3 {
			return fmt.Errorf("usage: expand ADDR DEPTH")
		}
		addr, err := strconv.ParseUint(fields[1], 0, 64)
		if err != nil {
			return fmt.Errorf("invalid address %q: %w", fields[1], err)
		}
		depth, err := strconv.Atoi(fields[2])
		if err != nil {
			return fmt.Errorf("invalid depth %q: %w", fields[2], err)
		}
		for n := range e.Expand(addr, depth) {
			fmt.Printf("0x%x %s\n", n.BaseAddr, n.TypeName)
		}
	case "ui-root":
		hits, err := e.SearchUIRoot(cmd.Context())
		if err != nil {
			return err
		}
		for _, addr := range hits {
			fmt.Printf("0x%x\n", addr)
		}
	case "quit", "exit":
		return errShellExit
	default:
		return fmt.Errorf("unknown command %q (try search-type, decode, expand, ui-root, exit)", fields[0])
	}
	return nil
}
