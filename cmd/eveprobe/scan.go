// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tripwire/eveprobe"
)

func newLogger() *logrus.Logger {
	log := logrus.New()
	if flagVerbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// attachAndInit narrows --pid/--path/--title to one process, attaches to
// it, takes an initial snapshot, and runs type discovery. Callers must
// Close the returned Engine.
func attachAndInit(cmd *cobra.Command) (*eveprobe.Engine, error) {
	target, err := resolveTarget()
	if err != nil {
		return nil, err
	}
	e, err := eveprobe.Attach(int(target.PID), newLogger())
	if err != nil {
		return nil, err
	}
	e.SetWorkers(flagWorkers)
	if err := e.Init(cmd.Context(), nil); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Attach to a target, discover its type system, and list live UIRoot candidates",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := attachAndInit(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			fmt.Printf("meta_type_addr 0x%x\n", e.MetaTypeAddr())
			fmt.Printf("ui_root_type_addr 0x%x\n", e.UIRootTypeAddr())

			hits, err := e.SearchUIRoot(cmd.Context())
			if err != nil {
				return err
			}
			for _, addr := range hits {
				fmt.Printf("ui_root 0x%x\n", addr)
			}
			return nil
		},
	}
}
