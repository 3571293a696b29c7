// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newSearchTypeCmd() *cobra.Command {
	var typeContext string
	cmd := &cobra.Command{
		Use:   "search-type NAME",
		Short: "Find every type descriptor named NAME",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := attachAndInit(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			var ctxAddr uint64
			if typeContext != "" {
				ctxAddr, err = strconv.ParseUint(typeContext, 0, 64)
				if err != nil {
					return fmt.Errorf("invalid --type-context: %w", err)
				}
			}

			hits, err := e.SearchType(cmd.Context(), args[0], ctxAddr)
			if err != nil {
				return err
			}
			for _, addr := range hits {
				fmt.Printf("0x%x\n", addr)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&typeContext, "type-context", "", "meta-type address to search within (hex or decimal); defaults to the discovered meta-type")
	return cmd
}
