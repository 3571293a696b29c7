// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tripwire/eveprobe"
)

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode ADDR",
		Short: "Decode the object at ADDR (hex or decimal) and print its fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := strconv.ParseUint(args[0], 0, 64)
			if err != nil {
				return fmt.Errorf("invalid address %q: %w", args[0], err)
			}
			e, err := attachAndInit(cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			return decodeAndPrint(e, addr)
		},
	}
}

// decodeAndPrint prints the node header for addr, then dispatches on its
// type name to print the decoded body. The switch covers the decodable
// entries of the closed dispatch table in internal/runtimeobj/node.go;
// "type", "bytes", "bytearray" and "set" have no body decoder here and
// reach the custom-object branch, which reports an error for them.
func decodeAndPrint(e *eveprobe.Engine, addr uint64) error {
	n, err := e.Node(addr)
	if err != nil {
		return err
	}
	fmt.Printf("addr 0x%x type %s size %d\n", n.BaseAddr, n.TypeName, n.Size())

	switch n.TypeName {
	case "int":
		v, err := e.DecodeInt(addr)
		if err != nil {
			return err
		}
		fmt.Println(v)
	case "bool":
		v, err := e.DecodeBool(addr)
		if err != nil {
			return err
		}
		fmt.Println(v)
	case "float":
		v, err := e.DecodeFloat(addr)
		if err != nil {
			return err
		}
		fmt.Println(v)
	case "str":
		v, err := e.DecodeStr(addr)
		if err != nil {
			return err
		}
		fmt.Println(v)
	case "unicode":
		v, err := e.DecodeUnicode(addr)
		if err != nil {
			return err
		}
		fmt.Println(v)
	case "long":
		v, err := e.DecodeLong(addr)
		if err != nil {
			return err
		}
		fmt.Println(v)
	case "list", "tuple":
		items, err := e.DecodeList(addr)
		if err != nil {
			return err
		}
		for _, it := range items {
			fmt.Printf("0x%x\n", it)
		}
	case "dict":
		attrs, err := e.DecodeDict(addr)
		if err != nil {
			return err
		}
		for k, v := range attrs {
			fmt.Printf("%s 0x%x\n", k, v)
		}
	case "NoneType":
		fmt.Println("None")
	default:
		attrsAddr, err := e.DecodeCustom(addr)
		if err != nil {
			return err
		}
		fmt.Printf("attributes 0x%x\n", attrsAddr)
	}
	return nil
}
