// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memview

import (
	"context"
	"sync"
	"unsafe"

	"golang.org/x/sync/errgroup"
)

// Scan walks every 8-byte-aligned offset of every region in c in parallel
// over regions (sequential within a region), reinterpreting the bytes at
// each offset as *T and calling pred. Every offset at which pred reports a
// hit contributes its returned address to the result; order is
// unspecified. The 8-byte stride matches the pointer alignment of every
// object header in the target's object model, so unaligned candidates are
// never produced.
//
// workers bounds how many regions are scanned concurrently; workers <= 0
// means unbounded (one goroutine per region). ctx is checked once before
// each region is walked: regions not yet started are skipped after
// cancellation, while a region already being walked runs to its end.
func Scan[T any](ctx context.Context, c *Cache, workers int, pred func(base uint64, tmpl *T) (uint64, bool)) ([]uint64, error) {
	size := int(unsafe.Sizeof(*new(T)))

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	var mu sync.Mutex
	var hits []uint64

	for ri := range c.regions {
		r := &c.regions[ri]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var local []uint64
			for off := 0; off+size <= r.Length; off += 8 {
				tmpl := (*T)(unsafe.Pointer(&r.Bytes[off]))
				if addr, ok := pred(r.Start+uint64(off), tmpl); ok {
					local = append(local, addr)
				}
			}
			if len(local) > 0 {
				mu.Lock()
				hits = append(hits, local...)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return hits, nil
}
