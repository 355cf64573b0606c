// Copyright 2026 The GPXmap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipfile

import "sync"

// The package carries its own CRC-32 (IEEE polynomial) table because the
// traditional cipher's key schedule is defined in terms of single raw table
// steps, without the init/final inversion of a whole-buffer checksum.
// The table is built once and shared read-only afterwards.
var crcTable = sync.OnceValue(buildCRCTable)

func buildCRCTable() *[256]uint32 {
	var t [256]uint32
	for i := range t {
		c := uint32(i)
		for k := 0; k < 8; k++ {
			if c&1 != 0 {
				c = 0xedb88320 ^ (c >> 1)
			} else {
				c >>= 1
			}
		}
		t[i] = c
	}
	return &t
}

// crcUpdate performs a single raw CRC-32 table step. This is the primitive
// the cipher key schedule is built on.
func crcUpdate(crc uint32, b byte) uint32 {
	return crcTable()[(crc^uint32(b))&0xff] ^ (crc >> 8)
}

// crcChecksum computes the standard CRC-32 checksum of data, as stored in
// the central directory headers.
func crcChecksum(data []byte) uint32 {
	crc := ^uint32(0)
	for _, b := range data {
		crc = crcUpdate(crc, b)
	}
	return ^crc
}
