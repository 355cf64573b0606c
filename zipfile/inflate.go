// Copyright 2026 The GPXmap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipfile

import (
	"fmt"
	"sync"
)

// DEFLATE alphabet limits from RFC 1951.
const (
	maxBits      = 15  // longest Huffman code
	maxLitCodes  = 286 // literal/length alphabet size
	maxDistCodes = 30  // distance alphabet size
	numClenCodes = 19  // code-length alphabet size
	endOfBlock   = 256
)

// Base values and extra-bit counts for length symbols 257..285.
var (
	lengthBase = [29]int{
		3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31,
		35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 258,
	}
	lengthExtra = [29]uint{
		0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2,
		3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 0,
	}
)

// Base values and extra-bit counts for distance symbols 0..29.
var (
	distBase = [30]int{
		1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193,
		257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145, 8193,
		12289, 16385, 24577,
	}
	distExtra = [30]uint{
		0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6,
		7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13,
	}
)

// Order in which code lengths of the code-length alphabet are transmitted.
var clenOrder = [numClenCodes]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

// bitReader reads a DEFLATE bit stream from an in-memory buffer, LSB first.
// Every refill is bounds-checked so truncated or adversarial input fails
// with an error instead of looping or panicking.
type bitReader struct {
	src []byte
	pos int    // next unread byte in src
	buf uint32 // unconsumed bits, LSB aligned
	cnt uint   // number of valid bits in buf
}

func (br *bitReader) bits(n uint) (uint32, error) {
	for br.cnt < n {
		if br.pos >= len(br.src) {
			return 0, fmt.Errorf("%w: unexpected end of input", ErrCorruptStream)
		}
		br.buf |= uint32(br.src[br.pos]) << br.cnt
		br.pos++
		br.cnt += 8
	}
	v := br.buf & (1<<n - 1)
	br.buf >>= n
	br.cnt -= n
	return v, nil
}

// alignByte discards the unconsumed bits of the current byte, as required
// at the start of a stored block. Whole buffered bytes are kept.
func (br *bitReader) alignByte() {
	drop := br.cnt % 8
	br.buf >>= drop
	br.cnt -= drop
}

// readByte reads the next whole byte, honoring bytes already pulled into the
// bit buffer. Only valid on a byte boundary.
func (br *bitReader) readByte() (byte, error) {
	if br.cnt >= 8 {
		b := byte(br.buf)
		br.buf >>= 8
		br.cnt -= 8
		return b, nil
	}
	if br.pos >= len(br.src) {
		return 0, fmt.Errorf("%w: unexpected end of input", ErrCorruptStream)
	}
	b := br.src[br.pos]
	br.pos++
	return b, nil
}

// huffTable is a canonical Huffman code: a histogram of code lengths and the
// symbols ordered by canonical code assignment. Decoding walks the histogram
// bit by bit instead of using a lookup table; a table-driven decoder would be
// faster but decodes identically.
type huffTable struct {
	count  [maxBits + 1]int
	symbol []int
}

// build constructs the canonical code from a list of per-symbol code lengths.
// Over-subscribed codes are rejected. Incomplete codes are rejected too,
// except the degenerate single-symbol code that common compressors emit for
// a distance alphabet with one used distance.
func (h *huffTable) build(lengths []int) error {
	h.count = [maxBits + 1]int{}
	for _, n := range lengths {
		h.count[n]++
	}
	if h.count[0] == len(lengths) {
		// Empty code; any attempt to decode with it fails.
		h.symbol = nil
		return nil
	}

	left := 1
	for n := 1; n <= maxBits; n++ {
		left <<= 1
		left -= h.count[n]
		if left < 0 {
			return fmt.Errorf("%w: over-subscribed code lengths", ErrCorruptBlock)
		}
	}
	if left > 0 && !(len(lengths)-h.count[0] == 1 && h.count[1] == 1) {
		return fmt.Errorf("%w: incomplete code lengths", ErrCorruptBlock)
	}

	var offs [maxBits + 1]int
	for n := 1; n < maxBits; n++ {
		offs[n+1] = offs[n] + h.count[n]
	}

	h.symbol = make([]int, len(lengths)-h.count[0])
	for sym, n := range lengths {
		if n != 0 {
			h.symbol[offs[n]] = sym
			offs[n]++
		}
	}
	return nil
}

// decode reads one symbol, building the code MSB-first one bit at a time and
// comparing against the cumulative counts per code length.
func (h *huffTable) decode(br *bitReader) (int, error) {
	code, first, index := 0, 0, 0
	for n := 1; n <= maxBits; n++ {
		b, err := br.bits(1)
		if err != nil {
			return 0, err
		}
		code |= int(b)

		count := h.count[n]
		if code-first < count {
			return h.symbol[index+code-first], nil
		}
		index += count
		first = (first + count) << 1
		code <<= 1
	}
	return 0, fmt.Errorf("%w: invalid huffman code", ErrCorruptStream)
}

// Fixed literal/length and distance codes per RFC 1951 section 3.2.6,
// built once on first use.
var (
	fixedOnce sync.Once
	fixedLit  huffTable
	fixedDist huffTable
)

func fixedTablesInit() {
	fixedOnce.Do(func() {
		var lit [288]int
		for i := 0; i < 144; i++ {
			lit[i] = 8
		}
		for i := 144; i < 256; i++ {
			lit[i] = 9
		}
		for i := 256; i < 280; i++ {
			lit[i] = 7
		}
		for i := 280; i < 288; i++ {
			lit[i] = 8
		}
		// The fixed code spans all 288 literal and 32 distance symbols;
		// the unused high symbols are rejected at decode time.
		var dist [32]int
		for i := range dist {
			dist[i] = 5
		}
		fixedLit.build(lit[:])
		fixedDist.build(dist[:])
	})
}

// inflateState decompresses one entry's DEFLATE stream into a buffer
// pre-sized to the declared uncompressed size. The declared size is a hard
// bound: writing past it indicates a corrupt or adversarial archive.
type inflateState struct {
	br  bitReader
	out []byte
	pos int
}

// inflate decompresses a raw DEFLATE stream (a sequence of back-to-back
// blocks, the last one flagged final) into a freshly allocated buffer of
// exactly size bytes.
func inflate(src []byte, size int) ([]byte, error) {
	fixedTablesInit()

	st := &inflateState{
		br:  bitReader{src: src},
		out: make([]byte, size),
	}

	for {
		final, err := st.br.bits(1)
		if err != nil {
			return nil, err
		}
		typ, err := st.br.bits(2)
		if err != nil {
			return nil, err
		}

		switch typ {
		case 0:
			err = st.storedBlock()
		case 1:
			err = st.huffmanBlock(&fixedLit, &fixedDist)
		case 2:
			err = st.dynamicBlock()
		default:
			err = fmt.Errorf("%w: reserved block type", ErrCorruptBlock)
		}
		if err != nil {
			return nil, err
		}

		if final == 1 {
			break
		}
	}

	if st.pos != len(st.out) {
		return nil, fmt.Errorf("%w: declared size %d, decoded %d bytes", ErrCorruptStream, len(st.out), st.pos)
	}
	return st.out, nil
}

// storedBlock copies a raw block: byte alignment, a 16-bit length, its one's
// complement, then length literal bytes.
func (st *inflateState) storedBlock() error {
	st.br.alignByte()

	var hdr [4]byte
	for i := range hdr {
		b, err := st.br.readByte()
		if err != nil {
			return err
		}
		hdr[i] = b
	}
	n := int(hdr[0]) | int(hdr[1])<<8
	nn := int(hdr[2]) | int(hdr[3])<<8
	if uint16(nn) != uint16(^n) {
		return fmt.Errorf("%w: stored block length does not match complement", ErrCorruptBlock)
	}

	if st.pos+n > len(st.out) {
		return fmt.Errorf("%w: output exceeds declared size", ErrCorruptStream)
	}
	for j := 0; j < n; j++ {
		b, err := st.br.readByte()
		if err != nil {
			return err
		}
		st.out[st.pos] = b
		st.pos++
	}
	return nil
}

// dynamicBlock reads the transmitted code lengths, builds the two Huffman
// codes and decodes the block with them.
func (st *inflateState) dynamicBlock() error {
	v, err := st.br.bits(5)
	if err != nil {
		return err
	}
	nlit := int(v) + 257
	if nlit > maxLitCodes {
		return fmt.Errorf("%w: too many literal/length codes", ErrCorruptBlock)
	}

	if v, err = st.br.bits(5); err != nil {
		return err
	}
	ndist := int(v) + 1
	if ndist > maxDistCodes {
		return fmt.Errorf("%w: too many distance codes", ErrCorruptBlock)
	}

	if v, err = st.br.bits(4); err != nil {
		return err
	}
	nclen := int(v) + 4

	// The code-length alphabet is itself Huffman coded, transmitted in the
	// fixed clenOrder permutation.
	var clens [numClenCodes]int
	for i := 0; i < nclen; i++ {
		if v, err = st.br.bits(3); err != nil {
			return err
		}
		clens[clenOrder[i]] = int(v)
	}

	var clTable huffTable
	if err := clTable.build(clens[:]); err != nil {
		return err
	}

	// Literal/length and distance code lengths share one sequence with
	// run-length codes: 16 repeats the previous length, 17 and 18 repeat
	// zero.
	var lengths [maxLitCodes + maxDistCodes]int
	for i, n := 0, nlit+ndist; i < n; {
		sym, err := clTable.decode(&st.br)
		if err != nil {
			return err
		}
		if sym < 16 {
			lengths[i] = sym
			i++
			continue
		}

		var rep, prev int
		var extra uint
		switch sym {
		case 16:
			if i == 0 {
				return fmt.Errorf("%w: repeat with no previous length", ErrCorruptBlock)
			}
			prev = lengths[i-1]
			rep, extra = 3, 2
		case 17:
			rep, extra = 3, 3
		case 18:
			rep, extra = 11, 7
		default:
			return fmt.Errorf("%w: invalid code-length symbol %d", ErrCorruptBlock, sym)
		}
		if v, err = st.br.bits(extra); err != nil {
			return err
		}
		rep += int(v)
		if i+rep > n {
			return fmt.Errorf("%w: repeat past end of code lengths", ErrCorruptBlock)
		}
		for j := 0; j < rep; j++ {
			lengths[i] = prev
			i++
		}
	}

	var lit, dist huffTable
	if err := lit.build(lengths[:nlit]); err != nil {
		return err
	}
	if err := dist.build(lengths[nlit : nlit+ndist]); err != nil {
		return err
	}

	return st.huffmanBlock(&lit, &dist)
}

// huffmanBlock decodes literal and length/distance symbol pairs until the
// end-of-block marker. Back-references are expanded one byte at a time so
// overlapping copies (distance < length) repeat the earlier data as the
// format requires.
func (st *inflateState) huffmanBlock(lit, dist *huffTable) error {
	for {
		sym, err := lit.decode(&st.br)
		if err != nil {
			return err
		}

		if sym < endOfBlock {
			if st.pos >= len(st.out) {
				return fmt.Errorf("%w: output exceeds declared size", ErrCorruptStream)
			}
			st.out[st.pos] = byte(sym)
			st.pos++
			continue
		}
		if sym == endOfBlock {
			return nil
		}
		if sym >= maxLitCodes {
			return fmt.Errorf("%w: invalid length symbol %d", ErrCorruptStream, sym)
		}

		li := sym - 257
		length := lengthBase[li]
		if lengthExtra[li] > 0 {
			v, err := st.br.bits(lengthExtra[li])
			if err != nil {
				return err
			}
			length += int(v)
		}

		dsym, err := dist.decode(&st.br)
		if err != nil {
			return err
		}
		if dsym >= maxDistCodes {
			return fmt.Errorf("%w: invalid distance symbol %d", ErrCorruptStream, dsym)
		}
		distance := distBase[dsym]
		if distExtra[dsym] > 0 {
			v, err := st.br.bits(distExtra[dsym])
			if err != nil {
				return err
			}
			distance += int(v)
		}

		if distance > st.pos {
			return fmt.Errorf("%w: back-reference before start of output", ErrCorruptStream)
		}
		if st.pos+length > len(st.out) {
			return fmt.Errorf("%w: output exceeds declared size", ErrCorruptStream)
		}
		for j := 0; j < length; j++ {
			st.out[st.pos] = st.out[st.pos-distance]
			st.pos++
		}
	}
}
