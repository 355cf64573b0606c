// Copyright 2026 The GPXmap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipfile

import (
	"strings"
	"time"

	"github.com/benchmarko/GPXmap/internal/headers"
)

// CompressionMethod identifies the compression algorithm of an entry.
type CompressionMethod uint16

// Compression methods this reader understands. Archives using any other
// method fail with ErrUnsupported when the entry is read.
const (
	Stored   CompressionMethod = 0 // no compression, data stored as-is
	Deflated CompressionMethod = 8 // DEFLATE (RFC 1951)
)

// Entry is one file header from the archive's central directory. Entries are
// immutable after Open and safe to share across goroutines.
type Entry struct {
	name    string
	isDir   bool
	comment string

	flags  uint16
	method CompressionMethod

	crc32            uint32
	compressedSize   uint32
	uncompressedSize uint32

	dosDate uint16
	dosTime uint16

	headerOffset uint32 // local file header offset within the archive
	dataStart    int    // absolute offset of the (possibly encrypted) entry data
}

// Name returns the entry's path within the archive, forward-slash separated.
// Directory entries keep their trailing slash.
func (e *Entry) Name() string { return e.name }

// IsDir reports whether the entry represents a directory.
func (e *Entry) IsDir() bool { return e.isDir }

// Comment returns the per-entry comment, if any.
func (e *Entry) Comment() string { return e.comment }

// Flags returns the raw general purpose bit flag field.
func (e *Entry) Flags() uint16 { return e.flags }

// Method returns the entry's compression method.
func (e *Entry) Method() CompressionMethod { return e.method }

// CompressedSize returns the size of the entry data as stored in the
// archive, including the 12-byte verification header when encrypted.
func (e *Entry) CompressedSize() int64 { return int64(e.compressedSize) }

// Size returns the declared uncompressed size of the entry.
func (e *Entry) Size() int64 { return int64(e.uncompressedSize) }

// CRC32 returns the checksum of the uncompressed data recorded in the
// central directory.
func (e *Entry) CRC32() uint32 { return e.crc32 }

// ModTime returns the entry's modification time, decoded from the packed
// DOS date/time fields (two-second resolution, no time zone).
func (e *Entry) ModTime() time.Time { return msDosToTime(e.dosDate, e.dosTime) }

// IsEncrypted reports whether the entry data is encrypted with the
// traditional scheme and ReadEntry needs a password for it.
func (e *Entry) IsEncrypted() bool { return e.flags&headers.FlagEncrypted != 0 }

// checkByte is the expected last byte of the decrypted verification header.
// When sizes and CRC are deferred to a data descriptor (flag bit 3) the
// writer did not know the CRC yet, so the top byte of the modification time
// is used instead.
func (e *Entry) checkByte() byte {
	if e.flags&headers.FlagDataDescriptor != 0 {
		return byte(e.dosTime >> 8)
	}
	return byte(e.crc32 >> 24)
}

func newEntry(cd headers.CentralDirectory, dataStart int) *Entry {
	return &Entry{
		name:             cd.Filename,
		isDir:            strings.HasSuffix(cd.Filename, "/"),
		comment:          cd.Comment,
		flags:            cd.GeneralPurposeBitFlag,
		method:           CompressionMethod(cd.CompressionMethod),
		crc32:            cd.CRC32,
		compressedSize:   cd.CompressedSize,
		uncompressedSize: cd.UncompressedSize,
		dosDate:          cd.LastModFileDate,
		dosTime:          cd.LastModFileTime,
		headerOffset:     cd.LocalHeaderOffset,
		dataStart:        dataStart,
	}
}

func msDosToTime(dosDate, dosTime uint16) time.Time {
	day := dosDate & 0x1F
	month := (dosDate >> 5) & 0x0F
	year := int((dosDate>>9)&0x7F) + 1980
	second := (dosTime & 0x1F) * 2
	minute := (dosTime >> 5) & 0x3F
	hour := (dosTime >> 11) & 0x1F

	if month < 1 || month > 12 {
		month = 1
	}
	if day < 1 || day > 31 {
		day = 1
	}

	return time.Date(year, time.Month(month), int(day), int(hour), int(minute), int(second), 0, time.UTC)
}
