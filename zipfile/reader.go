// Copyright 2026 The GPXmap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipfile

import (
	"encoding/binary"
	"fmt"

	"github.com/benchmarko/GPXmap/internal/headers"
)

// findEndOfCentralDir scans backward from the end of the buffer for the
// end-of-central-directory signature, bounded by the maximum comment length.
// A candidate only counts when the central directory it points at carries the
// central-directory signature; this disambiguates a signature that merely
// appears inside a trailing comment.
func findEndOfCentralDir(data []byte) (headers.EndOfCentralDirectory, int, error) {
	var end headers.EndOfCentralDirectory

	if len(data) < headers.DirectoryEndLen {
		return end, 0, fmt.Errorf("%w: buffer too small", ErrTruncated)
	}

	lower := len(data) - headers.DirectoryEndLen - headers.MaxCommentLen
	if lower < 0 {
		lower = 0
	}

	for pos := len(data) - headers.DirectoryEndLen; pos >= lower; pos-- {
		if binary.LittleEndian.Uint32(data[pos:pos+4]) != headers.EndOfCentralDirSignature {
			continue
		}

		candidate, err := headers.ReadEndOfCentralDir(data[pos:])
		if err != nil {
			continue
		}

		offset := int(candidate.CentralDirOffset)
		if candidate.TotalEntries == 0 {
			// An empty archive has no central directory header to verify;
			// the claimed directory must be empty and sit at this record.
			if candidate.CentralDirSize == 0 && offset == pos {
				return candidate, pos, nil
			}
			continue
		}

		if offset+4 <= len(data) &&
			binary.LittleEndian.Uint32(data[offset:offset+4]) == headers.CentralDirectorySignature {
			return candidate, pos, nil
		}
	}

	return end, 0, fmt.Errorf("%w: no end of central directory record", ErrTruncated)
}

// parseCentralDir walks the consecutive central directory headers, validates
// each one, and resolves the absolute data start offset of every entry
// through its local file header. Headers with unsupported encryption flags
// fail the whole parse: skipping one would risk a mis-parsed offset table.
func parseCentralDir(data []byte, end headers.EndOfCentralDirectory) ([]*Entry, map[string]*Entry, error) {
	count := int(end.TotalEntries)
	entries := make([]*Entry, 0, count)
	byName := make(map[string]*Entry, count)

	pos := int(end.CentralDirOffset)
	for i := 0; i < count; i++ {
		if pos > len(data) {
			return nil, nil, fmt.Errorf("%w: entry %d past end of buffer", ErrCorruptDirectory, i)
		}

		cd, advance, err := headers.ReadCentralDirEntry(data[pos:])
		if err != nil {
			return nil, nil, fmt.Errorf("%w: entry %d: %v", ErrCorruptDirectory, i, err)
		}
		pos += advance

		if cd.Filename == "" {
			return nil, nil, fmt.Errorf("%w: entry %d", ErrMissingEntryName, i)
		}
		if cd.GeneralPurposeBitFlag&headers.FlagStrongEncryption != 0 {
			return nil, nil, fmt.Errorf("%w: strong encryption (entry %q)", ErrUnsupported, cd.Filename)
		}
		if cd.GeneralPurposeBitFlag&headers.FlagEncryptedDir != 0 {
			return nil, nil, fmt.Errorf("%w: encrypted central directory (entry %q)", ErrUnsupported, cd.Filename)
		}

		dataStart, err := resolveDataStart(data, cd)
		if err != nil {
			return nil, nil, err
		}

		entry := newEntry(cd, dataStart)
		entries = append(entries, entry)
		// Names are not guaranteed unique; the later entry wins, matching
		// common ZIP tool behavior.
		byName[entry.name] = entry
	}

	return entries, byName, nil
}

// resolveDataStart computes the absolute offset of an entry's data. The
// local header's name and extra-field lengths are authoritative here: the
// extra-field length may differ from the central directory's copy.
func resolveDataStart(data []byte, cd headers.CentralDirectory) (int, error) {
	offset := int(cd.LocalHeaderOffset)
	if offset > len(data) {
		return 0, fmt.Errorf("%w: local header of %q past end of buffer", ErrCorruptDirectory, cd.Filename)
	}

	local, err := headers.ReadLocalFileHeader(data[offset:])
	if err != nil {
		return 0, fmt.Errorf("%w: local header of %q: %v", ErrCorruptDirectory, cd.Filename, err)
	}

	dataStart := offset + headers.LocalFileHeaderLen + int(local.FilenameLength) + int(local.ExtraFieldLength)
	if dataStart+int(cd.CompressedSize) > len(data) {
		return 0, fmt.Errorf("%w: data of %q past end of buffer", ErrCorruptDirectory, cd.Filename)
	}

	return dataStart, nil
}
