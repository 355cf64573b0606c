// Copyright 2026 The GPXmap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package headers decodes the binary record formats of the ZIP container:
// the end-of-central-directory record, central directory file headers and
// local file headers. All decoding operates on in-memory byte slices with
// explicit bounds checks; a record that runs past the end of its buffer
// yields io.ErrUnexpectedEOF rather than a panic.
package headers

import (
	"encoding/binary"
	"errors"
	"io"
)

// Each record type is identified by a header signature. Signature values
// begin with the two byte constant marker 0x4b50, the characters "PK".
const (
	LocalFileHeaderSignature  uint32 = 0x04034b50
	CentralDirectorySignature uint32 = 0x02014b50
	EndOfCentralDirSignature  uint32 = 0x06054b50
)

// Fixed record sizes, excluding trailing variable-length fields.
const (
	LocalFileHeaderLen       = 30
	CentralDirectoryFixedLen = 46
	DirectoryEndLen          = 22

	// MaxCommentLen bounds the archive comment, and therefore how far from
	// the end of the buffer the end-of-central-directory record may sit.
	MaxCommentLen = 0xFFFF
)

// General purpose bit flag values.
const (
	FlagEncrypted        uint16 = 0x0001 // entry data is encrypted
	FlagDataDescriptor   uint16 = 0x0008 // sizes/CRC deferred to a trailing data descriptor
	FlagStrongEncryption uint16 = 0x0040 // strong encryption, not supported
	FlagUTF8             uint16 = 0x0800 // name and comment are UTF-8
	FlagEncryptedDir     uint16 = 0x2000 // central directory encryption, not supported
)

// ErrSignature is returned when a record does not start with the expected
// four byte magic value.
var ErrSignature = errors.New("headers: bad record signature")

// EndOfCentralDirectory is the archive's top-level index pointer.
type EndOfCentralDirectory struct {
	ThisDiskNum            uint16
	CentralDirStartDiskNum uint16
	EntriesOnThisDisk      uint16
	TotalEntries           uint16
	CentralDirSize         uint32
	CentralDirOffset       uint32
	CommentLength          uint16
	Comment                string
}

// ReadEndOfCentralDir decodes the end-of-central-directory record starting at
// the beginning of buf, including its trailing comment.
func ReadEndOfCentralDir(buf []byte) (EndOfCentralDirectory, error) {
	var end EndOfCentralDirectory
	if len(buf) < DirectoryEndLen {
		return end, io.ErrUnexpectedEOF
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != EndOfCentralDirSignature {
		return end, ErrSignature
	}

	end = EndOfCentralDirectory{
		ThisDiskNum:            binary.LittleEndian.Uint16(buf[4:6]),
		CentralDirStartDiskNum: binary.LittleEndian.Uint16(buf[6:8]),
		EntriesOnThisDisk:      binary.LittleEndian.Uint16(buf[8:10]),
		TotalEntries:           binary.LittleEndian.Uint16(buf[10:12]),
		CentralDirSize:         binary.LittleEndian.Uint32(buf[12:16]),
		CentralDirOffset:       binary.LittleEndian.Uint32(buf[16:20]),
		CommentLength:          binary.LittleEndian.Uint16(buf[20:22]),
	}

	if end.CommentLength > 0 {
		if len(buf) < DirectoryEndLen+int(end.CommentLength) {
			return end, io.ErrUnexpectedEOF
		}
		end.Comment = string(buf[DirectoryEndLen : DirectoryEndLen+int(end.CommentLength)])
	}

	return end, nil
}

// CentralDirectory is one file header from the archive's central directory.
type CentralDirectory struct {
	VersionMadeBy          uint16
	VersionNeededToExtract uint16
	GeneralPurposeBitFlag  uint16
	CompressionMethod      uint16
	LastModFileTime        uint16
	LastModFileDate        uint16
	CRC32                  uint32
	CompressedSize         uint32
	UncompressedSize       uint32
	FilenameLength         uint16
	ExtraFieldLength       uint16
	FileCommentLength      uint16
	DiskNumberStart        uint16
	InternalFileAttributes uint16
	ExternalFileAttributes uint32
	LocalHeaderOffset      uint32
	Filename               string
	Comment                string
}

// ReadCentralDirEntry decodes one central directory file header starting at
// the beginning of buf. It returns the decoded header and the total number of
// bytes the record occupies, so the caller can advance to the next entry.
func ReadCentralDirEntry(buf []byte) (CentralDirectory, int, error) {
	if len(buf) < CentralDirectoryFixedLen {
		return CentralDirectory{}, 0, io.ErrUnexpectedEOF
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != CentralDirectorySignature {
		return CentralDirectory{}, 0, ErrSignature
	}

	entry := CentralDirectory{
		VersionMadeBy:          binary.LittleEndian.Uint16(buf[4:6]),
		VersionNeededToExtract: binary.LittleEndian.Uint16(buf[6:8]),
		GeneralPurposeBitFlag:  binary.LittleEndian.Uint16(buf[8:10]),
		CompressionMethod:      binary.LittleEndian.Uint16(buf[10:12]),
		LastModFileTime:        binary.LittleEndian.Uint16(buf[12:14]),
		LastModFileDate:        binary.LittleEndian.Uint16(buf[14:16]),
		CRC32:                  binary.LittleEndian.Uint32(buf[16:20]),
		CompressedSize:         binary.LittleEndian.Uint32(buf[20:24]),
		UncompressedSize:       binary.LittleEndian.Uint32(buf[24:28]),
		FilenameLength:         binary.LittleEndian.Uint16(buf[28:30]),
		ExtraFieldLength:       binary.LittleEndian.Uint16(buf[30:32]),
		FileCommentLength:      binary.LittleEndian.Uint16(buf[32:34]),
		DiskNumberStart:        binary.LittleEndian.Uint16(buf[34:36]),
		InternalFileAttributes: binary.LittleEndian.Uint16(buf[36:38]),
		ExternalFileAttributes: binary.LittleEndian.Uint32(buf[38:42]),
		LocalHeaderOffset:      binary.LittleEndian.Uint32(buf[42:46]),
	}

	total := CentralDirectoryFixedLen + int(entry.FilenameLength) + int(entry.ExtraFieldLength) + int(entry.FileCommentLength)
	if len(buf) < total {
		return CentralDirectory{}, 0, io.ErrUnexpectedEOF
	}

	nameEnd := CentralDirectoryFixedLen + int(entry.FilenameLength)
	entry.Filename = string(buf[CentralDirectoryFixedLen:nameEnd])

	commentStart := nameEnd + int(entry.ExtraFieldLength)
	entry.Comment = string(buf[commentStart : commentStart+int(entry.FileCommentLength)])

	return entry, total, nil
}

// LocalFileHeader is the per-entry header preceding the entry data. Its
// extra-field length may legitimately differ from the central directory's,
// which is why the data start offset must be resolved through it.
type LocalFileHeader struct {
	VersionNeededToExtract uint16
	GeneralPurposeBitFlag  uint16
	CompressionMethod      uint16
	LastModFileTime        uint16
	LastModFileDate        uint16
	CRC32                  uint32
	CompressedSize         uint32
	UncompressedSize       uint32
	FilenameLength         uint16
	ExtraFieldLength       uint16
}

// ReadLocalFileHeader decodes the fixed portion of a local file header
// starting at the beginning of buf.
func ReadLocalFileHeader(buf []byte) (LocalFileHeader, error) {
	var h LocalFileHeader
	if len(buf) < LocalFileHeaderLen {
		return h, io.ErrUnexpectedEOF
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != LocalFileHeaderSignature {
		return h, ErrSignature
	}

	h = LocalFileHeader{
		VersionNeededToExtract: binary.LittleEndian.Uint16(buf[4:6]),
		GeneralPurposeBitFlag:  binary.LittleEndian.Uint16(buf[6:8]),
		CompressionMethod:      binary.LittleEndian.Uint16(buf[8:10]),
		LastModFileTime:        binary.LittleEndian.Uint16(buf[10:12]),
		LastModFileDate:        binary.LittleEndian.Uint16(buf[12:14]),
		CRC32:                  binary.LittleEndian.Uint32(buf[14:18]),
		CompressedSize:         binary.LittleEndian.Uint32(buf[18:22]),
		UncompressedSize:       binary.LittleEndian.Uint32(buf[22:26]),
		FilenameLength:         binary.LittleEndian.Uint16(buf[26:28]),
		ExtraFieldLength:       binary.LittleEndian.Uint16(buf[28:30]),
	}

	return h, nil
}
