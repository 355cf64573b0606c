// Copyright 2026 The GPXmap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package headers

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

func encodeEOCD(entries uint16, cdSize, cdOffset uint32, comment string) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, EndOfCentralDirSignature)
	binary.Write(buf, binary.LittleEndian, uint16(0)) // this disk
	binary.Write(buf, binary.LittleEndian, uint16(0)) // disk with CD start
	binary.Write(buf, binary.LittleEndian, entries)   // entries on disk
	binary.Write(buf, binary.LittleEndian, entries)   // total entries
	binary.Write(buf, binary.LittleEndian, cdSize)
	binary.Write(buf, binary.LittleEndian, cdOffset)
	binary.Write(buf, binary.LittleEndian, uint16(len(comment)))
	buf.WriteString(comment)
	return buf.Bytes()
}

func encodeCentralDirEntry(flags, method uint16, crc, csize, usize, lho uint32, name, comment string) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, CentralDirectorySignature)
	binary.Write(buf, binary.LittleEndian, uint16(20)) // version made by
	binary.Write(buf, binary.LittleEndian, uint16(20)) // version needed
	binary.Write(buf, binary.LittleEndian, flags)
	binary.Write(buf, binary.LittleEndian, method)
	binary.Write(buf, binary.LittleEndian, uint16(0x6000)) // mod time
	binary.Write(buf, binary.LittleEndian, uint16(0x5A21)) // mod date
	binary.Write(buf, binary.LittleEndian, crc)
	binary.Write(buf, binary.LittleEndian, csize)
	binary.Write(buf, binary.LittleEndian, usize)
	binary.Write(buf, binary.LittleEndian, uint16(len(name)))
	binary.Write(buf, binary.LittleEndian, uint16(0)) // extra len
	binary.Write(buf, binary.LittleEndian, uint16(len(comment)))
	binary.Write(buf, binary.LittleEndian, uint16(0)) // disk number start
	binary.Write(buf, binary.LittleEndian, uint16(0)) // internal attrs
	binary.Write(buf, binary.LittleEndian, uint32(0)) // external attrs
	binary.Write(buf, binary.LittleEndian, lho)
	buf.WriteString(name)
	buf.WriteString(comment)
	return buf.Bytes()
}

func TestReadEndOfCentralDir(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    EndOfCentralDirectory
		wantErr error
	}{
		{
			name: "no comment",
			data: encodeEOCD(3, 150, 700, ""),
			want: EndOfCentralDirectory{
				EntriesOnThisDisk: 3,
				TotalEntries:      3,
				CentralDirSize:    150,
				CentralDirOffset:  700,
			},
		},
		{
			name: "with comment",
			data: encodeEOCD(1, 46, 30, "waypoints"),
			want: EndOfCentralDirectory{
				EntriesOnThisDisk: 1,
				TotalEntries:      1,
				CentralDirSize:    46,
				CentralDirOffset:  30,
				CommentLength:     9,
				Comment:           "waypoints",
			},
		},
		{
			name:    "too short",
			data:    encodeEOCD(1, 46, 30, "")[:10],
			wantErr: io.ErrUnexpectedEOF,
		},
		{
			name:    "comment truncated",
			data:    encodeEOCD(1, 46, 30, "waypoints")[:25],
			wantErr: io.ErrUnexpectedEOF,
		},
		{
			name:    "bad signature",
			data:    make([]byte, DirectoryEndLen),
			wantErr: ErrSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadEndOfCentralDir(tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ReadEndOfCentralDir() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && got != tt.want {
				t.Errorf("ReadEndOfCentralDir() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestReadCentralDirEntry(t *testing.T) {
	record := encodeCentralDirEntry(FlagEncrypted, 8, 0xDEADBEEF, 10, 20, 5, "track.gpx", "gps log")

	entry, advance, err := ReadCentralDirEntry(record)
	if err != nil {
		t.Fatalf("ReadCentralDirEntry() error = %v", err)
	}

	if advance != len(record) {
		t.Errorf("advance = %d, want %d", advance, len(record))
	}
	if entry.Filename != "track.gpx" {
		t.Errorf("Filename = %q, want %q", entry.Filename, "track.gpx")
	}
	if entry.Comment != "gps log" {
		t.Errorf("Comment = %q, want %q", entry.Comment, "gps log")
	}
	if entry.GeneralPurposeBitFlag != FlagEncrypted {
		t.Errorf("GeneralPurposeBitFlag = %#x, want %#x", entry.GeneralPurposeBitFlag, FlagEncrypted)
	}
	if entry.CompressionMethod != 8 {
		t.Errorf("CompressionMethod = %d, want 8", entry.CompressionMethod)
	}
	if entry.CRC32 != 0xDEADBEEF {
		t.Errorf("CRC32 = %#x, want 0xDEADBEEF", entry.CRC32)
	}
	if entry.CompressedSize != 10 || entry.UncompressedSize != 20 {
		t.Errorf("sizes = %d/%d, want 10/20", entry.CompressedSize, entry.UncompressedSize)
	}
	if entry.LocalHeaderOffset != 5 {
		t.Errorf("LocalHeaderOffset = %d, want 5", entry.LocalHeaderOffset)
	}
}

func TestReadCentralDirEntry_Truncated(t *testing.T) {
	record := encodeCentralDirEntry(0, 0, 0, 0, 0, 0, "name.txt", "")

	tests := []struct {
		name string
		data []byte
	}{
		{"inside fixed header", record[:20]},
		{"inside filename", record[:CentralDirectoryFixedLen+3]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ReadCentralDirEntry(tt.data); !errors.Is(err, io.ErrUnexpectedEOF) {
				t.Errorf("ReadCentralDirEntry() error = %v, want %v", err, io.ErrUnexpectedEOF)
			}
		})
	}
}

func TestReadCentralDirEntry_BadSignature(t *testing.T) {
	if _, _, err := ReadCentralDirEntry(make([]byte, CentralDirectoryFixedLen)); !errors.Is(err, ErrSignature) {
		t.Errorf("ReadCentralDirEntry() error = %v, want %v", err, ErrSignature)
	}
}

func TestReadLocalFileHeader(t *testing.T) {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, LocalFileHeaderSignature)
	binary.Write(buf, binary.LittleEndian, uint16(20))    // version needed
	binary.Write(buf, binary.LittleEndian, FlagEncrypted) // flags
	binary.Write(buf, binary.LittleEndian, uint16(0))     // method
	binary.Write(buf, binary.LittleEndian, uint16(0))     // mod time
	binary.Write(buf, binary.LittleEndian, uint16(0))     // mod date
	binary.Write(buf, binary.LittleEndian, uint32(0))     // crc
	binary.Write(buf, binary.LittleEndian, uint32(17))    // compressed size
	binary.Write(buf, binary.LittleEndian, uint32(5))     // uncompressed size
	binary.Write(buf, binary.LittleEndian, uint16(4))     // filename len
	binary.Write(buf, binary.LittleEndian, uint16(8))     // extra len

	h, err := ReadLocalFileHeader(buf.Bytes())
	if err != nil {
		t.Fatalf("ReadLocalFileHeader() error = %v", err)
	}
	if h.FilenameLength != 4 || h.ExtraFieldLength != 8 {
		t.Errorf("lengths = %d/%d, want 4/8", h.FilenameLength, h.ExtraFieldLength)
	}
	if h.GeneralPurposeBitFlag != FlagEncrypted {
		t.Errorf("flags = %#x, want %#x", h.GeneralPurposeBitFlag, FlagEncrypted)
	}

	if _, err := ReadLocalFileHeader(buf.Bytes()[:12]); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("truncated header error = %v, want %v", err, io.ErrUnexpectedEOF)
	}
}
