// Copyright 2026 The GPXmap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package zipfile reads ZIP archives held entirely in memory, such as KMZ
// or zipped GPX track files a viewer received as a byte blob.
//
// The package is self-contained: the central directory parser, the DEFLATE
// decompressor and the traditional (legacy, weak) decryption scheme are all
// implemented here, so callers hand in bytes and get bytes back without any
// file system, network, or codec dependency.
//
// # Usage
//
//	archive, err := zipfile.Open(data)
//	if err != nil { ... }
//	for _, e := range archive.List() {
//		fmt.Println(e.Name(), e.Size())
//	}
//	doc, err := archive.ReadEntry("doc.kml")
//
// Encrypted entries take a password option:
//
//	doc, err := archive.ReadEntry("doc.kml", zipfile.WithPassword("pw"))
//
// # Concurrency
//
// An Archive is immutable after Open. Entries may be read from any number
// of goroutines concurrently; every ReadEntry call uses its own cipher and
// decompressor state and returns a freshly allocated buffer.
//
// # Limitations
//
// Writing archives, ZIP64 extensions, multi-disk archives, WinZip AES and
// other strong encryption schemes are not supported. The traditional cipher
// carries a single verification byte, so an incorrect password is detected
// with probability 255/256 only; the rare false accept surfaces as an
// ErrChecksum on the garbage output.
package zipfile

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/benchmarko/GPXmap/internal/headers"
)

// Archive provides read access to a ZIP archive held in a byte buffer.
// The buffer is borrowed, never copied: the caller must not mutate it while
// the Archive is in use.
type Archive struct {
	data    []byte
	entries []*Entry          // central directory scan order
	byName  map[string]*Entry // entry lookup, last duplicate wins
	comment string
}

// Open parses the archive's central directory eagerly and returns a reader
// over it. Open fails with ErrTruncated when no end-of-central-directory
// record is found, ErrCorruptDirectory when the directory is malformed, and
// ErrUnsupported when any header requires strong encryption, an encrypted
// directory, or a multi-disk archive.
func Open(data []byte) (*Archive, error) {
	end, _, err := findEndOfCentralDir(data)
	if err != nil {
		return nil, err
	}

	if end.ThisDiskNum != 0 || end.CentralDirStartDiskNum != 0 {
		return nil, fmt.Errorf("%w: multi-disk archive", ErrUnsupported)
	}

	entries, byName, err := parseCentralDir(data, end)
	if err != nil {
		return nil, err
	}

	return &Archive{
		data:    data,
		entries: entries,
		byName:  byName,
		comment: end.Comment,
	}, nil
}

// LooksLikeArchive reports whether the buffer starts with the local file
// header signature "PK\x03\x04". It is a cheap dispatch heuristic for
// detecting archives nested inside other archives' entries, not a validity
// check; use Open for that.
func LooksLikeArchive(data []byte) bool {
	return len(data) >= 4 &&
		binary.LittleEndian.Uint32(data[0:4]) == headers.LocalFileHeaderSignature
}

// Comment returns the archive-level comment from the end-of-central-directory
// record.
func (a *Archive) Comment() string { return a.comment }

// List returns the archive's entries in central directory scan order,
// including duplicates and directory entries.
func (a *Archive) List() []*Entry {
	result := make([]*Entry, len(a.entries))
	copy(result, a.entries)
	return result
}

// Entry returns the header for the named entry. When the archive contains
// duplicate names, the entry appearing later in the central directory wins.
func (a *Archive) Entry(name string) (*Entry, error) {
	e, ok := a.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	return e, nil
}

// ReadOption configures a single read operation.
type ReadOption func(*readConfig)

type readConfig struct {
	password string
}

// WithPassword supplies the password for a traditionally encrypted entry.
func WithPassword(password string) ReadOption {
	return func(c *readConfig) {
		c.password = password
	}
}

// ReadEntry decodes the named entry and returns its uncompressed content in
// a freshly allocated buffer. Encrypted entries require WithPassword. The
// decoded bytes are verified against the header's CRC-32; no partial result
// is ever returned.
func (a *Archive) ReadEntry(name string, opts ...ReadOption) ([]byte, error) {
	entry, err := a.Entry(name)
	if err != nil {
		return nil, err
	}
	return a.readEntry(entry, opts)
}

func (a *Archive) readEntry(entry *Entry, opts []ReadOption) ([]byte, error) {
	var cfg readConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	raw := a.data[entry.dataStart : entry.dataStart+int(entry.compressedSize)]

	if entry.IsEncrypted() {
		if cfg.password == "" {
			return nil, fmt.Errorf("%w: %s", ErrPasswordRequired, entry.name)
		}
		decrypted, err := decryptEntry(raw, entry.checkByte(), cfg.password)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.name, err)
		}
		raw = decrypted
	}

	var out []byte
	switch entry.method {
	case Stored:
		if len(raw) != int(entry.uncompressedSize) {
			return nil, fmt.Errorf("%w: stored entry %s: size %d, declared %d",
				ErrCorruptStream, entry.name, len(raw), entry.uncompressedSize)
		}
		out = make([]byte, len(raw))
		copy(out, raw)
	case Deflated:
		var err error
		out, err = inflate(raw, int(entry.uncompressedSize))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.name, err)
		}
	default:
		return nil, fmt.Errorf("%w: compression method %d (entry %s)",
			ErrUnsupported, entry.method, entry.name)
	}

	if got := crcChecksum(out); got != entry.crc32 {
		return nil, fmt.Errorf("%w: %s: got %08x, want %08x", ErrChecksum, entry.name, got, entry.crc32)
	}

	return out, nil
}

// ReadAll decodes every regular (non-directory) entry concurrently and
// returns the results keyed by entry name.
func (a *Archive) ReadAll(workers int, opts ...ReadOption) (map[string][]byte, error) {
	return a.ReadAllWithContext(context.Background(), workers, opts...)
}

// ReadAllWithContext decodes every regular entry using the given number of
// workers, honoring context cancellation between entries. Each worker runs
// an independent decrypt/inflate with its own state, so results are
// byte-identical to sequential reads. Failed entries are reported joined,
// including any that failed before a cancellation took effect; successfully
// decoded entries are still returned.
func (a *Archive) ReadAllWithContext(ctx context.Context, workers int, opts ...ReadOption) (map[string][]byte, error) {
	if workers < 1 {
		workers = 1
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		errs    []error
		results = make(map[string][]byte, len(a.entries))
	)

	sem := make(chan struct{}, workers)

	canceled := false
	for _, entry := range a.entries {
		if entry.isDir {
			continue
		}

		// Checked before blocking on a worker slot so an already-cancelled
		// context never dispatches another entry.
		if ctx.Err() != nil {
			canceled = true
			break
		}
		select {
		case <-ctx.Done():
			canceled = true
		case sem <- struct{}{}:
		}
		if canceled {
			break
		}

		wg.Add(1)
		go func(e *Entry) {
			defer func() { <-sem; wg.Done() }()

			content, err := a.readEntry(e, opts)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			results[e.name] = content
		}(entry)
	}

	wg.Wait()

	if canceled {
		errs = append(errs, ctx.Err())
	}
	if len(errs) > 0 {
		return results, errors.Join(errs...)
	}
	return results, nil
}
