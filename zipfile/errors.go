package zipfile

import "errors"

var (
	// ErrTruncated is returned when no valid end-of-central-directory record
	// can be found in the buffer.
	ErrTruncated = errors.New("zipfile: end of central directory not found")

	// ErrCorruptDirectory is returned when a central directory or local file
	// header has a bad signature or runs past the end of the buffer.
	ErrCorruptDirectory = errors.New("zipfile: corrupt central directory")

	// ErrMissingEntryName is returned when a central directory header carries
	// an empty file name.
	ErrMissingEntryName = errors.New("zipfile: entry has no name")

	// ErrUnsupported is returned for strong encryption, encrypted central
	// directories, multi-disk archives and unknown compression methods.
	ErrUnsupported = errors.New("zipfile: unsupported feature")

	// ErrEntryNotFound is returned when the requested name is not present in
	// the archive.
	ErrEntryNotFound = errors.New("zipfile: entry not found")

	// ErrPasswordRequired is returned when an entry is encrypted and no
	// password was supplied.
	ErrPasswordRequired = errors.New("zipfile: entry is encrypted, password required")

	// ErrPasswordMismatch is returned when the decrypted verification header
	// does not match. The traditional cipher carries a single check byte, so
	// a wrong password slips through roughly once in 256 attempts and then
	// surfaces as garbage data failing the checksum instead.
	ErrPasswordMismatch = errors.New("zipfile: invalid password")

	// ErrCorruptBlock is returned for a malformed DEFLATE block header:
	// a reserved block type, an impossible code-length declaration, or a
	// stored block whose length does not match its one's complement.
	ErrCorruptBlock = errors.New("zipfile: corrupt deflate block")

	// ErrCorruptStream is returned for malformed compressed data: truncated
	// input, invalid symbols, back-references past the start of the output,
	// or output that does not match the declared uncompressed size.
	ErrCorruptStream = errors.New("zipfile: corrupt deflate stream")

	// ErrChecksum is returned when the decoded data does not match the
	// CRC-32 recorded in the central directory.
	ErrChecksum = errors.New("zipfile: checksum mismatch")
)
