// Copyright 2026 The GPXmap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipfile

import "fmt"

// encryptionHeaderLen is the size of the verification header that precedes
// the ciphertext of every traditionally encrypted entry.
const encryptionHeaderLen = 12

const cipherMagic = 134775813

// zipCipher implements the legacy PKWARE stream cipher. The cipher is
// self-synchronizing: the key state evolves from the plaintext bytes, so
// encryption and decryption differ only in which byte feeds the update.
//
// The scheme is cryptographically weak and kept solely for compatibility
// with archives produced by legacy tools.
type zipCipher struct {
	k0, k1, k2 uint32
}

func newZipCipher(password string) *zipCipher {
	z := &zipCipher{
		k0: 0x12345678,
		k1: 0x23456789,
		k2: 0x34567890,
	}
	for i := 0; i < len(password); i++ {
		z.updateKeys(password[i])
	}
	return z
}

func (z *zipCipher) updateKeys(b byte) {
	// key0 = crc32(key0, b)
	z.k0 = crcUpdate(z.k0, b)

	// key1 = (key1 + (key0 & 0xff)) * 134775813 + 1, wrapping at 32 bits
	z.k1 = z.k1 + (z.k0 & 0xff)
	z.k1 = z.k1*cipherMagic + 1

	// key2 = crc32(key2, key1 >> 24)
	z.k2 = crcUpdate(z.k2, byte(z.k1>>24))
}

// magicByte derives the keystream byte: the top byte of the 16-bit product
// of (key2|2) and its xor with one.
func (z *zipCipher) magicByte() byte {
	t := z.k2 | 2
	return byte((t * (t ^ 1)) >> 8)
}

// Encrypt transforms buf in place from plaintext to ciphertext.
func (z *zipCipher) Encrypt(buf []byte) {
	for i, b := range buf {
		c := b ^ z.magicByte()
		z.updateKeys(b)
		buf[i] = c
	}
}

// Decrypt transforms buf in place from ciphertext to plaintext. The key
// state is fed the decrypted byte, not the ciphertext byte.
func (z *zipCipher) Decrypt(buf []byte) {
	for i, c := range buf {
		b := c ^ z.magicByte()
		z.updateKeys(b)
		buf[i] = b
	}
}

// decryptEntry recovers the plaintext of one encrypted entry. src holds the
// 12-byte verification header followed by the ciphertext; check is the
// expected value of the header's last decrypted byte (the top byte of the
// DOS modification time when the data-descriptor flag is set, the top byte
// of the stored CRC-32 otherwise).
//
// A single check byte is the only integrity signal the traditional scheme
// provides, so a wrong password is accepted with probability ~1/256; callers
// downstream catch the resulting garbage via the checksum. Cipher state is
// local to one call and never reused across entries.
func decryptEntry(src []byte, check byte, password string) ([]byte, error) {
	if len(src) < encryptionHeaderLen {
		return nil, fmt.Errorf("%w: encrypted data shorter than verification header", ErrCorruptStream)
	}

	cipher := newZipCipher(password)

	header := make([]byte, encryptionHeaderLen)
	copy(header, src[:encryptionHeaderLen])
	cipher.Decrypt(header)

	if header[encryptionHeaderLen-1] != check {
		return nil, ErrPasswordMismatch
	}

	plain := make([]byte, len(src)-encryptionHeaderLen)
	copy(plain, src[encryptionHeaderLen:])
	cipher.Decrypt(plain)

	return plain, nil
}
