// Copyright 2026 The GPXmap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipfile

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"testing"
)

func TestNewZipCipher_KeySchedule(t *testing.T) {
	z := newZipCipher("password")

	if z.k0 != 0xea9b4e4d {
		t.Errorf("k0 = %#x, want 0xea9b4e4d", z.k0)
	}
	if z.k1 != 0xba789085 {
		t.Errorf("k1 = %#x, want 0xba789085", z.k1)
	}
	if z.k2 != 0x5ff8707d {
		t.Errorf("k2 = %#x, want 0x5ff8707d", z.k2)
	}
}

func TestZipCipher_RoundTrip(t *testing.T) {
	plaintext := []byte("<wpt lat=\"52.5200\" lon=\"13.4050\"><name>Berlin</name></wpt>")

	buf := make([]byte, len(plaintext))
	copy(buf, plaintext)

	newZipCipher("s3cret").Encrypt(buf)
	if bytes.Equal(buf, plaintext) {
		t.Fatal("Encrypt() left the buffer unchanged")
	}

	newZipCipher("s3cret").Decrypt(buf)
	if !bytes.Equal(buf, plaintext) {
		t.Errorf("round trip = %q, want %q", buf, plaintext)
	}
}

// encryptEntry builds the wire form of an encrypted entry: a 12-byte
// verification header whose last byte is the check value, followed by the
// payload, both run through the cipher.
func encryptEntry(t *testing.T, payload []byte, check byte, password string) []byte {
	t.Helper()

	buf := make([]byte, encryptionHeaderLen+len(payload))
	if _, err := rand.Read(buf[:encryptionHeaderLen-1]); err != nil {
		t.Fatal(err)
	}
	buf[encryptionHeaderLen-1] = check
	copy(buf[encryptionHeaderLen:], payload)

	newZipCipher(password).Encrypt(buf)
	return buf
}

func TestDecryptEntry(t *testing.T) {
	payload := []byte("track point data")
	src := encryptEntry(t, payload, 0xA7, "geocache")

	got, err := decryptEntry(src, 0xA7, "geocache")
	if err != nil {
		t.Fatalf("decryptEntry() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("decryptEntry() = %q, want %q", got, payload)
	}
	// Input must not be modified in place.
	if bytes.Contains(src, payload) {
		t.Error("decryptEntry() decrypted the source buffer in place")
	}
}

func TestDecryptEntry_WrongPassword(t *testing.T) {
	// The verification header exposes a single check byte, so any one wrong
	// password slips through with probability ~1/256. Trying several
	// independent wrong passwords makes a spurious pass vanishingly unlikely
	// while still allowing the occasional false accept.
	src := encryptEntry(t, []byte("payload"), 0x3C, "correct")

	rejected := 0
	for i := 0; i < 8; i++ {
		_, err := decryptEntry(src, 0x3C, fmt.Sprintf("wrong-%d", i))
		if errors.Is(err, ErrPasswordMismatch) {
			rejected++
		} else if err != nil {
			t.Fatalf("decryptEntry() error = %v, want %v", err, ErrPasswordMismatch)
		}
	}
	if rejected < 6 {
		t.Errorf("rejected %d of 8 wrong passwords, want at least 6", rejected)
	}
}

func TestDecryptEntry_ShortInput(t *testing.T) {
	_, err := decryptEntry(make([]byte, encryptionHeaderLen-1), 0, "pw")
	if !errors.Is(err, ErrCorruptStream) {
		t.Errorf("decryptEntry() error = %v, want %v", err, ErrCorruptStream)
	}
}

func TestCRCChecksum(t *testing.T) {
	// Standard CRC-32 check value.
	if got := crcChecksum([]byte("123456789")); got != 0xCBF43926 {
		t.Errorf("crcChecksum() = %#x, want 0xcbf43926", got)
	}
	if got := crcChecksum(nil); got != 0 {
		t.Errorf("crcChecksum(nil) = %#x, want 0", got)
	}
}
