/*
 * Copyright 2025 Cryptobridge, Inc.
 *
 * This file is part of the Cryptobridge client SDK.
 *
 * Licensed under the Apache License, Version 2.0 (the "License").
 * You may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *     http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES, CONDITIONS, OR OTHER LICENSES OF ANY KIND, either
 * express or implied. See the License for the specific language governing
 * permissions and limitations under the License.
 * "Cryptobridge" is a trademark of Cryptobridge, Inc., and no license to
 * trademarks is granted; Cryptobridge reserves and retains all trademark
 * rights.
 */

package hmac

import (
	"encoding/hex"
	"testing"

	"github.com/cryptobridge/gohsm/hash"
)

func TestUnitHmacSha1Vector(t *testing.T) {
	// RFC 2202 test case 2.
	hsr, err := New(hash.SHA1, []byte("Jefe"))
	if err != nil {
		t.Fatal("Failed to create hasher: ", err)
	}
	if _, err := hsr.Write([]byte("what do ya want for nothing?")); err != nil {
		t.Fatal("Failed to write: ", err)
	}

	mac, err := hsr.Sum()
	if err != nil {
		t.Fatal("Failed to compute HMAC: ", err)
	}
	if hex.EncodeToString(mac) != "effcdf6ae5eb2fa2d27416d5f184df9c259a7c79" {
		t.Fatal("HMAC-SHA1 vector mismatch: ", hex.EncodeToString(mac))
	}
}

func TestUnitHmacSha256Vector(t *testing.T) {
	// RFC 4231 test case 2.
	hsr, err := New(hash.SHA2_256, []byte("Jefe"))
	if err != nil {
		t.Fatal("Failed to create hasher: ", err)
	}
	if _, err := hsr.Write([]byte("what do ya want for nothing?")); err != nil {
		t.Fatal("Failed to write: ", err)
	}

	mac, err := hsr.Sum()
	if err != nil {
		t.Fatal("Failed to compute HMAC: ", err)
	}
	if hex.EncodeToString(mac) != "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843" {
		t.Fatal("HMAC-SHA256 vector mismatch: ", hex.EncodeToString(mac))
	}
}

func TestUnitHmacUnknownAlgorithm(t *testing.T) {
	if _, err := New(hash.SHA_NA, []byte("key")); err == nil {
		t.Fatal("Unknown algorithm must be rejected.")
	}
}

func TestUnitHmacNilReceiver(t *testing.T) {
	var hsr *Hasher

	if _, err := hsr.Sum(); err == nil {
		t.Fatal("Nil receiver must return error.")
	}
	if n, err := hsr.Write([]byte{0x00}); err == nil || n != -1 {
		t.Fatal("Nil receiver write must fail with -1.")
	}
	if hsr.Size() != 0 || hsr.BlockSize() != 0 {
		t.Fatal("Nil receiver sizes must be 0.")
	}
}
