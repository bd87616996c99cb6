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

package crypt

import (
	"bytes"
	"testing"
)

func TestUnitCBCMacMatchesEncryptTail(t *testing.T) {
	data := make([]byte, 48)
	for i := range data {
		data[i] = byte(i)
	}

	tag, err := CBCMac(testKey, data)
	if err != nil {
		t.Fatal("Failed to compute MAC: ", err)
	}

	// The tag is by definition the last block of the CBC encryption with a zero IV.
	ct, err := CBCEncrypt(testKey, ZeroIV(), data, false)
	if err != nil {
		t.Fatal("Failed to encrypt: ", err)
	}
	if !bytes.Equal(tag, ct[len(ct)-BlockLen:]) {
		t.Fatal("Tag must equal the last ciphertext block.")
	}
}

func TestUnitCBCMacStreaming(t *testing.T) {
	data := make([]byte, 64)
	for i := range data {
		data[i] = byte(0x55 ^ i)
	}

	whole, err := CBCMac(testKey, data)
	if err != nil {
		t.Fatal("Failed to compute MAC: ", err)
	}

	hsr, err := NewMacHasher(testKey)
	if err != nil {
		t.Fatal("Failed to create hasher: ", err)
	}
	for _, chunk := range [][]byte{data[:5], data[5:21], data[21:64]} {
		if _, err := hsr.Write(chunk); err != nil {
			t.Fatal("Failed to write chunk: ", err)
		}
	}
	tag, err := hsr.Sum()
	if err != nil {
		t.Fatal("Failed to compute streamed MAC: ", err)
	}
	if !bytes.Equal(whole, tag) {
		t.Fatal("Streamed MAC mismatch.")
	}
}

func TestUnitCBCMacRejectsUnaligned(t *testing.T) {
	if _, err := CBCMac(testKey, make([]byte, 17)); err == nil {
		t.Fatal("Unaligned MAC input must be rejected.")
	}
	if _, err := CBCMac(testKey, nil); err == nil {
		t.Fatal("Empty MAC input must be rejected.")
	}
}

func TestUnitCBCMacReset(t *testing.T) {
	hsr, err := NewMacHasher(testKey)
	if err != nil {
		t.Fatal("Failed to create hasher: ", err)
	}
	if _, err := hsr.Write(make([]byte, 16)); err != nil {
		t.Fatal("Failed to write: ", err)
	}
	first, err := hsr.Sum()
	if err != nil {
		t.Fatal("Failed to sum: ", err)
	}

	hsr.Reset()
	if _, err := hsr.Write(make([]byte, 16)); err != nil {
		t.Fatal("Failed to write after reset: ", err)
	}
	second, err := hsr.Sum()
	if err != nil {
		t.Fatal("Failed to sum after reset: ", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("Reset hasher must reproduce the tag.")
	}
}
