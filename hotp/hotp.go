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

// Package hotp implements the client side of the RFC 4226 HMAC-based one-time password
// computation. The HSM verifies the codes inside the user authentication sub-protocol; the
// package exists for callers that generate codes (eg. provisioning test users) and for
// mirroring the server computation in tests.
package hotp

import (
	"encoding/binary"
	"fmt"

	"github.com/cryptobridge/gohsm/bits"
	"github.com/cryptobridge/gohsm/errors"
	"github.com/cryptobridge/gohsm/hash"
	"github.com/cryptobridge/gohsm/hmac"
)

// Digit count bounds of RFC 4226.
const (
	MinDigits = 6
	MaxDigits = 8
)

var pow10 = [MaxDigits + 1]uint32{1, 10, 100, 1000, 10000, 100000, 1000000, 10000000, 100000000}

// Generate computes the HOTP value for the given shared secret and moving counter.
// The result is a zero-padded decimal string of the requested digit count.
func Generate(secret []byte, counter uint64, digits int) (string, error) {
	if len(secret) == 0 {
		return "", errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing shared secret.")
	}
	if digits < MinDigits || digits > MaxDigits {
		return "", errors.New(errors.HsmInvalidArgumentError).
			AppendMessage(fmt.Sprintf("Digit count out of range: %d.", digits))
	}

	hsr, err := hmac.New(hash.SHA1, secret)
	if err != nil {
		return "", err
	}

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)
	if _, err := hsr.Write(msg[:]); err != nil {
		return "", err
	}
	digest, err := hsr.Sum()
	if err != nil {
		return "", err
	}

	// RFC 4226 dynamic truncation: a 31-bit big-endian value read at the offset stored in the
	// low nibble of the last digest byte.
	offset := int(digest[len(digest)-1] & 0x0f)
	window := bits.FromBytes(digest[offset : offset+4])
	value, err := window.Extract(1, 31)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%0*d", digits, value%pow10[digits]), nil
}

// GenerateBase32 computes the HOTP value for a base32 encoded shared secret.
func GenerateBase32(secret string, counter uint64, digits int) (string, error) {
	w, err := bits.FromBase32(secret)
	if err != nil {
		return "", err
	}
	raw, err := w.Bytes()
	if err != nil {
		return "", err
	}
	return Generate(raw, counter, digits)
}
