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

// Package hash provides the hash algorithm registry of the SDK.
//
// The HSM authentication sub-protocol needs exactly two digests: SHA-1 for the RFC 4226 HOTP
// computation and SHA-256 for password method hashes.
package hash

import (
	"crypto/sha1"
	"crypto/sha256"
	"hash"

	"github.com/cryptobridge/gohsm/errors"
)

// Algorithm is the hash algorithm identifier.
type Algorithm byte

const (
	// SHA1 is the SHA-1 algorithm. Kept for the HOTP computation, where RFC 4226 mandates it;
	// not to be used for collision-sensitive purposes.
	SHA1 Algorithm = 0x00
	// SHA2_256 is the SHA-256 algorithm.
	SHA2_256 Algorithm = 0x01

	// SHA_NA is an invalid algorithm identifier.
	SHA_NA Algorithm = 0xff
)

// Default is the default hash algorithm.
const Default = SHA2_256

type algoInfo struct {
	name    string
	size    int
	trusted bool
	newHsr  func() hash.Hash
}

var registry = map[Algorithm]algoInfo{
	SHA1:     {name: "SHA-1", size: sha1.Size, trusted: false, newHsr: sha1.New},
	SHA2_256: {name: "SHA-256", size: sha256.Size, trusted: true, newHsr: sha256.New},
}

// Registered reports whether the algorithm is known to the API.
func (a Algorithm) Registered() bool {
	_, ok := registry[a]
	return ok
}

// Trusted reports whether the algorithm may be used for collision-sensitive purposes.
func (a Algorithm) Trusted() bool {
	info, ok := registry[a]
	return ok && info.trusted
}

// Size returns the digest length in bytes, or 0 for an unknown algorithm.
func (a Algorithm) Size() int {
	return registry[a].size
}

// HashFunc returns a new hash function instance of the algorithm.
func (a Algorithm) HashFunc() (hash.Hash, error) {
	info, ok := registry[a]
	if !ok {
		return nil, errors.New(errors.HsmUnknownHashAlgorithm)
	}
	return info.newHsr(), nil
}

func (a Algorithm) String() string {
	info, ok := registry[a]
	if !ok {
		return "unknown"
	}
	return info.name
}
