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
	"crypto/cipher"

	"github.com/cryptobridge/gohsm/errors"
)

// MacHasher is the CBC-MAC computation object. The MAC runs the CBC recurrence with a zero IV
// under a dedicated key; the authentication tag is the last ciphertext block.
//
// Every payload MACed on this wire is a fixed-structure frame whose length is implied by the
// outer framing; input that is not a positive multiple of the block length is rejected.
type MacHasher struct {
	c     cipher.Block
	state [BlockLen]byte
	// Partial trailing block of the written data.
	buf  []byte
	size int
}

// NewMacHasher returns a new CBC-MAC hasher using the given key.
func NewMacHasher(key []byte) (*MacHasher, error) {
	c, err := newBlockCipher(key)
	if err != nil {
		return nil, err
	}
	return &MacHasher{c: c}, nil
}

// Write (via the embedded io.Writer interface) adds more data to the running MAC.
// In case of HsmInvalidArgumentError error (e.g. h is nil) function returns non
// standard -1 as count of bytes written.
func (h *MacHasher) Write(p []byte) (int, error) {
	if h == nil || h.c == nil {
		return -1, errors.New(errors.HsmInvalidArgumentError)
	}

	h.size += len(p)
	data := append(h.buf, p...)
	for len(data) >= BlockLen {
		for i := 0; i < BlockLen; i++ {
			h.state[i] ^= data[i]
		}
		h.c.Encrypt(h.state[:], h.state[:])
		data = data[BlockLen:]
	}
	h.buf = data
	return len(p), nil
}

// Sum returns the authentication tag of the written data.
// It fails unless the written total is a positive multiple of the block length.
func (h *MacHasher) Sum() ([]byte, error) {
	if h == nil || h.c == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}
	if h.size == 0 || len(h.buf) != 0 {
		return nil, errors.New(errors.HsmInvalidStateError).
			AppendMessage("MAC input must be a positive multiple of the block length.")
	}
	return append([]byte(nil), h.state[:]...), nil
}

// Size return the resulting tag length in bytes.
func (h *MacHasher) Size() int {
	return BlockLen
}

// Reset resets the hasher to its initial state.
func (h *MacHasher) Reset() {
	if h == nil {
		return
	}
	h.state = [BlockLen]byte{}
	h.buf = nil
	h.size = 0
}

// CBCMac computes the CBC-MAC tag of the data under the given key in one call.
func CBCMac(key, data []byte) ([]byte, error) {
	hsr, err := NewMacHasher(key)
	if err != nil {
		return nil, err
	}
	if _, err := hsr.Write(data); err != nil {
		return nil, err
	}
	return hsr.Sum()
}
