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

package hash

import (
	"hash"

	"github.com/cryptobridge/gohsm/errors"
)

// DataHasher is the data hash computation object.
type DataHasher struct {
	algo Algorithm
	hsr  hash.Hash
}

// New returns a new data hasher for the given algorithm.
func (a Algorithm) New() (*DataHasher, error) {
	hsr, err := a.HashFunc()
	if err != nil {
		return nil, err
	}
	return &DataHasher{
		algo: a,
		hsr:  hsr,
	}, nil
}

// Write (via the embedded io.Writer interface) adds more data to the running hash.
// In case of HsmInvalidArgumentError error (e.g. h is nil) function returns non
// standard -1 as count of bytes written.
func (h *DataHasher) Write(p []byte) (int, error) {
	if h == nil || h.hsr == nil {
		return -1, errors.New(errors.HsmInvalidArgumentError)
	}

	n, e := h.hsr.Write(p)
	if e != nil {
		return n, errors.New(errors.HsmCryptoFailure).SetExtError(e)
	}
	return n, nil
}

// Sum returns the digest of the written data.
// It does not change the underlying hash state.
func (h *DataHasher) Sum() ([]byte, error) {
	if h == nil || h.hsr == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}
	return h.hsr.Sum(nil), nil
}

// Size return the resulting digest length in bytes.
func (h *DataHasher) Size() int {
	if h == nil || h.hsr == nil {
		return 0
	}
	return h.hsr.Size()
}

// Reset resets the hasher to its initial state.
func (h *DataHasher) Reset() {
	if h == nil || h.hsr == nil {
		return
	}
	h.hsr.Reset()
}
