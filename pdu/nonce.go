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

package pdu

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/cryptobridge/gohsm/bits"
	"github.com/cryptobridge/gohsm/errors"
)

// NonceLen is the freshness nonce length in bytes.
const NonceLen = 8

// nonceMangleStep is the per 32-bit word increment the service applies to the request nonce
// before echoing it back (equivalently, every byte incremented by one, with wrap).
const nonceMangleStep = 0x01010101

// NewNonce generates a fresh random nonce from the CSPRNG.
func NewNonce() ([]byte, error) {
	tmp := make([]byte, NonceLen)
	if _, err := rand.Read(tmp); err != nil {
		return nil, errors.New(errors.HsmCryptoFailure).SetExtError(err).
			AppendMessage("Unable to generate freshness nonce.")
	}
	return tmp, nil
}

// NewNonceHex generates a fresh random nonce and returns its 16 character hexadecimal form.
func NewNonceHex() (string, error) {
	tmp, err := NewNonce()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(tmp), nil
}

// DemangleNonce reverses the nonce mangling of the service response: every 32-bit word is
// decremented by 0x01010101. On a partial tail of r bits the step constant is shifted so that
// only the high r bits participate.
func DemangleNonce(mangled *bits.Words) (*bits.Words, error) {
	if mangled == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}

	tmp := mangled.Clone()
	for i := 0; i < tmp.WordCount(); i++ {
		w, err := tmp.Word(i)
		if err != nil {
			return nil, err
		}

		step := uint32(nonceMangleStep)
		if r := tmp.BitLen() - 32*i; r < 32 {
			step <<= uint(32 - r)
		}
		if err := tmp.SetWord(i, w-step); err != nil {
			return nil, err
		}
	}
	return tmp, nil
}

// MangleNonce applies the service-side nonce transformation. The SDK itself never mangles a
// nonce, the operation exists for loopback test rigs mirroring the service.
func MangleNonce(nonce *bits.Words) (*bits.Words, error) {
	if nonce == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}

	tmp := nonce.Clone()
	for i := 0; i < tmp.WordCount(); i++ {
		w, err := tmp.Word(i)
		if err != nil {
			return nil, err
		}

		step := uint32(nonceMangleStep)
		if r := tmp.BitLen() - 32*i; r < 32 {
			step <<= uint(32 - r)
		}
		if err := tmp.SetWord(i, w+step); err != nil {
			return nil, err
		}
	}
	return tmp, nil
}
