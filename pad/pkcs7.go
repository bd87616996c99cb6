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

// Package pad implements the padding schemes of the HSM wire format: PKCS#7 with a 16 byte
// block and PKCS#1 v1.5 block types 0, 1 and 2.
package pad

import (
	"crypto/subtle"

	"github.com/cryptobridge/gohsm/errors"
)

// PKCS7BlockLen is the cipher block length the PKCS#7 scheme operates on.
const PKCS7BlockLen = 16

// PKCS7Pad appends the PKCS#7 padding tail to the data. A full padding block is appended in
// case the input is already block aligned.
func PKCS7Pad(data []byte) []byte {
	k := PKCS7BlockLen - len(data)%PKCS7BlockLen
	tmp := make([]byte, len(data)+k)
	copy(tmp, data)
	for i := len(data); i < len(tmp); i++ {
		tmp[i] = byte(k)
	}
	return tmp
}

// PKCS7Unpad verifies and strips the PKCS#7 padding tail. The tail bytes are verified in
// constant time.
func PKCS7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%PKCS7BlockLen != 0 {
		return nil, errors.New(errors.HsmPaddingInvalid).AppendMessage("Input is not block aligned.")
	}

	k := int(data[len(data)-1])
	if k < 1 || k > PKCS7BlockLen {
		return nil, errors.New(errors.HsmPaddingInvalid).AppendMessage("Padding value out of range.")
	}

	valid := 1
	for _, v := range data[len(data)-k:] {
		valid &= subtle.ConstantTimeByteEq(v, byte(k))
	}
	if valid != 1 {
		return nil, errors.New(errors.HsmPaddingInvalid).AppendMessage("Inconsistent padding tail.")
	}
	return data[:len(data)-k], nil
}
