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

package pad

import (
	"crypto/rand"

	"github.com/cryptobridge/gohsm/errors"
)

// PKCS#1 v1.5 block layout: 0x00 | BT | PS | 0x00 | data, with at least 8 padding bytes.
const pkcs1MinPadLen = 8

// PKCS1Pad formats the data into a PKCS#1 v1.5 encryption block of the given length.
// The block type bt selects the padding filler: 0x00 for type 0, 0xFF for type 1 and uniform
// non-zero random bytes for type 2.
func PKCS1Pad(data []byte, blockLen int, bt byte) ([]byte, error) {
	if bt > 2 {
		return nil, errors.New(errors.HsmInvalidArgumentError).AppendMessage("Unknown block type.")
	}
	psLen := blockLen - 3 - len(data)
	if psLen < pkcs1MinPadLen {
		return nil, errors.New(errors.HsmBufferOverflow).AppendMessage("Data does not fit into the block.")
	}

	tmp := make([]byte, blockLen)
	tmp[0] = 0x00
	tmp[1] = bt
	ps := tmp[2 : 2+psLen]
	switch bt {
	case 0:
		// Zero filler.
	case 1:
		for i := range ps {
			ps[i] = 0xff
		}
	case 2:
		if err := fillNonZero(ps); err != nil {
			return nil, err
		}
	}
	tmp[2+psLen] = 0x00
	copy(tmp[3+psLen:], data)
	return tmp, nil
}

// fillNonZero fills the buffer with uniform non-zero bytes from the CSPRNG.
func fillNonZero(buf []byte) error {
	if _, err := rand.Read(buf); err != nil {
		return errors.New(errors.HsmCryptoFailure).SetExtError(err).
			AppendMessage("Unable to read random padding bytes.")
	}
	for i := range buf {
		for buf[i] == 0 {
			var b [1]byte
			if _, err := rand.Read(b[:]); err != nil {
				return errors.New(errors.HsmCryptoFailure).SetExtError(err).
					AppendMessage("Unable to read random padding bytes.")
			}
			buf[i] = b[0]
		}
	}
	return nil
}

// PKCS1Unpad verifies the PKCS#1 v1.5 block structure and returns the embedded data.
func PKCS1Unpad(block []byte) ([]byte, error) {
	if len(block) < 3+pkcs1MinPadLen {
		return nil, errors.New(errors.HsmPaddingInvalid).AppendMessage("Block too short.")
	}
	if block[0] != 0x00 {
		return nil, errors.New(errors.HsmPaddingInvalid).AppendMessage("Missing leading zero octet.")
	}
	bt := block[1]
	if bt > 2 {
		return nil, errors.New(errors.HsmPaddingInvalid).AppendMessage("Unknown block type.")
	}

	// Scan for the data terminator according to the block type.
	i := 2
	switch bt {
	case 0:
		for i < len(block) && block[i] == 0x00 {
			i++
		}
		// Type 0 has no explicit terminator, the data starts at the first non-zero octet.
		if i-2 < pkcs1MinPadLen || i >= len(block) {
			return nil, errors.New(errors.HsmPaddingInvalid).AppendMessage("Inconsistent type 0 padding.")
		}
		return block[i:], nil
	case 1:
		for i < len(block) && block[i] == 0xff {
			i++
		}
	case 2:
		for i < len(block) && block[i] != 0x00 {
			i++
		}
	}
	if i-2 < pkcs1MinPadLen || i >= len(block) || block[i] != 0x00 {
		return nil, errors.New(errors.HsmPaddingInvalid).AppendMessage("Inconsistent padding filler.")
	}
	return block[i+1:], nil
}
