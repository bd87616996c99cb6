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

// Package crypt implements the AES-CBC encryption envelope and the AES-CBC-MAC authentication
// code used by the HSM wire format.
//
// The wire convention runs CBC with an all-zero IV: the first block of every protected frame
// carries the freshness nonce, which takes the role of the IV.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/cryptobridge/gohsm/errors"
	"github.com/cryptobridge/gohsm/pad"
)

// BlockLen is the AES cipher block length in bytes.
const BlockLen = aes.BlockSize

// KeyLen is the symmetric key length of the wire format in bytes (AES-256).
const KeyLen = 32

var zeroIV [BlockLen]byte

// ZeroIV returns the all-zero initialization vector of the wire format.
func ZeroIV() []byte {
	tmp := zeroIV
	return tmp[:]
}

func newBlockCipher(key []byte) (cipher.Block, error) {
	c, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.New(errors.HsmCryptoFailure).SetExtError(err).
			AppendMessage("Unable to initialize block cipher.")
	}
	return c, nil
}

// CBCEncrypt encrypts the data in CBC mode under the given key and IV. In padded mode a PKCS#7
// tail is appended first, otherwise the caller must guarantee block alignment.
func CBCEncrypt(key, iv, data []byte, padded bool) ([]byte, error) {
	if len(iv) != BlockLen {
		return nil, errors.New(errors.HsmInvalidArgumentError).AppendMessage("Invalid IV length.")
	}

	c, err := newBlockCipher(key)
	if err != nil {
		return nil, err
	}

	if padded {
		data = pad.PKCS7Pad(data)
	} else {
		if len(data) == 0 || len(data)%BlockLen != 0 {
			return nil, errors.New(errors.HsmInvalidArgumentError).
				AppendMessage("Unpadded input must be a positive multiple of the block length.")
		}
		data = append([]byte(nil), data...)
	}

	cipher.NewCBCEncrypter(c, iv).CryptBlocks(data, data)
	return data, nil
}

// CBCDecrypt decrypts the CBC ciphertext under the given key and IV. In padded mode the PKCS#7
// tail is verified strictly and stripped.
func CBCDecrypt(key, iv, data []byte, padded bool) ([]byte, error) {
	if len(iv) != BlockLen {
		return nil, errors.New(errors.HsmInvalidArgumentError).AppendMessage("Invalid IV length.")
	}
	if len(data) == 0 || len(data)%BlockLen != 0 {
		return nil, errors.New(errors.HsmInvalidArgumentError).
			AppendMessage("Ciphertext must be a positive multiple of the block length.")
	}

	c, err := newBlockCipher(key)
	if err != nil {
		return nil, err
	}

	tmp := append([]byte(nil), data...)
	cipher.NewCBCDecrypter(c, iv).CryptBlocks(tmp, tmp)

	if padded {
		return pad.PKCS7Unpad(tmp)
	}
	return tmp, nil
}
