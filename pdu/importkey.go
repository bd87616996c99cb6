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
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/cryptobridge/gohsm/errors"
	"github.com/cryptobridge/gohsm/pad"
	"github.com/cryptobridge/gohsm/tlv"
)

// Import key type identifiers.
const (
	ImportKeyRSA1024 = "rsa1024"
	ImportKeyRSA2048 = "rsa2048"
)

// TLV tags of the serialized import public key.
const (
	// TagRsaExponent carries the public exponent.
	TagRsaExponent = 0x81
	// TagRsaModulus carries the modulus.
	TagRsaModulus = 0x82
)

// ImportKey is an RSA public key published by the service for wrapping the transport keys of a
// filled template.
type ImportKey struct {
	ID          int    `json:"id"`
	Type        string `json:"type"`
	Certificate string `json:"certificate"`
	Key         string `json:"key"`
}

// RSAPublicKey is the raw RSA public key parsed out of an import key record.
type RSAPublicKey struct {
	E *big.Int
	N *big.Int
}

// PublicKey parses the TLV serialized public key of the import key record. The hexadecimal
// serialization may contain spaces. Unknown record tags are skipped.
func (k *ImportKey) PublicKey() (*RSAPublicKey, error) {
	if k == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}

	clean := strings.Join(strings.Fields(k.Key), "")
	raw, err := hex.DecodeString(clean)
	if err != nil {
		return nil, errors.New(errors.HsmInvalidFormatError).SetExtError(err).
			AppendMessage("Import key is not a hexadecimal string.")
	}

	tmp := &RSAPublicKey{}
	r := tlv.NewReader(raw)
	for r.More() {
		tag, body, err := r.Next()
		if err != nil {
			return nil, err
		}
		switch tag {
		case TagRsaExponent:
			tmp.E = new(big.Int).SetBytes(body)
		case TagRsaModulus:
			tmp.N = new(big.Int).SetBytes(body)
		}
	}
	if err := r.Close(); err != nil {
		return nil, err
	}

	if tmp.E == nil || tmp.N == nil || tmp.E.Sign() == 0 || tmp.N.Sign() == 0 {
		return nil, errors.New(errors.HsmTlvCorrupt).AppendMessage("Incomplete import public key.")
	}
	return tmp, nil
}

// BlockLen returns the RSA block length in bytes.
func (p *RSAPublicKey) BlockLen() int {
	if p == nil || p.N == nil {
		return 0
	}
	return (p.N.BitLen() + 7) / 8
}

// WrapRaw pads the input with PKCS#1 v1.5 type 2 and applies the raw RSA public operation.
// The result is left-padded to the block length.
func (p *RSAPublicKey) WrapRaw(input []byte) ([]byte, error) {
	if p == nil || p.E == nil || p.N == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}

	block, err := pad.PKCS1Pad(input, p.BlockLen(), 2)
	if err != nil {
		return nil, err
	}

	m := new(big.Int).SetBytes(block)
	if m.Cmp(p.N) >= 0 {
		return nil, errors.New(errors.HsmCryptoFailure).AppendMessage("Padded block exceeds the modulus.")
	}
	c := new(big.Int).Exp(m, p.E, p.N)

	out := make([]byte, p.BlockLen())
	raw := c.Bytes()
	copy(out[len(out)-len(raw):], raw)
	return out, nil
}

// ChooseImportKey selects the import key to wrap the transport keys under. An RSA-2048 key is
// preferred over RSA-1024.
func ChooseImportKey(keys []ImportKey) (*ImportKey, error) {
	var fallback *ImportKey
	for i := range keys {
		switch keys[i].Type {
		case ImportKeyRSA2048:
			return &keys[i], nil
		case ImportKeyRSA1024:
			if fallback == nil {
				fallback = &keys[i]
			}
		}
	}
	if fallback == nil {
		return nil, errors.New(errors.HsmInvalidStateError).AppendMessage("No usable import key.")
	}
	return fallback, nil
}
