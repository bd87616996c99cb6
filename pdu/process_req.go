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
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/cryptobridge/gohsm/crypt"
	"github.com/cryptobridge/gohsm/errors"
	"github.com/cryptobridge/gohsm/pad"
)

// ProcessData request types.
const (
	ReqTypePlainAES        = "PLAINAES"
	ReqTypePlainAESDecrypt = "PLAINAESDECRYPT"
	ReqTypeRSA1024         = "RSA1024"
	ReqTypeRSA2048         = "RSA2048"
)

const (
	// requestFlag opens the plaintext of every ProcessData request frame.
	requestFlag = 0x1f
	// responseFlag opens the plaintext of every ProcessData response frame.
	responseFlag = 0xf1

	// wirePrefix opens the serialized request.
	wirePrefix = "Packet0_"

	// maxPlainDataLen is imposed by the 16-bit plain data length field.
	maxPlainDataLen = 0xffff
)

// ProcessReqSetting is a functional option setter for various ProcessData request settings.
type ProcessReqSetting func(*processReq) error
type processReq struct {
	obj ProcessReq
}

// ProcessReq is the ProcessData request frame builder.
type ProcessReq struct {
	uoID   uint32
	encKey []byte
	macKey []byte

	reqType   string
	plainData []byte
	userData  []byte
	nonce     []byte

	ctx context.Context
}

// NewProcessReq constructs a new ProcessData request carrying the given user data.
// Optionally additional configuration settings can be added via settings parameter.
func NewProcessReq(reqType string, userData []byte, settings ...ProcessReqSetting) (*ProcessReq, error) {
	if len(reqType) == 0 {
		return nil, errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing request type.")
	}

	tmp := processReq{obj: ProcessReq{
		reqType:  reqType,
		userData: append([]byte(nil), userData...),
	}}

	// Setup adjust settings with provided.
	for _, setter := range settings {
		if err := setter(&tmp); err != nil {
			return nil, errors.HsmErr(err).AppendMessage("Unable to setup ProcessData request.")
		}
	}

	return &tmp.obj, nil
}

// ProcessReqSetNonce is ProcessData requests' configuration method for setting an explicit
// freshness nonce. Should be used with care, the nonce is the response correlation key.
func ProcessReqSetNonce(nonce []byte) ProcessReqSetting {
	return func(r *processReq) error {
		if r == nil {
			return errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing ProcessData request base object.")
		}
		if len(nonce) != NonceLen {
			return errors.New(errors.HsmInvalidFormatError).
				AppendMessage(fmt.Sprintf("Invalid nonce length: %d.", len(nonce)))
		}
		r.obj.nonce = append([]byte(nil), nonce...)
		return nil
	}
}

// ProcessReqSetNonceHex is ProcessData requests' configuration method for setting an explicit
// freshness nonce in its 16 character hexadecimal form.
func ProcessReqSetNonceHex(nonce string) ProcessReqSetting {
	return func(r *processReq) error {
		if r == nil {
			return errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing ProcessData request base object.")
		}
		raw, err := hex.DecodeString(nonce)
		if err != nil {
			return errors.New(errors.HsmInvalidFormatError).SetExtError(err).AppendMessage("Invalid nonce string.")
		}
		if len(raw) != NonceLen {
			return errors.New(errors.HsmInvalidFormatError).
				AppendMessage(fmt.Sprintf("Invalid nonce length: %d.", len(raw)))
		}
		r.obj.nonce = raw
		return nil
	}
}

// ProcessReqSetPlainData is ProcessData requests' configuration method for setting the
// unprotected data part travelling alongside the encrypted frame.
func ProcessReqSetPlainData(data []byte) ProcessReqSetting {
	return func(r *processReq) error {
		if r == nil {
			return errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing ProcessData request base object.")
		}
		r.obj.plainData = append([]byte(nil), data...)
		return nil
	}
}

// SetUserObject applies the addressed user object identity and transport keys.
func (r *ProcessReq) SetUserObject(uoID uint32, encKey, macKey []byte) error {
	if r == nil {
		return errors.New(errors.HsmInvalidArgumentError)
	}
	if len(encKey) != crypt.KeyLen {
		return errors.New(errors.HsmInvalidArgumentError).
			AppendMessage(fmt.Sprintf("Invalid encryption key length: %d.", len(encKey)))
	}
	if len(macKey) != crypt.KeyLen {
		return errors.New(errors.HsmInvalidArgumentError).
			AppendMessage(fmt.Sprintf("Invalid MAC key length: %d.", len(macKey)))
	}
	r.uoID = uoID
	r.encKey = append([]byte(nil), encKey...)
	r.macKey = append([]byte(nil), macKey...)
	return nil
}

// UpdateNonce applies a fresh random nonce in case it is not set explicitly.
func (r *ProcessReq) UpdateNonce() error {
	if r == nil {
		return errors.New(errors.HsmInvalidArgumentError)
	}
	if r.nonce == nil {
		tmp, err := NewNonce()
		if err != nil {
			return err
		}
		r.nonce = tmp
	}
	return nil
}

// RequestType returns the ProcessData operation selector.
func (r *ProcessReq) RequestType() (string, error) {
	if r == nil {
		return "", errors.New(errors.HsmInvalidArgumentError)
	}
	return r.reqType, nil
}

// Nonce returns the request freshness nonce.
// In case the nonce has not been applied yet, an error is returned.
func (r *ProcessReq) Nonce() ([]byte, error) {
	if r == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}
	if r.nonce == nil {
		return nil, errors.New(errors.HsmInvalidStateError).AppendMessage("Missing freshness nonce.")
	}
	return r.nonce, nil
}

// UOID returns the addressed user object ID.
func (r *ProcessReq) UOID() (uint32, error) {
	if r == nil {
		return 0, errors.New(errors.HsmInvalidArgumentError)
	}
	return r.uoID, nil
}

// UserData returns the data to be protected inside the request frame.
func (r *ProcessReq) UserData() ([]byte, error) {
	if r == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}
	return r.userData, nil
}

// Encode serializes the request into its wire representation:
//
//	Packet0_<reqType>_<plainLen(2B) || plainData || CT || TAG, hex encoded>
//
// where CT is the CBC encryption of flag || UOid || nonce || userData under the user object
// encryption key and TAG is the CBC-MAC of CT under the MAC key.
func (r *ProcessReq) Encode() (string, error) {
	if r == nil {
		return "", errors.New(errors.HsmInvalidArgumentError)
	}
	if len(r.encKey) != crypt.KeyLen || len(r.macKey) != crypt.KeyLen {
		return "", errors.New(errors.HsmInvalidStateError).AppendMessage("Missing user object keys.")
	}
	if r.nonce == nil {
		return "", errors.New(errors.HsmInvalidStateError).AppendMessage("Missing freshness nonce.")
	}
	if len(r.plainData) > maxPlainDataLen {
		return "", errors.New(errors.HsmBufferOverflow).
			AppendMessage(fmt.Sprintf("Plain data exceeds the 16-bit length field: %d.", len(r.plainData)))
	}

	// flag || UOid || nonce || userData, PKCS#7 padded to the cipher block.
	frame := make([]byte, 0, 1+4+NonceLen+len(r.userData))
	frame = append(frame, requestFlag)
	frame = appendUint32(frame, r.uoID)
	frame = append(frame, r.nonce...)
	frame = append(frame, r.userData...)
	frame = pad.PKCS7Pad(frame)

	// The frame is already padded, the nonce in the first block takes the role of the IV.
	ct, err := crypt.CBCEncrypt(r.encKey, crypt.ZeroIV(), frame, false)
	if err != nil {
		return "", err
	}
	tag, err := crypt.CBCMac(r.macKey, ct)
	if err != nil {
		return "", err
	}

	body := make([]byte, 0, 2+len(r.plainData)+len(ct)+len(tag))
	body = appendUint16(body, uint16(len(r.plainData)))
	body = append(body, r.plainData...)
	body = append(body, ct...)
	body = append(body, tag...)

	return wirePrefix + r.reqType + "_" + hex.EncodeToString(body), nil
}

// Clone returns a deep copy of the origin, or nil in case of an error.
// Note that the applied user object keys and nonce are ignored, the clone is a fresh request.
func (r *ProcessReq) Clone() (*ProcessReq, error) {
	if r == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}
	return &ProcessReq{
		reqType:   r.reqType,
		plainData: append([]byte(nil), r.plainData...),
		userData:  append([]byte(nil), r.userData...),
		ctx:       r.ctx,
	}, nil
}

// WithContext returns the original r with its context changed to ctx.
// In case of an error, nil is returned.
func (r *ProcessReq) WithContext(ctx context.Context) *ProcessReq {
	if r == nil {
		return nil
	}

	switch {
	case ctx == nil:
		r.ctx = context.Background()
	default:
		r.ctx = ctx
	}
	return r
}

// Context returns the request's context.
//
// The returned context is always non-nil, it defaults to the background context.
func (r *ProcessReq) Context() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}

func appendUint16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendUint32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}
