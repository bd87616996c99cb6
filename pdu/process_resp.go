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
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/cryptobridge/gohsm/bits"
	"github.com/cryptobridge/gohsm/crypt"
	"github.com/cryptobridge/gohsm/errors"
)

// respEnvelope is the JSON envelope every service response arrives in.
type respEnvelope struct {
	Status       string          `json:"status"`
	StatusDetail string          `json:"statusdetail"`
	Function     string          `json:"function"`
	Version      string          `json:"version"`
	Result       json.RawMessage `json:"result"`
	// Signature optionally carries a detached PKCS#7 signature over the result bytes.
	Signature string `json:"signature"`
}

func decodeEnvelope(raw []byte) (*respEnvelope, Status, error) {
	if len(raw) == 0 {
		return nil, 0, errors.New(errors.HsmInvalidFormatError).AppendMessage("Missing response body.")
	}

	var env respEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, 0, errors.New(errors.HsmInvalidFormatError).SetExtError(err).
			AppendMessage("Unable to parse response envelope.")
	}
	status, err := ParseStatus(env.Status)
	if err != nil {
		return nil, 0, errors.HsmErr(err).AppendMessage("Unable to parse response status.")
	}
	return &env, status, nil
}

// ProcessResp is the ProcessData response frame parser.
type ProcessResp struct {
	status       Status
	statusDetail string
	function     string
	version      string
	result       string

	plainData     []byte
	protectedData []byte
	uoID          uint32
	nonce         []byte
	verified      bool
}

// Decode deserializes the response JSON envelope. A non-OK status word is not an error at this
// stage, the envelope is valid; see (ProcessResp).Status().
func (r *ProcessResp) Decode(raw []byte) error {
	if r == nil {
		return errors.New(errors.HsmInvalidArgumentError)
	}

	env, status, err := decodeEnvelope(raw)
	if err != nil {
		return err
	}
	r.status = status
	r.statusDetail = env.StatusDetail
	r.function = env.Function
	r.version = env.Version

	// The result is parsed only on success, a failed envelope carries no usable payload.
	if status.IsOK() {
		if err := json.Unmarshal(env.Result, &r.result); err != nil {
			return errors.New(errors.HsmInvalidFormatError).SetExtError(err).
				AppendMessage("Unable to parse response result.")
		}
	}
	return nil
}

// Verify authenticates and decrypts the protected part of the response under the user object
// transport keys. The MAC is verified strictly before any decryption takes place; the
// ordering is a correctness invariant, it keeps padding failures unobservable for an attacker
// without a valid tag.
func (r *ProcessResp) Verify(encKey, macKey []byte) error {
	if r == nil {
		return errors.New(errors.HsmInvalidArgumentError)
	}
	if !r.status.IsOK() {
		return errors.New(errors.HsmInvalidStateError).AppendMessage("Response carries a failure status.")
	}

	// The protected body is the first wire token.
	head := r.result
	if i := strings.IndexByte(head, '_'); i >= 0 {
		head = head[:i]
	}
	body, err := hex.DecodeString(head)
	if err != nil {
		return errors.New(errors.HsmTlvCorrupt).SetExtError(err).
			AppendMessage("Response body is not a hexadecimal string.")
	}
	if len(body) < 2 {
		return errors.New(errors.HsmTlvCorrupt).AppendMessage("Response body too short.")
	}

	plainLen := int(binary.BigEndian.Uint16(body[:2]))
	if len(body) < 2+plainLen+crypt.BlockLen+crypt.BlockLen {
		return errors.New(errors.HsmTlvCorrupt).AppendMessage("Response body too short.")
	}
	plain := body[2 : 2+plainLen]
	rest := body[2+plainLen:]

	ct := rest[:len(rest)-crypt.BlockLen]
	tag := rest[len(rest)-crypt.BlockLen:]
	if len(ct) == 0 || len(ct)%crypt.BlockLen != 0 {
		return errors.New(errors.HsmTlvCorrupt).AppendMessage("Ciphertext is not block aligned.")
	}

	computed, err := crypt.CBCMac(macKey, ct)
	if err != nil {
		return err
	}
	if !bits.FromBytes(computed).Equal(bits.FromBytes(tag)) {
		return errors.New(errors.HsmMacMismatch).AppendMessage("Response authentication tag mismatch.")
	}

	dec, err := crypt.CBCDecrypt(encKey, crypt.ZeroIV(), ct, true)
	if err != nil {
		return err
	}
	if len(dec) < 1+4+NonceLen {
		return errors.New(errors.HsmTlvCorrupt).AppendMessage("Decrypted frame too short.")
	}
	if dec[0] != responseFlag {
		return errors.New(errors.HsmResponseFlagMismatch).
			AppendMessage("Decrypted frame does not carry the response flag.")
	}

	respNonce, err := DemangleNonce(bits.FromBytes(dec[5 : 5+NonceLen]))
	if err != nil {
		return err
	}
	nonce, err := respNonce.Bytes()
	if err != nil {
		return err
	}

	r.plainData = plain
	r.uoID = binary.BigEndian.Uint32(dec[1:5])
	r.nonce = nonce
	r.protectedData = dec[1+4+NonceLen:]
	r.verified = true
	return nil
}

// MatchRequest ties the response to its originating request: the echoed user object ID and the
// demangled freshness nonce are the correlation key.
func (r *ProcessResp) MatchRequest(req *ProcessReq) error {
	if r == nil || req == nil {
		return errors.New(errors.HsmInvalidArgumentError)
	}
	if !r.verified {
		return errors.New(errors.HsmInvalidStateError).AppendMessage("Response has not been verified.")
	}

	reqUOID, err := req.UOID()
	if err != nil {
		return err
	}
	if r.uoID != reqUOID {
		return errors.New(errors.HsmNonceMismatch).AppendMessage("Echoed user object ID mismatch.")
	}

	reqNonce, err := req.Nonce()
	if err != nil {
		return err
	}
	if !bits.FromBytes(r.nonce).Equal(bits.FromBytes(reqNonce)) {
		return errors.New(errors.HsmNonceMismatch).AppendMessage("Echoed freshness nonce mismatch.")
	}
	return nil
}

// Status returns the response status word.
func (r *ProcessResp) Status() (Status, error) {
	if r == nil {
		return 0, errors.New(errors.HsmInvalidArgumentError)
	}
	return r.status, nil
}

// StatusDetail returns the human readable status description of the envelope.
func (r *ProcessResp) StatusDetail() (string, error) {
	if r == nil {
		return "", errors.New(errors.HsmInvalidArgumentError)
	}
	return r.statusDetail, nil
}

// Function returns the service function name of the envelope.
func (r *ProcessResp) Function() (string, error) {
	if r == nil {
		return "", errors.New(errors.HsmInvalidArgumentError)
	}
	return r.function, nil
}

// ProtectedData returns the decrypted payload of a verified response.
func (r *ProcessResp) ProtectedData() ([]byte, error) {
	if r == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}
	if !r.verified {
		return nil, errors.New(errors.HsmInvalidStateError).AppendMessage("Response has not been verified.")
	}
	return r.protectedData, nil
}

// PlainData returns the unprotected data part of a verified response.
func (r *ProcessResp) PlainData() ([]byte, error) {
	if r == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}
	if !r.verified {
		return nil, errors.New(errors.HsmInvalidStateError).AppendMessage("Response has not been verified.")
	}
	return r.plainData, nil
}

// UOID returns the echoed user object ID of a verified response.
func (r *ProcessResp) UOID() (uint32, error) {
	if r == nil {
		return 0, errors.New(errors.HsmInvalidArgumentError)
	}
	if !r.verified {
		return 0, errors.New(errors.HsmInvalidStateError).AppendMessage("Response has not been verified.")
	}
	return r.uoID, nil
}

// Nonce returns the demangled freshness nonce of a verified response.
func (r *ProcessResp) Nonce() ([]byte, error) {
	if r == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}
	if !r.verified {
		return nil, errors.New(errors.HsmInvalidStateError).AppendMessage("Response has not been verified.")
	}
	return r.nonce, nil
}
