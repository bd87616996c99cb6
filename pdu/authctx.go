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
	"encoding/binary"
	"fmt"

	"github.com/cryptobridge/gohsm/crypt"
	"github.com/cryptobridge/gohsm/errors"
	"github.com/cryptobridge/gohsm/hash"
	"github.com/cryptobridge/gohsm/tlv"
)

// Outer record tags of the user authentication sub-protocol.
const (
	// TagUserAuthCtx wraps the opaque user authentication context.
	TagUserAuthCtx = 0xa3
	// TagPasswordVerify requests a password method verification.
	TagPasswordVerify = 0xa4
	// TagHotpVerify requests an HOTP method verification.
	TagHotpVerify = 0xa5
	// TagUpdateAuthCtx requests an authentication context update.
	TagUpdateAuthCtx = 0xa7
	// TagNewAuthCtx wraps a freshly built plaintext context.
	TagNewAuthCtx = 0xa8
)

// Method record types of the authentication context.
const (
	// MethodGlobalTries carries the global try counter.
	MethodGlobalTries = 0x3e
	// MethodHotp is the RFC 4226 HOTP method.
	MethodHotp = 0x3f
	// MethodPassword is the password hash method.
	MethodPassword = 0x40
)

// Fixed context layout constants.
const (
	// UserIDLen is the user identifier length in bytes.
	UserIDLen = 8
	// HotpSecretLen is the HOTP shared secret slot length in bytes.
	HotpSecretLen = 16

	authCtxVersion = 0x01
	// version(1) userID(8) flags(4) totalFails(1) maxFails(1)
	authCtxHdrLen = 1 + UserIDLen + 4 + 1 + 1
	// counter(8) currentFails(1) maxFails(1) digits(1) secretLen(1) secret(16)
	hotpMethodLen = 8 + 1 + 1 + 1 + 1 + HotpSecretLen
)

// HotpMethod is the HOTP method record of an authentication context.
type HotpMethod struct {
	Counter      uint64
	CurrentFails byte
	MaxFails     byte
	Digits       byte
	Secret       []byte
}

// PasswordMethod is the password method record of an authentication context.
type PasswordMethod struct {
	CurrentFails byte
	MaxFails     byte
	Hash         []byte
}

// AuthCtx is the plaintext form of the user authentication context. On the wire the context
// travels as an opaque blob the service re-encrypts on every update; the client decodes it only
// when building a brand new context.
type AuthCtx struct {
	version    byte
	userID     []byte
	flags      uint32
	totalFails byte
	maxFails   byte

	hotp        *HotpMethod
	password    *PasswordMethod
	globalTries *byte
}

// AuthCtxSetting is a functional option setter for various authentication context settings.
type AuthCtxSetting func(*authCtx) error
type authCtx struct {
	obj AuthCtx
}

// NewAuthCtx constructs a new authentication context for the given user.
// Optionally additional configuration settings can be added via settings parameter.
func NewAuthCtx(userID []byte, settings ...AuthCtxSetting) (*AuthCtx, error) {
	if len(userID) != UserIDLen {
		return nil, errors.New(errors.HsmInvalidArgumentError).
			AppendMessage(fmt.Sprintf("Invalid user ID length: %d.", len(userID)))
	}

	tmp := authCtx{obj: AuthCtx{
		version: authCtxVersion,
		userID:  append([]byte(nil), userID...),
	}}

	for _, setter := range settings {
		if err := setter(&tmp); err != nil {
			return nil, errors.HsmErr(err).AppendMessage("Unable to setup authentication context.")
		}
	}
	return &tmp.obj, nil
}

// AuthCtxSetMaxFails is authentication contexts' configuration method for the overall failure budget.
func AuthCtxSetMaxFails(n byte) AuthCtxSetting {
	return func(c *authCtx) error {
		if c == nil {
			return errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing authentication context base object.")
		}
		c.obj.maxFails = n
		return nil
	}
}

// AuthCtxSetFlags is authentication contexts' configuration method for the context flag word.
func AuthCtxSetFlags(flags uint32) AuthCtxSetting {
	return func(c *authCtx) error {
		if c == nil {
			return errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing authentication context base object.")
		}
		c.obj.flags = flags
		return nil
	}
}

// AuthCtxSetHotpMethod is authentication contexts' configuration method for enabling the HOTP
// method. The secret must fit the fixed 16 byte slot exactly.
func AuthCtxSetHotpMethod(secret []byte, digits, maxFails byte) AuthCtxSetting {
	return func(c *authCtx) error {
		if c == nil {
			return errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing authentication context base object.")
		}
		if len(secret) != HotpSecretLen {
			return errors.New(errors.HsmInvalidFormatError).
				AppendMessage(fmt.Sprintf("Invalid HOTP secret length: %d.", len(secret)))
		}
		c.obj.hotp = &HotpMethod{
			MaxFails: maxFails,
			Digits:   digits,
			Secret:   append([]byte(nil), secret...),
		}
		return nil
	}
}

// AuthCtxSetPasswordMethod is authentication contexts' configuration method for enabling the
// password method. The wire carries a SHA-256 hash of the password, never the password itself.
func AuthCtxSetPasswordMethod(password string, maxFails byte) AuthCtxSetting {
	return func(c *authCtx) error {
		if c == nil {
			return errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing authentication context base object.")
		}

		hsr, err := hash.SHA2_256.New()
		if err != nil {
			return err
		}
		if _, err := hsr.Write([]byte(password)); err != nil {
			return err
		}
		digest, err := hsr.Sum()
		if err != nil {
			return err
		}

		c.obj.password = &PasswordMethod{
			MaxFails: maxFails,
			Hash:     digest,
		}
		return nil
	}
}

// AuthCtxSetGlobalTries is authentication contexts' configuration method for the global try record.
func AuthCtxSetGlobalTries(n byte) AuthCtxSetting {
	return func(c *authCtx) error {
		if c == nil {
			return errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing authentication context base object.")
		}
		c.obj.globalTries = &n
		return nil
	}
}

// UserID returns the context user identifier.
func (c *AuthCtx) UserID() ([]byte, error) {
	if c == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}
	return c.userID, nil
}

// Hotp returns the HOTP method record, or nil in case the method is not enabled.
func (c *AuthCtx) Hotp() (*HotpMethod, error) {
	if c == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}
	return c.hotp, nil
}

// Password returns the password method record, or nil in case the method is not enabled.
func (c *AuthCtx) Password() (*PasswordMethod, error) {
	if c == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}
	return c.password, nil
}

// Encode serializes the context into its binary representation.
func (c *AuthCtx) Encode() ([]byte, error) {
	if c == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}
	if len(c.userID) != UserIDLen {
		return nil, errors.New(errors.HsmInvalidStateError).AppendMessage("Missing user ID.")
	}

	buf := make([]byte, 0, authCtxHdrLen)
	buf = append(buf, c.version)
	buf = append(buf, c.userID...)
	buf = appendUint32(buf, c.flags)
	buf = append(buf, c.totalFails, c.maxFails)

	var records tlv.Builder
	if c.hotp != nil {
		body := make([]byte, 0, hotpMethodLen)
		var counter [8]byte
		binary.BigEndian.PutUint64(counter[:], c.hotp.Counter)
		body = append(body, counter[:]...)
		body = append(body, c.hotp.CurrentFails, c.hotp.MaxFails, c.hotp.Digits, byte(len(c.hotp.Secret)))
		body = append(body, c.hotp.Secret...)
		if err := records.Add(MethodHotp, body); err != nil {
			return nil, err
		}
	}
	if c.password != nil {
		body := make([]byte, 0, 3+len(c.password.Hash))
		body = append(body, c.password.CurrentFails, c.password.MaxFails, byte(len(c.password.Hash)))
		body = append(body, c.password.Hash...)
		if err := records.Add(MethodPassword, body); err != nil {
			return nil, err
		}
	}
	if c.globalTries != nil {
		if err := records.Add(MethodGlobalTries, []byte{*c.globalTries}); err != nil {
			return nil, err
		}
	}

	return append(buf, records.Bytes()...), nil
}

// DecodeAuthCtx deserializes a plaintext authentication context.
func DecodeAuthCtx(raw []byte) (*AuthCtx, error) {
	if len(raw) < authCtxHdrLen {
		return nil, errors.New(errors.HsmTlvCorrupt).AppendMessage("Context header too short.")
	}

	tmp := &AuthCtx{
		version:    raw[0],
		userID:     append([]byte(nil), raw[1:1+UserIDLen]...),
		flags:      binary.BigEndian.Uint32(raw[1+UserIDLen : 1+UserIDLen+4]),
		totalFails: raw[authCtxHdrLen-2],
		maxFails:   raw[authCtxHdrLen-1],
	}

	records := tlv.NewReader(raw[authCtxHdrLen:])
	for records.More() {
		tag, body, err := records.Next()
		if err != nil {
			return nil, err
		}
		switch tag {
		case MethodHotp:
			if len(body) != hotpMethodLen || int(body[11]) != HotpSecretLen {
				return nil, errors.New(errors.HsmTlvCorrupt).AppendMessage("Invalid HOTP method record.")
			}
			tmp.hotp = &HotpMethod{
				Counter:      binary.BigEndian.Uint64(body[:8]),
				CurrentFails: body[8],
				MaxFails:     body[9],
				Digits:       body[10],
				Secret:       append([]byte(nil), body[12:12+HotpSecretLen]...),
			}
		case MethodPassword:
			if len(body) < 3 || int(body[2]) != len(body)-3 {
				return nil, errors.New(errors.HsmTlvCorrupt).AppendMessage("Invalid password method record.")
			}
			tmp.password = &PasswordMethod{
				CurrentFails: body[0],
				MaxFails:     body[1],
				Hash:         append([]byte(nil), body[3:]...),
			}
		case MethodGlobalTries:
			if len(body) != 1 {
				return nil, errors.New(errors.HsmTlvCorrupt).AppendMessage("Invalid global tries record.")
			}
			tries := body[0]
			tmp.globalTries = &tries
		default:
			return nil, errors.New(errors.HsmTlvCorrupt).
				AppendMessage(fmt.Sprintf("Unknown method record tag: %02x.", tag))
		}
	}
	if err := records.Close(); err != nil {
		return nil, err
	}
	return tmp, nil
}

// BuildNewContext builds the new-context submission frame:
//
//	[A3 || len || protectedCtx] [A8 || len || plaintextCtx]
//
// where protectedCtx is the context encrypted and MACed under single-use random keys. The keys
// are discarded, only the service can relate the two copies; the plaintext copy lets it import
// the method secrets.
func BuildNewContext(ctx *AuthCtx) ([]byte, error) {
	if ctx == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}

	raw, err := ctx.Encode()
	if err != nil {
		return nil, err
	}

	randKe := make([]byte, crypt.KeyLen)
	randKm := make([]byte, crypt.KeyLen)
	if _, err := rand.Read(randKe); err != nil {
		return nil, errors.New(errors.HsmCryptoFailure).SetExtError(err).
			AppendMessage("Unable to generate context keys.")
	}
	if _, err := rand.Read(randKm); err != nil {
		return nil, errors.New(errors.HsmCryptoFailure).SetExtError(err).
			AppendMessage("Unable to generate context keys.")
	}

	ct, err := crypt.CBCEncrypt(randKe, crypt.ZeroIV(), raw, true)
	if err != nil {
		return nil, err
	}
	tag, err := crypt.CBCMac(randKm, ct)
	if err != nil {
		return nil, err
	}

	var b tlv.Builder
	if err := b.Add(TagUserAuthCtx, append(ct, tag...)); err != nil {
		return nil, err
	}
	if err := b.Add(TagNewAuthCtx, raw); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// BuildAuthVerify builds a verification frame for the given operation tag (TagHotpVerify or
// TagPasswordVerify): [A3 || len || userCtx] [op || len || userID || code].
func BuildAuthVerify(op byte, userID, code, userCtx []byte) ([]byte, error) {
	if op != TagHotpVerify && op != TagPasswordVerify {
		return nil, errors.New(errors.HsmInvalidArgumentError).
			AppendMessage(fmt.Sprintf("Unknown verification operation: %02x.", op))
	}
	if len(userID) != UserIDLen {
		return nil, errors.New(errors.HsmInvalidArgumentError).
			AppendMessage(fmt.Sprintf("Invalid user ID length: %d.", len(userID)))
	}
	if len(code) == 0 {
		return nil, errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing verification code.")
	}
	if len(userCtx) == 0 {
		return nil, errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing user context.")
	}

	var b tlv.Builder
	if err := b.Add(TagUserAuthCtx, userCtx); err != nil {
		return nil, err
	}
	body := make([]byte, 0, UserIDLen+len(code))
	body = append(body, userID...)
	body = append(body, code...)
	if err := b.Add(op, body); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// BuildUpdateContext builds a context update frame:
//
//	[A3 || len || userCtx] [A7 || len || userID || methodRecord]
//
// The method record selects the target: for the password method it carries the new password
// hash, for the HOTP method an empty body requests a server-side re-key.
func BuildUpdateContext(userID, userCtx []byte, method byte, password string) ([]byte, error) {
	if len(userID) != UserIDLen {
		return nil, errors.New(errors.HsmInvalidArgumentError).
			AppendMessage(fmt.Sprintf("Invalid user ID length: %d.", len(userID)))
	}
	if len(userCtx) == 0 {
		return nil, errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing user context.")
	}

	var record tlv.Builder
	switch method {
	case MethodHotp:
		if err := record.Add(MethodHotp, nil); err != nil {
			return nil, err
		}
	case MethodPassword:
		hsr, err := hash.SHA2_256.New()
		if err != nil {
			return nil, err
		}
		if _, err := hsr.Write([]byte(password)); err != nil {
			return nil, err
		}
		digest, err := hsr.Sum()
		if err != nil {
			return nil, err
		}
		body := append([]byte{byte(len(digest))}, digest...)
		if err := record.Add(MethodPassword, body); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New(errors.HsmInvalidArgumentError).
			AppendMessage(fmt.Sprintf("Unknown update target: %02x.", method))
	}

	var b tlv.Builder
	if err := b.Add(TagUserAuthCtx, userCtx); err != nil {
		return nil, err
	}
	body := make([]byte, 0, UserIDLen+len(record.Bytes()))
	body = append(body, userID...)
	body = append(body, record.Bytes()...)
	if err := b.Add(TagUpdateAuthCtx, body); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// AuthResult is the parsed outcome of a user authentication call.
type AuthResult struct {
	// UserCtx is the updated context blob. The caller must persist it even on a failed
	// verification, the service has updated the failure counters.
	UserCtx []byte
	// UserID is the echoed user identifier.
	UserID []byte
	// Status is the sub-protocol status word.
	Status Status
	// MethodData carries the optional per-method return records keyed by method tag.
	MethodData map[byte][]byte
	// ShouldUpdateCtx reports whether UserCtx carries a fresh context to persist. It is set
	// on every successfully parsed response; a corrupt response leaves it false.
	ShouldUpdateCtx bool
}

// ParseAuthResp parses the authentication response frame of the requested operation:
//
//	[A3 || len || newUserCtx] [op || len || userID || methodRecords || status(2B)]
//
// Unknown tags, a wrong operation tag or trailing bytes are corrupt.
func ParseAuthResp(data []byte, op byte) (*AuthResult, error) {
	r := tlv.NewReader(data)

	userCtx, err := r.Expect(TagUserAuthCtx)
	if err != nil {
		return nil, err
	}
	body, err := r.Expect(op)
	if err != nil {
		return nil, err
	}
	if err := r.Close(); err != nil {
		return nil, err
	}

	if len(body) < UserIDLen+2 {
		return nil, errors.New(errors.HsmTlvCorrupt).AppendMessage("Verification record too short.")
	}
	userID := body[:UserIDLen]
	status := Status(binary.BigEndian.Uint16(body[len(body)-2:]))

	methodData := make(map[byte][]byte)
	records := tlv.NewReader(body[UserIDLen : len(body)-2])
	for records.More() {
		tag, b, err := records.Next()
		if err != nil {
			return nil, err
		}
		switch tag {
		case MethodGlobalTries, MethodHotp, MethodPassword:
			methodData[tag] = b
		default:
			return nil, errors.New(errors.HsmTlvCorrupt).
				AppendMessage(fmt.Sprintf("Unknown method record tag: %02x.", tag))
		}
	}
	if err := records.Close(); err != nil {
		return nil, err
	}

	return &AuthResult{
		UserCtx:         append([]byte(nil), userCtx...),
		UserID:          append([]byte(nil), userID...),
		Status:          status,
		MethodData:      methodData,
		ShouldUpdateCtx: true,
	}, nil
}
