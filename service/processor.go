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

package service

import (
	"context"

	"github.com/cryptobridge/gohsm/crypt"
	"github.com/cryptobridge/gohsm/errors"
	"github.com/cryptobridge/gohsm/hash"
	"github.com/cryptobridge/gohsm/pdu"
)

// UserObject is the client-side record of a provisioned user object: its identity and the
// negotiated symmetric transport keys.
type UserObject struct {
	UOID   uint32
	UOType pdu.UOType
	EncKey []byte
	MacKey []byte
	// APIKey overrides the service access identifier of the client when set.
	APIKey string
	// Endpoint is the ProcessData endpoint the object was enrolled against.
	Endpoint string
}

// Handle returns the printable handle of the user object.
func (u *UserObject) Handle() (*pdu.Handle, error) {
	if u == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}
	return pdu.NewHandle(u.APIKey, u.UOID, u.UOType)
}

// UserObjectFromHandle constructs the user object record out of a printable handle and the
// transport keys.
func UserObjectFromHandle(handle string, encKey, macKey []byte) (*UserObject, error) {
	h, err := pdu.ParseHandle(handle)
	if err != nil {
		return nil, err
	}
	if len(encKey) != crypt.KeyLen || len(macKey) != crypt.KeyLen {
		return nil, errors.New(errors.HsmInvalidArgumentError).AppendMessage("Invalid transport key length.")
	}
	return &UserObject{
		UOID:   h.UOID(),
		UOType: h.UOType(),
		EncKey: append([]byte(nil), encKey...),
		MacKey: append([]byte(nil), macKey...),
		APIKey: h.APIKey(),
	}, nil
}

// Processor is the abstraction of the ProcessData service.
// An instance must not be shared between goroutines.
type Processor struct {
	service
}

// NewProcessor creates a new processor instance.
func NewProcessor(opts ...Option) (*Processor, error) {
	if len(opts) == 0 {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}

	srv, _, err := newService(opts...)
	if err != nil {
		return nil, err
	}

	return &Processor{
		service: srv,
	}, nil
}

// Send sends the ProcessData request on behalf of the given user object and returns the
// verified response. For more information see pdu.(ProcessReq) and pdu.(ProcessResp).
func (p *Processor) Send(uo *UserObject, req *pdu.ProcessReq) (*pdu.ProcessResp, error) {
	if p == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}
	if p.service == nil {
		return nil, errors.New(errors.HsmInvalidStateError)
	}

	srvReq, err := newRequest(processRequest(req))
	if err != nil {
		return nil, err
	}
	if err := srvReq.setUserObject(uo); err != nil {
		return nil, err
	}

	srvResp, err := p.send(srvReq)
	if err != nil {
		return nil, err
	}

	return srvResp.processResp()
}

// CallOption is a ProcessData call option.
type CallOption func(*callOptions) error

type callOptions struct {
	context   context.Context
	nonce     []byte
	plainData []byte
}

// CallOptionWithContext sets a context for the request.
func CallOptionWithContext(c context.Context) CallOption {
	return func(o *callOptions) error {
		if o == nil {
			return errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing call options object.")
		}
		if c == nil {
			return errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing context.")
		}
		o.context = c
		return nil
	}
}

// CallOptionNonce sets an explicit freshness nonce for the request.
// Should be used with care, the nonce is the response correlation key.
func CallOptionNonce(nonce []byte) CallOption {
	return func(o *callOptions) error {
		if o == nil {
			return errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing call options object.")
		}
		o.nonce = nonce
		return nil
	}
}

// CallOptionPlainData sets the unprotected data part travelling alongside the encrypted frame.
func CallOptionPlainData(data []byte) CallOption {
	return func(o *callOptions) error {
		if o == nil {
			return errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing call options object.")
		}
		o.plainData = data
		return nil
	}
}

// processWithOptions runs a single ProcessData call and returns the unwrapped protected data.
func (p *Processor) processWithOptions(uo *UserObject, reqType string, userData []byte, opt []CallOption) ([]byte, error) {
	if p == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}

	opts := callOptions{}
	for _, optResolver := range opt {
		if optResolver == nil {
			return nil, errors.New(errors.HsmInvalidArgumentError).AppendMessage("Provided option is nil.")
		}
		if err := optResolver(&opts); err != nil {
			return nil, errors.HsmErr(err).AppendMessage("Failed to resolve call option.")
		}
	}

	settings := []pdu.ProcessReqSetting{}
	if opts.nonce != nil {
		settings = append(settings, pdu.ProcessReqSetNonce(opts.nonce))
	}
	if opts.plainData != nil {
		settings = append(settings, pdu.ProcessReqSetPlainData(opts.plainData))
	}

	req, err := pdu.NewProcessReq(reqType, userData, settings...)
	if err != nil {
		return nil, err
	}

	resp, err := p.Send(uo, req.WithContext(opts.context))
	if err != nil {
		return nil, err
	}
	return resp.ProtectedData()
}

// ProcessData invokes the user object with the given request type and data, returning the
// unwrapped protected response data.
func (p *Processor) ProcessData(uo *UserObject, reqType string, userData []byte, opt ...CallOption) ([]byte, error) {
	return p.processWithOptions(uo, reqType, userData, opt)
}

// EncryptAES runs the AES encryption operation of the user object.
func (p *Processor) EncryptAES(uo *UserObject, data []byte, opt ...CallOption) ([]byte, error) {
	return p.processWithOptions(uo, pdu.ReqTypePlainAES, data, opt)
}

// DecryptAES runs the AES decryption operation of the user object.
func (p *Processor) DecryptAES(uo *UserObject, data []byte, opt ...CallOption) ([]byte, error) {
	return p.processWithOptions(uo, pdu.ReqTypePlainAESDecrypt, data, opt)
}

// DecryptRSA runs the RSA decryption operation of the user object. The keyBits parameter
// selects the request type, 1024 or 2048.
func (p *Processor) DecryptRSA(uo *UserObject, keyBits int, data []byte, opt ...CallOption) ([]byte, error) {
	var reqType string
	switch keyBits {
	case 1024:
		reqType = pdu.ReqTypeRSA1024
	case 2048:
		reqType = pdu.ReqTypeRSA2048
	default:
		return nil, errors.New(errors.HsmInvalidArgumentError).AppendMessage("Unsupported RSA key size.")
	}
	return p.processWithOptions(uo, reqType, data, opt)
}

// CreateAuthContext submits a freshly built authentication context to the user object and
// returns the opaque protected context the service issued. The caller must persist the blob
// and present it on every subsequent authentication call.
func (p *Processor) CreateAuthContext(uo *UserObject, ctx *pdu.AuthCtx, opt ...CallOption) ([]byte, error) {
	frame, err := pdu.BuildNewContext(ctx)
	if err != nil {
		return nil, err
	}
	return p.processWithOptions(uo, pdu.ReqTypePlainAES, frame, opt)
}

// VerifyHotp runs an HOTP verification against the user object. The result carries the
// updated context blob, which the caller must persist even when the verification failed: the
// service has updated the failure counters.
func (p *Processor) VerifyHotp(uo *UserObject, userID []byte, code string, userCtx []byte, opt ...CallOption) (*pdu.AuthResult, error) {
	frame, err := pdu.BuildAuthVerify(pdu.TagHotpVerify, userID, []byte(code), userCtx)
	if err != nil {
		return nil, err
	}

	protected, err := p.processWithOptions(uo, pdu.ReqTypePlainAES, frame, opt)
	if err != nil {
		return nil, err
	}
	return pdu.ParseAuthResp(protected, pdu.TagHotpVerify)
}

// VerifyPassword runs a password verification against the user object. The wire carries the
// SHA-256 hash of the password. See VerifyHotp for the context persistence contract.
func (p *Processor) VerifyPassword(uo *UserObject, userID []byte, password string, userCtx []byte, opt ...CallOption) (*pdu.AuthResult, error) {
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

	frame, err := pdu.BuildAuthVerify(pdu.TagPasswordVerify, userID, digest, userCtx)
	if err != nil {
		return nil, err
	}

	protected, err := p.processWithOptions(uo, pdu.ReqTypePlainAES, frame, opt)
	if err != nil {
		return nil, err
	}
	return pdu.ParseAuthResp(protected, pdu.TagPasswordVerify)
}

// UpdateAuthContext requests an authentication context update: a server-side HOTP re-key or a
// password change. The result carries the fresh context blob to persist.
func (p *Processor) UpdateAuthContext(uo *UserObject, userID, userCtx []byte, method byte, password string, opt ...CallOption) (*pdu.AuthResult, error) {
	frame, err := pdu.BuildUpdateContext(userID, userCtx, method, password)
	if err != nil {
		return nil, err
	}

	protected, err := p.processWithOptions(uo, pdu.ReqTypePlainAES, frame, opt)
	if err != nil {
		return nil, err
	}
	return pdu.ParseAuthResp(protected, pdu.TagUpdateAuthCtx)
}
