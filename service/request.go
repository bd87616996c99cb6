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
	"encoding/hex"

	"github.com/cryptobridge/gohsm/errors"
	"github.com/cryptobridge/gohsm/net"
	"github.com/cryptobridge/gohsm/pdu"
)

// request is a wrapper for service requests.
// See pdu.(ProcessReq), pdu.(TemplateReq), pdu.(CreateReq).
type request struct {
	procReq   *pdu.ProcessReq
	tplReq    *pdu.TemplateReq
	createReq *pdu.CreateReq

	// Addressed user object of a ProcessData request.
	uo *UserObject
	// Envelope nonce of the enrolment requests.
	nonce string
	// User object type the enrolment requests address.
	uoType pdu.UOType
	ctx    context.Context

	setUserObject func(*UserObject) error
	updateNonce   func() error
	encode        func(apiKey string) (*net.Request, error)
	reqContext    func() context.Context

	respType func() responseType
}

// requestType is a concrete wrapper implementation.
type requestType func(*request) error

func newRequest(from requestType) (*request, error) {
	tmp := &request{}
	if err := from(tmp); err != nil {
		return nil, err
	}
	return tmp, nil
}

func (r *request) context() context.Context {
	if r.reqContext != nil {
		return r.reqContext()
	}
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}

// updateEnvelopeNonce applies a fresh envelope nonce in case none is set.
func (r *request) updateEnvelopeNonce() error {
	if r.nonce == "" {
		tmp, err := pdu.NewNonceHex()
		if err != nil {
			return err
		}
		r.nonce = tmp
	}
	return nil
}

// processRequest wraps the pdu.(ProcessReq).
func processRequest(req *pdu.ProcessReq) requestType {
	return func(r *request) error {
		if r == nil || req == nil {
			return errors.New(errors.HsmInvalidArgumentError)
		}
		r.procReq = req

		r.setUserObject = func(uo *UserObject) error {
			if uo == nil {
				return errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing user object.")
			}
			r.uo = uo
			return req.SetUserObject(uo.UOID, uo.EncKey, uo.MacKey)
		}
		r.updateNonce = func() error { return req.UpdateNonce() }
		r.reqContext = func() context.Context { return req.Context() }

		r.encode = func(apiKey string) (*net.Request, error) {
			if r.uo == nil {
				return nil, errors.New(errors.HsmInvalidStateError).AppendMessage("User object has not been applied.")
			}

			key := r.uo.APIKey
			if key == "" {
				key = apiKey
			}
			handle, err := pdu.NewHandle(key, r.uo.UOID, r.uo.UOType)
			if err != nil {
				return nil, err
			}

			wire, err := req.Encode()
			if err != nil {
				return nil, err
			}
			nonce, err := req.Nonce()
			if err != nil {
				return nil, err
			}

			return &net.Request{
				Handle:   handle.String(),
				Function: funcProcessData,
				Nonce:    hex.EncodeToString(nonce),
				Body:     map[string]string{"data": wire},
				Segment:  wire,
			}, nil
		}

		r.respType = processResponse
		return nil
	}
}

// templateRequest wraps the pdu.(TemplateReq).
func templateRequest(req *pdu.TemplateReq, uoType pdu.UOType, ctx context.Context) requestType {
	return func(r *request) error {
		if r == nil || req == nil {
			return errors.New(errors.HsmInvalidArgumentError)
		}
		r.tplReq = req
		r.uoType = uoType
		r.ctx = ctx

		r.setUserObject = func(*UserObject) error {
			return errors.New(errors.HsmInvalidStateError).AppendMessage("Enrolment requests address no user object.")
		}
		r.updateNonce = r.updateEnvelopeNonce

		r.encode = func(apiKey string) (*net.Request, error) {
			handle, err := pdu.NewHandle(apiKey, 0, uoType)
			if err != nil {
				return nil, err
			}
			return &net.Request{
				Handle:   handle.String(),
				Function: funcGetTemplate,
				Nonce:    r.nonce,
				Body:     req,
			}, nil
		}

		r.respType = templateResponse
		return nil
	}
}

// createRequest wraps the pdu.(CreateReq).
func createRequest(req *pdu.CreateReq, uoType pdu.UOType, ctx context.Context) requestType {
	return func(r *request) error {
		if r == nil || req == nil {
			return errors.New(errors.HsmInvalidArgumentError)
		}
		r.createReq = req
		r.uoType = uoType
		r.ctx = ctx

		r.setUserObject = func(*UserObject) error {
			return errors.New(errors.HsmInvalidStateError).AppendMessage("Enrolment requests address no user object.")
		}
		r.updateNonce = r.updateEnvelopeNonce

		r.encode = func(apiKey string) (*net.Request, error) {
			handle, err := pdu.NewHandle(apiKey, 0, uoType)
			if err != nil {
				return nil, err
			}
			return &net.Request{
				Handle:   handle.String(),
				Function: funcCreateObject,
				Nonce:    r.nonce,
				Body:     req,
			}, nil
		}

		r.respType = createResponse
		return nil
	}
}

// importKeysRequest addresses the import key directory.
func importKeysRequest(ctx context.Context) requestType {
	return func(r *request) error {
		if r == nil {
			return errors.New(errors.HsmInvalidArgumentError)
		}
		r.ctx = ctx

		r.setUserObject = func(*UserObject) error {
			return errors.New(errors.HsmInvalidStateError).AppendMessage("Enrolment requests address no user object.")
		}
		r.updateNonce = r.updateEnvelopeNonce

		r.encode = func(apiKey string) (*net.Request, error) {
			handle, err := pdu.NewHandle(apiKey, 0, 0)
			if err != nil {
				return nil, err
			}
			return &net.Request{
				Handle:   handle.String(),
				Function: funcGetImportPubKey,
				Nonce:    r.nonce,
				Body:     struct{}{},
			}, nil
		}

		r.respType = importKeysResponse
		return nil
	}
}
