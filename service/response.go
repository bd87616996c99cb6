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
	"github.com/cryptobridge/gohsm/errors"
	"github.com/cryptobridge/gohsm/pdu"
)

// response is a wrapper for service responses.
// See pdu.(ProcessResp), pdu.(TemplateResp), pdu.(CreateResp), pdu.(ImportKeysResp).
type response struct {
	procResp   *pdu.ProcessResp
	tplResp    *pdu.TemplateResp
	createResp *pdu.CreateResp
	importResp *pdu.ImportKeysResp

	decode func([]byte) error
	status func() pdu.Status
	verify func(req *request) error
}

// responseType is a concrete wrapper implementation.
type responseType func(*response) error

func newResponse(from responseType) (*response, error) {
	tmp := &response{}
	if err := from(tmp); err != nil {
		return nil, err
	}
	return tmp, nil
}

// processResponse wraps the pdu.(ProcessResp).
func processResponse() responseType {
	return func(r *response) error {
		if r == nil {
			return errors.New(errors.HsmInvalidArgumentError)
		}
		r.procResp = &pdu.ProcessResp{}

		r.decode = func(b []byte) error { return r.procResp.Decode(b) }
		r.status = func() pdu.Status { s, _ := r.procResp.Status(); return s }
		r.verify = func(req *request) error {
			if req == nil || req.uo == nil {
				return errors.New(errors.HsmInvalidStateError).AppendMessage("Missing request user object.")
			}
			if err := r.procResp.Verify(req.uo.EncKey, req.uo.MacKey); err != nil {
				return err
			}
			return r.procResp.MatchRequest(req.procReq)
		}
		return nil
	}
}

// templateResponse wraps the pdu.(TemplateResp).
func templateResponse() responseType {
	return func(r *response) error {
		if r == nil {
			return errors.New(errors.HsmInvalidArgumentError)
		}
		r.tplResp = &pdu.TemplateResp{}

		r.decode = func(b []byte) error { return r.tplResp.Decode(b) }
		r.status = func() pdu.Status { s, _ := r.tplResp.Status(); return s }
		r.verify = func(*request) error { return nil }
		return nil
	}
}

// createResponse wraps the pdu.(CreateResp).
func createResponse() responseType {
	return func(r *response) error {
		if r == nil {
			return errors.New(errors.HsmInvalidArgumentError)
		}
		r.createResp = &pdu.CreateResp{}

		r.decode = func(b []byte) error { return r.createResp.Decode(b) }
		r.status = func() pdu.Status { s, _ := r.createResp.Status(); return s }
		r.verify = func(*request) error { return nil }
		return nil
	}
}

// importKeysResponse wraps the pdu.(ImportKeysResp).
func importKeysResponse() responseType {
	return func(r *response) error {
		if r == nil {
			return errors.New(errors.HsmInvalidArgumentError)
		}
		r.importResp = &pdu.ImportKeysResp{}

		r.decode = func(b []byte) error { return r.importResp.Decode(b) }
		r.status = func() pdu.Status { s, _ := r.importResp.Status(); return s }
		r.verify = func(*request) error { return nil }
		return nil
	}
}

// processResp returns the ProcessData response.
func (r *response) processResp() (*pdu.ProcessResp, error) {
	if r == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}
	return r.procResp, nil
}

// templateResp returns the template response.
func (r *response) templateResp() (*pdu.TemplateResp, error) {
	if r == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}
	return r.tplResp, nil
}

// createObjectResp returns the create object response.
func (r *response) createObjectResp() (*pdu.CreateResp, error) {
	if r == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}
	return r.createResp, nil
}

// importKeysResp returns the import key directory response.
func (r *response) importKeysResp() (*pdu.ImportKeysResp, error) {
	if r == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}
	return r.importResp, nil
}
