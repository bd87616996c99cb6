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

// Package service implements the client side of the HSM service calls: the ProcessData
// processor, the two-phase user object enrolment and the import key directory handler.
package service

import (
	"fmt"

	"github.com/cryptobridge/gohsm/errors"
	"github.com/cryptobridge/gohsm/net"
)

// Service function names.
const (
	funcProcessData     = "ProcessData"
	funcGetTemplate     = "GetUserObjectTemplate"
	funcCreateObject    = "CreateUserObject"
	funcGetImportPubKey = "GetImportPublicKey"
)

// basicService is the abstraction of a single HSM service endpoint.
type basicService struct {
	// Service endpoint.
	netClient net.Client
}

func newBasicService() (*basicService, error) {
	return &basicService{}, nil
}

// basicService option.
type srvOption func(*basicService) error

func (s *basicService) initialize(opts ...srvOption) error {
	if s == nil {
		return errors.New(errors.HsmInvalidArgumentError)
	}

	// Apply options.
	for _, optSetter := range opts {
		if optSetter == nil {
			return errors.New(errors.HsmInvalidArgumentError).AppendMessage("Provided option is nil.")
		}
		if err := optSetter(s); err != nil {
			return errors.HsmErr(err).AppendMessage("Unable to apply factory option.")
		}
	}

	// Network client is mandatory.
	if s.netClient == nil {
		return errors.New(errors.HsmInvalidStateError).AppendMessage("Network client has not been created.")
	}

	return nil
}

// srvOptEndpoint is configuration method for the basicService endpoint.
func srvOptEndpoint(uri, apiKey string, clientOpts ...net.ClientOpt) srvOption {
	return func(s *basicService) error {
		if s == nil {
			return errors.New(errors.HsmInvalidArgumentError)
		}

		client, err := net.NewClient(uri, apiKey, clientOpts...)
		if err != nil {
			return err
		}
		s.netClient = client
		return nil
	}
}

// srvOptNetClient is setter for the custom network client.
func srvOptNetClient(client net.Client) srvOption {
	return func(s *basicService) error {
		if s == nil || client == nil {
			return errors.New(errors.HsmInvalidArgumentError)
		}
		s.netClient = client
		return nil
	}
}

// send sends the request and returns a response.
func (s *basicService) send(req *request) (*response, error) {
	if s == nil || s.netClient == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}

	// Apply a fresh nonce in case none has been set explicitly.
	if err := req.updateNonce(); err != nil {
		return nil, err
	}

	// Serialize the request.
	netReq, err := req.encode(s.netClient.APIKey())
	if err != nil {
		return nil, err
	}

	resp, err := newResponse(req.respType())
	if err != nil {
		return nil, err
	}

	// Client applications should always parse the status word from the response body if there
	// is one, and only fall back to the HTTP status code if the response has no body or the
	// body is not a service envelope.
	respRaw, respErr := s.netClient.Receive(req.context(), netReq)
	// Deserialize the response.
	if err := resp.decode(respRaw); err != nil {
		if respErr != nil {
			return nil, errors.HsmErr(respErr, errors.HsmNetworkError).AppendMessage("Network client returned error.")
		}
		return nil, err
	}

	if status := resp.status(); !status.IsOK() {
		return nil, errors.New(status.ErrorCode()).SetExtErrorCode(int(status)).
			AppendMessage(fmt.Sprintf("Service returned status %04x (%s).", uint16(status), status))
	}

	if err := resp.verify(req); err != nil {
		return nil, err
	}

	return resp, nil
}
