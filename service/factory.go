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
	"github.com/cryptobridge/gohsm/net"
)

type (
	service interface {
		send(*request) (*response, error)
	}

	factory struct {
		// Reference to the service under initialization.
		// factory.initialize() is performed on this reference.
		active *basicService

		srv *basicService
		ha  *failoverService

		retry *RetryPolicy
		// ProcessData endpoint recorded into enrolled user objects.
		processURI string
	}
)

// Factory method for service construction. Returns new service instance that implements service interface.
func newService(opts ...Option) (service, *factory, error) {
	if len(opts) == 0 {
		return nil, nil, errors.New(errors.HsmInvalidArgumentError)
	}

	f := &factory{}
	if err := f.initialize(opts...); err != nil {
		return nil, nil, err
	}

	// Only one service can be constructed.
	if (f.srv != nil && f.ha != nil) ||
		(f.srv == nil && f.ha == nil) {
		return nil, nil, errors.New(errors.HsmInvalidStateError).AppendMessage("Initialization of multiple services.")
	}
	if f.srv != nil {
		return f.srv, f, nil
	}
	return f.ha, f, nil
}

func (f *factory) initialize(opts ...Option) error {
	if f == nil {
		return errors.New(errors.HsmInvalidArgumentError)
	}

	// Apply options.
	for _, optSetter := range opts {
		if optSetter == nil {
			return errors.New(errors.HsmInvalidArgumentError).AppendMessage("Provided option is nil.")
		}
		if err := optSetter(f); err != nil {
			return errors.HsmErr(err).AppendMessage("Unable to initialize new service.")
		}
	}
	return nil
}

func (f *factory) initActiveService() error {
	if f == nil {
		return errors.New(errors.HsmInvalidArgumentError)
	}

	if f.active == nil {
		srv, err := newBasicService()
		if err != nil {
			return err
		}
		f.srv = srv
		f.active = f.srv
	}
	return nil
}

// Option service is functional option setter.
type Option func(*factory) error

// OptFailover is a wrapper option for a failover sub-service endpoint. Can be used several
// times for defining more than one sub-service; the composite walks the endpoints in
// registration order until one of them answers.
func OptFailover(opts ...Option) Option {
	return func(f *factory) error {
		if f == nil {
			return errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing service factory base object.")
		}

		var (
			ha     *failoverService
			err    error
			subSrv *basicService
		)

		// Initialize new basicService, that will be registered by the failover service.
		subSrv, err = newBasicService()
		if err != nil {
			return err
		}

		f.active = subSrv
		if err = f.initialize(opts...); err != nil {
			return err
		}

		// Initialize failover service if it is the first option call.
		if f.ha == nil {
			if ha, err = newFailoverService(); err != nil {
				return err
			}
			f.ha = ha
		}
		// Register the sub-service.
		if err := f.ha.addSubService(subSrv); err != nil {
			return err
		}
		f.active = nil
		return nil
	}
}

// OptEndpoint is configuration method for the service endpoint.
//  * uri is the endpoint server URI, e.g. hsm+https://site2.example.com:11180.
//  * apiKey is the service access identifier forming the handle prefix.
//  * clientOpts are applied to the underlying network client (timeout, request method, hooks).
func OptEndpoint(uri, apiKey string, clientOpts ...net.ClientOpt) Option {
	return func(f *factory) error {
		if f == nil {
			return errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing service factory base object.")
		}

		if err := f.initActiveService(); err != nil {
			return err
		}

		client, err := net.NewClient(uri, apiKey, clientOpts...)
		if err != nil {
			return err
		}
		if err := f.active.initialize(srvOptNetClient(client)); err != nil {
			return err
		}

		return nil
	}
}

// OptNetClient is setter for the custom network client which implements the net.Client interface.
// For alternative, see OptEndpoint.
func OptNetClient(client net.Client) Option {
	return func(f *factory) error {
		if client == nil {
			return errors.New(errors.HsmInvalidArgumentError)
		}
		if f == nil {
			return errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing service factory base object.")
		}

		if err := f.initActiveService(); err != nil {
			return err
		}

		return f.active.initialize(srvOptNetClient(client))
	}
}

// OptProcessEndpoint is setter for the ProcessData endpoint URI recorded into the user
// objects an Enroller composes. It has no effect on a Processor.
func OptProcessEndpoint(uri string) Option {
	return func(f *factory) error {
		if f == nil {
			return errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing service factory base object.")
		}
		if len(uri) == 0 {
			return errors.New(errors.HsmInvalidFormatError).AppendMessage("Missing endpoint URI.")
		}
		f.processURI = uri
		return nil
	}
}

// OptRetryPolicy is setter for the per-phase retry policy of the enrolment sequence.
// It has no effect on a Processor.
func OptRetryPolicy(p *RetryPolicy) Option {
	return func(f *factory) error {
		if f == nil {
			return errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing service factory base object.")
		}
		if p == nil {
			return errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing retry policy.")
		}
		f.retry = p
		return nil
	}
}
