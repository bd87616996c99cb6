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

// Package net provides an interface for network I/O towards the HSM service endpoints.
package net

import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"time"

	"github.com/cryptobridge/gohsm/errors"
)

// Request is a single service call: the URL path segments and the JSON body.
type Request struct {
	// Handle is the user object handle path segment.
	Handle string
	// Function is the service function name (eg. ProcessData, GetUserObjectTemplate).
	Function string
	// Nonce is the request nonce path segment.
	Nonce string
	// Body is the request body, marshalled into JSON verbatim.
	Body interface{}
	// Segment optionally overrides the extra data path segment of GET requests. When empty
	// the segment is derived from Body.
	Segment string
}

// Client is abstract network client.
type Client interface {
	Endpoint

	// Receive places the request towards an endpoint and returns the raw response body.
	// In case the context does not have a deadline set, the Client's default timeout is used.
	Receive(context.Context, *Request) ([]byte, error)
}

// Endpoint is the abstract network endpoint.
type Endpoint interface {
	URI() string
	// APIKey is the service access identifier forming the handle prefix.
	APIKey() string
}

// CallInfo describes a finished transport call, for the request hooks.
type CallInfo struct {
	// Function is the called service function.
	Function string
	// URL is the complete request URL.
	URL string
	// Duration is the request wall-clock duration.
	Duration time.Duration
	// StatusCode is the HTTP status code, or 0 in case the call never completed.
	StatusCode int
	// Err is the transport failure, or nil.
	Err error
}

// Hook is a request lifecycle callback.
type Hook func(*CallInfo)

// ClientOpt is the configuration option for the network provider.
type ClientOpt func(Client) error

// ReadLimiter is interface for network clients whose read data amount can be limited.
type ReadLimiter interface {
	// SetReadLimit sets a read limit in bytes for a network client.
	//
	// In order to disable the limiter, set 'limit' to 0.
	// Note that disabling the read limit can effect network transaction performance.
	SetReadLimit(uint32) error
}

// RequestTimeouter is interface for network client whose request time can be limited.
type RequestTimeouter interface {
	// SetTimeout sets the request timeout.
	//
	// In order to disable the timeout, set the duration to 0.
	SetTimeout(time.Duration) error
}

// MethodSelector is interface for network clients supporting both URL layouts.
type MethodSelector interface {
	// SetMethod selects the HTTP request method, GET or POST.
	SetMethod(string) error
}

// HookRegistry is interface for network clients dispatching request lifecycle hooks.
type HookRegistry interface {
	// AddHook registers a callback for the given stage: "done", "fail" or "always".
	AddHook(stage string, h Hook) error
}

// In case of an HSM scheme return adjusted scheme string and the flag set to true,
// otherwise the input string is returned and flag is false.
func adjustScheme(scheme string) (string, bool) {
	switch scheme {
	case "hsm", "hsm+http":
		return "http", true
	case "hsm+https":
		return "https", true
	}
	return scheme, false
}

// NewClient returns a new network client instance.
//  * uri is the endpoint server URI, e.g. hsm+https://site2.example.com:11180.
//  * apiKey is the service access identifier.
func NewClient(uri, apiKey string, options ...ClientOpt) (Client, error) {
	if len(uri) == 0 {
		return nil, errors.New(errors.HsmInvalidFormatError).AppendMessage("Missing endpoint URI.")
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, errors.New(errors.HsmNetworkError).SetExtError(err).
			AppendMessage("Unable to parse URI")
	}

	schm, isHsm := adjustScheme(u.Scheme)
	u.Scheme = schm

	var tmp Client

	switch u.Scheme {
	case "http", "https":
		httpClient := newHTTPClient(u.String(), isHsm)
		httpClient.apiKey = apiKey
		tmp = httpClient
	default:
		return nil, errors.New(errors.HsmInvalidFormatError).AppendMessage("Unknown URI scheme")
	}

	// Apply options.
	for _, setter := range options {
		if err := setOption(tmp, setter); err != nil {
			return nil, err
		}
	}

	return tmp, nil
}

func setOption(t Client, opt ClientOpt) error {
	if t == nil {
		return errors.New(errors.HsmInvalidArgumentError)
	}
	if opt == nil {
		return errors.New(errors.HsmInvalidArgumentError).AppendMessage("Provided option is nil.")
	}

	if err := opt(t); err != nil {
		return errors.HsmErr(err).AppendMessage("Unable to apply network option.")
	}
	return nil
}

// ClientOptReadLimit is option that specifies the limit for the amount of data received.
//
// Note that network client must implement ReadLimiter interface.
func ClientOptReadLimit(limit uint32) ClientOpt {
	return func(t Client) error {
		if t == nil {
			return errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing network client base object.")
		}

		c, ok := t.(ReadLimiter)
		if !ok {
			return errors.New(errors.HsmNotImplemented).AppendMessage(
				fmt.Sprintf("Network client %s does not implement ReadLimiter interface.", reflect.TypeOf(t)))
		}
		if err := c.SetReadLimit(limit); err != nil {
			return errors.HsmErr(err).AppendMessage("Unable to set read limit.")
		}

		return nil
	}
}

// Specifies the default request timeout.
// If changed, update the doc under ClientOptRequestTimeout.
const defaultRequestTimeout = 10 * time.Second

// ClientOptRequestTimeout is option that specifies request timeout duration.
// A default request timeout duration is 10 seconds.
//
// Note that network client must implement RequestTimeouter interface.
func ClientOptRequestTimeout(timeout time.Duration) ClientOpt {
	return func(t Client) error {
		if t == nil {
			return errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing network client base object.")
		}

		c, ok := t.(RequestTimeouter)
		if !ok {
			return errors.New(errors.HsmNotImplemented).AppendMessage(
				fmt.Sprintf("Network client %s does not implement RequestTimeouter interface.", reflect.TypeOf(t)))
		}
		if err := c.SetTimeout(timeout); err != nil {
			return errors.HsmErr(err).AppendMessage("Unable to set timeout.")
		}
		return nil
	}
}

// ClientOptRequestMethod is option that selects the HTTP request method, GET or POST.
// The default is POST.
//
// Note that network client must implement MethodSelector interface.
func ClientOptRequestMethod(method string) ClientOpt {
	return func(t Client) error {
		if t == nil {
			return errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing network client base object.")
		}

		c, ok := t.(MethodSelector)
		if !ok {
			return errors.New(errors.HsmNotImplemented).AppendMessage(
				fmt.Sprintf("Network client %s does not implement MethodSelector interface.", reflect.TypeOf(t)))
		}
		if err := c.SetMethod(method); err != nil {
			return errors.HsmErr(err).AppendMessage("Unable to set request method.")
		}
		return nil
	}
}

// ClientOptHook is option that registers a request lifecycle callback. Supported stages are
// "done" (successful calls), "fail" (failed calls) and "always" (every call).
//
// Note that network client must implement HookRegistry interface.
func ClientOptHook(stage string, h Hook) ClientOpt {
	return func(t Client) error {
		if t == nil {
			return errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing network client base object.")
		}

		c, ok := t.(HookRegistry)
		if !ok {
			return errors.New(errors.HsmNotImplemented).AppendMessage(
				fmt.Sprintf("Network client %s does not implement HookRegistry interface.", reflect.TypeOf(t)))
		}
		if err := c.AddHook(stage, h); err != nil {
			return errors.HsmErr(err).AppendMessage("Unable to register hook.")
		}
		return nil
	}
}
