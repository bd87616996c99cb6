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

package net

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cryptobridge/gohsm/errors"
	"github.com/cryptobridge/gohsm/log"
)

// DefaultAPIVersion is the URL path API version segment.
const DefaultAPIVersion = "1.0"

type httpClient struct {
	url        string
	apiKey     string
	apiVersion string
	method     string
	timeout    time.Duration
	hsm        bool
	readLimit  uint32

	doneHooks   []Hook
	failHooks   []Hook
	alwaysHooks []Hook
}

func newHTTPClient(url string, isHsm bool) *httpClient {
	return &httpClient{
		url:        url,
		apiVersion: DefaultAPIVersion,
		method:     http.MethodPost,
		timeout:    defaultRequestTimeout,
		hsm:        isHsm,
		readLimit:  0,
	}
}

// setupClient returns a new HTTP Client.
//
// To use a proxy, configure the proxy on your operating system via the `http_proxy`
// environment variable.
func (c *httpClient) setupClient() (*http.Client, error) {
	if c == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}

	client := &http.Client{
		Timeout: c.timeout,
		Transport: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{},
		},
	}

	return client, nil
}

// requestURL forms the call URL: {base}/{apiVersion}/{handle}/{function}/{nonce}, with the data
// segment appended for GET requests.
func (c *httpClient) requestURL(req *Request) (string, error) {
	if len(req.Handle) == 0 || len(req.Function) == 0 {
		return "", errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing request handle or function.")
	}

	segments := []string{strings.TrimRight(c.url, "/"), c.apiVersion, req.Handle, req.Function, req.Nonce}
	if c.method == http.MethodGet {
		segment := req.Segment
		if segment == "" && req.Body != nil {
			raw, err := json.Marshal(req.Body)
			if err != nil {
				return "", errors.New(errors.HsmInvalidFormatError).SetExtError(err).
					AppendMessage("Unable to marshal request data segment.")
			}
			segment = string(raw)
		}
		segments = append(segments, url.PathEscape(segment))
	}
	return strings.Join(segments, "/"), nil
}

// Receive implements Client.Receive().
func (c *httpClient) Receive(ctx context.Context, request *Request) (b []byte, e error) {
	if c == nil || request == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}

	reqURL, err := c.requestURL(request)
	if err != nil {
		return nil, err
	}

	info := &CallInfo{
		Function: request.Function,
		URL:      reqURL,
	}
	start := time.Now()
	defer func() {
		info.Duration = time.Since(start)
		info.Err = e
		if e != nil {
			dispatchHooks(c.failHooks, info)
		} else {
			dispatchHooks(c.doneHooks, info)
		}
		dispatchHooks(c.alwaysHooks, info)
		log.Debug(fmt.Sprintf("HTTP %s (%s) took %s.", c.method, reqURL, info.Duration))
	}()

	var httpReq *http.Request
	if c.method == http.MethodPost {
		body, err := json.Marshal(request.Body)
		if err != nil {
			return nil, errors.New(errors.HsmInvalidFormatError).SetExtError(err).
				AppendMessage("Unable to marshal request body.")
		}
		log.Debug(fmt.Sprintf("HTTP send (%s): %s", reqURL, body))

		if httpReq, err = http.NewRequest(http.MethodPost, reqURL, bytes.NewBuffer(body)); err != nil {
			return nil, errors.New(errors.HsmNetworkError).SetExtError(err)
		}
		// The Content-Type header is left unset on purpose: a simple request avoids the CORS
		// preflight round trip in browser-adjacent deployments.
	} else {
		if httpReq, err = http.NewRequest(http.MethodGet, reqURL, nil); err != nil {
			return nil, errors.New(errors.HsmNetworkError).SetExtError(err)
		}
	}
	if c.hsm {
		httpReq.Header.Set("User-Agent", "HSM HTTP Client")
	}
	// HTTP server might keep the connection open with "keep-alive" option, otherwise server could run out of sockets.
	httpReq.Close = true

	if ctx == nil {
		ctx = context.Background()
	}
	// Create a deadline Context for the request.
	if c.timeout > 0 {
		// Check that no deadline is already set.
		if _, ok := ctx.Deadline(); !ok {
			var reqCancel context.CancelFunc
			ctx, reqCancel = context.WithTimeout(ctx, c.timeout)
			defer reqCancel()
		}
	}
	httpReq = httpReq.WithContext(ctx)

	client, err := c.setupClient()
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, errors.New(errors.HsmNetworkError).SetExtError(err)
	}
	info.StatusCode = resp.StatusCode
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Error("Closing HTTP response body returned error: ", err)
		}
	}()

	// Create a data buffer and, if specified, the limit of data to be read.
	buf := bytes.Buffer{}
	reader := io.Reader(resp.Body)
	// (Buffer).ReadFrom can panic if the amount of data gets too large.
	defer func() {
		if r := recover(); r != nil {
			hsmErr := errors.New(errors.HsmNetworkError).AppendMessage("Panic while reading HTTP response.")
			if err, ok := r.(error); ok {
				e = hsmErr.SetExtError(err)
			} else {
				e = hsmErr.AppendMessage(fmt.Sprintf("%s", r))
			}
		}
	}()
	if c.readLimit > 0 {
		reader = io.LimitReader(resp.Body, int64(c.readLimit))
	}
	if _, err = buf.ReadFrom(reader); err != nil {
		return nil, errors.New(errors.HsmNetworkError).SetExtError(err).
			AppendMessage("Failed to read response body")
	}
	log.Debug(fmt.Sprintf("HTTP received (%s): %s", reqURL, buf.Bytes()))

	var respErr error
	if resp.StatusCode >= 400 && resp.StatusCode < 600 {
		// The service maps its own failure statuses into the JSON envelope, an HTTP level
		// error is a transport condition. The body is still returned, client applications
		// should parse the envelope status if there is one and only fall back to the HTTP
		// status code otherwise.
		respErr = errors.New(errors.HsmHttpError).SetExtErrorCode(resp.StatusCode).
			AppendMessage(resp.Status)
	}
	return buf.Bytes(), respErr
}

func dispatchHooks(hooks []Hook, info *CallInfo) {
	for _, h := range hooks {
		if h != nil {
			h(info)
		}
	}
}

// URI implements Endpoint.URI().
func (c *httpClient) URI() string {
	if c == nil {
		return ""
	}
	return c.url
}

// APIKey implements Endpoint.APIKey().
func (c *httpClient) APIKey() string {
	if c == nil {
		return ""
	}
	return c.apiKey
}

// SetReadLimit implements ReadLimiter interface.
func (c *httpClient) SetReadLimit(limit uint32) error {
	if c == nil {
		return errors.New(errors.HsmInvalidArgumentError)
	}

	c.readLimit = limit

	return nil
}

// SetTimeout implements RequestTimeouter interface.
func (c *httpClient) SetTimeout(d time.Duration) error {
	if c == nil || d < 0 {
		return errors.New(errors.HsmInvalidArgumentError)
	}
	c.timeout = d
	return nil
}

// SetMethod implements MethodSelector interface.
func (c *httpClient) SetMethod(method string) error {
	if c == nil {
		return errors.New(errors.HsmInvalidArgumentError)
	}
	switch method {
	case http.MethodGet, http.MethodPost:
		c.method = method
	default:
		return errors.New(errors.HsmInvalidFormatError).
			AppendMessage(fmt.Sprintf("Unsupported request method: %s.", method))
	}
	return nil
}

// AddHook implements HookRegistry interface.
func (c *httpClient) AddHook(stage string, h Hook) error {
	if c == nil || h == nil {
		return errors.New(errors.HsmInvalidArgumentError)
	}
	switch stage {
	case "done":
		c.doneHooks = append(c.doneHooks, h)
	case "fail":
		c.failHooks = append(c.failHooks, h)
	case "always":
		c.alwaysHooks = append(c.alwaysHooks, h)
	default:
		return errors.New(errors.HsmInvalidFormatError).
			AppendMessage(fmt.Sprintf("Unknown hook stage: %s.", stage))
	}
	return nil
}
