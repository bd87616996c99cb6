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

// Package mock provides net.(Client) implementations for unit tests: a scripted responder and
// a loopback client mirroring the service side of the ProcessData envelope.
package mock

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cryptobridge/gohsm/bits"
	"github.com/cryptobridge/gohsm/crypt"
	"github.com/cryptobridge/gohsm/errors"
	"github.com/cryptobridge/gohsm/net"
	"github.com/cryptobridge/gohsm/pad"
	"github.com/cryptobridge/gohsm/pdu"
)

// ScriptedClient implements net.(Client) interface. It records every request and plays back
// the queued responses in order. A queued error is returned in place of its response.
type ScriptedClient struct {
	uri    string
	apiKey string

	Requests  []*net.Request
	responses [][]byte
	errs      []error
}

func NewScriptedClient(uri, apiKey string) *ScriptedClient {
	return &ScriptedClient{
		uri:    uri,
		apiKey: apiKey,
	}
}

func (c *ScriptedClient) URI() string    { return c.uri }
func (c *ScriptedClient) APIKey() string { return c.apiKey }

// QueueResponse appends a response body to the playback queue.
func (c *ScriptedClient) QueueResponse(body []byte) {
	c.responses = append(c.responses, body)
	c.errs = append(c.errs, nil)
}

// QueueError appends a failure to the playback queue.
func (c *ScriptedClient) QueueError(err error) {
	c.responses = append(c.responses, nil)
	c.errs = append(c.errs, err)
}

func (c *ScriptedClient) Receive(_ context.Context, req *net.Request) ([]byte, error) {
	c.Requests = append(c.Requests, req)
	if len(c.responses) == 0 {
		return nil, errors.New(errors.HsmNetworkError).AppendMessage("Scripted client queue is empty.")
	}

	body, err := c.responses[0], c.errs[0]
	c.responses = c.responses[1:]
	c.errs = c.errs[1:]
	return body, err
}

// ProcessFunc computes the protected response data of a loopback ProcessData call.
type ProcessFunc func(reqType string, userData []byte) ([]byte, error)

// LoopbackClient implements net.(Client) interface. It mirrors the service side of the
// ProcessData envelope: the request frame is authenticated and decrypted with the configured
// keys, the flag is swapped, the nonce mangled and the protected response data re-wrapped.
type LoopbackClient struct {
	uri    string
	apiKey string

	encKey []byte
	macKey []byte

	// Process computes the response data; the default echoes the request data.
	Process ProcessFunc
	// Status overrides the envelope status word when non-zero.
	Status pdu.Status
}

func NewLoopbackClient(apiKey string, encKey, macKey []byte) *LoopbackClient {
	return &LoopbackClient{
		uri:    "mock://loopback",
		apiKey: apiKey,
		encKey: encKey,
		macKey: macKey,
	}
}

func (c *LoopbackClient) URI() string    { return c.uri }
func (c *LoopbackClient) APIKey() string { return c.apiKey }

func (c *LoopbackClient) Receive(_ context.Context, req *net.Request) ([]byte, error) {
	if c.Status != 0 && c.Status != pdu.StatusOK {
		return envelope(c.Status, req.Function, nil), nil
	}

	body, ok := req.Body.(map[string]string)
	if !ok {
		return nil, errors.New(errors.HsmInvalidArgumentError).AppendMessage("Unexpected request body shape.")
	}
	wire := body["data"]

	parts := strings.Split(wire, "_")
	if len(parts) != 3 || parts[0] != "Packet0" {
		return nil, errors.New(errors.HsmInvalidFormatError).AppendMessage("Unexpected wire framing.")
	}
	reqType := parts[1]
	raw, err := hex.DecodeString(parts[2])
	if err != nil {
		return nil, err
	}

	plainLen := int(binary.BigEndian.Uint16(raw[:2]))
	ct := raw[2+plainLen : len(raw)-crypt.BlockLen]
	tag := raw[len(raw)-crypt.BlockLen:]

	computed, err := crypt.CBCMac(c.macKey, ct)
	if err != nil {
		return nil, err
	}
	if !bits.FromBytes(computed).Equal(bits.FromBytes(tag)) {
		return envelope(pdu.StatusGenericError, req.Function, nil), nil
	}

	dec, err := crypt.CBCDecrypt(c.encKey, crypt.ZeroIV(), ct, true)
	if err != nil {
		return nil, err
	}
	userData := dec[1+4+pdu.NonceLen:]

	respData := append([]byte(nil), userData...)
	if c.Process != nil {
		if respData, err = c.Process(reqType, userData); err != nil {
			return nil, err
		}
	}

	mangled, err := pdu.MangleNonce(bits.FromBytes(dec[5 : 5+pdu.NonceLen]))
	if err != nil {
		return nil, err
	}
	mangledRaw, err := mangled.Bytes()
	if err != nil {
		return nil, err
	}

	frame := []byte{0xf1}
	frame = append(frame, dec[1:5]...)
	frame = append(frame, mangledRaw...)
	frame = append(frame, respData...)

	respCT, err := crypt.CBCEncrypt(c.encKey, crypt.ZeroIV(), pad.PKCS7Pad(frame), false)
	if err != nil {
		return nil, err
	}
	respTag, err := crypt.CBCMac(c.macKey, respCT)
	if err != nil {
		return nil, err
	}

	respBody := []byte{0x00, 0x00}
	respBody = append(respBody, respCT...)
	respBody = append(respBody, respTag...)

	result := hex.EncodeToString(respBody) + "_" + reqType + "_OK"
	return envelope(pdu.StatusOK, req.Function, result), nil
}

// envelope forms a service response envelope around the given result.
func envelope(status pdu.Status, function string, result interface{}) []byte {
	env := map[string]interface{}{
		"status":       fmt.Sprintf("%04x", uint16(status)),
		"statusdetail": status.String(),
		"function":     function,
		"version":      "1.0",
		"result":       result,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		panic(err)
	}
	return raw
}

// Envelope exposes the envelope builder for scripted responses.
func Envelope(status pdu.Status, function string, result interface{}) []byte {
	return envelope(status, function, result)
}
