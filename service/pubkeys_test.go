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
	"encoding/json"
	"testing"
	"time"

	"github.com/cryptobridge/gohsm/errors"
	"github.com/cryptobridge/gohsm/pdu"
	"github.com/cryptobridge/gohsm/test/utils/mock"
)

func importKeyDirectory() []map[string]interface{} {
	return []map[string]interface{}{
		{"id": 1, "type": "rsa", "certificate": nil, "key": "81 0003 010001 82 0004 00bbccdd"},
		{"id": 2, "type": "rsa", "certificate": nil, "key": "81 0003 010001 82 0004 00eeff00"},
	}
}

func TestUnitImportKeyHandlerFetch(t *testing.T) {
	client := mock.NewScriptedClient("mock://enroll", "TEST_API")
	client.QueueResponse(mock.Envelope(pdu.StatusOK, "GetImportPublicKey", importKeyDirectory()))

	handler, err := NewImportKeyHandler([]Option{OptNetClient(client)})
	if err != nil {
		t.Fatal("Failed to create handler: ", err)
	}

	keys, err := handler.ImportKeys(context.Background())
	if err != nil {
		t.Fatal("Failed to fetch import keys: ", err)
	}
	if len(keys) != 2 || keys[0].ID != 1 || keys[1].ID != 2 {
		t.Fatal("Import key directory mismatch.")
	}

	// The second call is served from the cache, the scripted queue is empty.
	keys, err = handler.ImportKeys(context.Background())
	if err != nil {
		t.Fatal("Cached fetch failed: ", err)
	}
	if len(keys) != 2 {
		t.Fatal("Cached directory mismatch.")
	}
	if len(client.Requests) != 1 {
		t.Fatal("The cache must mask the second fetch: ", len(client.Requests))
	}
}

func TestUnitImportKeyHandlerInvalidate(t *testing.T) {
	client := mock.NewScriptedClient("mock://enroll", "TEST_API")
	client.QueueResponse(mock.Envelope(pdu.StatusOK, "GetImportPublicKey", importKeyDirectory()))
	client.QueueResponse(mock.Envelope(pdu.StatusOK, "GetImportPublicKey", importKeyDirectory()[:1]))

	handler, err := NewImportKeyHandler([]Option{OptNetClient(client)}, ImportKeyHandlerOptTTL(time.Hour))
	if err != nil {
		t.Fatal("Failed to create handler: ", err)
	}

	if _, err := handler.ImportKeys(context.Background()); err != nil {
		t.Fatal("Failed to fetch import keys: ", err)
	}
	handler.Invalidate()

	keys, err := handler.ImportKeys(context.Background())
	if err != nil {
		t.Fatal("Failed to re-fetch import keys: ", err)
	}
	if len(keys) != 1 {
		t.Fatal("Invalidate must force a fresh fetch.")
	}
}

func TestUnitImportKeyHandlerBadSignature(t *testing.T) {
	record := map[string]interface{}{
		"status":       "9000",
		"statusdetail": "(OK)SW_STAT_OK",
		"function":     "GetImportPublicKey",
		"version":      "1.0",
		"result":       importKeyDirectory(),
		"signature":    "not a hex string",
	}
	raw, err := json.Marshal(record)
	if err != nil {
		t.Fatal("Failed to marshal envelope: ", err)
	}

	client := mock.NewScriptedClient("mock://enroll", "TEST_API")
	client.QueueResponse(raw)

	handler, err := NewImportKeyHandler([]Option{OptNetClient(client)})
	if err != nil {
		t.Fatal("Failed to create handler: ", err)
	}

	if _, err := handler.ImportKeys(context.Background()); err == nil {
		t.Fatal("An unparsable directory signature must be rejected.")
	} else if errors.HsmErr(err).Code() != errors.HsmInvalidFormatError {
		t.Fatal("Unexpected error code: ", errors.HsmErr(err).Code())
	}
}

func TestUnitImportKeyHandlerEmptyDirectory(t *testing.T) {
	client := mock.NewScriptedClient("mock://enroll", "TEST_API")
	client.QueueResponse(mock.Envelope(pdu.StatusOK, "GetImportPublicKey", []map[string]interface{}{}))

	handler, err := NewImportKeyHandler([]Option{OptNetClient(client)})
	if err != nil {
		t.Fatal("Failed to create handler: ", err)
	}

	if _, err := handler.ImportKeys(context.Background()); err == nil {
		t.Fatal("An empty directory must be rejected.")
	}
}
