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
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"math/big"
	"testing"
	"time"

	"github.com/cryptobridge/gohsm/errors"
	"github.com/cryptobridge/gohsm/pdu"
	"github.com/cryptobridge/gohsm/test"
	"github.com/cryptobridge/gohsm/test/utils/mock"
	"github.com/cryptobridge/gohsm/tlv"
)

var testRSAKey *rsa.PrivateKey

func init() {
	var err error
	if testRSAKey, err = rsa.GenerateKey(rand.Reader, 1024); err != nil {
		panic(err)
	}
}

func testTemplateRecord(t *testing.T) map[string]interface{} {
	t.Helper()

	var b tlv.Builder
	if err := b.Add(pdu.TagRsaExponent, big.NewInt(int64(testRSAKey.PublicKey.E)).Bytes()); err != nil {
		t.Fatal("Failed to serialize exponent: ", err)
	}
	if err := b.Add(pdu.TagRsaModulus, testRSAKey.PublicKey.N.Bytes()); err != nil {
		t.Fatal("Failed to serialize modulus: ", err)
	}

	blob := make([]byte, 96)
	blob[71] = 0xff

	return map[string]interface{}{
		"template":         hex.EncodeToString(blob),
		"encryptionoffset": 256,
		"flagoffset":       560,
		"keyoffsets": []map[string]interface{}{
			{"type": "comenc", "offset": 0, "length": 256, "tlvtype": 1},
			{"type": "commac", "offset": 256, "length": 256, "tlvtype": 2},
		},
		"importkeys": []map[string]interface{}{
			{"id": 5, "type": "rsa1024", "key": hex.EncodeToString(b.Bytes())},
		},
		"objectid":      "0000face",
		"authorization": "auth-token",
	}
}

func testEnrollKeys() *pdu.TemplateKeys {
	return &pdu.TemplateKeys{
		ComEnc: make([]byte, 32),
		ComMac: make([]byte, 32),
	}
}

func TestUnitEnroller(t *testing.T) {
	test.Suite{
		{Func: testEnrollHappyPath},
		{Func: testEnrollRetriesTransportFailure},
		{Func: testEnrollPhaseTagging},
		{Func: testEnrollRejectionIsFinal},
		{Func: testEnrollCancel},
	}.Runner(t)
}

func testEnrollHappyPath(t *testing.T, _ ...interface{}) {
	client := mock.NewScriptedClient("mock://enroll", "TEST_API")
	client.QueueResponse(mock.Envelope(pdu.StatusOK, "GetUserObjectTemplate", testTemplateRecord(t)))
	client.QueueResponse(mock.Envelope(pdu.StatusOK, "CreateUserObject", map[string]interface{}{
		"handle": "TEST_API000000ee020000100004",
	}))

	enroller, err := NewEnroller(
		OptNetClient(client),
		OptProcessEndpoint("hsm+https://site2.example.com:11180"),
	)
	if err != nil {
		t.Fatal("Failed to create enroller: ", err)
	}

	uo, err := enroller.Enroll(context.Background(), pdu.UOTypeClientCommKey, testEnrollKeys())
	if err != nil {
		t.Fatal("Failed to enroll: ", err)
	}
	if uo.UOID != 0x0000ee02 {
		t.Fatalf("User object ID mismatch: %08x", uo.UOID)
	}
	if uo.Endpoint != "hsm+https://site2.example.com:11180" {
		t.Fatal("ProcessData endpoint mismatch: ", uo.Endpoint)
	}
	if len(uo.EncKey) != 32 || len(uo.MacKey) != 32 {
		t.Fatal("Transport keys were not composed into the record.")
	}

	if len(client.Requests) != 2 {
		t.Fatal("Unexpected request count: ", len(client.Requests))
	}
	if client.Requests[0].Function != "GetUserObjectTemplate" || client.Requests[1].Function != "CreateUserObject" {
		t.Fatal("Unexpected call sequence.")
	}
}

func testEnrollRetriesTransportFailure(t *testing.T, _ ...interface{}) {
	client := mock.NewScriptedClient("mock://enroll", "TEST_API")
	// The first template fetch dies on the transport level, the retry succeeds.
	client.QueueError(errors.New(errors.HsmNetworkError).AppendMessage("Connection reset."))
	client.QueueResponse(mock.Envelope(pdu.StatusOK, "GetUserObjectTemplate", testTemplateRecord(t)))
	client.QueueResponse(mock.Envelope(pdu.StatusOK, "CreateUserObject", map[string]interface{}{
		"handle": "TEST_API000000ee030000100004",
	}))

	enroller, err := NewEnroller(
		OptNetClient(client),
		OptRetryPolicy(&RetryPolicy{MaxAttempts: 3, BaseInterval: 5 * time.Millisecond}),
	)
	if err != nil {
		t.Fatal("Failed to create enroller: ", err)
	}

	uo, err := enroller.Enroll(context.Background(), pdu.UOTypeClientCommKey, testEnrollKeys())
	if err != nil {
		t.Fatal("Failed to enroll with a flaky endpoint: ", err)
	}
	if uo.UOID != 0x0000ee03 {
		t.Fatalf("User object ID mismatch: %08x", uo.UOID)
	}
	if len(client.Requests) != 3 {
		t.Fatal("The failed fetch must have been retried: ", len(client.Requests))
	}
}

func testEnrollPhaseTagging(t *testing.T, _ ...interface{}) {
	client := mock.NewScriptedClient("mock://enroll", "TEST_API")
	for i := 0; i < 2; i++ {
		client.QueueError(errors.New(errors.HsmNetworkError).AppendMessage("No route."))
	}

	enroller, err := NewEnroller(
		OptNetClient(client),
		OptRetryPolicy(&RetryPolicy{MaxAttempts: 2, BaseInterval: 5 * time.Millisecond}),
	)
	if err != nil {
		t.Fatal("Failed to create enroller: ", err)
	}

	_, err = enroller.Enroll(context.Background(), pdu.UOTypeClientCommKey, testEnrollKeys())
	if err == nil {
		t.Fatal("Exhausted retries must surface.")
	}
	if errors.HsmErr(err).Phase() != PhaseTemplate {
		t.Fatal("The failure must be tagged with phase 1: ", errors.HsmErr(err).Phase())
	}

	// Phase 2 failures carry their own tag.
	client = mock.NewScriptedClient("mock://enroll", "TEST_API")
	client.QueueResponse(mock.Envelope(pdu.StatusOK, "GetUserObjectTemplate", testTemplateRecord(t)))
	for i := 0; i < 2; i++ {
		client.QueueError(errors.New(errors.HsmNetworkError).AppendMessage("No route."))
	}

	enroller, err = NewEnroller(
		OptNetClient(client),
		OptRetryPolicy(&RetryPolicy{MaxAttempts: 2, BaseInterval: 5 * time.Millisecond}),
	)
	if err != nil {
		t.Fatal("Failed to create enroller: ", err)
	}

	_, err = enroller.Enroll(context.Background(), pdu.UOTypeClientCommKey, testEnrollKeys())
	if err == nil {
		t.Fatal("Exhausted retries must surface.")
	}
	if errors.HsmErr(err).Phase() != PhaseCreate {
		t.Fatal("The failure must be tagged with phase 2: ", errors.HsmErr(err).Phase())
	}
}

func testEnrollRejectionIsFinal(t *testing.T, _ ...interface{}) {
	client := mock.NewScriptedClient("mock://enroll", "TEST_API")
	client.QueueResponse(mock.Envelope(pdu.StatusInvalidApiKey, "GetUserObjectTemplate", nil))

	enroller, err := NewEnroller(
		OptNetClient(client),
		OptRetryPolicy(&RetryPolicy{MaxAttempts: 5, BaseInterval: 5 * time.Millisecond}),
	)
	if err != nil {
		t.Fatal("Failed to create enroller: ", err)
	}

	_, err = enroller.Enroll(context.Background(), pdu.UOTypeClientCommKey, testEnrollKeys())
	if err == nil {
		t.Fatal("A service rejection must surface.")
	}
	if errors.HsmErr(err).Code() != errors.HsmServiceInvalidRequest {
		t.Fatal("Unexpected error code: ", errors.HsmErr(err).Code())
	}
	if len(client.Requests) != 1 {
		t.Fatal("A service rejection must not be retried: ", len(client.Requests))
	}
}

func testEnrollCancel(t *testing.T, _ ...interface{}) {
	client := mock.NewScriptedClient("mock://enroll", "TEST_API")
	// Every attempt fails, the enrolment sits in its retry timer when cancelled.
	for i := 0; i < 10; i++ {
		client.QueueError(errors.New(errors.HsmNetworkError).AppendMessage("No route."))
	}

	enroller, err := NewEnroller(
		OptNetClient(client),
		OptRetryPolicy(&RetryPolicy{MaxAttempts: 10, BaseInterval: time.Minute}),
	)
	if err != nil {
		t.Fatal("Failed to create enroller: ", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		enroller.Cancel()
	}()

	start := time.Now()
	_, err = enroller.Enroll(context.Background(), pdu.UOTypeClientCommKey, testEnrollKeys())
	if err == nil {
		t.Fatal("A cancelled enrolment must surface.")
	}
	if errors.HsmErr(err).Code() != errors.HsmRequestCancelled {
		t.Fatal("Unexpected error code: ", errors.HsmErr(err).Code())
	}
	if time.Since(start) > 10*time.Second {
		t.Fatal("Cancel must abort the pending retry timer.")
	}
	// The cancelled timer must not have sent a spurious request.
	if len(client.Requests) != 1 {
		t.Fatal("Unexpected request count after cancel: ", len(client.Requests))
	}
}
