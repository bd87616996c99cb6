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
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/cryptobridge/gohsm/hotp"
	"github.com/cryptobridge/gohsm/pdu"
	"github.com/cryptobridge/gohsm/test"
	"github.com/cryptobridge/gohsm/test/utils/mock"
	"github.com/cryptobridge/gohsm/tlv"
)

var (
	testUserID     = []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}
	testHotpSecret = []byte("0123456789abcdef")
)

func TestUnitProcessor(t *testing.T) {
	test.Suite{
		{Func: testProcessorEncryptRoundTrip},
		{Func: testProcessorUserObjectFromHandle},
		{Func: testProcessorHotpVerifyOk},
		{Func: testProcessorHotpVerifyWrongCode},
	}.Runner(t)
}

func testProcessorEncryptRoundTrip(t *testing.T, _ ...interface{}) {
	client := mock.NewLoopbackClient("TEST_API", testEncKey, testMacKey)

	proc, err := NewProcessor(OptNetClient(client))
	if err != nil {
		t.Fatal("Failed to create processor: ", err)
	}

	out, err := proc.EncryptAES(testUserObject(), []byte("process my data"))
	if err != nil {
		t.Fatal("Failed to process data: ", err)
	}
	if string(out) != "process my data" {
		t.Fatal("Loopback payload mismatch: ", string(out))
	}
}

func testProcessorUserObjectFromHandle(t *testing.T, _ ...interface{}) {
	uo, err := UserObjectFromHandle("TEST_API000000ee0100a0000004", testEncKey, testMacKey)
	if err != nil {
		t.Fatal("Failed to parse handle: ", err)
	}
	if uo.UOID != 0x0000ee01 || uo.APIKey != "TEST_API" {
		t.Fatal("User object record mismatch.")
	}

	if _, err := UserObjectFromHandle("TEST_API000000ee01", make([]byte, 16), testMacKey); err == nil {
		t.Fatal("Invalid key length must be rejected.")
	}
}

// hotpResponder mirrors the service side HOTP verification: it parses the verification frame,
// checks the code against the expected counter and answers with an updated context.
func hotpResponder(t *testing.T, counter uint64) mock.ProcessFunc {
	return func(reqType string, userData []byte) ([]byte, error) {
		t.Helper()

		r := tlv.NewReader(userData)
		userCtx, err := r.Expect(pdu.TagUserAuthCtx)
		if err != nil {
			return nil, err
		}
		body, err := r.Expect(pdu.TagHotpVerify)
		if err != nil {
			return nil, err
		}
		if err := r.Close(); err != nil {
			return nil, err
		}

		userID := body[:pdu.UserIDLen]
		code := string(body[pdu.UserIDLen:])

		expected, err := hotp.Generate(testHotpSecret, counter, 6)
		if err != nil {
			return nil, err
		}
		status := pdu.StatusOK
		if code != expected {
			status = pdu.StatusAuthHotpWrongCode
		}

		// The fresh context: the old blob with a bumped trailing byte stands in for the
		// re-encrypted counter state.
		newCtx := append(append([]byte(nil), userCtx...), byte(counter))

		var statusRaw [2]byte
		binary.BigEndian.PutUint16(statusRaw[:], uint16(status))
		respBody := append(append([]byte(nil), userID...), statusRaw[:]...)

		var b tlv.Builder
		if err := b.Add(pdu.TagUserAuthCtx, newCtx); err != nil {
			return nil, err
		}
		if err := b.Add(pdu.TagHotpVerify, respBody); err != nil {
			return nil, err
		}
		return b.Bytes(), nil
	}
}

func testProcessorHotpVerifyOk(t *testing.T, _ ...interface{}) {
	client := mock.NewLoopbackClient("TEST_API", testEncKey, testMacKey)
	client.Process = hotpResponder(t, 1)

	proc, err := NewProcessor(OptNetClient(client))
	if err != nil {
		t.Fatal("Failed to create processor: ", err)
	}

	code, err := hotp.Generate(testHotpSecret, 1, 6)
	if err != nil {
		t.Fatal("Failed to generate code: ", err)
	}

	userCtx := []byte("opaque context blob")
	result, err := proc.VerifyHotp(testUserObject(), testUserID, code, userCtx)
	if err != nil {
		t.Fatal("Failed to verify HOTP: ", err)
	}
	if !result.Status.IsOK() {
		t.Fatal("Verification must succeed: ", result.Status)
	}
	if !result.ShouldUpdateCtx || bytes.Equal(result.UserCtx, userCtx) {
		t.Fatal("The updated context must be returned.")
	}
}

func testProcessorHotpVerifyWrongCode(t *testing.T, _ ...interface{}) {
	client := mock.NewLoopbackClient("TEST_API", testEncKey, testMacKey)
	client.Process = hotpResponder(t, 1)

	proc, err := NewProcessor(OptNetClient(client))
	if err != nil {
		t.Fatal("Failed to create processor: ", err)
	}

	// A code for the wrong counter value must be rejected.
	code, err := hotp.Generate(testHotpSecret, 2, 6)
	if err != nil {
		t.Fatal("Failed to generate code: ", err)
	}

	result, err := proc.VerifyHotp(testUserObject(), testUserID, code, []byte("opaque context blob"))
	if err != nil {
		t.Fatal("A rejected code is still a parsed response: ", err)
	}
	if !result.Status.IsAuthFailure() {
		t.Fatal("Status must be in the auth failure class: ", result.Status)
	}
	// The failure counter moved, the fresh context must still be persisted.
	if !result.ShouldUpdateCtx || len(result.UserCtx) == 0 {
		t.Fatal("The updated context must be returned on failure.")
	}
}
