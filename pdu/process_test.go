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

package pdu

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/cryptobridge/gohsm/bits"
	"github.com/cryptobridge/gohsm/crypt"
	"github.com/cryptobridge/gohsm/errors"
	"github.com/cryptobridge/gohsm/pad"
)

var (
	testEncKey = make([]byte, crypt.KeyLen)
	testMacKey = make([]byte, crypt.KeyLen)
)

// loopbackResponse mirrors the service side of a ProcessData call: it decrypts the request
// frame, swaps the request flag for the response flag, mangles the nonce and protects the
// given response data. The result is the complete JSON envelope.
func loopbackResponse(t *testing.T, wire string, encKey, macKey, respData []byte) []byte {
	t.Helper()

	parts := strings.Split(wire, "_")
	if len(parts) != 3 || parts[0] != "Packet0" {
		t.Fatal("Unexpected wire framing: ", wire)
	}
	reqType := parts[1]
	body, err := hex.DecodeString(parts[2])
	if err != nil {
		t.Fatal("Failed to decode wire body: ", err)
	}

	plainLen := int(binary.BigEndian.Uint16(body[:2]))
	ct := body[2+plainLen : len(body)-crypt.BlockLen]
	tag := body[len(body)-crypt.BlockLen:]

	computed, err := crypt.CBCMac(macKey, ct)
	if err != nil {
		t.Fatal("Failed to compute request MAC: ", err)
	}
	if !bytes.Equal(computed, tag) {
		t.Fatal("Request MAC mismatch.")
	}

	dec, err := crypt.CBCDecrypt(encKey, crypt.ZeroIV(), ct, true)
	if err != nil {
		t.Fatal("Failed to decrypt request frame: ", err)
	}
	if dec[0] != requestFlag {
		t.Fatal("Request flag mismatch.")
	}

	mangled, err := MangleNonce(bits.FromBytes(dec[5 : 5+NonceLen]))
	if err != nil {
		t.Fatal("Failed to mangle nonce: ", err)
	}
	mangledRaw, err := mangled.Bytes()
	if err != nil {
		t.Fatal("Failed to serialize mangled nonce: ", err)
	}

	frame := append([]byte{responseFlag}, dec[1:5]...)
	frame = append(frame, mangledRaw...)
	frame = append(frame, respData...)

	respCT, err := crypt.CBCEncrypt(encKey, crypt.ZeroIV(), pad.PKCS7Pad(frame), false)
	if err != nil {
		t.Fatal("Failed to encrypt response frame: ", err)
	}
	respTag, err := crypt.CBCMac(macKey, respCT)
	if err != nil {
		t.Fatal("Failed to compute response MAC: ", err)
	}

	respBody := []byte{0x00, 0x00}
	respBody = append(respBody, respCT...)
	respBody = append(respBody, respTag...)

	envelope := map[string]interface{}{
		"status":       "9000",
		"statusdetail": "(OK)SW_STAT_OK",
		"function":     "ProcessData",
		"version":      "1.0",
		"result":       hex.EncodeToString(respBody) + "_" + reqType + "_OK",
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		t.Fatal("Failed to marshal envelope: ", err)
	}
	return raw
}

func TestUnitProcessReqEncodeVector(t *testing.T) {
	req, err := NewProcessReq(ReqTypePlainAES, []byte{0x11, 0x22, 0x33, 0x44, 0x55},
		ProcessReqSetNonceHex("aaaabbbbccccdddd"),
	)
	if err != nil {
		t.Fatal("Failed to create request: ", err)
	}
	if err := req.SetUserObject(0xee01, testEncKey, testMacKey); err != nil {
		t.Fatal("Failed to apply user object: ", err)
	}

	wire, err := req.Encode()
	if err != nil {
		t.Fatal("Failed to encode request: ", err)
	}
	if !strings.HasPrefix(wire, "Packet0_PLAINAES_0000") {
		t.Fatal("Unexpected wire prefix: ", wire[:32])
	}

	// Rebuild the expected frame from the documented layout.
	frame := []byte{0x1f, 0x00, 0x00, 0xee, 0x01}
	nonce, _ := hex.DecodeString("aaaabbbbccccdddd")
	frame = append(frame, nonce...)
	frame = append(frame, 0x11, 0x22, 0x33, 0x44, 0x55)

	ct, err := crypt.CBCEncrypt(testEncKey, crypt.ZeroIV(), pad.PKCS7Pad(frame), false)
	if err != nil {
		t.Fatal("Failed to encrypt expected frame: ", err)
	}
	tag, err := crypt.CBCMac(testMacKey, ct)
	if err != nil {
		t.Fatal("Failed to MAC expected frame: ", err)
	}
	expected := "Packet0_PLAINAES_0000" + hex.EncodeToString(ct) + hex.EncodeToString(tag)
	if wire != expected {
		t.Fatalf("Wire mismatch:\n%s\n%s", wire, expected)
	}
}

func TestUnitProcessRoundTripLoopback(t *testing.T) {
	encKey := make([]byte, crypt.KeyLen)
	macKey := make([]byte, crypt.KeyLen)
	if _, err := rand.Read(encKey); err != nil {
		t.Fatal("Failed to generate key: ", err)
	}
	if _, err := rand.Read(macKey); err != nil {
		t.Fatal("Failed to generate key: ", err)
	}
	userData := []byte("user data to be processed")

	req, err := NewProcessReq(ReqTypePlainAES, userData)
	if err != nil {
		t.Fatal("Failed to create request: ", err)
	}
	if err := req.SetUserObject(0xdeadbeef, encKey, macKey); err != nil {
		t.Fatal("Failed to apply user object: ", err)
	}
	if err := req.UpdateNonce(); err != nil {
		t.Fatal("Failed to apply nonce: ", err)
	}

	wire, err := req.Encode()
	if err != nil {
		t.Fatal("Failed to encode request: ", err)
	}
	raw := loopbackResponse(t, wire, encKey, macKey, userData)

	resp := &ProcessResp{}
	if err := resp.Decode(raw); err != nil {
		t.Fatal("Failed to decode response: ", err)
	}
	if status, _ := resp.Status(); !status.IsOK() {
		t.Fatal("Status mismatch: ", status)
	}
	if err := resp.Verify(encKey, macKey); err != nil {
		t.Fatal("Failed to verify response: ", err)
	}
	if err := resp.MatchRequest(req); err != nil {
		t.Fatal("Response correlation mismatch: ", err)
	}

	protected, err := resp.ProtectedData()
	if err != nil {
		t.Fatal("Failed to read protected data: ", err)
	}
	if !bytes.Equal(protected, userData) {
		t.Fatalf("Protected data mismatch: %x", protected)
	}

	respNonce, err := resp.Nonce()
	if err != nil {
		t.Fatal("Failed to read response nonce: ", err)
	}
	reqNonce, err := req.Nonce()
	if err != nil {
		t.Fatal("Failed to read request nonce: ", err)
	}
	if !bytes.Equal(respNonce, reqNonce) {
		t.Fatal("Demangled nonce must equal the request nonce.")
	}
}

func TestUnitProcessRespEmptyProtectedData(t *testing.T) {
	req, err := NewProcessReq(ReqTypePlainAES, []byte{0x11, 0x22, 0x33, 0x44, 0x55},
		ProcessReqSetNonceHex("aaaabbbbccccdddd"),
	)
	if err != nil {
		t.Fatal("Failed to create request: ", err)
	}
	if err := req.SetUserObject(0xee01, testEncKey, testMacKey); err != nil {
		t.Fatal("Failed to apply user object: ", err)
	}
	wire, err := req.Encode()
	if err != nil {
		t.Fatal("Failed to encode request: ", err)
	}

	resp := &ProcessResp{}
	if err := resp.Decode(loopbackResponse(t, wire, testEncKey, testMacKey, nil)); err != nil {
		t.Fatal("Failed to decode response: ", err)
	}
	if err := resp.Verify(testEncKey, testMacKey); err != nil {
		t.Fatal("Failed to verify response: ", err)
	}

	protected, err := resp.ProtectedData()
	if err != nil {
		t.Fatal("Failed to read protected data: ", err)
	}
	if len(protected) != 0 {
		t.Fatal("Protected data must be empty: ", protected)
	}
}

func TestUnitProcessRespMacMismatch(t *testing.T) {
	req, err := NewProcessReq(ReqTypePlainAES, []byte("payload"))
	if err != nil {
		t.Fatal("Failed to create request: ", err)
	}
	if err := req.SetUserObject(0xee01, testEncKey, testMacKey); err != nil {
		t.Fatal("Failed to apply user object: ", err)
	}
	if err := req.UpdateNonce(); err != nil {
		t.Fatal("Failed to apply nonce: ", err)
	}
	wire, err := req.Encode()
	if err != nil {
		t.Fatal("Failed to encode request: ", err)
	}

	raw := loopbackResponse(t, wire, testEncKey, testMacKey, nil)

	var envelope map[string]interface{}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatal("Failed to unmarshal envelope: ", err)
	}
	result := envelope["result"].(string)

	// Flip the last nibble of the TAG.
	head := result[:strings.IndexByte(result, '_')]
	flipped := head[:len(head)-1]
	if head[len(head)-1] == '0' {
		flipped += "1"
	} else {
		flipped += "0"
	}
	envelope["result"] = flipped + result[strings.IndexByte(result, '_'):]
	corrupt, err := json.Marshal(envelope)
	if err != nil {
		t.Fatal("Failed to marshal corrupt envelope: ", err)
	}

	resp := &ProcessResp{}
	if err := resp.Decode(corrupt); err != nil {
		t.Fatal("Failed to decode response: ", err)
	}
	err = resp.Verify(testEncKey, testMacKey)
	if err == nil {
		t.Fatal("Corrupted TAG must be rejected.")
	}
	if errors.HsmErr(err).Code() != errors.HsmMacMismatch {
		t.Fatal("Unexpected error code: ", errors.HsmErr(err).Code())
	}
}

func TestUnitProcessRespCiphertextBitFlip(t *testing.T) {
	req, err := NewProcessReq(ReqTypePlainAES, []byte("payload"))
	if err != nil {
		t.Fatal("Failed to create request: ", err)
	}
	if err := req.SetUserObject(0xee01, testEncKey, testMacKey); err != nil {
		t.Fatal("Failed to apply user object: ", err)
	}
	if err := req.UpdateNonce(); err != nil {
		t.Fatal("Failed to apply nonce: ", err)
	}
	wire, err := req.Encode()
	if err != nil {
		t.Fatal("Failed to encode request: ", err)
	}

	var envelope map[string]interface{}
	if err := json.Unmarshal(loopbackResponse(t, wire, testEncKey, testMacKey, nil), &envelope); err != nil {
		t.Fatal("Failed to unmarshal envelope: ", err)
	}
	result := envelope["result"].(string)
	head, err := hex.DecodeString(result[:strings.IndexByte(result, '_')])
	if err != nil {
		t.Fatal("Failed to decode body: ", err)
	}

	// Flip a single bit in the first ciphertext block.
	head[2] ^= 0x01
	envelope["result"] = hex.EncodeToString(head) + result[strings.IndexByte(result, '_'):]
	corrupt, err := json.Marshal(envelope)
	if err != nil {
		t.Fatal("Failed to marshal corrupt envelope: ", err)
	}

	resp := &ProcessResp{}
	if err := resp.Decode(corrupt); err != nil {
		t.Fatal("Failed to decode response: ", err)
	}
	err = resp.Verify(testEncKey, testMacKey)
	if err == nil {
		t.Fatal("Corrupted ciphertext must be rejected.")
	}
	if errors.HsmErr(err).Code() != errors.HsmMacMismatch {
		t.Fatal("Unexpected error code: ", errors.HsmErr(err).Code())
	}
}

func TestUnitProcessRespFailedStatus(t *testing.T) {
	raw := []byte(`{"status":"8068","statusdetail":"(WrongData)SW_STAT_INVALID_API_KEY","function":"ProcessData","version":"1.0","result":null}`)

	resp := &ProcessResp{}
	if err := resp.Decode(raw); err != nil {
		t.Fatal("A failed envelope is still a valid envelope: ", err)
	}
	status, err := resp.Status()
	if err != nil {
		t.Fatal("Failed to read status: ", err)
	}
	if status != StatusInvalidApiKey {
		t.Fatalf("Status mismatch: %04x", uint16(status))
	}
	if err := resp.Verify(testEncKey, testMacKey); err == nil {
		t.Fatal("Verification of a failed response must be refused.")
	}
}

func TestUnitProcessReqPlainDataOverflow(t *testing.T) {
	req, err := NewProcessReq(ReqTypePlainAES, nil,
		ProcessReqSetPlainData(make([]byte, 0x10000)),
	)
	if err != nil {
		t.Fatal("Failed to create request: ", err)
	}
	if err := req.SetUserObject(0xee01, testEncKey, testMacKey); err != nil {
		t.Fatal("Failed to apply user object: ", err)
	}
	if err := req.UpdateNonce(); err != nil {
		t.Fatal("Failed to apply nonce: ", err)
	}

	if _, err := req.Encode(); err == nil {
		t.Fatal("Oversized plain data must be rejected.")
	} else if errors.HsmErr(err).Code() != errors.HsmBufferOverflow {
		t.Fatal("Unexpected error code: ", errors.HsmErr(err).Code())
	}
}

func TestUnitProcessReqKeyLengthMismatch(t *testing.T) {
	req, err := NewProcessReq(ReqTypePlainAES, nil)
	if err != nil {
		t.Fatal("Failed to create request: ", err)
	}
	if err := req.SetUserObject(0x01, make([]byte, 16), testMacKey); err == nil {
		t.Fatal("Short encryption key must be rejected.")
	}
	if err := req.SetUserObject(0x01, testEncKey, make([]byte, 31)); err == nil {
		t.Fatal("Short MAC key must be rejected.")
	}
}

func TestUnitProcessRespNonceCorrelation(t *testing.T) {
	req, err := NewProcessReq(ReqTypePlainAES, nil)
	if err != nil {
		t.Fatal("Failed to create request: ", err)
	}
	if err := req.SetUserObject(0xee01, testEncKey, testMacKey); err != nil {
		t.Fatal("Failed to apply user object: ", err)
	}
	if err := req.UpdateNonce(); err != nil {
		t.Fatal("Failed to apply nonce: ", err)
	}
	wire, err := req.Encode()
	if err != nil {
		t.Fatal("Failed to encode request: ", err)
	}

	resp := &ProcessResp{}
	if err := resp.Decode(loopbackResponse(t, wire, testEncKey, testMacKey, nil)); err != nil {
		t.Fatal("Failed to decode response: ", err)
	}
	if err := resp.Verify(testEncKey, testMacKey); err != nil {
		t.Fatal("Failed to verify response: ", err)
	}

	// A different request must not correlate.
	other, err := NewProcessReq(ReqTypePlainAES, nil)
	if err != nil {
		t.Fatal("Failed to create request: ", err)
	}
	if err := other.SetUserObject(0xee01, testEncKey, testMacKey); err != nil {
		t.Fatal("Failed to apply user object: ", err)
	}
	if err := other.UpdateNonce(); err != nil {
		t.Fatal("Failed to apply nonce: ", err)
	}

	if err := resp.MatchRequest(req); err != nil {
		t.Fatal("The originating request must correlate: ", err)
	}
	if err := resp.MatchRequest(other); err == nil {
		t.Fatal("A foreign request must not correlate.")
	}
}
