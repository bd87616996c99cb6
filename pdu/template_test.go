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
	"crypto/rsa"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/cryptobridge/gohsm/crypt"
	"github.com/cryptobridge/gohsm/pad"
	"github.com/cryptobridge/gohsm/tlv"
)

// testImportKey serializes the public part of the given RSA key into an import key record.
func testImportKey(t *testing.T, key *rsa.PrivateKey, id int, keyType string) ImportKey {
	t.Helper()

	var b tlv.Builder
	if err := b.Add(TagRsaExponent, big.NewInt(int64(key.PublicKey.E)).Bytes()); err != nil {
		t.Fatal("Failed to serialize exponent: ", err)
	}
	if err := b.Add(TagRsaModulus, key.PublicKey.N.Bytes()); err != nil {
		t.Fatal("Failed to serialize modulus: ", err)
	}
	return ImportKey{
		ID:   id,
		Type: keyType,
		Key:  hex.EncodeToString(b.Bytes()),
	}
}

func testTemplate(t *testing.T, key *rsa.PrivateKey) *Template {
	t.Helper()

	blob := make([]byte, 96)
	for i := range blob {
		blob[i] = byte(i)
	}
	// Initial flag byte requests generation of every key.
	blob[71] = 0xff

	return &Template{
		Template:         hex.EncodeToString(blob),
		EncryptionOffset: 256,
		FlagOffset:       560,
		KeyOffsets: []KeyOffset{
			{Type: KeySlotComEnc, Offset: 0, Length: 256},
			{Type: KeySlotComMac, Offset: 256, Length: 256},
		},
		ImportKeys:    []ImportKey{testImportKey(t, key, 7, ImportKeyRSA2048)},
		ObjectID:      "0000face",
		Authorization: "auth-token",
	}
}

func TestUnitTemplateFillRoundTrip(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal("Failed to generate RSA key: ", err)
	}

	comEnc := bytes.Repeat([]byte{0xe1}, 32)
	comMac := bytes.Repeat([]byte{0xa2}, 32)

	tpl := testTemplate(t, rsaKey)
	filled, err := tpl.Fill(&TemplateKeys{
		ComEnc: comEnc,
		ComMac: comMac,
	})
	if err != nil {
		t.Fatal("Failed to fill template: ", err)
	}
	if filled.ImportKeyID != 7 {
		t.Fatal("Import key ID mismatch: ", filled.ImportKeyID)
	}

	// Outer framing: [A1 wrapped transport keys] [A2 template blob].
	r := tlv.NewReader(filled.Blob)
	wrapped, err := r.Expect(TagWrappedTransportKeys)
	if err != nil {
		t.Fatal("Missing wrapped key record: ", err)
	}
	inner, err := r.Expect(TagTemplateBlob)
	if err != nil {
		t.Fatal("Missing template record: ", err)
	}
	if err := r.Close(); err != nil {
		t.Fatal("Trailing bytes after the submission: ", err)
	}
	if len(wrapped) != 256 {
		t.Fatal("Wrapped block length mismatch: ", len(wrapped))
	}

	// Unwrap objectid || TEK || TMK with the private key.
	m := new(big.Int).Exp(new(big.Int).SetBytes(wrapped), rsaKey.D, rsaKey.N)
	block := make([]byte, 256)
	raw := m.Bytes()
	copy(block[len(block)-len(raw):], raw)

	wrapInput, err := pad.PKCS1Unpad(block)
	if err != nil {
		t.Fatal("Failed to unpad wrapped block: ", err)
	}
	if len(wrapInput) != 4+2*crypt.KeyLen {
		t.Fatal("Wrapped input length mismatch: ", len(wrapInput))
	}
	if !bytes.Equal(wrapInput[:4], []byte{0x00, 0x00, 0xfa, 0xce}) {
		t.Fatalf("Wrapped object ID mismatch: %x", wrapInput[:4])
	}
	tek := wrapInput[4 : 4+crypt.KeyLen]
	tmk := wrapInput[4+crypt.KeyLen:]

	// Verify the template MAC and decrypt the suffix.
	if len(inner) < crypt.BlockLen*2 {
		t.Fatal("Template record too short: ", len(inner))
	}
	image := inner[:len(inner)-crypt.BlockLen]
	tag := inner[len(inner)-crypt.BlockLen:]

	computed, err := crypt.CBCMac(tmk, image)
	if err != nil {
		t.Fatal("Failed to compute template MAC: ", err)
	}
	if !bytes.Equal(computed, tag) {
		t.Fatal("Template MAC mismatch.")
	}

	unpadded, err := pad.PKCS7Unpad(image)
	if err != nil {
		t.Fatal("Failed to unpad template image: ", err)
	}
	prefix := unpadded[:32]
	suffix, err := crypt.CBCDecrypt(tek, crypt.ZeroIV(), unpadded[32:], true)
	if err != nil {
		t.Fatal("Failed to decrypt template suffix: ", err)
	}
	patched := append(append([]byte(nil), prefix...), suffix...)

	// The patched image carries the client keys and the cleared generation flag.
	if !bytes.Equal(patched[0:32], comEnc) {
		t.Fatal("Communication encryption key was not spliced.")
	}
	if !bytes.Equal(patched[32:64], comMac) {
		t.Fatal("Communication MAC key was not spliced.")
	}
	if patched[71] != 0xff&^0x08 {
		t.Fatalf("Generation flag byte mismatch: %02x", patched[71])
	}
}

func TestUnitTemplateFillAppKeyFlag(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatal("Failed to generate RSA key: ", err)
	}

	tpl := testTemplate(t, rsaKey)
	tpl.ImportKeys = []ImportKey{testImportKey(t, rsaKey, 3, ImportKeyRSA1024)}
	tpl.KeyOffsets = append(tpl.KeyOffsets, KeyOffset{Type: KeySlotApp, Offset: 512, Length: 128})

	filled, err := tpl.Fill(&TemplateKeys{
		ComEnc: make([]byte, 32),
		ComMac: make([]byte, 32),
		App:    make([]byte, 16),
	})
	if err != nil {
		t.Fatal("Failed to fill template: ", err)
	}
	if filled.ImportKeyID != 3 {
		t.Fatal("Import key ID mismatch: ", filled.ImportKeyID)
	}

	r := tlv.NewReader(filled.Blob)
	wrapped, err := r.Expect(TagWrappedTransportKeys)
	if err != nil {
		t.Fatal("Missing wrapped key record: ", err)
	}
	if len(wrapped) != 128 {
		t.Fatal("RSA-1024 wrapped block length mismatch: ", len(wrapped))
	}
}

func TestUnitTemplateFillRejects(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatal("Failed to generate RSA key: ", err)
	}
	tpl := testTemplate(t, rsaKey)

	// Missing communication keys.
	if _, err := tpl.Fill(nil); err == nil {
		t.Fatal("Missing keys must be rejected.")
	}
	if _, err := tpl.Fill(&TemplateKeys{ComEnc: make([]byte, 32)}); err == nil {
		t.Fatal("Missing MAC key must be rejected.")
	}

	// Key length not matching the slot.
	if _, err := tpl.Fill(&TemplateKeys{ComEnc: make([]byte, 16), ComMac: make([]byte, 32)}); err == nil {
		t.Fatal("Key length mismatch must be rejected.")
	}

	// No usable import key.
	broken := testTemplate(t, rsaKey)
	broken.ImportKeys = []ImportKey{{ID: 1, Type: "ecc256"}}
	if _, err := broken.Fill(&TemplateKeys{ComEnc: make([]byte, 32), ComMac: make([]byte, 32)}); err == nil {
		t.Fatal("Unusable import keys must be rejected.")
	}
}

func TestUnitImportKeyPublicKeyParse(t *testing.T) {
	// Spaces within the serialized key are tolerated, unknown records are skipped.
	var b tlv.Builder
	if err := b.Add(0x55, []byte{0xde, 0xad}); err != nil {
		t.Fatal("Failed to serialize record: ", err)
	}
	if err := b.Add(TagRsaExponent, []byte{0x01, 0x00, 0x01}); err != nil {
		t.Fatal("Failed to serialize exponent: ", err)
	}
	if err := b.Add(TagRsaModulus, bytes.Repeat([]byte{0xcd}, 128)); err != nil {
		t.Fatal("Failed to serialize modulus: ", err)
	}
	raw := hex.EncodeToString(b.Bytes())
	spaced := raw[:10] + " " + raw[10:20] + "  " + raw[20:]

	key := &ImportKey{ID: 1, Type: ImportKeyRSA1024, Key: spaced}
	pub, err := key.PublicKey()
	if err != nil {
		t.Fatal("Failed to parse public key: ", err)
	}
	if pub.E.Int64() != 0x10001 {
		t.Fatal("Exponent mismatch: ", pub.E)
	}
	if pub.BlockLen() != 128 {
		t.Fatal("Block length mismatch: ", pub.BlockLen())
	}
}

func TestUnitImportKeyIncomplete(t *testing.T) {
	var b tlv.Builder
	if err := b.Add(TagRsaExponent, []byte{0x01, 0x00, 0x01}); err != nil {
		t.Fatal("Failed to serialize exponent: ", err)
	}
	key := &ImportKey{ID: 1, Type: ImportKeyRSA1024, Key: hex.EncodeToString(b.Bytes())}
	if _, err := key.PublicKey(); err == nil {
		t.Fatal("Missing modulus must be rejected.")
	}
}

func TestUnitChooseImportKeyPrefers2048(t *testing.T) {
	keys := []ImportKey{
		{ID: 1, Type: ImportKeyRSA1024},
		{ID: 2, Type: ImportKeyRSA2048},
	}
	chosen, err := ChooseImportKey(keys)
	if err != nil {
		t.Fatal("Failed to choose import key: ", err)
	}
	if chosen.ID != 2 {
		t.Fatal("RSA-2048 must be preferred: ", chosen.ID)
	}

	chosen, err = ChooseImportKey(keys[:1])
	if err != nil || chosen.ID != 1 {
		t.Fatal("RSA-1024 fallback mismatch.")
	}

	if _, err := ChooseImportKey(nil); err == nil {
		t.Fatal("Empty key list must be rejected.")
	}
}
