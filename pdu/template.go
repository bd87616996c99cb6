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
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/cryptobridge/gohsm/bits"
	"github.com/cryptobridge/gohsm/crypt"
	"github.com/cryptobridge/gohsm/errors"
	"github.com/cryptobridge/gohsm/pad"
	"github.com/cryptobridge/gohsm/tlv"
)

// Key slot type identifiers of the template key offset table.
const (
	KeySlotComEnc     = "comenc"
	KeySlotComMac     = "commac"
	KeySlotComNextEnc = "comnextenc"
	KeySlotComNextMac = "conextmac"
	KeySlotApp        = "app"
	KeySlotBilling    = "billing"
)

// TLV tags of the filled template submission.
const (
	// TagWrappedTransportKeys carries the RSA wrapped transport key block.
	TagWrappedTransportKeys = 0xa1
	// TagTemplateBlob carries the re-encrypted template.
	TagTemplateBlob = 0xa2
)

// Generation flag bits of the template flag byte.
const (
	// flagGenerateCommKeys requests server-side communication key generation; cleared when the
	// client supplies its own keys.
	flagGenerateCommKeys = 0x08
	// flagGenerateAppKey requests server-side application key generation.
	flagGenerateAppKey = 0x10
)

// KeyOffset locates a key slot inside the template blob. Offsets and lengths are in bits.
type KeyOffset struct {
	Type    string `json:"type"`
	Offset  int    `json:"offset"`
	Length  int    `json:"length"`
	TlvType int    `json:"tlvtype"`
}

// Template is the server-issued, partly filled user object image.
type Template struct {
	Template         string      `json:"template"`
	EncryptionOffset int         `json:"encryptionoffset"`
	FlagOffset       int         `json:"flagoffset"`
	KeyOffsets       []KeyOffset `json:"keyoffsets"`
	ImportKeys       []ImportKey `json:"importkeys"`
	ObjectID         string      `json:"objectid"`
	Authorization    string      `json:"authorization"`
}

// TemplateKeys carries the client-chosen keys to be filled into a template. Unset slots are
// left for the service to generate.
type TemplateKeys struct {
	ComEnc     []byte
	ComMac     []byte
	ComNextEnc []byte
	ComNextMac []byte
	App        []byte
	Billing    []byte
}

func (k *TemplateKeys) bySlot(slot string) []byte {
	if k == nil {
		return nil
	}
	switch slot {
	case KeySlotComEnc:
		return k.ComEnc
	case KeySlotComMac:
		return k.ComMac
	case KeySlotComNextEnc:
		return k.ComNextEnc
	case KeySlotComNextMac:
		return k.ComNextMac
	case KeySlotApp:
		return k.App
	case KeySlotBilling:
		return k.Billing
	}
	return nil
}

// FilledTemplate is the result of filling a template: the submission blob and the import key
// the transport keys are wrapped under.
type FilledTemplate struct {
	Blob        []byte
	ImportKeyID int
}

// ObjectIDValue parses the template object ID.
func (t *Template) ObjectIDValue() (uint32, error) {
	if t == nil {
		return 0, errors.New(errors.HsmInvalidArgumentError)
	}
	v, err := strconv.ParseUint(t.ObjectID, 16, 32)
	if err != nil {
		return 0, errors.New(errors.HsmInvalidFormatError).SetExtError(err).
			AppendMessage("Invalid template object ID.")
	}
	return uint32(v), nil
}

// Fill produces the encrypted template submission blob:
//
//  1. every supplied key is spliced into its slot,
//  2. the key generation flags are adjusted,
//  3. the part behind the encryption offset is encrypted under a fresh transport encryption
//     key and the whole image is MACed under a fresh transport MAC key,
//  4. both transport keys are wrapped under the chosen RSA import key.
func (t *Template) Fill(keys *TemplateKeys) (*FilledTemplate, error) {
	if t == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}
	if keys == nil || len(keys.ComEnc) == 0 || len(keys.ComMac) == 0 {
		return nil, errors.New(errors.HsmInvalidArgumentError).
			AppendMessage("Missing client communication keys.")
	}

	blob, err := hex.DecodeString(t.Template)
	if err != nil {
		return nil, errors.New(errors.HsmInvalidFormatError).SetExtError(err).
			AppendMessage("Template blob is not a hexadecimal string.")
	}

	// Splice the supplied keys into their slots. The offsets are bit-accurate.
	image := bits.FromBytes(blob)
	for _, slot := range t.KeyOffsets {
		key := keys.bySlot(slot.Type)
		if key == nil {
			continue
		}
		if 8*len(key) != slot.Length {
			return nil, errors.New(errors.HsmInvalidFormatError).AppendMessage(
				fmt.Sprintf("Key length mismatch for slot %s: %d bits, slot holds %d.",
					slot.Type, 8*len(key), slot.Length))
		}
		if err := image.Overwrite(slot.Offset, bits.FromBytes(key)); err != nil {
			return nil, errors.HsmErr(err).AppendMessage(
				fmt.Sprintf("Unable to splice key into slot %s.", slot.Type))
		}
	}
	if blob, err = image.Bytes(); err != nil {
		return nil, err
	}

	// The generation flag byte sits behind the flag offset.
	flagPos := t.FlagOffset + 8
	if flagPos%8 != 0 || flagPos/8 >= len(blob) {
		return nil, errors.New(errors.HsmInvalidFormatError).AppendMessage("Invalid template flag offset.")
	}
	blob[flagPos/8] &^= flagGenerateCommKeys
	if len(keys.App) != 0 {
		blob[flagPos/8] &^= flagGenerateAppKey
	}

	// Partition the image at the encryption offset.
	if t.EncryptionOffset%8 != 0 || t.EncryptionOffset/8 > len(blob) {
		return nil, errors.New(errors.HsmInvalidFormatError).AppendMessage("Invalid template encryption offset.")
	}
	plainPrefix := blob[:t.EncryptionOffset/8]
	suffix := blob[t.EncryptionOffset/8:]

	// Single-use transport keys.
	tek := make([]byte, crypt.KeyLen)
	tmk := make([]byte, crypt.KeyLen)
	if _, err := rand.Read(tek); err != nil {
		return nil, errors.New(errors.HsmCryptoFailure).SetExtError(err).
			AppendMessage("Unable to generate transport keys.")
	}
	if _, err := rand.Read(tmk); err != nil {
		return nil, errors.New(errors.HsmCryptoFailure).SetExtError(err).
			AppendMessage("Unable to generate transport keys.")
	}

	suffixCT, err := crypt.CBCEncrypt(tek, crypt.ZeroIV(), suffix, true)
	if err != nil {
		return nil, err
	}

	inner := pad.PKCS7Pad(append(append([]byte(nil), plainPrefix...), suffixCT...))
	innerTag, err := crypt.CBCMac(tmk, inner)
	if err != nil {
		return nil, err
	}
	inner = append(inner, innerTag...)

	// Wrap objectid || TEK || TMK under the import key.
	importKey, err := ChooseImportKey(t.ImportKeys)
	if err != nil {
		return nil, err
	}
	pubKey, err := importKey.PublicKey()
	if err != nil {
		return nil, err
	}
	objectID, err := t.ObjectIDValue()
	if err != nil {
		return nil, err
	}

	wrapInput := make([]byte, 0, 4+2*crypt.KeyLen)
	wrapInput = appendUint32(wrapInput, objectID)
	wrapInput = append(wrapInput, tek...)
	wrapInput = append(wrapInput, tmk...)
	wrapped, err := pubKey.WrapRaw(wrapInput)
	if err != nil {
		return nil, err
	}

	blobOut, err := encodeFilledTemplate(wrapped, inner)
	if err != nil {
		return nil, err
	}
	return &FilledTemplate{
		Blob:        blobOut,
		ImportKeyID: importKey.ID,
	}, nil
}

func encodeFilledTemplate(wrapped, inner []byte) ([]byte, error) {
	var b tlv.Builder
	if err := b.Add(TagWrappedTransportKeys, wrapped); err != nil {
		return nil, err
	}
	if err := b.Add(TagTemplateBlob, inner); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
