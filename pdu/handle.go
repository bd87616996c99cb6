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

// Package pdu provides the HSM protocol data unit representations: the user object handle and
// nonce codecs, the ProcessData request and response frames, the user authentication TLV
// structures and the provisioning template records.
package pdu

import (
	"fmt"
	"regexp"

	"github.com/cryptobridge/gohsm/errors"
)

// UOType is the 32-bit user object type. Besides the capability selector it encodes whether
// the communication and application keys were provided by the client.
type UOType uint32

const (
	// UOTypeClientCommKey is set in case the communication keys are client-provided.
	UOTypeClientCommKey UOType = 1 << 20
	// UOTypeClientAppKey is set in case the application key is client-provided.
	UOTypeClientAppKey UOType = 1 << 21
)

// HasClientCommKey reports whether the communication keys are client-provided.
func (t UOType) HasClientCommKey() bool { return t&UOTypeClientCommKey != 0 }

// HasClientAppKey reports whether the application key is client-provided.
func (t UOType) HasClientAppKey() bool { return t&UOTypeClientAppKey != 0 }

// Handle is the printable user object address: apiKey '00' uoId(8 hex) ['00' uoType(8 hex)].
type Handle struct {
	apiKey string
	uoID   uint32
	uoType UOType
}

var handleRegexp = regexp.MustCompile(`^([A-Za-z0-9_-]+?)00([0-9a-f]{8})(?:00([0-9a-f]{8}))?$`)

// NewHandle constructs a new handle value.
func NewHandle(apiKey string, uoID uint32, uoType UOType) (*Handle, error) {
	if len(apiKey) == 0 {
		return nil, errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing API key.")
	}
	return &Handle{
		apiKey: apiKey,
		uoID:   uoID,
		uoType: uoType,
	}, nil
}

// ParseHandle parses the printable handle token. A handle without the type part defaults the
// user object type to 0.
func ParseHandle(s string) (*Handle, error) {
	match := handleRegexp.FindStringSubmatch(s)
	if match == nil {
		return nil, errors.New(errors.HsmInvalidFormatError).AppendMessage("Not a user object handle.")
	}

	var uoID, uoType uint32
	if _, err := fmt.Sscanf(match[2], "%08x", &uoID); err != nil {
		return nil, errors.New(errors.HsmInvalidFormatError).SetExtError(err).
			AppendMessage("Invalid user object ID.")
	}
	if match[3] != "" {
		if _, err := fmt.Sscanf(match[3], "%08x", &uoType); err != nil {
			return nil, errors.New(errors.HsmInvalidFormatError).SetExtError(err).
				AppendMessage("Invalid user object type.")
		}
	}

	return &Handle{
		apiKey: match[1],
		uoID:   uoID,
		uoType: UOType(uoType),
	}, nil
}

// String implements fmt.(Stringer). The type part is always present.
func (h *Handle) String() string {
	if h == nil {
		return ""
	}
	return fmt.Sprintf("%s00%08x00%08x", h.apiKey, h.uoID, uint32(h.uoType))
}

// APIKey returns the API key part of the handle.
func (h *Handle) APIKey() string {
	if h == nil {
		return ""
	}
	return h.apiKey
}

// UOID returns the user object ID part of the handle.
func (h *Handle) UOID() uint32 {
	if h == nil {
		return 0
	}
	return h.uoID
}

// UOType returns the user object type part of the handle.
func (h *Handle) UOType() UOType {
	if h == nil {
		return 0
	}
	return h.uoType
}
