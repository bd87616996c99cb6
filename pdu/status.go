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
	"strconv"
	"strings"

	"github.com/cryptobridge/gohsm/errors"
)

// Status is the 16-bit service status word carried in every response envelope and at the tail
// of the user authentication TLV records.
type Status uint16

const (
	// StatusOK represents a successful call.
	StatusOK = Status(0x9000)

	/*
		Wrong data class (0x8000).
	*/

	// StatusWrongPadding is returned in case the service could not unpad the protected payload.
	StatusWrongPadding = Status(0x803d)
	// StatusWrongTlvFormat is returned in case the service could not parse the TLV payload.
	StatusWrongTlvFormat = Status(0x804c)
	// StatusInvalidApiKey is returned in case the API key part of the handle is unknown.
	StatusInvalidApiKey = Status(0x8068)

	/*
		User authentication security class (0xA000).
	*/

	// StatusAuthWrongPassword is returned in case of a password method mismatch.
	StatusAuthWrongPassword = Status(0xa065)
	// StatusAuthTooManyTries is returned in case the global failure counter is exhausted.
	StatusAuthTooManyTries = Status(0xa066)
	// StatusAuthHotpWrongCode is returned in case of an HOTP code mismatch.
	StatusAuthHotpWrongCode = Status(0xa0b0)
	// StatusAuthHotpTooManyTries is returned in case the HOTP method failure counter is exhausted.
	StatusAuthHotpTooManyTries = Status(0xa0b1)
	// StatusAuthUserMismatch is returned in case the user ID does not match the context.
	StatusAuthUserMismatch = Status(0xa0b6)

	// StatusGenericError represents the generic error class.
	StatusGenericError = Status(0x6f00)
)

/*
	Local status codes reported by the transport layer, not by the service.
*/

const (
	// LocalStatusConnectionError is set in case the service could not be reached.
	LocalStatusConnectionError = 0x1
	// LocalStatusResponseFailed is set in case a valid envelope carried a non-OK status.
	LocalStatusResponseFailed = 0x2
	// LocalStatusParseFailed is set in case the envelope or its protected payload is corrupt.
	LocalStatusParseFailed = 0x3
)

var statusStrings = map[Status]string{
	StatusOK:                   "(OK)SW_STAT_OK",
	StatusWrongPadding:         "(WrongData)SW_STAT_WRONG_PADDING",
	StatusWrongTlvFormat:       "(WrongData)SW_STAT_INVALID_TLV_FORMAT",
	StatusInvalidApiKey:        "(WrongData)SW_STAT_INVALID_API_KEY",
	StatusAuthWrongPassword:    "(UserAuth)SW_STAT_WRONG_PASSWORD",
	StatusAuthTooManyTries:     "(UserAuth)SW_STAT_TOO_MANY_TRIES",
	StatusAuthHotpWrongCode:    "(UserAuth)SW_STAT_HOTP_WRONG_CODE",
	StatusAuthHotpTooManyTries: "(UserAuth)SW_STAT_HOTP_TOO_MANY_TRIES",
	StatusAuthUserMismatch:     "(UserAuth)SW_STAT_USER_ID_MISMATCH",
	StatusGenericError:         "(Error)SW_STAT_GENERIC",
}

// ParseStatus parses the hexadecimal status string of the response envelope.
func ParseStatus(s string) (Status, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 16, 16)
	if err != nil {
		return 0, errors.New(errors.HsmInvalidFormatError).SetExtError(err).
			AppendMessage("Invalid status word.")
	}
	return Status(v), nil
}

// IsOK reports whether the status word represents a successful call.
func (s Status) IsOK() bool { return s == StatusOK }

// IsWrongData reports whether the status word belongs to the wrong data class.
func (s Status) IsWrongData() bool { return s&0xf000 == 0x8000 }

// IsAuthFailure reports whether the status word belongs to the user authentication security class.
func (s Status) IsAuthFailure() bool { return s&0xf000 == 0xa000 }

func (s Status) String() string {
	if v, ok := statusStrings[s]; ok {
		return v
	}
	return "SW_STAT_" + strconv.FormatUint(uint64(s), 16)
}

// ErrorCode maps the status word onto the local error taxonomy.
func (s Status) ErrorCode() errors.ErrorCode {
	switch {
	case s.IsOK():
		return errors.HsmNoError
	case s.IsAuthFailure():
		return errors.HsmServiceAuthenticationFailure
	case s.IsWrongData():
		return errors.HsmServiceInvalidRequest
	default:
		return errors.HsmServiceFailedResponse
	}
}
