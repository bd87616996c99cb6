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

package errors

// ErrorCode represent the error code value.
type ErrorCode uint16

const (
	// HsmNoError represent a successful result.
	HsmNoError = ErrorCode(0)

	/*
		Syntax errors
	*/

	// HsmInvalidArgumentError is in case of invalid function input argument (eg. nil pointer).
	HsmInvalidArgumentError = ErrorCode(0x100)
	// HsmInvalidFormatError the provided value is invalid (eg. out of range, odd hex string).
	HsmInvalidFormatError = ErrorCode(0x101)
	// HsmBufferOverflow is set in case of buffer or value overflow (eg. plain data exceeding the 16-bit
	// length field of the ProcessData frame).
	HsmBufferOverflow = ErrorCode(0x104)
	// HsmInvalidPkiSignature is set in case of invalid PKI signature on the import key directory.
	HsmInvalidPkiSignature = ErrorCode(0x108)
	// HsmInvalidStateError is set in case the objects used are in an invalid state (eg. missing mandatory member value).
	HsmInvalidStateError = ErrorCode(0x10a)
	// HsmUnknownHashAlgorithm is set in case the hash algorithm ID is invalid or unknown to the API.
	HsmUnknownHashAlgorithm = ErrorCode(0x10b)

	/*
		System errors
	*/

	// HsmNetworkError is set in case a network error occurred.
	HsmNetworkError = ErrorCode(0x200)
	// HsmHttpError is set in case an HTTP error has been received.
	HsmHttpError = ErrorCode(0x201)
	// HsmIoError is set in case IO error occurred.
	HsmIoError = ErrorCode(0x202)
	// HsmCryptoFailure is set in case cryptographic operation could not be performed. Likely causes are unsupported
	// cryptographic algorithms, invalid keys and lack of resources.
	HsmCryptoFailure = ErrorCode(0x20d)
	// HsmMacMismatch is set in case the response authentication tag does not match the computed one.
	HsmMacMismatch = ErrorCode(0x20e)
	// HsmNonceMismatch is set in case the demangled response nonce does not match the request freshness nonce.
	HsmNonceMismatch = ErrorCode(0x210)
	// HsmResponseFlagMismatch is set in case the decrypted response does not start with the response flag byte.
	HsmResponseFlagMismatch = ErrorCode(0x211)
	// HsmPaddingInvalid is set in case a padding invariant is broken (PKCS#7 tail, PKCS#1 structure).
	HsmPaddingInvalid = ErrorCode(0x212)
	// HsmTlvCorrupt is set in case a TLV structure could not be parsed (unknown tag, truncated record,
	// trailing bytes).
	HsmTlvCorrupt = ErrorCode(0x213)
	// HsmExternalError is set in case external error from 3rd party API (eg std library) is returned and wrapped
	// automatically inside HsmError.
	HsmExternalError = ErrorCode(0x214)
	// HsmRequestCancelled is set in case a pending retry has been cancelled by the caller.
	HsmRequestCancelled = ErrorCode(0x215)

	/*
		Generic service errors.
	*/

	// HsmServiceFailedResponse is set in case the service returned a valid envelope with a non-OK status word.
	// The status word is available via (HsmError).ExtCode().
	HsmServiceFailedResponse = ErrorCode(0x400)
	// HsmServiceAuthenticationFailure is set in case a user authentication sub-protocol call was rejected
	// (wrong HOTP code, wrong password, too many tries, mismatched user).
	HsmServiceAuthenticationFailure = ErrorCode(0x401)
	// HsmServiceInvalidRequest is set in case the service could not parse the request (wrong data class).
	HsmServiceInvalidRequest = ErrorCode(0x402)
	// HsmServiceUnknownError is set in case an unknown error has been received from the service.
	HsmServiceUnknownError = ErrorCode(0x406)

	// HsmNotImplemented indicates an invalid API state.
	HsmNotImplemented = ErrorCode(0xffff)
)

var errStrings = map[ErrorCode]string{
	HsmNoError: "No Error",

	HsmInvalidArgumentError: "Invalid Argument",
	HsmInvalidFormatError:   "Invalid Format",
	HsmBufferOverflow:       "Buffer overflow",
	HsmInvalidPkiSignature:  "Invalid PKI signature",
	HsmInvalidStateError:    "Invalid State",
	HsmUnknownHashAlgorithm: "Unknown Hash Algorithm",

	HsmNetworkError:         "Network Error",
	HsmHttpError:            "HTTP error",
	HsmIoError:              "IO Error",
	HsmCryptoFailure:        "Cryptographic failure",
	HsmMacMismatch:          "MAC mismatch",
	HsmNonceMismatch:        "Response nonce mismatch",
	HsmResponseFlagMismatch: "Response flag mismatch",
	HsmPaddingInvalid:       "Invalid padding",
	HsmTlvCorrupt:           "Corrupt TLV structure",
	HsmExternalError:        "Common external error from 3rd party API",
	HsmRequestCancelled:     "Request cancelled",

	HsmServiceFailedResponse:        "The service returned a non-OK status",
	HsmServiceAuthenticationFailure: "The user authentication request was rejected",
	HsmServiceInvalidRequest:        "The request had invalid format",
	HsmServiceUnknownError:          "Unknown service error",

	HsmNotImplemented: "Not Implemented",
}

func (c ErrorCode) String() string {
	return errStrings[c]
}
