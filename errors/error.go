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

// Package errors implements functions to manipulate HSM client errors.
package errors

import (
	"fmt"
	"runtime"
	"strings"
)

// HsmError ...
type HsmError struct {
	errorCode    ErrorCode
	message      []string
	extError     error
	extErrorCode int
	phase        int
	errorStack   string
}

// New construct a new HsmError.
func New(code ErrorCode) *HsmError {
	return &HsmError{
		errorCode:  code,
		errorStack: stack(),
	}
}

// HsmErr wraps the provided error into HsmError, if the input is not HsmError. By default the error code is set to
// HsmExternalError. In case the 'err' parameter is of type HsmError, the original error is returned without any
// modification.
//
// Optionally an error code can be provided, which will be applied in case of external error. Note, despite the fact
// that 'code' parameter is a variadic value, only one error code should be provided.
func HsmErr(err error, code ...ErrorCode) *HsmError {
	if err == nil {
		return nil
	}

	errCode := HsmExternalError
	if len(code) != 0 {
		errCode = code[0]
	}

	hsmErr, ok := err.(*HsmError)
	if !ok {
		hsmErr = New(errCode).SetExtError(err)
	}
	return hsmErr
}

func stack() string {
	buf := make([]byte, 1024)
	n := 0
	for {
		n = runtime.Stack(buf, false)
		if n < len(buf) {
			break
		}
		buf = make([]byte, 2*len(buf))
	}

	return string(buf[:n])
}

// Error implements error interface.
func (e *HsmError) Error() string {
	if e == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%04x/%d] %s.\n", uint16(e.errorCode), e.extErrorCode, e.errorCode.String()))

	if e.phase != 0 {
		b.WriteString(fmt.Sprintf("Enrolment phase: %d\n", e.phase))
	}

	if len(e.message) > 0 {
		b.WriteString("Error message:")
		for i := len(e.message); i > 0; i-- {
			b.WriteString(fmt.Sprintf("\n  %d: %s", i, e.message[i-1]))
		}
		b.WriteString("\n")
	}

	if e.extError != nil {
		b.WriteString(fmt.Sprintf("Extended error: %s\n", e.extError))
	}

	if len(e.errorStack) != 0 {
		b.WriteString(e.errorStack)
	}

	b.WriteString("\n")
	return b.String()
}

// AppendMessage allows to add an additional descriptive message to the error.
// Returns an updated reference of the receiver HsmError.
func (e *HsmError) AppendMessage(msg string) *HsmError {
	if e == nil {
		return nil
	}
	e.message = append(e.message, msg)
	return e
}

// SetExtError allows to set an additional low-level error.
// Returns an updated reference of the receiver HsmError.
func (e *HsmError) SetExtError(err error) *HsmError {
	if e == nil {
		return nil
	}
	e.extError = err
	return e
}

// SetExtErrorCode allows to set an additional low-level error code, e.g. the service status word or an HTTP
// status code. Returns an updated reference of the receiver HsmError.
func (e *HsmError) SetExtErrorCode(c int) *HsmError {
	if e == nil {
		return nil
	}
	e.extErrorCode = c
	return e
}

// SetPhase tags the error with the enrolment phase it originates from (see service.(Enroller)).
// Returns an updated reference of the receiver HsmError.
func (e *HsmError) SetPhase(p int) *HsmError {
	if e == nil {
		return nil
	}
	e.phase = p
	return e
}

// Code returns the error code.
func (e *HsmError) Code() ErrorCode {
	if e == nil {
		return HsmNoError
	}
	return e.errorCode
}

// Stack returns the stack trace where the error occurred.
func (e *HsmError) Stack() string {
	if e == nil {
		return ""
	}
	return e.errorStack
}

// ExtCode returns extended error code.
func (e *HsmError) ExtCode() int {
	if e == nil {
		return 0
	}
	return e.extErrorCode
}

// ExtError returns extended error.
func (e *HsmError) ExtError() error {
	if e == nil {
		return nil
	}
	return e.extError
}

// Phase returns the enrolment phase the error is tagged with, or 0.
func (e *HsmError) Phase() int {
	if e == nil {
		return 0
	}
	return e.phase
}

// Message returns additional appended messages.
func (e *HsmError) Message() []string {
	if e == nil {
		return nil
	}
	return e.message
}
