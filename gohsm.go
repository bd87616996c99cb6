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

/*
Package gohsm implements functionality for interacting with the Cryptobridge remote HSM
service: invoking user objects via ProcessData calls (AES encryption and decryption, RSA
decryption, HOTP and password verification) and provisioning new user objects through the
template enrolment sequence.

Logging

The subpackage log defines logging interface type log.Logger and a basic logger implementation
for writing lines to a file, plus an adapter for logrus based applications.

By default logging is disabled. In order to enable logging of the API internals, an
implementation to a logger has to be registered in the log package, e.g. setting default
logger:

	logger, err = log.New(log.DEBUG, nil)
	if err != nil {
		return
	}
	log.SetLogger(logger)

In order to disable logging, set logger to nil.

Errors

Almost every method of the API returns an error parameter alongside with a value (if
applicable). All returned errors are of type errors.HsmError. For troubleshooting, the
HsmError provides following information:

	error code     - for error verification and recovery logic;
	error message  - a stack of human readable descriptive messages;
	stack trace    - the stack trace of the error registration;
	extended error - an error code (eg. the service status word), or error from e.g. std library;
	phase          - the enrolment phase a provisioning failure originates from.

Processing data

A user object is addressed via its handle and invoked with the transport keys negotiated at
its creation:

	uo, err := service.UserObjectFromHandle(handle, encKey, macKey)
	if err != nil {
		return err
	}
	processor, err := service.NewProcessor(
		service.OptEndpoint("hsm+https://site2.example.com:11180", apiKey),
	)
	if err != nil {
		return err
	}
	plaintext, err := processor.DecryptAES(uo, ciphertext)

Enrolling user objects

A new user object is provisioned by fetching a template, filling in the client-chosen keys and
uploading the re-encrypted image:

	enroller, err := service.NewEnroller(
		service.OptEndpoint("hsm+https://enroll.example.com:11182", apiKey),
		service.OptProcessEndpoint("hsm+https://site2.example.com:11180"),
	)
	if err != nil {
		return err
	}
	uo, err := enroller.Enroll(ctx, uoType, &pdu.TemplateKeys{ComEnc: encKey, ComMac: macKey})
*/
package gohsm

// Version is the API version.
const Version = "1.0.0"

// APIVersion is the service URL path version segment the SDK speaks.
const APIVersion = "1.0"
