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

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/cryptobridge/gohsm/log"
	"github.com/cryptobridge/gohsm/pdu"
	"github.com/cryptobridge/gohsm/service"
)

// Enrolls a new AES user object with client-chosen communication keys:
//
//	enroll <enroll-uri> <process-uri> <api-key>
func main() {
	if len(os.Args) != 4 {
		fmt.Println("Usage:")
		fmt.Println("  ", os.Args[0], " <enroll-uri> <process-uri> <api-key>")
		os.Exit(1)
	}

	logger, err := log.New(log.INFO, os.Stderr)
	if err != nil {
		fmt.Println("Failed to initialize logger: ", err)
		os.Exit(1)
	}
	log.SetLogger(logger)

	keys := &pdu.TemplateKeys{
		ComEnc: make([]byte, 32),
		ComMac: make([]byte, 32),
	}
	if _, err := rand.Read(keys.ComEnc); err != nil {
		fmt.Println("Failed to generate keys: ", err)
		os.Exit(1)
	}
	if _, err := rand.Read(keys.ComMac); err != nil {
		fmt.Println("Failed to generate keys: ", err)
		os.Exit(1)
	}

	enroller, err := service.NewEnroller(
		service.OptEndpoint(os.Args[1], os.Args[3]),
		service.OptProcessEndpoint(os.Args[2]),
		service.OptRetryPolicy(&service.RetryPolicy{
			MaxAttempts:  3,
			BaseInterval: time.Second,
			Multiplier:   2,
		}),
	)
	if err != nil {
		fmt.Println("Failed to create enroller: ", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	uo, err := enroller.Enroll(ctx, pdu.UOTypeClientCommKey, keys)
	if err != nil {
		fmt.Println("Enrolment failed: ", err)
		os.Exit(1)
	}

	handle, err := uo.Handle()
	if err != nil {
		fmt.Println("Failed to format handle: ", err)
		os.Exit(1)
	}
	fmt.Println("Enrolled user object: ", handle)
	fmt.Println("Encryption key: ", hex.EncodeToString(uo.EncKey))
	fmt.Println("MAC key:        ", hex.EncodeToString(uo.MacKey))
}
