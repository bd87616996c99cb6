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
	"encoding/hex"
	"fmt"
	"os"

	"github.com/cryptobridge/gohsm/log"
	"github.com/cryptobridge/gohsm/service"
)

// Invokes an AES user object with the data provided on the command line:
//
//	process <endpoint-uri> <handle> <enc-key-hex> <mac-key-hex> <data-hex>
func main() {
	if len(os.Args) != 6 {
		fmt.Println("Usage:")
		fmt.Println("  ", os.Args[0], " <endpoint-uri> <handle> <enc-key-hex> <mac-key-hex> <data-hex>")
		os.Exit(1)
	}

	logger, err := log.New(log.INFO, os.Stderr)
	if err != nil {
		fmt.Println("Failed to initialize logger: ", err)
		os.Exit(1)
	}
	log.SetLogger(logger)

	encKey, err := hex.DecodeString(os.Args[3])
	if err != nil {
		fmt.Println("Invalid encryption key: ", err)
		os.Exit(1)
	}
	macKey, err := hex.DecodeString(os.Args[4])
	if err != nil {
		fmt.Println("Invalid MAC key: ", err)
		os.Exit(1)
	}
	data, err := hex.DecodeString(os.Args[5])
	if err != nil {
		fmt.Println("Invalid data: ", err)
		os.Exit(1)
	}

	uo, err := service.UserObjectFromHandle(os.Args[2], encKey, macKey)
	if err != nil {
		fmt.Println("Failed to parse handle: ", err)
		os.Exit(1)
	}

	processor, err := service.NewProcessor(
		service.OptEndpoint(os.Args[1], uo.APIKey),
	)
	if err != nil {
		fmt.Println("Failed to create processor: ", err)
		os.Exit(1)
	}

	result, err := processor.EncryptAES(uo, data)
	if err != nil {
		fmt.Println("ProcessData call failed: ", err)
		os.Exit(1)
	}
	fmt.Println("Result: ", hex.EncodeToString(result))
}
