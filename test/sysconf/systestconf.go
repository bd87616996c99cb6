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

// Package sysconf implements the system test configuration. The configuration is a YAML file
// describing a live service deployment the system tests run against.
package sysconf

import (
	"io/ioutil"

	"gopkg.in/yaml.v3"

	"github.com/cryptobridge/gohsm/errors"
)

// Configuration is the system test configuration.
type Configuration struct {
	// Process is the ProcessData endpoint.
	Process Endpoint `yaml:"process"`
	// Enroll is the enrolment endpoint.
	Enroll Endpoint `yaml:"enroll"`
	// APIKey is the service access identifier.
	APIKey string `yaml:"apiKey"`
	// Handle optionally names an existing user object with known keys.
	Handle string `yaml:"handle"`
	// EncKey is the hexadecimal transport encryption key of the named user object.
	EncKey string `yaml:"encKey"`
	// MacKey is the hexadecimal transport MAC key of the named user object.
	MacKey string `yaml:"macKey"`
}

// Endpoint is a single service endpoint description.
type Endpoint struct {
	URI string `yaml:"uri"`
}

// New loads the configuration from the given YAML file.
func New(path string) (*Configuration, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.HsmIoError).SetExtError(err).
			AppendMessage("Unable to read configuration file.")
	}

	tmp := &Configuration{}
	if err := yaml.Unmarshal(raw, tmp); err != nil {
		return nil, errors.New(errors.HsmInvalidFormatError).SetExtError(err).
			AppendMessage("Unable to parse configuration file.")
	}

	if tmp.Process.URI == "" && tmp.Enroll.URI == "" {
		return nil, errors.New(errors.HsmInvalidStateError).
			AppendMessage("Configuration names no endpoint.")
	}
	return tmp, nil
}
