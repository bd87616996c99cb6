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

package service

import (
	"fmt"

	"github.com/cryptobridge/gohsm/errors"
	"github.com/cryptobridge/gohsm/log"
)

// MaxFailoverSubServices is the upper bound of registered failover sub-services.
const MaxFailoverSubServices = 3

// failoverService walks its sub-service endpoints in registration order until one of them
// answers. Transport failures and corrupt responses move on to the next endpoint; a service
// rejection is final, every endpoint would answer the same.
type failoverService struct {
	subServices []*basicService
}

func newFailoverService() (*failoverService, error) {
	return &failoverService{}, nil
}

func (s *failoverService) addSubService(sub *basicService) error {
	if s == nil || sub == nil {
		return errors.New(errors.HsmInvalidArgumentError)
	}
	if len(s.subServices) >= MaxFailoverSubServices {
		return errors.New(errors.HsmInvalidStateError).
			AppendMessage(fmt.Sprintf("No more than %d failover sub-services are supported.", MaxFailoverSubServices))
	}
	s.subServices = append(s.subServices, sub)
	return nil
}

// send implements the service interface.
func (s *failoverService) send(req *request) (*response, error) {
	if s == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}
	if len(s.subServices) == 0 {
		return nil, errors.New(errors.HsmInvalidStateError).AppendMessage("No sub-services registered.")
	}

	var lastErr error
	for i, sub := range s.subServices {
		resp, err := sub.send(req)
		if err == nil {
			return resp, nil
		}
		if !isRetryable(err) {
			return nil, err
		}

		log.Warning(fmt.Sprintf("Failover sub-service %d (%s) failed: %04x.",
			i, sub.netClient.URI(), uint16(errors.HsmErr(err).Code())))
		lastErr = err
	}
	return nil, errors.HsmErr(lastErr).AppendMessage("Every failover sub-service failed.")
}
