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
	"math/rand"
	"sync"
	"time"

	"github.com/cryptobridge/gohsm/errors"
)

// RetryPolicy configures the bounded retry of a single enrolment phase.
type RetryPolicy struct {
	// MaxAttempts is the overall attempt budget, the first attempt included.
	MaxAttempts int
	// BaseInterval is the delay before the first retry.
	BaseInterval time.Duration
	// Multiplier scales the interval on every further retry. Values below 1 are treated as 1.
	Multiplier float64
	// Jitter is the upper bound of a uniform random delay added to every interval.
	Jitter time.Duration
}

// Default retry policy values.
const (
	defaultMaxAttempts  = 3
	defaultBaseInterval = 500 * time.Millisecond
)

func (p *RetryPolicy) withDefaults() RetryPolicy {
	tmp := RetryPolicy{
		MaxAttempts:  defaultMaxAttempts,
		BaseInterval: defaultBaseInterval,
		Multiplier:   1,
	}
	if p != nil {
		if p.MaxAttempts > 0 {
			tmp.MaxAttempts = p.MaxAttempts
		}
		if p.BaseInterval > 0 {
			tmp.BaseInterval = p.BaseInterval
		}
		if p.Multiplier > 1 {
			tmp.Multiplier = p.Multiplier
		}
		tmp.Jitter = p.Jitter
	}
	return tmp
}

// retryHandler schedules bounded retry attempts. At most one timer is outstanding at any time
// and a cancelled handler never re-enters the scheduled thunk.
type retryHandler struct {
	mu sync.Mutex

	policy    RetryPolicy
	attempts  int
	timer     *time.Timer
	cancelled bool
}

func newRetryHandler(p *RetryPolicy) *retryHandler {
	return &retryHandler{
		policy: p.withDefaults(),
	}
}

// reset returns the handler into its initial state. A pending timer is aborted.
func (h *retryHandler) reset() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	h.attempts = 0
	h.cancelled = false
}

// limitReached reports whether the attempt budget is exhausted.
func (h *retryHandler) limitReached() bool {
	if h == nil {
		return true
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attempts+1 >= h.policy.MaxAttempts
}

// interval returns the delay before the given retry (1-based).
func (h *retryHandler) interval(attempt int) time.Duration {
	d := float64(h.policy.BaseInterval)
	for i := 1; i < attempt; i++ {
		d *= h.policy.Multiplier
	}
	tmp := time.Duration(d)
	if h.policy.Jitter > 0 {
		tmp += time.Duration(rand.Int63n(int64(h.policy.Jitter)))
	}
	return tmp
}

// retry schedules the thunk after the computed delay and returns the delay. It fails once the
// handler has been cancelled or the attempt budget is exhausted, and while a timer is pending.
func (h *retryHandler) retry(thunk func()) (time.Duration, error) {
	if h == nil || thunk == nil {
		return 0, errors.New(errors.HsmInvalidArgumentError)
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancelled {
		return 0, errors.New(errors.HsmRequestCancelled).AppendMessage("Retry handler has been cancelled.")
	}
	if h.attempts+1 >= h.policy.MaxAttempts {
		return 0, errors.New(errors.HsmInvalidStateError).AppendMessage("Retry attempt budget exhausted.")
	}
	if h.timer != nil {
		return 0, errors.New(errors.HsmInvalidStateError).AppendMessage("A retry is already pending.")
	}

	h.attempts++
	delay := h.interval(h.attempts)
	h.timer = time.AfterFunc(delay, func() {
		h.mu.Lock()
		h.timer = nil
		cancelled := h.cancelled
		h.mu.Unlock()

		if !cancelled {
			thunk()
		}
	})
	return delay, nil
}

// cancel aborts a pending timer and marks the handler cancelled. The scheduled thunk is never
// entered after cancel returns.
func (h *retryHandler) cancel() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.cancelled = true
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

// isRetryable reports whether the failure class is worth another attempt: transport conditions
// and corrupt responses are; caller misuse and service rejections are not.
func isRetryable(err error) bool {
	switch errors.HsmErr(err).Code() {
	case errors.HsmNetworkError,
		errors.HsmHttpError,
		errors.HsmIoError,
		errors.HsmCryptoFailure,
		errors.HsmMacMismatch,
		errors.HsmNonceMismatch,
		errors.HsmResponseFlagMismatch,
		errors.HsmPaddingInvalid,
		errors.HsmTlvCorrupt:
		return true
	}
	return false
}
