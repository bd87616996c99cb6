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
	"context"
	"sync"

	"github.com/cryptobridge/gohsm/errors"
	"github.com/cryptobridge/gohsm/log"
	"github.com/cryptobridge/gohsm/pdu"
)

// Enrolment phases, used for tagging surfaced failures.
const (
	// PhaseTemplate is the GetUserObjectTemplate stage.
	PhaseTemplate = 1
	// PhaseCreate is the CreateUserObject stage.
	PhaseCreate = 2
)

// Enroller orchestrates the two-phase user object enrolment: fetch a template, fill it with
// the client keys and upload the re-encrypted image. Each phase is retried independently.
// An instance must not be shared between goroutines.
type Enroller struct {
	service

	retryPolicy *RetryPolicy
	// ProcessData endpoint recorded into enrolled user objects.
	processURI string

	mu           sync.Mutex
	handler      *retryHandler
	cancelCh     chan struct{}
	cancelClosed bool
	cancelled    bool
}

// NewEnroller creates a new enroller instance.
func NewEnroller(opts ...Option) (*Enroller, error) {
	if len(opts) == 0 {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}

	srv, f, err := newService(opts...)
	if err != nil {
		return nil, err
	}

	return &Enroller{
		service:     srv,
		retryPolicy: f.retry,
		processURI:  f.processURI,
	}, nil
}

// GetTemplate fetches a user object template of the given type. The call is a single attempt;
// see Enroll for the retried sequence.
func (e *Enroller) GetTemplate(ctx context.Context, uoType pdu.UOType, settings ...pdu.TemplateReqSetting) (*pdu.Template, error) {
	if e == nil || e.service == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}

	req, err := pdu.NewTemplateReq(uoType, settings...)
	if err != nil {
		return nil, err
	}
	srvReq, err := newRequest(templateRequest(req, uoType, ctx))
	if err != nil {
		return nil, err
	}

	srvResp, err := e.send(srvReq)
	if err != nil {
		return nil, err
	}
	tplResp, err := srvResp.templateResp()
	if err != nil {
		return nil, err
	}
	return tplResp.Template()
}

// CreateObject uploads a filled template and returns the created object response. The call is
// a single attempt; see Enroll for the retried sequence.
func (e *Enroller) CreateObject(ctx context.Context, uoType pdu.UOType, tpl *pdu.Template, filled *pdu.FilledTemplate) (*pdu.CreateResp, error) {
	if e == nil || e.service == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}

	req, err := pdu.NewCreateReq(tpl, filled)
	if err != nil {
		return nil, err
	}
	srvReq, err := newRequest(createRequest(req, uoType, ctx))
	if err != nil {
		return nil, err
	}

	srvResp, err := e.send(srvReq)
	if err != nil {
		return nil, err
	}
	return srvResp.createObjectResp()
}

// GetImportKeys fetches the import key directory. Prefer the cached ImportKeyHandler for
// repeated enrolments.
func (e *Enroller) GetImportKeys(ctx context.Context) ([]pdu.ImportKey, error) {
	if e == nil || e.service == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}

	srvReq, err := newRequest(importKeysRequest(ctx))
	if err != nil {
		return nil, err
	}
	srvResp, err := e.send(srvReq)
	if err != nil {
		return nil, err
	}
	keysResp, err := srvResp.importKeysResp()
	if err != nil {
		return nil, err
	}
	return keysResp.Keys()
}

// Enroll runs the complete enrolment sequence and composes the resulting user object record.
// Transport failures and corrupt responses are retried per phase within the configured retry
// policy; service rejections surface immediately. A surfaced failure is tagged with the phase
// it originates from (see errors.(HsmError).Phase()).
func (e *Enroller) Enroll(ctx context.Context, uoType pdu.UOType, keys *pdu.TemplateKeys, settings ...pdu.TemplateReqSetting) (*UserObject, error) {
	if e == nil || e.service == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}
	if keys == nil || len(keys.ComEnc) == 0 || len(keys.ComMac) == 0 {
		return nil, errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing client communication keys.")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	// Phase 1: fetch the template.
	v, err := e.runPhase(ctx, PhaseTemplate, func() (interface{}, error) {
		return e.GetTemplate(ctx, uoType, settings...)
	})
	if err != nil {
		return nil, err
	}
	tpl := v.(*pdu.Template)

	// Filling is a local operation, a failure here is caller misuse and not retried.
	filled, err := tpl.Fill(keys)
	if err != nil {
		return nil, err
	}

	// Phase 2: upload the filled template.
	v, err = e.runPhase(ctx, PhaseCreate, func() (interface{}, error) {
		return e.CreateObject(ctx, uoType, tpl, filled)
	})
	if err != nil {
		return nil, err
	}
	createResp := v.(*pdu.CreateResp)

	handle, err := createResp.Handle()
	if err != nil {
		return nil, err
	}
	log.Info("Enrolled user object: ", handle)

	endpoint := e.processURI
	if endpoint == "" {
		if ep, ok := e.service.(*basicService); ok {
			endpoint = ep.netClient.URI()
		}
	}

	return &UserObject{
		UOID:     handle.UOID(),
		UOType:   handle.UOType(),
		EncKey:   append([]byte(nil), keys.ComEnc...),
		MacKey:   append([]byte(nil), keys.ComMac...),
		APIKey:   handle.APIKey(),
		Endpoint: endpoint,
	}, nil
}

// Cancel aborts the pending retry timer of an enrolment in progress. An in-flight request is
// not forcibly killed, its response is discarded.
func (e *Enroller) Cancel() {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelled = true
	if e.handler != nil {
		e.handler.cancel()
	}
	if e.cancelCh != nil && !e.cancelClosed {
		close(e.cancelCh)
		e.cancelClosed = true
	}
}

// runPhase runs a single enrolment phase within the retry budget.
func (e *Enroller) runPhase(ctx context.Context, phase int, thunk func() (interface{}, error)) (interface{}, error) {
	h := newRetryHandler(e.retryPolicy)
	cancelCh := make(chan struct{})

	e.mu.Lock()
	if e.cancelled {
		e.mu.Unlock()
		return nil, errors.New(errors.HsmRequestCancelled).SetPhase(phase)
	}
	e.handler = h
	e.cancelCh = cancelCh
	e.cancelClosed = false
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.handler = nil
		e.cancelCh = nil
		e.mu.Unlock()
	}()

	type outcome struct {
		v   interface{}
		err error
	}
	results := make(chan outcome, 1)
	attempt := func() {
		v, err := thunk()
		results <- outcome{v: v, err: err}
	}

	// The first attempt runs without delay.
	attempt()
	for {
		select {
		case out := <-results:
			if out.err == nil {
				return out.v, nil
			}
			if !isRetryable(out.err) {
				return nil, errors.HsmErr(out.err).SetPhase(phase)
			}
			if h.limitReached() {
				return nil, errors.HsmErr(out.err).SetPhase(phase).
					AppendMessage("Retry attempts exhausted.")
			}

			delay, err := h.retry(attempt)
			if err != nil {
				return nil, errors.HsmErr(err).SetPhase(phase)
			}
			log.Debug("Enrolment phase ", phase, " retry scheduled after ", delay, ".")
		case <-cancelCh:
			return nil, errors.New(errors.HsmRequestCancelled).SetPhase(phase)
		case <-ctx.Done():
			h.cancel()
			return nil, errors.New(errors.HsmRequestCancelled).SetExtError(ctx.Err()).SetPhase(phase)
		}
	}
}
