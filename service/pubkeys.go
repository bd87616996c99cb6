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
	"bytes"
	"context"
	"crypto/x509"
	"encoding/hex"
	"sync"
	"time"

	"github.com/fullsailor/pkcs7"

	"github.com/cryptobridge/gohsm/errors"
	"github.com/cryptobridge/gohsm/log"
	"github.com/cryptobridge/gohsm/pdu"
)

// defaultImportKeyTTL is the import key cache expiration period.
const defaultImportKeyTTL = time.Hour

// ImportKeyHandler fetches and caches the import key directory published by the service. When
// the directory arrives with a detached PKCS#7 signature, the signature is verified before the
// keys are accepted.
//
// The handler is safe for concurrent use.
type ImportKeyHandler struct {
	service service

	mu      sync.Mutex
	ttl     time.Duration
	keys    []pdu.ImportKey
	fetched time.Time
	trusted *x509.CertPool
}

// ImportKeyHandlerOpt is the configuration option for the import key handler.
type ImportKeyHandlerOpt func(*ImportKeyHandler) error

// NewImportKeyHandler creates a new import key directory handler on top of the given service
// options (see OptEndpoint, OptNetClient).
func NewImportKeyHandler(opts []Option, handlerOpts ...ImportKeyHandlerOpt) (*ImportKeyHandler, error) {
	srv, _, err := newService(opts...)
	if err != nil {
		return nil, err
	}

	tmp := &ImportKeyHandler{
		service: srv,
		ttl:     defaultImportKeyTTL,
	}
	for _, setter := range handlerOpts {
		if setter == nil {
			return nil, errors.New(errors.HsmInvalidArgumentError).AppendMessage("Provided option is nil.")
		}
		if err := setter(tmp); err != nil {
			return nil, errors.HsmErr(err).AppendMessage("Unable to apply import key handler option.")
		}
	}
	return tmp, nil
}

// ImportKeyHandlerOptTTL is option that specifies the cache expiration period.
func ImportKeyHandlerOptTTL(ttl time.Duration) ImportKeyHandlerOpt {
	return func(h *ImportKeyHandler) error {
		if h == nil || ttl <= 0 {
			return errors.New(errors.HsmInvalidArgumentError)
		}
		h.ttl = ttl
		return nil
	}
}

// ImportKeyHandlerOptTrustAnchors is option that specifies the certificate pool the directory
// signature is verified against. Without it a present signature is only checked for
// consistency with the directory content.
func ImportKeyHandlerOptTrustAnchors(pool *x509.CertPool) ImportKeyHandlerOpt {
	return func(h *ImportKeyHandler) error {
		if h == nil || pool == nil {
			return errors.New(errors.HsmInvalidArgumentError)
		}
		h.trusted = pool
		return nil
	}
}

// ImportKeys returns the import key directory, from the cache when it is still fresh.
func (h *ImportKeyHandler) ImportKeys(ctx context.Context) ([]pdu.ImportKey, error) {
	if h == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.keys != nil && time.Since(h.fetched) < h.ttl {
		return h.keys, nil
	}

	srvReq, err := newRequest(importKeysRequest(ctx))
	if err != nil {
		return nil, err
	}
	srvResp, err := h.service.send(srvReq)
	if err != nil {
		return nil, err
	}
	keysResp, err := srvResp.importKeysResp()
	if err != nil {
		return nil, err
	}

	if err := h.verifySignature(keysResp); err != nil {
		return nil, err
	}

	keys, err := keysResp.Keys()
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, errors.New(errors.HsmInvalidStateError).AppendMessage("Empty import key directory.")
	}

	h.keys = keys
	h.fetched = time.Now()
	return h.keys, nil
}

// verifySignature checks the detached PKCS#7 signature over the directory content, when one is
// present.
func (h *ImportKeyHandler) verifySignature(resp *pdu.ImportKeysResp) error {
	signature, err := resp.Signature()
	if err != nil {
		return err
	}
	if signature == "" {
		log.Notice("Import key directory is not signed.")
		return nil
	}

	der, err := hex.DecodeString(signature)
	if err != nil {
		return errors.New(errors.HsmInvalidFormatError).SetExtError(err).
			AppendMessage("Directory signature is not a hexadecimal string.")
	}
	p7, err := pkcs7.Parse(der)
	if err != nil {
		return errors.New(errors.HsmInvalidPkiSignature).SetExtError(err).
			AppendMessage("Unable to parse directory signature.")
	}

	content, err := resp.RawResult()
	if err != nil {
		return err
	}
	if len(p7.Content) == 0 {
		// Detached signature, the directory bytes are the signed content.
		p7.Content = content
	} else if !bytes.Equal(p7.Content, content) {
		return errors.New(errors.HsmInvalidPkiSignature).
			AppendMessage("Signature content does not match the directory.")
	}

	if err := p7.Verify(); err != nil {
		return errors.New(errors.HsmInvalidPkiSignature).SetExtError(err).
			AppendMessage("Directory signature verification failed.")
	}

	if h.trusted != nil {
		signer := p7.GetOnlySigner()
		if signer == nil {
			return errors.New(errors.HsmInvalidPkiSignature).
				AppendMessage("Directory signature must carry exactly one signer.")
		}
		intermediates := x509.NewCertPool()
		for _, cert := range p7.Certificates {
			intermediates.AddCert(cert)
		}
		if _, err := signer.Verify(x509.VerifyOptions{
			Roots:         h.trusted,
			Intermediates: intermediates,
			KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
		}); err != nil {
			return errors.New(errors.HsmInvalidPkiSignature).SetExtError(err).
				AppendMessage("Directory signer certificate is not trusted.")
		}
	}
	return nil
}

// Invalidate drops the cached directory.
func (h *ImportKeyHandler) Invalidate() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.keys = nil
}
