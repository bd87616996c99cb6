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

package pdu

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/cryptobridge/gohsm/errors"
)

// Template environment identifiers.
const (
	EnvironmentDev  = "dev"
	EnvironmentTest = "test"
	EnvironmentProd = "prod"
)

// TemplateGeneration selects, per key class, whether the key is client-provided or generated
// by the service.
type TemplateGeneration struct {
	CommKey    int `json:"commkey"`
	AppKey     int `json:"appkey"`
	BillingKey int `json:"billingkey"`
}

// Key generation selector values.
const (
	// KeyGenServer requests server-side generation.
	KeyGenServer = 0
	// KeyGenClient marks a client-provided key.
	KeyGenClient = 1
)

// TemplateReq is the GetUserObjectTemplate request record, carried in the request body
// verbatim.
type TemplateReq struct {
	Format      string              `json:"format,omitempty"`
	Protocol    string              `json:"protocol,omitempty"`
	Environment string              `json:"environment,omitempty"`
	Type        string              `json:"type"`
	Generation  *TemplateGeneration `json:"generation,omitempty"`
}

// TemplateReqSetting is a functional option setter for various template request settings.
type TemplateReqSetting func(*templateReq) error
type templateReq struct {
	obj TemplateReq
}

// NewTemplateReq constructs a new template request for the given user object type.
// Optionally additional configuration settings can be added via settings parameter.
func NewTemplateReq(uoType UOType, settings ...TemplateReqSetting) (*TemplateReq, error) {
	tmp := templateReq{obj: TemplateReq{
		Environment: EnvironmentProd,
		Type:        fmt.Sprintf("%08x", uint32(uoType)),
		Generation: &TemplateGeneration{
			CommKey: KeyGenClient,
		},
	}}
	if uoType.HasClientAppKey() {
		tmp.obj.Generation.AppKey = KeyGenClient
	}

	for _, setter := range settings {
		if err := setter(&tmp); err != nil {
			return nil, errors.HsmErr(err).AppendMessage("Unable to setup template request.")
		}
	}
	return &tmp.obj, nil
}

// TemplateReqSetEnvironment is template requests' configuration method for the target environment.
func TemplateReqSetEnvironment(env string) TemplateReqSetting {
	return func(r *templateReq) error {
		if r == nil {
			return errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing template request base object.")
		}
		switch env {
		case EnvironmentDev, EnvironmentTest, EnvironmentProd:
			r.obj.Environment = env
		default:
			return errors.New(errors.HsmInvalidFormatError).
				AppendMessage(fmt.Sprintf("Unknown environment: %s.", env))
		}
		return nil
	}
}

// TemplateReqSetGeneration is template requests' configuration method for the key generation record.
func TemplateReqSetGeneration(g *TemplateGeneration) TemplateReqSetting {
	return func(r *templateReq) error {
		if r == nil || g == nil {
			return errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing template request base object.")
		}
		r.obj.Generation = g
		return nil
	}
}

// TemplateResp is the GetUserObjectTemplate response parser.
type TemplateResp struct {
	status       Status
	statusDetail string
	template     *Template
}

// Decode deserializes the response JSON envelope.
func (r *TemplateResp) Decode(raw []byte) error {
	if r == nil {
		return errors.New(errors.HsmInvalidArgumentError)
	}

	env, status, err := decodeEnvelope(raw)
	if err != nil {
		return err
	}
	r.status = status
	r.statusDetail = env.StatusDetail

	if status.IsOK() {
		tmp := &Template{}
		if err := json.Unmarshal(env.Result, tmp); err != nil {
			return errors.New(errors.HsmInvalidFormatError).SetExtError(err).
				AppendMessage("Unable to parse template record.")
		}
		r.template = tmp
	}
	return nil
}

// Status returns the response status word.
func (r *TemplateResp) Status() (Status, error) {
	if r == nil {
		return 0, errors.New(errors.HsmInvalidArgumentError)
	}
	return r.status, nil
}

// Template returns the received template record.
func (r *TemplateResp) Template() (*Template, error) {
	if r == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}
	if r.template == nil {
		return nil, errors.New(errors.HsmInvalidStateError).AppendMessage("Missing template record.")
	}
	return r.template, nil
}

// CreateReq is the CreateUserObject request record, carried in the request body verbatim.
type CreateReq struct {
	ObjectID      string `json:"objectid"`
	ImportKey     int    `json:"importkey"`
	Object        string `json:"object"`
	Authorization string `json:"authorization"`
}

// NewCreateReq forms the CreateUserObject request out of a filled template.
func NewCreateReq(tpl *Template, filled *FilledTemplate) (*CreateReq, error) {
	if tpl == nil || filled == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}
	if len(filled.Blob) == 0 {
		return nil, errors.New(errors.HsmInvalidStateError).AppendMessage("Missing filled template blob.")
	}

	return &CreateReq{
		ObjectID:      tpl.ObjectID,
		ImportKey:     filled.ImportKeyID,
		Object:        hex.EncodeToString(filled.Blob),
		Authorization: tpl.Authorization,
	}, nil
}

// CreateResp is the CreateUserObject response parser.
type CreateResp struct {
	status       Status
	statusDetail string
	handle       string
	publicKey    string
}

type createResult struct {
	Handle    string `json:"handle"`
	PublicKey string `json:"publickey"`
}

// Decode deserializes the response JSON envelope.
func (r *CreateResp) Decode(raw []byte) error {
	if r == nil {
		return errors.New(errors.HsmInvalidArgumentError)
	}

	env, status, err := decodeEnvelope(raw)
	if err != nil {
		return err
	}
	r.status = status
	r.statusDetail = env.StatusDetail

	if status.IsOK() {
		var result createResult
		if err := json.Unmarshal(env.Result, &result); err != nil {
			return errors.New(errors.HsmInvalidFormatError).SetExtError(err).
				AppendMessage("Unable to parse create result.")
		}
		if len(result.Handle) == 0 {
			return errors.New(errors.HsmInvalidFormatError).AppendMessage("Missing user object handle.")
		}
		r.handle = result.Handle
		r.publicKey = result.PublicKey
	}
	return nil
}

// Status returns the response status word.
func (r *CreateResp) Status() (Status, error) {
	if r == nil {
		return 0, errors.New(errors.HsmInvalidArgumentError)
	}
	return r.status, nil
}

// Handle returns the handle of the created user object.
func (r *CreateResp) Handle() (*Handle, error) {
	if r == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}
	if len(r.handle) == 0 {
		return nil, errors.New(errors.HsmInvalidStateError).AppendMessage("Missing user object handle.")
	}
	return ParseHandle(r.handle)
}

// PublicKey returns the public key of an RSA user object, or an empty string.
func (r *CreateResp) PublicKey() (string, error) {
	if r == nil {
		return "", errors.New(errors.HsmInvalidArgumentError)
	}
	return r.publicKey, nil
}

// ImportKeysResp is the GetImportPublicKey response parser.
type ImportKeysResp struct {
	status       Status
	statusDetail string
	keys         []ImportKey
	rawResult    []byte
	signature    string
}

// Decode deserializes the response JSON envelope.
func (r *ImportKeysResp) Decode(raw []byte) error {
	if r == nil {
		return errors.New(errors.HsmInvalidArgumentError)
	}

	env, status, err := decodeEnvelope(raw)
	if err != nil {
		return err
	}
	r.status = status
	r.statusDetail = env.StatusDetail
	r.signature = env.Signature

	if status.IsOK() {
		var keys []ImportKey
		if err := json.Unmarshal(env.Result, &keys); err != nil {
			return errors.New(errors.HsmInvalidFormatError).SetExtError(err).
				AppendMessage("Unable to parse import key records.")
		}
		r.keys = keys
		r.rawResult = append([]byte(nil), env.Result...)
	}
	return nil
}

// Status returns the response status word.
func (r *ImportKeysResp) Status() (Status, error) {
	if r == nil {
		return 0, errors.New(errors.HsmInvalidArgumentError)
	}
	return r.status, nil
}

// Keys returns the received import key records.
func (r *ImportKeysResp) Keys() ([]ImportKey, error) {
	if r == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}
	return r.keys, nil
}

// RawResult returns the verbatim result bytes, the input of the directory signature.
func (r *ImportKeysResp) RawResult() ([]byte, error) {
	if r == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError)
	}
	return r.rawResult, nil
}

// Signature returns the detached directory signature, or an empty string.
func (r *ImportKeysResp) Signature() (string, error) {
	if r == nil {
		return "", errors.New(errors.HsmInvalidArgumentError)
	}
	return r.signature, nil
}
