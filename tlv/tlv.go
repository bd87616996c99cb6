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

// Package tlv implements the tag-length-value record codec of the HSM wire format.
//
// Every record consists of a one byte tag, a two byte big-endian length and the value body.
// The codec is strict: truncated records and trailing bytes are reported as corrupt.
package tlv

import (
	"encoding/binary"
	"fmt"

	"github.com/cryptobridge/gohsm/errors"
)

// MaxBodyLen is the maximal record body length imposed by the 16-bit length field.
const MaxBodyLen = 0xffff

// headerLen is the tag plus length field size.
const headerLen = 3

// Builder serializes a sequence of TLV records.
type Builder struct {
	buf []byte
}

// Add appends a record with the given tag and body.
func (b *Builder) Add(tag byte, body []byte) error {
	if b == nil {
		return errors.New(errors.HsmInvalidArgumentError)
	}
	if len(body) > MaxBodyLen {
		return errors.New(errors.HsmBufferOverflow).
			AppendMessage(fmt.Sprintf("Record body exceeds the 16-bit length field: %d.", len(body)))
	}

	hdr := [headerLen]byte{tag}
	binary.BigEndian.PutUint16(hdr[1:], uint16(len(body)))
	b.buf = append(b.buf, hdr[:]...)
	b.buf = append(b.buf, body...)
	return nil
}

// Bytes returns the serialized records.
func (b *Builder) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.buf
}

// Reader parses a sequence of TLV records.
type Reader struct {
	buf []byte
	pos int
}

// NewReader returns a reader over the given serialized records.
func NewReader(data []byte) *Reader {
	return &Reader{buf: data}
}

// More reports whether unread bytes remain.
func (r *Reader) More() bool {
	return r != nil && r.pos < len(r.buf)
}

// Next reads the record at the current position.
func (r *Reader) Next() (byte, []byte, error) {
	if r == nil {
		return 0, nil, errors.New(errors.HsmInvalidArgumentError)
	}
	if r.pos+headerLen > len(r.buf) {
		return 0, nil, errors.New(errors.HsmTlvCorrupt).AppendMessage("Truncated record header.")
	}

	tag := r.buf[r.pos]
	bodyLen := int(binary.BigEndian.Uint16(r.buf[r.pos+1 : r.pos+headerLen]))
	if r.pos+headerLen+bodyLen > len(r.buf) {
		return 0, nil, errors.New(errors.HsmTlvCorrupt).
			AppendMessage(fmt.Sprintf("Truncated record body for tag %02x.", tag))
	}

	body := r.buf[r.pos+headerLen : r.pos+headerLen+bodyLen]
	r.pos += headerLen + bodyLen
	return tag, body, nil
}

// Expect reads the next record and requires it to carry the given tag.
func (r *Reader) Expect(tag byte) ([]byte, error) {
	gotTag, body, err := r.Next()
	if err != nil {
		return nil, err
	}
	if gotTag != tag {
		return nil, errors.New(errors.HsmTlvCorrupt).
			AppendMessage(fmt.Sprintf("Unexpected record tag: %02x, expected %02x.", gotTag, tag))
	}
	return body, nil
}

// Close verifies that the whole input has been consumed.
func (r *Reader) Close() error {
	if r == nil {
		return errors.New(errors.HsmInvalidArgumentError)
	}
	if r.pos != len(r.buf) {
		return errors.New(errors.HsmTlvCorrupt).
			AppendMessage(fmt.Sprintf("Trailing bytes after the last record: %d.", len(r.buf)-r.pos))
	}
	return nil
}
