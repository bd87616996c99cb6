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

package log

import (
	"github.com/sirupsen/logrus"

	"github.com/cryptobridge/gohsm/errors"
)

// LogrusLogger is a Logger interface implementation routing the SDK log records into a logrus logger.
// Use it when the host application already maintains a logrus tree:
//
//	logger, _ := log.NewLogrus(logrus.StandardLogger())
//	log.SetLogger(logger)
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrus returns a Logger implementation backed by the provided logrus logger.
func NewLogrus(l *logrus.Logger) (*LogrusLogger, error) {
	if l == nil {
		return nil, errors.New(errors.HsmInvalidArgumentError).AppendMessage("Missing logrus logger.")
	}
	return &LogrusLogger{
		entry: l.WithField("component", "gohsm"),
	}, nil
}

// Debug implements Logger.Debug().
func (l *LogrusLogger) Debug(v ...interface{}) {
	if l == nil || l.entry == nil {
		return
	}
	l.entry.Debug(v...)
}

// Info implements Logger.Info().
func (l *LogrusLogger) Info(v ...interface{}) {
	if l == nil || l.entry == nil {
		return
	}
	l.entry.Info(v...)
}

// Notice implements Logger.Notice(). Logrus has no notice level, such records are logged with info priority.
func (l *LogrusLogger) Notice(v ...interface{}) {
	if l == nil || l.entry == nil {
		return
	}
	l.entry.Info(v...)
}

// Warning implements Logger.Warning().
func (l *LogrusLogger) Warning(v ...interface{}) {
	if l == nil || l.entry == nil {
		return
	}
	l.entry.Warn(v...)
}

// Error implements Logger.Error().
func (l *LogrusLogger) Error(v ...interface{}) {
	if l == nil || l.entry == nil {
		return
	}
	l.entry.Error(v...)
}
