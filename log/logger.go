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
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cryptobridge/gohsm/errors"
)

// Priority is the logging priority. Only records with a priority not exceeding the logger priority are written.
type Priority byte

const (
	// NONE disables logging.
	NONE Priority = iota
	// ERROR priority (see (Logger).Error()).
	ERROR
	// WARNING priority (see (Logger).Warning()).
	WARNING
	// NOTICE priority (see (Logger).Notice()).
	NOTICE
	// INFO priority (see (Logger).Info()).
	INFO
	// DEBUG priority (see (Logger).Debug()).
	DEBUG
)

var priorityStrings = map[Priority]string{
	ERROR:   "E",
	WARNING: "W",
	NOTICE:  "N",
	INFO:    "I",
	DEBUG:   "D",
}

// BasicLogger is a basic Logger interface implementation writing formatted log lines to an io.Writer.
type BasicLogger struct {
	priority Priority
	writer   io.Writer
}

// New returns a new basic logger with the given priority. Records are written to the provided writer,
// or to stdout in case the writer is nil.
func New(priority Priority, writer io.Writer) (*BasicLogger, error) {
	if priority > DEBUG {
		return nil, errors.New(errors.HsmInvalidArgumentError).AppendMessage("Unknown logging priority.")
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &BasicLogger{
		priority: priority,
		writer:   writer,
	}, nil
}

func (l *BasicLogger) write(p Priority, v ...interface{}) {
	if l == nil || l.writer == nil || l.priority < p {
		return
	}
	_, _ = fmt.Fprintf(l.writer, "%s [%s] %s\n",
		time.Now().Format("2006-01-02 15:04:05.000"), priorityStrings[p], fmt.Sprint(v...))
}

// Debug implements Logger.Debug().
func (l *BasicLogger) Debug(v ...interface{}) { l.write(DEBUG, v...) }

// Info implements Logger.Info().
func (l *BasicLogger) Info(v ...interface{}) { l.write(INFO, v...) }

// Notice implements Logger.Notice().
func (l *BasicLogger) Notice(v ...interface{}) { l.write(NOTICE, v...) }

// Warning implements Logger.Warning().
func (l *BasicLogger) Warning(v ...interface{}) { l.write(WARNING, v...) }

// Error implements Logger.Error().
func (l *BasicLogger) Error(v ...interface{}) { l.write(ERROR, v...) }
