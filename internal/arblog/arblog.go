// Copyright 2026 The yuzu Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package arblog provides the process-wide structured logger shared by
// every package in this module.
package arblog

import (
	"os"

	"github.com/sirupsen/logrus"
)

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	return l
}

// SetLevel adjusts the verbosity of every logger returned by For. Tests
// that want to see CAS-retry or wake-batch tracing call this with
// logrus.DebugLevel.
func SetLevel(level logrus.Level) {
	base.SetLevel(level)
}

// For returns a component-scoped logger, e.g. arblog.For("arbiter").
func For(component string) *logrus.Entry {
	return base.WithField("component", component)
}
