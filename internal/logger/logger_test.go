// Copyright 2024 Google Inc. All Rights Reserved.
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

package logger

import (
	"bytes"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func redirectLogsToGivenBuffer(buf *bytes.Buffer, format, severity string) {
	var lvl slog.LevelVar
	defaultLoggerFactory = &loggerFactory{format: format}
	setLoggingLevel(severity, &lvl)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(buf, &lvl, ""))
}

func fetchOutputs(format, severity string) []string {
	var buf bytes.Buffer
	redirectLogsToGivenBuffer(&buf, format, severity)

	fns := []func(){
		func() { Tracef("trace") },
		func() { Debugf("debug") },
		func() { Infof("info") },
		func() { Warnf("warning") },
		func() { Errorf("error") },
	}

	out := make([]string, 0, len(fns))
	for _, f := range fns {
		f()
		out = append(out, buf.String())
		buf.Reset()
	}
	return out
}

func assertOutputs(t *testing.T, expected, got []string) {
	for i := range got {
		if expected[i] == "" {
			assert.Empty(t, got[i])
			continue
		}
		assert.Regexp(t, regexp.MustCompile(expected[i]), got[i])
	}
}

func TestSeverityGatesWhichLevelsAreEmitted(t *testing.T) {
	assertOutputs(t, []string{"", "", "", "", ""}, fetchOutputs("text", SeverityOff))
	assertOutputs(t, []string{"", "", "", "", `severity=ERROR msg=error`}, fetchOutputs("text", SeverityError))
	assertOutputs(t, []string{"", "", "", `severity=WARNING msg=warning`, `severity=ERROR msg=error`}, fetchOutputs("text", SeverityWarning))
	assertOutputs(t, []string{"", "", `severity=INFO msg=info`, `severity=WARNING msg=warning`, `severity=ERROR msg=error`}, fetchOutputs("text", SeverityInfo))
	assertOutputs(t, []string{"", `severity=DEBUG msg=debug`, `severity=INFO msg=info`, `severity=WARNING msg=warning`, `severity=ERROR msg=error`}, fetchOutputs("text", SeverityDebug))
	assertOutputs(t, []string{`severity=TRACE msg=trace`, `severity=DEBUG msg=debug`, `severity=INFO msg=info`, `severity=WARNING msg=warning`, `severity=ERROR msg=error`}, fetchOutputs("text", SeverityTrace))
}

func TestJSONFormatUsesSeverityField(t *testing.T) {
	out := fetchOutputs("json", SeverityInfo)
	assert.Regexp(t, regexp.MustCompile(`"severity":"INFO".*"msg":"info"`), out[2])
}

func TestSetLoggingLevel(t *testing.T) {
	cases := []struct {
		severity string
		want     slog.Level
	}{
		{SeverityTrace, LevelTrace},
		{SeverityDebug, LevelDebug},
		{SeverityInfo, LevelInfo},
		{SeverityWarning, LevelWarn},
		{SeverityError, LevelError},
		{SeverityOff, LevelOff},
	}
	for _, c := range cases {
		var v slog.LevelVar
		setLoggingLevel(c.severity, &v)
		assert.Equal(t, c.want, v.Level())
	}
}
