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

package tracing_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetfs/fleetfs/internal/tracing"
)

func TestStartRequestSpanExportsRequestTypeAttribute(t *testing.T) {
	var buf bytes.Buffer
	p, err := tracing.NewStdout(&buf, "n1")
	require.NoError(t, err)

	_, span := tracing.StartRequestSpan(context.Background(), p.Tracer(), "write", "Write")
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "fleetfs.request_type")
	assert.Contains(t, buf.String(), "Write")
	assert.Contains(t, buf.String(), "n1")
}

func TestNilProviderTracerIsUsable(t *testing.T) {
	var p *tracing.Provider

	_, span := tracing.StartRequestSpan(context.Background(), p.Tracer(), "read", "Lookup")
	span.End()

	assert.NoError(t, p.Shutdown(context.Background()))
}
