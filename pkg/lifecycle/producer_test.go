/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeProcessName(t *testing.T) {
	assert.Equal(t, "applewin", normalizeProcessName("AppleWin.exe"))
	assert.Equal(t, "applewin", normalizeProcessName(`applewin`))
	assert.Equal(t, "applewin", normalizeProcessName("/opt/bin/AppleWin"))
}

func TestProducerRunningFindsSelf(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	self, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	require.NoError(t, err)
	name, err := self.NameWithContext(ctx)
	require.NoError(t, err)

	running, err := ProducerRunning(ctx, name)
	require.NoError(t, err)
	assert.True(t, running)

	running, err = ProducerRunning(ctx, filepath.Base(t.TempDir())+"-no-such-emulator")
	require.NoError(t, err)
	assert.False(t, running)
}
