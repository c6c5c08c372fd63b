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

package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type TrackerTestSuite struct {
	suite.Suite
}

// A producer that renders one frame and stops: waiting, then active, then stale.
func (s *TrackerTestSuite) TestSingleFrameThenStall() {
	tr := NewTracker(TrackerConfig{SampleEvery: 1, StaleAfter: 3})
	s.Equal(StateWaiting, tr.Observe(0))
	s.Equal(StateWaiting, tr.Observe(0))
	s.Equal(StateNewlyActive, tr.Observe(1))
	s.Equal(StateActive, tr.Observe(1))
	s.Equal(StateActive, tr.Observe(1))
	s.Equal(StateStale, tr.Observe(1))
	s.Equal(StateStale, tr.Observe(1))
	s.Equal(uint16(1), tr.Last())
}

func (s *TrackerTestSuite) TestRecoveryIsNewlyActive() {
	tr := NewTracker(TrackerConfig{SampleEvery: 1, StaleAfter: 1})
	tr.Observe(5)
	s.Equal(StateStale, tr.Observe(5))
	s.Equal(StateNewlyActive, tr.Observe(6))
	s.Equal(StateActive, tr.Observe(7))
}

func (s *TrackerTestSuite) TestWrapAroundCountsAsProgress() {
	tr := NewTracker(TrackerConfig{SampleEvery: 1, StaleAfter: 2})
	tr.Observe(0xfffe)
	s.Equal(StateActive, tr.Observe(0xffff))
	s.Equal(StateWaiting, tr.Observe(0))
	s.Equal(StateNewlyActive, tr.Observe(1))
}

func (s *TrackerTestSuite) TestSamplingInterval() {
	tr := NewTracker(TrackerConfig{SampleEvery: 4, StaleAfter: 1})
	s.Equal(StateNewlyActive, tr.Observe(9)) // first call samples
	for i := 0; i < 3; i++ {
		// counter frozen between samples, nothing is sampled yet
		s.Equal(StateNewlyActive, tr.Observe(9))
	}
	s.Equal(StateStale, tr.Observe(9))
}

func (s *TrackerTestSuite) TestReset() {
	tr := NewTracker(TrackerConfig{SampleEvery: 1, StaleAfter: 1})
	tr.Observe(3)
	tr.Observe(3)
	s.Equal(StateStale, tr.State())
	tr.Reset()
	s.Equal(StateUnknown, tr.State())
	s.Equal(StateNewlyActive, tr.Observe(3))
}

func (s *TrackerTestSuite) TestResumeStaleNeedsProgress() {
	tr := NewTracker(TrackerConfig{SampleEvery: 1, StaleAfter: 2})
	tr.ResumeStale(7)
	s.Equal(StateStale, tr.State())
	s.Equal(uint16(7), tr.Last())
	s.Equal(StateStale, tr.Observe(7))
	s.Equal(StateStale, tr.Observe(7))
	s.Equal(StateNewlyActive, tr.Observe(8))
	s.Equal(StateActive, tr.Observe(9))

	tr.ResumeStale(9)
	s.Equal(StateWaiting, tr.Observe(0))
}

func (s *TrackerTestSuite) TestInvalidConfigFallsBack() {
	s.Error(VerifyTrackerConfig(TrackerConfig{}))
	s.Error(VerifyTrackerConfig(TrackerConfig{SampleEvery: 1}))
	tr := NewTracker(TrackerConfig{SampleEvery: -1})
	s.Equal(DefaultTrackerConfig(), tr.config)
}

func TestTrackerTestSuite(t *testing.T) {
	suite.Run(t, new(TrackerTestSuite))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "stale", StateStale.String())
	assert.Equal(t, "state(9)", State(9).String())
	assert.True(t, StateNewlyActive.Alive())
	assert.False(t, StateWaiting.Alive())
}
