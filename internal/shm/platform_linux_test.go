//go:build linux

package shm

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type PlatformTestSuite struct {
	suite.Suite
	name string
}

func (s *PlatformTestSuite) SetupTest() {
	s.name = fmt.Sprintf("gamelink_shm_test_%d", rand.Int63())
}

func (s *PlatformTestSuite) TearDownTest() {
	_ = RemoveRegion(s.name)
	_ = RemoveMutex(s.name + "_mutex")
}

func (s *PlatformTestSuite) TestMapMissingRegion() {
	r, err := MapRegion(context.Background(), MapOptions{Name: s.name})
	s.Require().ErrorIs(err, ErrNotExist)
	s.Require().Nil(r)
}

func (s *PlatformTestSuite) TestCreateAndAttach() {
	ctx := context.Background()
	producer, err := MapRegion(ctx, MapOptions{Name: s.name, Size: 8192, Create: true})
	s.Require().NoError(err)
	defer UnmapRegion(ctx, producer) //nolint:errcheck // test cleanup

	consumer, err := MapRegion(ctx, MapOptions{Name: s.name})
	s.Require().NoError(err)
	s.Require().Len(consumer.Addr, 8192)

	copy(producer.Addr[100:], "hello")
	s.Equal("hello", string(consumer.Addr[100:105]))

	s.Require().NoError(UnmapRegion(ctx, consumer))
	s.Nil(consumer.Addr)
	// idempotent
	s.Require().NoError(UnmapRegion(ctx, consumer))
}

func (s *PlatformTestSuite) TestMutexContention() {
	name := s.name + "_mutex"
	_, err := OpenMutex(name)
	s.Require().ErrorIs(err, ErrNotExist)

	owner, err := CreateMutex(name)
	s.Require().NoError(err)
	defer owner.Close() //nolint:errcheck // test cleanup

	other, err := OpenMutex(name)
	s.Require().NoError(err)
	defer other.Close() //nolint:errcheck // test cleanup

	res, err := owner.Lock(time.Second)
	s.Require().NoError(err)
	s.Equal(LockAcquired, res)

	start := time.Now()
	res, err = other.Lock(30 * time.Millisecond)
	s.Require().NoError(err)
	s.Equal(LockTimeout, res)
	s.GreaterOrEqual(time.Since(start), 25*time.Millisecond)

	s.Require().NoError(owner.Unlock())
	res, err = other.Lock(time.Second)
	s.Require().NoError(err)
	s.True(res.Owned())
	s.Require().NoError(other.Unlock())
}

func (s *PlatformTestSuite) TestClosedMutex() {
	m, err := CreateMutex(s.name + "_mutex")
	s.Require().NoError(err)
	s.Require().NoError(m.Close())
	s.Require().NoError(m.Close())
	res, err := m.Lock(time.Millisecond)
	s.Error(err)
	s.Equal(LockFailed, res)
}

func TestPlatformTestSuite(t *testing.T) {
	suite.Run(t, new(PlatformTestSuite))
}
