package audio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "voxid/pkg/domain-errors"
	"voxid/pkg/testutil"
)

type SpoolerSuite struct {
	suite.Suite
	dir     string
	spooler *Spooler
}

func TestSpoolerSuite(t *testing.T) {
	suite.Run(t, new(SpoolerSuite))
}

func (s *SpoolerSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.spooler = NewSpooler(s.dir, 4096)
}

func (s *SpoolerSuite) spooled() []os.DirEntry {
	entries, err := os.ReadDir(s.dir)
	s.Require().NoError(err)
	return entries
}

func (s *SpoolerSuite) TestSpoolValidSample() {
	payload := testutil.MonoWAV(100)
	sample, err := s.spooler.Spool(context.Background(), bytes.NewReader(payload), "hello.wav")
	s.Require().NoError(err)
	s.Equal(int64(len(payload)), sample.Size())
	s.Equal("hello.wav", sample.Filename())
	s.Len(s.spooled(), 1)

	rc, err := sample.Open()
	s.Require().NoError(err)
	got, err := io.ReadAll(rc)
	s.Require().NoError(err)
	s.Require().NoError(rc.Close())
	s.Equal(payload, got)

	s.Require().NoError(sample.Release())
	s.Require().NoError(sample.Release())
	s.Empty(s.spooled())
}

func (s *SpoolerSuite) TestRejectsWithoutLeavingFiles() {
	cases := map[string][]byte{
		"not riff":    append([]byte("ID3\x03"), make([]byte, 60)...),
		"too small":   []byte("RIFF"),
		"stereo":      testutil.WAV(100, 2),
		"over limit":  testutil.MonoWAV(4096),
		"riff no wav": append([]byte("RIFF\x00\x00\x00\x00AVI "), make([]byte, 60)...),
	}
	for name, payload := range cases {
		s.Run(name, func() {
			sample, err := s.spooler.Spool(context.Background(), bytes.NewReader(payload), "x.wav")
			s.Nil(sample)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)
			s.Empty(s.spooled())
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func (s *SpoolerSuite) TestReadFailureCleansUp() {
	sample, err := s.spooler.Spool(context.Background(), failingReader{}, "x.wav")
	s.Nil(sample)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	s.Empty(s.spooled())
}

func (s *SpoolerSuite) TestCanceledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.spooler.Spool(ctx, bytes.NewReader(testutil.MonoWAV(10)), "x.wav")
	s.ErrorIs(err, context.Canceled)
	s.Empty(s.spooled())
}

func (s *SpoolerSuite) TestNilSampleRelease() {
	var sample *Sample
	s.NoError(sample.Release())
}
