package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/mock/gomock"

	"voxid/internal/voice/models"
	"voxid/internal/voice/upstream"
	id "voxid/pkg/domain"
	dErrors "voxid/pkg/domain-errors"
	"voxid/pkg/platform/audit"
	"voxid/pkg/testutil"
)

func (s *ServiceSuite) TestEnroll() {
	ctx := context.Background()

	s.Run("stores profile and returns phrase", func() {
		s.transcriber.EXPECT().Transcribe(gomock.Any(), gomock.Any()).Return("my voice is my passport", nil)
		s.embedder.EXPECT().Embed(gomock.Any(), gomock.Any(), upstream.PurposeEnroll).Return(models.Embedding{1, 0, 0}, nil)

		result, err := s.service.Enroll(ctx, s.alice.ID, sample())
		s.Require().NoError(err)
		s.Equal("my voice is my passport", result.Phrase)
		s.Equal(3, result.Dimension)

		stored, err := s.profiles.Get(ctx, s.alice.ID)
		s.Require().NoError(err)
		s.Equal(models.Embedding{1, 0, 0}, stored.Embedding)
		s.Equal("my voice is my passport", stored.Phrase)

		identity, err := s.identities.FindByID(ctx, s.alice.ID)
		s.Require().NoError(err)
		s.True(identity.VoiceEnrolled)
		s.True(s.hasAudit(audit.EventVoiceEnrolled))
	})

	s.Run("re-enrollment overwrites the profile", func() {
		s.transcriber.EXPECT().Transcribe(gomock.Any(), gomock.Any()).Return("open sesame", nil)
		s.embedder.EXPECT().Embed(gomock.Any(), gomock.Any(), upstream.PurposeEnroll).Return(models.Embedding{0, 1, 0}, nil)

		_, err := s.service.Enroll(ctx, s.alice.ID, sample())
		s.Require().NoError(err)

		count, err := s.profiles.Count(ctx)
		s.Require().NoError(err)
		s.Equal(1, count)

		stored, err := s.profiles.Get(ctx, s.alice.ID)
		s.Require().NoError(err)
		s.Equal(models.Embedding{0, 1, 0}, stored.Embedding)
		s.Equal("open sesame", stored.Phrase)
	})
}

func (s *ServiceSuite) TestEnrollRejectsUnknownIdentity() {
	_, err := s.service.Enroll(context.Background(), id.NewIdentityID(), sample())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestEnrollRequiresInputs() {
	_, err := s.service.Enroll(context.Background(), id.IdentityID{}, sample())
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.Enroll(context.Background(), s.alice.ID, nil)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

// seedAndSnapshot stores a profile for Alice and returns a check that the
// store still holds exactly that profile.
func (s *ServiceSuite) seedAndSnapshot() func() {
	ctx := context.Background()
	before := testutil.NewProfileBuilder().
		ForIdentity(s.alice.ID).
		WithEmbedding(1, 0, 0).
		WithPhrase("original phrase").
		Build()
	s.Require().NoError(s.profiles.Upsert(ctx, before))

	return func() {
		after, err := s.profiles.Get(ctx, s.alice.ID)
		s.Require().NoError(err)
		s.Equal(before.Embedding, after.Embedding)
		s.Equal(before.Phrase, after.Phrase)

		count, err := s.profiles.Count(ctx)
		s.Require().NoError(err)
		s.Equal(1, count)
	}
}

func (s *ServiceSuite) TestEnrollTranscriptionFailureLeavesStoreUntouched() {
	unchanged := s.seedAndSnapshot()
	s.transcriber.EXPECT().Transcribe(gomock.Any(), gomock.Any()).Return("", unavailableErr(upstream.ServiceTranscription))
	s.embedder.EXPECT().Embed(gomock.Any(), gomock.Any(), upstream.PurposeEnroll).Return(models.Embedding{0, 0, 1}, nil).AnyTimes()

	_, err := s.service.Enroll(context.Background(), s.alice.ID, sample())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUpstreamUnavailable))
	s.NotContains(err.Error(), "timed out")
	unchanged()
}

func (s *ServiceSuite) TestEnrollEmbeddingFailureLeavesStoreUntouched() {
	unchanged := s.seedAndSnapshot()
	s.transcriber.EXPECT().Transcribe(gomock.Any(), gomock.Any()).Return("new phrase", nil).AnyTimes()
	s.embedder.EXPECT().Embed(gomock.Any(), gomock.Any(), upstream.PurposeEnroll).Return(nil, rejectedErr(upstream.ServiceEmbedding))

	_, err := s.service.Enroll(context.Background(), s.alice.ID, sample())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUpstreamRejected))
	unchanged()
}

func (s *ServiceSuite) TestEnrollDimensionMismatch() {
	ctx := context.Background()
	s.Require().NoError(s.profiles.Upsert(ctx, testutil.NewProfileBuilder().ForIdentity(s.bob.ID).WithEmbedding(1, 0, 0).Build()))

	s.transcriber.EXPECT().Transcribe(gomock.Any(), gomock.Any()).Return("hello", nil)
	s.embedder.EXPECT().Embed(gomock.Any(), gomock.Any(), upstream.PurposeEnroll).Return(models.Embedding{1, 0, 0, 0}, nil)

	_, err := s.service.Enroll(ctx, s.alice.ID, sample())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeIntegrityViolation))
	s.ErrorIs(err, models.ErrDimensionMismatch)
	s.True(s.hasAudit(audit.EventEmbeddingDimensionBad))

	_, err = s.profiles.Get(ctx, s.alice.ID)
	s.Require().Error(err)
}

func (s *ServiceSuite) TestConcurrentReEnrollmentNeverInterleaves() {
	ctx := context.Background()
	indexOf := func(a upstream.Audio) float64 {
		n := strings.TrimSuffix(strings.TrimPrefix(a.Filename(), "voice-"), ".wav")
		i, err := strconv.Atoi(n)
		s.Require().NoError(err)
		return float64(i)
	}
	s.transcriber.EXPECT().Transcribe(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, a upstream.Audio) (string, error) {
			return fmt.Sprintf("phrase %d", int(indexOf(a))), nil
		}).Times(20)
	s.embedder.EXPECT().Embed(gomock.Any(), gomock.Any(), upstream.PurposeEnroll).DoAndReturn(
		func(_ context.Context, a upstream.Audio, _ upstream.Purpose) (models.Embedding, error) {
			return models.Embedding{1, indexOf(a) + 1, 0}, nil
		}).Times(20)

	result := testutil.RunConcurrent(20, func(idx int) error {
		_, err := s.service.Enroll(ctx, s.alice.ID, memAudio{name: fmt.Sprintf("voice-%d.wav", idx), data: testutil.MonoWAV(64)})
		return err
	})
	s.Equal(int32(20), result.Successes)

	count, err := s.profiles.Count(ctx)
	s.Require().NoError(err)
	s.Equal(1, count)

	stored, err := s.profiles.Get(ctx, s.alice.ID)
	s.Require().NoError(err)
	winner := int(stored.Embedding[1]) - 1
	s.Equal(fmt.Sprintf("phrase %d", winner), stored.Phrase)
}
