package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DomainErrorsSuite covers the coded error primitives every layer relies on to
// keep voice-auth outcomes distinguishable at the transport boundary.
type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestErrorString() {
	s.Run("message wins over code", func() {
		err := &Error{Code: CodeNoMatch, Message: "no matching voice found"}
		s.Equal("no matching voice found", err.Error())
	})

	s.Run("falls back to code", func() {
		err := &Error{Code: CodeDisambiguationFailed}
		s.Equal("disambiguation_failed", err.Error())
	})
}

func (s *DomainErrorsSuite) TestIsMatchesByCode() {
	s.Run("same code different message", func() {
		a := New(CodeUpstreamUnavailable, "embedding service timed out")
		b := New(CodeUpstreamUnavailable, "transcription service unreachable")
		s.True(errors.Is(a, b))
	})

	s.Run("different codes", func() {
		a := New(CodeUpstreamUnavailable, "x")
		b := New(CodeUpstreamRejected, "x")
		s.False(errors.Is(a, b))
	})

	s.Run("plain errors never match", func() {
		s.False((&Error{Code: CodeNotFound}).Is(errors.New("not_found")))
	})

	s.Run("found through fmt wrapping", func() {
		inner := New(CodeIntegrityViolation, "dimension drift")
		wrapped := fmt.Errorf("match: %w", inner)
		s.True(errors.Is(wrapped, &Error{Code: CodeIntegrityViolation}))
	})
}

func (s *DomainErrorsSuite) TestWrap() {
	s.Run("keeps the original domain code", func() {
		original := New(CodeUpstreamRejected, "embedding service returned 500")
		wrapped := Wrap(original, CodeInternal, "enrollment failed")

		var domainErr *Error
		s.Require().True(errors.As(wrapped, &domainErr))
		s.Equal(CodeUpstreamRejected, domainErr.Code)
		s.Equal("enrollment failed", domainErr.Message)
	})

	s.Run("applies the given code to foreign errors", func() {
		root := errors.New("connection reset")
		wrapped := Wrap(root, CodeInternal, "failed to save voice profile")

		var domainErr *Error
		s.Require().True(errors.As(wrapped, &domainErr))
		s.Equal(CodeInternal, domainErr.Code)
		s.True(errors.Is(wrapped, root))
	})
}

func (s *DomainErrorsSuite) TestHasCode() {
	s.True(HasCode(New(CodeNoMatch, "no match"), CodeNoMatch))
	s.False(HasCode(New(CodeNoMatch, "no match"), CodeDisambiguationFailed))
	s.False(HasCode(errors.New("plain"), CodeNoMatch))
	s.False(HasCode(nil, CodeNoMatch))
	s.True(HasCode(Wrap(New(CodeNotFound, "identity not found"), CodeInternal, "lookup"), CodeNotFound))
}
