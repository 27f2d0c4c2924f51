// Package audio spools uploaded voice samples to disk and guarantees their
// removal once a request is done with them.
package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	dErrors "voxid/pkg/domain-errors"
	limits "voxid/pkg/platform/validation"
)

const headerSize = 44

var (
	riffTag = []byte("RIFF")
	waveTag = []byte("WAVE")
	fmtTag  = []byte("fmt ")
)

// Spooler writes samples into a directory with a size cap.
type Spooler struct {
	dir      string
	maxBytes int64
}

// NewSpooler returns a Spooler writing into dir (os.TempDir when empty).
func NewSpooler(dir string, maxBytes int64) *Spooler {
	if maxBytes <= 0 {
		maxBytes = limits.DefaultMaxAudioBytes
	}
	return &Spooler{dir: dir, maxBytes: maxBytes}
}

func (s *Spooler) MaxBytes() int64 { return s.maxBytes }

// Sample is a validated WAV payload held in a temp file. Release must be
// called on every exit path; it is safe to call more than once.
type Sample struct {
	path     string
	filename string
	size     int64

	once       sync.Once
	releaseErr error
}

// Spool copies r into a temp file and validates it as a single-channel WAV.
// On any error nothing is left on disk.
func (s *Spooler) Spool(ctx context.Context, r io.Reader, filename string) (*Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(s.dir, "voxid-*.wav")
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to buffer voice sample")
	}
	sample := &Sample{path: f.Name(), filename: filename}

	n, copyErr := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = sample.Release()
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read voice sample")
	}
	sample.size = n

	if err := limits.CheckByteRange("voice", n, limits.MinAudioBytes, s.maxBytes); err != nil {
		_ = sample.Release()
		return nil, err
	}
	if err := sample.checkHeader(); err != nil {
		_ = sample.Release()
		return nil, err
	}
	return sample, nil
}

func (s *Sample) checkHeader() error {
	f, err := os.Open(s.path)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reopen voice sample")
	}
	defer f.Close()

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(f, header); err != nil {
		return dErrors.New(dErrors.CodeValidation, "voice must be a WAV file")
	}
	return ValidateHeader(header)
}

// ValidateHeader checks a canonical 44-byte RIFF/WAVE header. When the fmt
// chunk leads, the channel count must be 1.
func ValidateHeader(header []byte) error {
	if len(header) < 12 || !bytes.Equal(header[0:4], riffTag) || !bytes.Equal(header[8:12], waveTag) {
		return dErrors.New(dErrors.CodeValidation, "voice must be a WAV file")
	}
	if len(header) >= 24 && bytes.Equal(header[12:16], fmtTag) {
		channels := binary.LittleEndian.Uint16(header[22:24])
		if channels != 1 {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("voice must be single-channel, got %d channels", channels))
		}
	}
	return nil
}

// Open returns a fresh reader over the sample. Each upstream call opens its own.
func (s *Sample) Open() (io.ReadCloser, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open voice sample: %w", err)
	}
	return f, nil
}

func (s *Sample) Size() int64      { return s.size }
func (s *Sample) Filename() string { return s.filename }
func (s *Sample) Path() string     { return s.path }

// Release removes the temp file.
func (s *Sample) Release() error {
	if s == nil {
		return nil
	}
	s.once.Do(func() {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.releaseErr = fmt.Errorf("remove voice sample: %w", err)
		}
	})
	return s.releaseErr
}
