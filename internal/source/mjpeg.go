package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/sweeney/source-watcher/internal/logic"
)

// maxFrameBytes bounds a single JPEG part. Larger parts are rejected.
var maxFrameBytes int64 = 16 << 20

// MJPEGSource reads frames from a multipart/x-mixed-replace HTTP stream.
type MJPEGSource struct {
	body   io.ReadCloser
	reader *multipart.Reader
	seq    sequencer
}

// OpenMJPEG connects to the stream. The request is bound to ctx, and Next
// additionally closes the body when its own ctx ends, so a stalled camera
// never blocks shutdown.
func OpenMJPEG(ctx context.Context, opts Options) (*MJPEGSource, error) {
	client := resty.New()
	if opts.Username != "" {
		client.SetBasicAuth(opts.Username, opts.Password)
	}

	resp, err := client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", ErrUnavailable, Redact(opts.URL), err)
	}

	body := resp.RawBody()
	if resp.IsError() {
		body.Close()
		return nil, fmt.Errorf("%w: %s returned %s", ErrUnavailable, Redact(opts.URL), resp.Status())
	}

	boundary, err := multipartBoundary(resp.Header().Get("Content-Type"))
	if err != nil {
		body.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return newMJPEGSource(body, boundary, opts), nil
}

func newMJPEGSource(body io.ReadCloser, boundary string, opts Options) *MJPEGSource {
	return &MJPEGSource{
		body:   body,
		reader: multipart.NewReader(body, boundary),
		seq:    sequencer{now: opts.Now},
	}
}

// multipartBoundary extracts the boundary from a multipart Content-Type.
// Some cameras prefix the boundary parameter with "--"; it is stripped.
func multipartBoundary(contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("parse content type %q: %w", contentType, err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return "", fmt.Errorf("not a multipart stream: %s", mediaType)
	}
	boundary := strings.TrimPrefix(params["boundary"], "--")
	if boundary == "" {
		return "", fmt.Errorf("missing multipart boundary in %q", contentType)
	}
	return boundary, nil
}

// Next reads the next JPEG part. Cancelling ctx aborts a blocked read.
func (s *MJPEGSource) Next(ctx context.Context) (logic.Frame, error) {
	if err := ctx.Err(); err != nil {
		return logic.Frame{}, err
	}
	if s.body == nil {
		return logic.Frame{}, ErrEndOfStream
	}

	body := s.body
	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer stop()

	part, err := s.reader.NextPart()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return logic.Frame{}, ctxErr
		}
		if errors.Is(err, io.EOF) {
			return logic.Frame{}, ErrEndOfStream
		}
		return logic.Frame{}, fmt.Errorf("%w: next part: %v", ErrFrameRead, err)
	}
	defer part.Close()

	data, err := io.ReadAll(io.LimitReader(part, maxFrameBytes+1))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return logic.Frame{}, ctxErr
		}
		return logic.Frame{}, fmt.Errorf("%w: read part: %v", ErrFrameRead, err)
	}
	if int64(len(data)) > maxFrameBytes {
		return logic.Frame{}, fmt.Errorf("%w: part exceeds %d bytes", ErrFrameRead, maxFrameBytes)
	}
	if len(data) == 0 {
		return logic.Frame{}, fmt.Errorf("%w: empty part", ErrFrameRead)
	}

	return s.seq.frame(data), nil
}

// Close releases the HTTP stream.
func (s *MJPEGSource) Close() error {
	if s.body == nil {
		return nil
	}
	err := s.body.Close()
	s.body = nil
	return err
}
