package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/grafov/m3u8"

	"github.com/TechnicallyShaun/boquer/internal/transcribe/logging"
)

// DefaultRequestTimeout bounds each playlist or segment request.
const DefaultRequestTimeout = 30 * time.Second

// DefaultUserAgent is sent with every request.
const DefaultUserAgent = "boquer/1.0"

// DefaultMaxSegmentBytes caps a segment download. It sits above the
// transcription upload ceiling so oversize segments reach the size check.
const DefaultMaxSegmentBytes int64 = 32 << 20

// maxPlaylistBytes caps the playlist body read per poll.
const maxPlaylistBytes = 4 << 20

// ErrBodyTooLarge is returned when a response exceeds its size cap.
var ErrBodyTooLarge = errors.New("response body too large")

// HLS polls a remote media playlist and downloads newly listed segments.
type HLS struct {
	playlist        *url.URL
	httpClient      *http.Client
	timeout         time.Duration
	maxSegmentBytes int64
	userAgent       string
	logger          *logging.Logger
}

// HLSOption configures the HLS source.
type HLSOption func(*HLS)

// WithHTTPClient sets a custom HTTP client. A nil client is ignored.
func WithHTTPClient(client *http.Client) HLSOption {
	return func(h *HLS) {
		if client != nil {
			h.httpClient = client
		}
	}
}

// WithRequestTimeout sets the per-request timeout. It applies to a copy of
// the HTTP client, never to one passed in with WithHTTPClient.
func WithRequestTimeout(d time.Duration) HLSOption {
	return func(h *HLS) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithMaxSegmentBytes caps the size of a downloaded segment.
func WithMaxSegmentBytes(n int64) HLSOption {
	return func(h *HLS) {
		if n > 0 {
			h.maxSegmentBytes = n
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HLSOption {
	return func(h *HLS) {
		if ua != "" {
			h.userAgent = ua
		}
	}
}

// WithHLSLogger sets the logger.
func WithHLSLogger(l *logging.Logger) HLSOption {
	return func(h *HLS) {
		h.logger = l
	}
}

// NewHLS creates a source for the playlist at playlistURL.
func NewHLS(playlistURL string, opts ...HLSOption) (*HLS, error) {
	u, err := url.Parse(playlistURL)
	if err != nil {
		return nil, fmt.Errorf("parse playlist URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("playlist URL must be http or https: %q", playlistURL)
	}

	h := &HLS{
		playlist:        u,
		httpClient:      &http.Client{Timeout: DefaultRequestTimeout},
		maxSegmentBytes: DefaultMaxSegmentBytes,
		userAgent:       DefaultUserAgent,
		logger:          logging.Nop(),
	}

	for _, opt := range opts {
		opt(h)
	}

	if h.timeout > 0 {
		c := *h.httpClient
		c.Timeout = h.timeout
		h.httpClient = &c
	}

	return h, nil
}

// URL returns the playlist URL.
func (h *HLS) URL() string {
	return h.playlist.String()
}

// Poll fetches the playlist and downloads every segment admit accepts, in
// playlist order.
func (h *HLS) Poll(ctx context.Context, admit AdmitFunc) ([]Segment, error) {
	body, err := h.fetch(ctx, h.playlist.String(), maxPlaylistBytes)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		h.logger.Error("failed to download playlist", err, logging.String("url", h.playlist.String()))
		return nil, nil
	}

	uris, err := h.segmentURIs(body)
	if err != nil {
		h.logger.Error("failed to parse playlist", err, logging.String("url", h.playlist.String()))
		return nil, nil
	}

	var segments []Segment
	for _, ref := range uris {
		if ctx.Err() != nil {
			break
		}

		segmentURL, err := h.resolve(ref)
		if err != nil {
			h.logger.Warn("skipping unresolvable segment", logging.String("uri", ref), logging.String("error", err.Error()))
			continue
		}

		if !admit(segmentURL) {
			continue
		}
		h.logger.Debug("new segment", logging.String("url", segmentURL))

		data, err := h.fetch(ctx, segmentURL, h.maxSegmentBytes)
		if err != nil {
			h.logger.Error("failed to download segment", err, logging.String("url", segmentURL))
			continue
		}
		if len(data) == 0 {
			h.logger.Warn("segment is empty", logging.String("url", segmentURL))
			continue
		}

		segments = append(segments, Segment{
			ID:           segmentURL,
			Data:         data,
			DiscoveredAt: time.Now(),
		})
	}

	return segments, nil
}

// Close is a no-op; the HLS source holds no resources between polls.
func (h *HLS) Close() error {
	return nil
}

func (h *HLS) segmentURIs(body []byte) ([]string, error) {
	playlist, listType, err := m3u8.DecodeFrom(bytes.NewReader(body), false)
	if err != nil {
		return nil, err
	}

	switch listType {
	case m3u8.MEDIA:
		media := playlist.(*m3u8.MediaPlaylist)
		var uris []string
		for _, seg := range media.Segments {
			if seg == nil {
				continue
			}
			uris = append(uris, seg.URI)
		}
		return uris, nil
	case m3u8.MASTER:
		master := playlist.(*m3u8.MasterPlaylist)
		variants := make([]string, 0, len(master.Variants))
		for _, v := range master.Variants {
			if v != nil {
				variants = append(variants, v.URI)
			}
		}
		h.logger.Warn("master playlist has no segments; use a variant playlist URL",
			logging.String("variants", strings.Join(variants, ", ")))
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown playlist type")
	}
}

// resolve applies RFC 3986 reference resolution against the playlist URL.
func (h *HLS) resolve(ref string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	return h.playlist.ResolveReference(u).String(), nil
}

func (h *HLS) fetch(ctx context.Context, rawURL string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if resp.ContentLength > limit {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrBodyTooLarge, resp.ContentLength, limit)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: limit %d", ErrBodyTooLarge, limit)
	}
	return data, nil
}
