package ingest

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SnehaChouksey/Acadlyst/errors"
	"github.com/SnehaChouksey/Acadlyst/internal/httpclient"
)

// ErrNoCaptions is returned when a video has no retrievable captions.
// Surfaced to the client as a request-level error before any credit is
// spent.
var ErrNoCaptions = errors.New("video has no captions")

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?(?:.*&)?v=)([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`(?:youtu\.be/)([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`(?:youtube\.com/(?:embed|shorts|v)/)([A-Za-z0-9_-]{11})`),
}

// ExtractVideoID pulls the 11-character video ID out of the common YouTube
// URL shapes (watch, share, embed, shorts).
func ExtractVideoID(url string) (string, error) {
	for _, pattern := range videoIDPatterns {
		if m := pattern.FindStringSubmatch(url); m != nil {
			return m[1], nil
		}
	}
	return "", errors.Wrapf(errors.ErrInvalidRequest, "could not extract video ID from %q", url)
}

// TranscriptFetcher retrieves the caption text of a video.
// Returns ErrNoCaptions when the video has none.
type TranscriptFetcher interface {
	Fetch(ctx context.Context, videoID string) (string, error)
}

// TimedTextFetcher fetches captions from YouTube's timedtext endpoint.
type TimedTextFetcher struct {
	client *httpclient.SaferClient
	logger *zap.SugaredLogger
}

// NewTimedTextFetcher creates a transcript fetcher
func NewTimedTextFetcher(client *httpclient.SaferClient, logger *zap.SugaredLogger) *TimedTextFetcher {
	if client == nil {
		client = httpclient.New(30 * time.Second)
	}
	return &TimedTextFetcher{
		client: client,
		logger: logger.Named("youtube"),
	}
}

type timedTextBody struct {
	Texts []struct {
		Content string `xml:",chardata"`
	} `xml:"text"`
}

// Fetch downloads and flattens the English caption track.
func (f *TimedTextFetcher) Fetch(ctx context.Context, videoID string) (string, error) {
	url := fmt.Sprintf("https://www.youtube.com/api/timedtext?v=%s&lang=en", videoID)
	return f.fetchFrom(ctx, url, videoID)
}

func (f *TimedTextFetcher) fetchFrom(ctx context.Context, url, videoID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to build timedtext request")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "failed to fetch captions for video %s", videoID)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", errors.Wrapf(ErrNoCaptions, "video %s", videoID)
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf("timedtext returned status %d for video %s", resp.StatusCode, videoID)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", errors.Wrap(err, "failed to read caption body")
	}

	// An empty body means the track exists but holds no captions
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", errors.Wrapf(ErrNoCaptions, "video %s", videoID)
	}

	var parsed timedTextBody
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return "", errors.Wrapf(err, "failed to parse captions for video %s", videoID)
	}
	if len(parsed.Texts) == 0 {
		return "", errors.Wrapf(ErrNoCaptions, "video %s", videoID)
	}

	var sb strings.Builder
	for _, segment := range parsed.Texts {
		text := strings.TrimSpace(html.UnescapeString(segment.Content))
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(text)
	}

	transcript := sb.String()
	if transcript == "" {
		return "", errors.Wrapf(ErrNoCaptions, "video %s", videoID)
	}

	f.logger.Debugw("Fetched transcript", "video_id", videoID, "chars", len(transcript))
	return transcript, nil
}
