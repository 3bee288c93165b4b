// Package youtube resolves video metadata through the public innertube
// player endpoint. It implements vod.MetadataProvider.
package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vod-scheduler/internal/vod"
)

const (
	defaultEndpoint = "https://www.youtube.com/youtubei/v1/player"
	clientName      = "WEB"
	clientVersion   = "2.20240722.01.00"
)

// Client is an HTTP client for the innertube player API.
type Client struct {
	endpoint string
	client   *http.Client
}

// NewClient returns a Client against the public endpoint with a 15s timeout.
func NewClient() *Client {
	return &Client{
		endpoint: defaultEndpoint,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// WithEndpoint overrides the player endpoint (tests, internal mirrors).
func (c *Client) WithEndpoint(endpoint string) *Client {
	if strings.TrimSpace(endpoint) != "" {
		c.endpoint = strings.TrimSpace(endpoint)
	}
	return c
}

type playerRequest struct {
	Context struct {
		Client struct {
			ClientName    string `json:"clientName"`
			ClientVersion string `json:"clientVersion"`
		} `json:"client"`
	} `json:"context"`
	VideoID string `json:"videoId"`
}

type playerFormat struct {
	Itag     int    `json:"itag"`
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type playerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	VideoDetails struct {
		VideoID       string `json:"videoId"`
		Title         string `json:"title"`
		LengthSeconds string `json:"lengthSeconds"`
	} `json:"videoDetails"`
	StreamingData struct {
		Formats []playerFormat `json:"formats"`
	} `json:"streamingData"`
}

// Video implements vod.MetadataProvider: total duration plus the
// progressive (muxed) formats keyed by vertical resolution.
func (c *Client) Video(ctx context.Context, id string) (vod.VideoMetadata, error) {
	var req playerRequest
	req.Context.Client.ClientName = clientName
	req.Context.Client.ClientVersion = clientVersion
	req.VideoID = id

	body, err := json.Marshal(req)
	if err != nil {
		return vod.VideoMetadata{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return vod.VideoMetadata{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return vod.VideoMetadata{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return vod.VideoMetadata{}, fmt.Errorf("player endpoint returned %s", resp.Status)
	}

	var out playerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return vod.VideoMetadata{}, fmt.Errorf("decode player response: %w", err)
	}
	if out.PlayabilityStatus.Status != "OK" {
		return vod.VideoMetadata{}, fmt.Errorf("video %s not playable: %s %s",
			id, out.PlayabilityStatus.Status, out.PlayabilityStatus.Reason)
	}

	seconds, err := strconv.ParseInt(out.VideoDetails.LengthSeconds, 10, 64)
	if err != nil {
		return vod.VideoMetadata{}, fmt.Errorf("video %s: bad lengthSeconds %q", id, out.VideoDetails.LengthSeconds)
	}

	meta := vod.VideoMetadata{Duration: time.Duration(seconds) * time.Second}
	for _, f := range out.StreamingData.Formats {
		if f.URL == "" || f.Height <= 0 {
			continue
		}
		meta.Sources = append(meta.Sources, vod.SourceInfo{
			Resolution: vod.Resolution(f.Height),
			MimeType:   baseMimeType(f.MimeType),
			URL:        f.URL,
		})
	}
	return meta, nil
}

// baseMimeType strips codec parameters: `video/mp4; codecs="..."` → `video/mp4`.
func baseMimeType(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		return strings.TrimSpace(mime[:i])
	}
	return mime
}
