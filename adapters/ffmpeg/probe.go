package ffmpeg

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ProbeResult is the subset of ffprobe output the video editor needs.
type ProbeResult struct {
	Width, Height int
	// FrameRate is the rational rate string as reported, e.g. "30000/1001".
	FrameRate string
	FPS       float64
	Duration  float64 // seconds
	HasAudio  bool
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

type ffprobeStream struct {
	CodecType    string         `json:"codec_type"`
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	AvgFrameRate string         `json:"avg_frame_rate"`
	RFrameRate   string         `json:"r_frame_rate"`
	Disposition  map[string]int `json:"disposition"`
}

// ParseJSON converts raw ffprobe JSON output into a ProbeResult.
// Exported for testing without a real ffprobe binary.
func ParseJSON(data []byte) (*ProbeResult, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}

	pr := &ProbeResult{}
	pr.Duration, _ = strconv.ParseFloat(raw.Format.Duration, 64)
	foundVideo := false
	for _, s := range raw.Streams {
		switch s.CodecType {
		case "video":
			if foundVideo || s.Disposition["attached_pic"] == 1 {
				continue
			}
			foundVideo = true
			pr.Width, pr.Height = s.Width, s.Height
			pr.FrameRate, pr.FPS = pickRate(s.AvgFrameRate, s.RFrameRate)
		case "audio":
			pr.HasAudio = true
		}
	}
	if !foundVideo {
		return nil, fmt.Errorf("parse ffprobe JSON: no video stream")
	}
	return pr, nil
}

// pickRate returns the first usable rational rate.
func pickRate(rates ...string) (string, float64) {
	for _, r := range rates {
		if fps := parseRate(r); fps > 0 {
			return r, fps
		}
	}
	return "", 0
}

func parseRate(r string) float64 {
	num, den, ok := strings.Cut(r, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
