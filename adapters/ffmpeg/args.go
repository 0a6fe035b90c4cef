package ffmpeg

import (
	"fmt"
	"math"
	"strconv"
)

// Speed multipliers outside this range are clamped.  Below MinSpeed audio
// sync and frame pacing degrade badly.
const (
	MinSpeed = 0.5
	MaxSpeed = 100.0
)

// defaultFrameRate is used when the probe reports no usable rate.
const defaultFrameRate = "30"

// evenPad rounds odd dimensions up so yuv420p encoding succeeds.
const evenPad = "pad=ceil(iw/2)*2:ceil(ih/2)*2"

func baseArgs() []string {
	return []string{"-hide_banner", "-loglevel", "error", "-nostdin", "-y"}
}

func encodeArgs() []string {
	return []string{
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
	}
}

func audioArgs(hasAudio bool) []string {
	if !hasAudio {
		return []string{"-an"}
	}
	return []string{"-c:a", "aac", "-b:a", "128k"}
}

// ClampSpeed limits a positive multiplier to [MinSpeed, MaxSpeed].
func ClampSpeed(m float64) float64 {
	return math.Min(math.Max(m, MinSpeed), MaxSpeed)
}

// AtempoChain splits m into atempo factors, each within the filter's
// accepted [0.5, 2] range, whose product is m.
func AtempoChain(m float64) []float64 {
	var chain []float64
	for m > 2 {
		chain = append(chain, 2)
		m /= 2
	}
	for m < 0.5 {
		chain = append(chain, 0.5)
		m /= 0.5
	}
	return append(chain, m)
}

func formatFactor(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func atempoFilter(m float64) string {
	s := ""
	for i, f := range AtempoChain(m) {
		if i > 0 {
			s += ","
		}
		s += "atempo=" + formatFactor(f)
	}
	return s
}

// ResizeArgs scales the video to exactly w×h (rounded up to even).
func ResizeArgs(in, out string, w, h int, hasAudio bool) []string {
	args := append(baseArgs(), "-i", in,
		"-vf", fmt.Sprintf("scale=%d:%d,setsar=1,%s", w, h, evenPad))
	args = append(args, encodeArgs()...)
	args = append(args, audioArgs(hasAudio)...)
	return append(args, out)
}

// SpeedArgs changes playback speed by m, which must already be clamped.
// Video timestamps are rescaled with setpts and audio with atempo, keeping
// the pitch.  frameRate keeps the output at the source rate.
func SpeedArgs(in, out string, m float64, frameRate string, hasAudio bool) []string {
	args := append(baseArgs(), "-i", in,
		"-vf", fmt.Sprintf("setpts=PTS/%s,%s", formatFactor(m), evenPad))
	if hasAudio {
		args = append(args, "-af", atempoFilter(m))
	}
	if frameRate != "" {
		args = append(args, "-r", frameRate)
	}
	args = append(args, encodeArgs()...)
	args = append(args, audioArgs(hasAudio)...)
	return append(args, out)
}

// ReverseArgs plays the video, and its audio when present, backwards.
func ReverseArgs(in, out string, hasAudio bool) []string {
	args := append(baseArgs(), "-i", in, "-vf", "reverse,"+evenPad)
	if hasAudio {
		args = append(args, "-af", "areverse")
	}
	args = append(args, encodeArgs()...)
	args = append(args, audioArgs(hasAudio)...)
	return append(args, out)
}

// ExtractArgs writes every video frame of in as a numbered PNG matching
// pattern (e.g. frames/%06d.png).
func ExtractArgs(in, pattern string) []string {
	return append(baseArgs(), "-i", in, "-an", "-start_number", "0", pattern)
}

// AssembleArgs encodes the numbered PNGs matching pattern at frameRate and
// re-attaches the audio of audioSrc when it has any.
func AssembleArgs(pattern, audioSrc, out, frameRate string, hasAudio bool) []string {
	if frameRate == "" {
		frameRate = defaultFrameRate
	}
	args := append(baseArgs(),
		"-framerate", frameRate,
		"-start_number", "0",
		"-i", pattern)
	if hasAudio {
		args = append(args, "-i", audioSrc, "-map", "0:v:0", "-map", "1:a:0?", "-shortest")
	}
	args = append(args, "-vf", evenPad)
	args = append(args, encodeArgs()...)
	args = append(args, audioArgs(hasAudio)...)
	return append(args, out)
}
