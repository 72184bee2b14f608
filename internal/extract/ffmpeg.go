package extract

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// FFmpeg runs the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	ffmpeg  string
	ffprobe string
}

// NewFFmpeg creates a runner. Empty paths default to the binaries on PATH.
func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

// Available reports ErrCapabilityUnavailable if either binary is missing.
func (f *FFmpeg) Available() error {
	for _, bin := range []string{f.ffmpeg, f.ffprobe} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%s not found: %w", bin, ErrCapabilityUnavailable)
		}
	}
	return nil
}

// ProbeInfo is the subset of ffprobe output the extractors use.
type ProbeInfo struct {
	Duration   float64
	Width      int
	Height     int
	VideoCodec string
	HasAudio   bool
	HasVideo   bool
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
}

// Probe runs ffprobe on path.
func (f *FFmpeg) Probe(ctx context.Context, path string) (*ProbeInfo, error) {
	cmd := exec.CommandContext(ctx, f.ffprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe error: %w - %s", err, strings.TrimSpace(stderr.String()))
	}
	return parseProbe(stdout.Bytes())
}

func parseProbe(data []byte) (*ProbeInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &ProbeInfo{}
	info.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)

	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if info.HasVideo {
				continue
			}
			info.HasVideo = true
			info.VideoCodec = s.CodecName
			info.Width, info.Height = s.Width, s.Height
			if info.Duration == 0 {
				info.Duration, _ = strconv.ParseFloat(s.Duration, 64)
			}
		case "audio":
			info.HasAudio = true
			if info.Duration == 0 {
				info.Duration, _ = strconv.ParseFloat(s.Duration, 64)
			}
		}
	}

	if !info.HasAudio && !info.HasVideo {
		return nil, errors.New("no audio or video streams found")
	}
	return info, nil
}

// DecodePCM decodes the first maxSeconds of path to mono float samples in
// [-1, 1] at the given sample rate. maxSeconds <= 0 decodes everything.
func (f *FFmpeg) DecodePCM(ctx context.Context, path string, sampleRate, maxSeconds int) ([]float64, error) {
	args := []string{"-v", "error", "-i", path}
	if maxSeconds > 0 {
		args = append(args, "-t", strconv.Itoa(maxSeconds))
	}
	args = append(args, "-vn", "-ac", "1", "-ar", strconv.Itoa(sampleRate), "-f", "s16le", "-acodec", "pcm_s16le", "-")

	cmd := exec.CommandContext(ctx, f.ffmpeg, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg decode failed: %w - %s", err, strings.TrimSpace(stderr.String()))
	}
	return pcmToFloat(stdout.Bytes()), nil
}

func pcmToFloat(raw []byte) []float64 {
	samples := make([]float64, len(raw)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(raw[2*i:]))
		samples[i] = float64(v) / 32768
	}
	return samples
}

// Frames samples one frame every interval seconds, scaled to the given
// width, up to max frames.
func (f *FFmpeg) Frames(ctx context.Context, path string, interval float64, max, width int) ([]image.Image, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("invalid frame interval %v", interval)
	}

	filter := fmt.Sprintf("fps=1/%s,scale=%d:-2", strconv.FormatFloat(interval, 'f', -1, 64), width)
	cmd := exec.CommandContext(ctx, f.ffmpeg,
		"-v", "error",
		"-i", path,
		"-vf", filter,
		"-frames:v", strconv.Itoa(max),
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg frame extraction failed: %w - %s", err, strings.TrimSpace(stderr.String()))
	}

	frames, err := decodePNGStream(&stdout)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, errors.New("ffmpeg produced no frames")
	}
	return frames, nil
}

// decodePNGStream decodes back-to-back PNG images as written by image2pipe.
func decodePNGStream(r io.Reader) ([]image.Image, error) {
	br := bufio.NewReader(r)
	var frames []image.Image
	for {
		if _, err := br.Peek(1); err == io.EOF {
			return frames, nil
		}
		img, err := png.Decode(br)
		if err != nil {
			return nil, fmt.Errorf("decode frame %d: %w", len(frames), err)
		}
		frames = append(frames, img)
	}
}
