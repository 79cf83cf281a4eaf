// Package video samples frames from an uploaded clip and feeds them through
// the inspection pipeline at a fixed cadence.
package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Extractor pulls JPEG frames out of a video with ffmpeg
type Extractor struct {
	ffmpegPath  string
	ffprobePath string
	size        int
}

// NewExtractor locates ffmpeg. size bounds the longest frame edge.
func NewExtractor(size int) (*Extractor, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	log.Printf("🎞️ Found ffmpeg at: %s", ffmpegPath)

	// ffprobe is optional; duration falls back to parsing ffmpeg output
	ffprobePath, _ := exec.LookPath("ffprobe")

	if size <= 0 {
		size = 1024
	}
	return &Extractor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, size: size}, nil
}

// Duration returns the clip length in seconds
func (e *Extractor) Duration(ctx context.Context, videoPath string) (float64, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return 0, fmt.Errorf("video file not accessible: %w", err)
	}

	if e.ffprobePath != "" {
		cmd := exec.CommandContext(ctx, e.ffprobePath,
			"-v", "error",
			"-show_entries", "format=duration",
			"-of", "default=noprint_wrappers=1:nokey=1",
			videoPath)

		var stdout bytes.Buffer
		cmd.Stdout = &stdout

		if err := cmd.Run(); err == nil {
			if duration, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64); err == nil && duration > 0 {
				return duration, nil
			}
		}
	}

	// Fallback to parsing ffmpeg output
	cmd := exec.CommandContext(ctx, e.ffmpegPath, "-i", videoPath, "-f", "null", "-")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	_ = cmd.Run()

	return parseFFmpegDuration(stderr.String())
}

func parseFFmpegDuration(output string) (float64, error) {
	const durationPrefix = "Duration: "
	startIndex := strings.Index(output, durationPrefix)
	if startIndex == -1 {
		return 0, fmt.Errorf("duration not found in ffmpeg output")
	}

	startIndex += len(durationPrefix)
	endIndex := strings.Index(output[startIndex:], ",")
	if endIndex == -1 {
		return 0, fmt.Errorf("invalid duration format")
	}

	durationStr := output[startIndex : startIndex+endIndex]
	parts := strings.Split(durationStr, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid duration format: %s", durationStr)
	}

	var total float64
	for i, unit := range []float64{3600, 60, 1} {
		v, err := strconv.ParseFloat(parts[i], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration format: %s", durationStr)
		}
		total += v * unit
	}
	if total <= 0 {
		return 0, fmt.Errorf("invalid video duration: %f", total)
	}
	return total, nil
}

// FrameAt grabs one frame at timestamp seconds as a JPEG
func (e *Extractor) FrameAt(ctx context.Context, videoPath string, timestamp float64) ([]byte, error) {
	args := []string{
		"-ss", fmt.Sprintf("%.2f", timestamp),
		"-i", videoPath,
		"-vframes", "1",
		"-vf", fmt.Sprintf("scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease", e.size, e.size),
		"-q:v", "2",
		"-f", "mjpeg",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Printf("FFmpeg stderr output: %s", stderr.String())
		return nil, fmt.Errorf("failed to extract frame at %.2f: %w", timestamp, err)
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("no frame at %.2f", timestamp)
	}

	// Re-encode so every frame reaching the classifier is a baseline JPEG
	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
