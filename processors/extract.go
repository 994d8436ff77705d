package processors

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNoAudioStream marks a container without any audio track. Callers treat
// it like any other extraction failure, but the log entry is clearer.
var ErrNoAudioStream = errors.New("no audio stream in container")

// AudioPathFor maps a video name to its extracted audio artifact. The audio
// file is keyed by the base name, without the container extension.
func AudioPathFor(audioDir, videoName string) string {
	base := strings.TrimSuffix(filepath.Base(videoName), filepath.Ext(videoName))
	return filepath.Join(audioDir, base+".mp3")
}

// ExtractAudio pulls the audio track out of a video into a mono 16 kHz
// 48 kbps mp3, the smallest payload the transcription service accepts
// without quality loss. Returns the output path.
func ExtractAudio(videoPath, audioDir string) (string, error) {
	hasAudio, err := hasAudioStream(videoPath)
	if err != nil {
		return "", fmt.Errorf("probe streams: %v", err)
	}
	if !hasAudio {
		return "", ErrNoAudioStream
	}
	if err := os.MkdirAll(audioDir, 0755); err != nil {
		return "", err
	}
	outPath := AudioPathFor(audioDir, videoPath)
	args := []string{
		"-y",
		"-i", videoPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-codec:a", "libmp3lame",
		"-b:a", "48k",
		outPath,
	}
	cmd := exec.Command("ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := stderr.String()
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return "", fmt.Errorf("ffmpeg failed: %s", msg)
	}
	return outPath, nil
}

func hasAudioStream(path string) (bool, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=codec_type",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return false, err
	}
	return strings.TrimSpace(out.String()) != "", nil
}

// ProbeDuration returns the media duration in seconds, 0 when ffprobe
// cannot tell.
func ProbeDuration(path string) (float64, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(out.String()), 64)
}
