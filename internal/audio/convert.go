package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Loader turns an uploaded audio file of arbitrary container format into
// 16 kHz mono float32 PCM, shelling out to ffmpeg for anything that is not
// already a decodable WAV.
type Loader struct {
	FFmpegBin string
}

// Load reads the audio file at path and returns model-ready samples.
func (l Loader) Load(ctx context.Context, path string) ([]float32, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		if samples, sr, err := DecodeWAVFile(path); err == nil {
			return ResampleLinear(samples, sr, WhisperSampleRate), nil
		}
		// fall through: some .wav uploads are mislabeled containers
	}
	wavPath, err := l.toWAV(ctx, path)
	if err != nil {
		return nil, err
	}
	defer os.Remove(wavPath)

	samples, sr, err := DecodeWAVFile(wavPath)
	if err != nil {
		return nil, fmt.Errorf("decode converted wav: %w", err)
	}
	return ResampleLinear(samples, sr, WhisperSampleRate), nil
}

// toWAV transcodes path to a 16 kHz mono WAV next to it and returns the new path.
func (l Loader) toWAV(ctx context.Context, path string) (string, error) {
	bin := l.FFmpegBin
	if bin == "" {
		bin = "ffmpeg"
	}
	out := strings.TrimSuffix(path, filepath.Ext(path)) + "_16k.wav"

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin,
		"-y", "-i", path,
		"-ac", "1", "-ar", fmt.Sprint(WhisperSampleRate),
		"-f", "wav",
		out,
	)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(out)
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			if i := strings.LastIndexByte(msg, '\n'); i >= 0 {
				msg = strings.TrimSpace(msg[i+1:])
			}
			return "", fmt.Errorf("ffmpeg: %s", msg)
		}
		return "", fmt.Errorf("ffmpeg: %w", err)
	}
	return out, nil
}
