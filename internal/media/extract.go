package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ExtractAudio extracts the audio track from a media file as mono 16kHz WAV,
// the input format the transcription service expects. Clips carry a single
// audio stream, so default stream selection applies.
func ExtractAudio(ctx context.Context, ffmpegBinary, source, dest string) error {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
	cmd := exec.CommandContext(ctx, ffmpegBinary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg extract: %w: %s", err, strings.TrimSpace(string(output)))
	}
	if info, err := os.Stat(dest); err != nil || info.Size() == 0 {
		return fmt.Errorf("ffmpeg extract: produced no output at %s", dest)
	}
	return nil
}
