package extraction

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/waqedi/platform/pkg/faults"
)

// transcodeToWAV converts an audio or video blob to 16 kHz mono WAV with
// loudness normalization. All scratch files live in a per-call directory
// that is removed on every exit path.
func transcodeToWAV(ctx context.Context, ffmpegPath, tempDir string, blob []byte) ([]byte, error) {
	dir, err := os.MkdirTemp(tempDir, "stt-")
	if err != nil {
		return nil, faults.Wrap(faults.KindInternal, "TEMP_DIR_FAILED", "create scratch dir", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	inPath := filepath.Join(dir, "input")
	outPath := filepath.Join(dir, "output.wav")
	if err := os.WriteFile(inPath, blob, 0o600); err != nil {
		return nil, faults.Wrap(faults.KindInternal, "TEMP_WRITE_FAILED", "write scratch input", err)
	}

	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-i", inPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-af", "loudnorm",
		"-f", "wav",
		outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, faults.Transientf("TRANSCODE_CANCELLED", ctx.Err(), "ffmpeg interrupted")
		}
		// ffmpeg rejecting the input is a property of the blob; retrying
		// cannot change the outcome.
		return nil, faults.Terminalf("TRANSCODE_FAILED", err, "ffmpeg: %s", truncate(stderr.String(), 512))
	}

	wav, err := os.ReadFile(outPath)
	if err != nil {
		return nil, faults.Wrap(faults.KindInternal, "TEMP_READ_FAILED", "read transcoded wav", err)
	}
	return wav, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
