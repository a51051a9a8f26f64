// Package merge runs the external merge tool (ffmpeg) that muxes separate
// video and audio streams, and locates or provisions its binary.
package merge

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Merger muxes streams by running ffmpeg with stream copy.
type Merger struct{}

// NewMerger creates a Merger.
func NewMerger() *Merger {
	return &Merger{}
}

// Merge writes video and audio into out without re-encoding.
func (m *Merger) Merge(ctx context.Context, tool, video, audio, out string) error {
	cmd := exec.CommandContext(ctx, tool, Args(video, audio, out)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(string(output))
		if len(msg) > 512 {
			msg = msg[len(msg)-512:]
		}
		return fmt.Errorf("%s: %w: %s", filepath.Base(tool), err, msg)
	}
	return nil
}

// Args returns the ffmpeg arguments for a stream-copy merge.
func Args(video, audio, out string) []string {
	args := []string{
		"-y", "-nostdin", "-loglevel", "error",
		"-i", video,
		"-i", audio,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c", "copy",
	}
	switch strings.ToLower(filepath.Ext(out)) {
	case ".mp4", ".m4v", ".mov":
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, out)
}
