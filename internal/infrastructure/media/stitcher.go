package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"pdfrealm/internal/bootstrap/config"
	"pdfrealm/internal/bootstrap/logging"
	"pdfrealm/internal/domain/notes"
	"pdfrealm/internal/errs"
	"pdfrealm/internal/ports"
)

const (
	ChunksDirName   = notes.ChunksDir
	ManifestName    = "chunks.txt"
	CombinedName    = "combined.webm"
	WavName         = "audio.wav"
	defaultTailSize = 4000
)

// CommandRunner executes program with args inside dir and returns combined
// stderr output. Replaced in tests.
type CommandRunner func(ctx context.Context, dir string, program string, args ...string) (stderr string, err error)

// Stitcher concatenates recorded chunks with ffmpeg and downmixes them to
// 16 kHz mono WAV for transcription.
type Stitcher struct {
	ffmpeg   string
	tailSize int
	run      CommandRunner
}

var _ ports.Stitcher = (*Stitcher)(nil)

func NewStitcher(cfg config.MediaConfig) *Stitcher {
	program := strings.TrimSpace(cfg.FFmpegPath)
	if program == "" {
		program = "ffmpeg"
	}
	tail := cfg.StderrTail
	if tail <= 0 {
		tail = defaultTailSize
	}
	return &Stitcher{ffmpeg: program, tailSize: tail, run: execRunner}
}

func (s *Stitcher) Stitch(ctx context.Context, sessionDir string) (ports.StitchResult, error) {
	if ctx == nil {
		return ports.StitchResult{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.StitchResult{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "infrastructure.media"), slog.String("session_dir", sessionDir))

	chunksDir := filepath.Join(sessionDir, ChunksDirName)
	files, err := ListChunks(chunksDir)
	if err != nil {
		return ports.StitchResult{}, err
	}
	if len(files) == 0 {
		return ports.StitchResult{}, notes.ErrNothingToStitch
	}

	if err := os.WriteFile(filepath.Join(chunksDir, ManifestName), []byte(Manifest(files)), 0o644); err != nil {
		return ports.StitchResult{}, errs.Wrap(err, "write concat manifest")
	}

	combined := filepath.Join(sessionDir, CombinedName)
	if err := s.exec(ctx, chunksDir, "-y", "-f", "concat", "-safe", "0", "-i", ManifestName, "-c", "copy", combined); err != nil {
		return ports.StitchResult{}, err
	}

	wav := filepath.Join(sessionDir, WavName)
	if err := s.exec(ctx, sessionDir, "-y", "-i", combined, "-ar", "16000", "-ac", "1", wav); err != nil {
		return ports.StitchResult{}, err
	}

	logging.Info(logCtx, "chunks stitched", slog.Int("chunks", len(files)))
	return ports.StitchResult{CombinedPath: combined, WavPath: wav, ChunkCount: len(files)}, nil
}

func (s *Stitcher) exec(ctx context.Context, dir string, args ...string) error {
	stderr, err := s.run(ctx, dir, s.ffmpeg, args...)
	if err == nil {
		return nil
	}
	return fmt.Errorf("command failed: %s %s\n%s: %w", s.ffmpeg, strings.Join(args, " "), tail(stderr, s.tailSize), err)
}

// ListChunks returns the .webm and .ogg file names in dir in lexicographic
// order. A missing directory yields no chunks.
func ListChunks(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errs.Wrap(err, "read chunks directory")
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".webm") || strings.HasSuffix(name, ".ogg") {
			files = append(files, name)
		}
	}
	sort.Strings(files)
	return files, nil
}

// Manifest renders an ffmpeg concat list. Single quotes are escaped the way
// the concat demuxer expects.
func Manifest(files []string) string {
	var b strings.Builder
	for _, f := range files {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(f, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

func tail(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func execRunner(ctx context.Context, dir string, program string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Dir = dir

	var stderr bytes.Buffer
	cmd.Stdout = &stderr
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stderr.String(), err
}
