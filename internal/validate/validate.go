// Package validate implements the optional Audio Validator spec.md §4.4
// step 5 names: a post-download integrity check that shells out to
// ffprobe rather than trusting that a completed byte transfer produced
// a playable file.
package validate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"

	"streamgrab/internal/logger"
)

// ErrValidationFailed is the spec §7 ValidationError kind. With
// RetryOnValidationFailure set, the error goes back to the queue's
// ordinary retry loop (up to RetryAttemptsCount attempts, no inline
// re-download); without it the track is marked failed in the ledger
// first, so the queue's next attempt resolves to a skip.
var ErrValidationFailed = errors.New("validate: downloaded file failed validation")

// Result is the outcome of validating one downloaded file.
type Result struct {
	OK     bool
	Reason string
}

// Err returns ErrValidationFailed (wrapping Reason) when the file
// failed validation, or nil when it passed.
func (r Result) Err() error {
	if r.OK {
		return nil
	}

	return fmt.Errorf("%w: %s", ErrValidationFailed, r.Reason)
}

// Validator runs ffprobe against a file and reports whether it decodes
// at least one audio stream with a non-zero duration.
type Validator struct {
	ffprobePath string
}

// New builds a Validator. ffprobePath is typically just "ffprobe",
// resolved via $PATH, matching how the teacher's external-tool
// invocations (e.g. an eventual transcode step) are expected to be
// configured: a bare executable name the operator must have installed.
func New(ffprobePath string) *Validator {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	return &Validator{ffprobePath: ffprobePath}
}

type probeFormat struct {
	Duration string `json:"duration"`
}

type probeStream struct {
	CodecType string `json:"codec_type"`
}

type probeOutput struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

// Validate runs ffprobe against path and classifies the result.
func (v *Validator) Validate(ctx context.Context, path string) Result {
	//nolint:gosec // ffprobePath is operator-configured, not user input; path is the file we just wrote.
	cmd := exec.CommandContext(ctx, v.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		logger.WarnKV(ctx, "validate: ffprobe failed", "path", path, "stderr", stderr.String(), "error", err)

		return Result{OK: false, Reason: fmt.Sprintf("ffprobe exited with error: %v", err)}
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return Result{OK: false, Reason: "ffprobe produced unparseable output"}
	}

	hasAudioStream := false

	for _, s := range out.Streams {
		if s.CodecType == "audio" {
			hasAudioStream = true

			break
		}
	}

	if !hasAudioStream {
		return Result{OK: false, Reason: "no audio stream detected"}
	}

	if out.Format.Duration == "0" || out.Format.Duration == "" {
		return Result{OK: false, Reason: "zero-length duration"}
	}

	return Result{OK: true}
}
