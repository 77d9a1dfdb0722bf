package encoder

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"sync"

	"castforge/internal/domain"
	"github.com/rs/zerolog/log"
)

var commandContext = exec.CommandContext

// FFmpegRunner launches the ffmpeg binary with the composed argument
// set and reports exit asynchronously.
type FFmpegRunner struct {
	binary string
}

// Option configures the runner.
type Option func(*FFmpegRunner)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(r *FFmpegRunner) {
		if binary != "" {
			r.binary = binary
		}
	}
}

func NewFFmpegRunner(opts ...Option) *FFmpegRunner {
	r := &FFmpegRunner{binary: "ffmpeg"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *FFmpegRunner) Start(ctx context.Context, spec LaunchSpec) (Process, error) {
	args := composeArgs(spec)
	cmd := commandContext(ctx, r.binary, args...) //nolint:gosec
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", r.binary, err)
	}
	log.Info().Str("module", "encoder.ffmpeg").Str("input", spec.InputSource).Int("pid", cmd.Process.Pid).Msg("encoder launched")

	p := &ffmpegProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

type ffmpegProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
	kill sync.Once
}

func (p *ffmpegProcess) Done() <-chan struct{} { return p.done }

func (p *ffmpegProcess) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

func (p *ffmpegProcess) Kill() error {
	var err error
	p.kill.Do(func() {
		err = p.cmd.Process.Kill()
	})
	return err
}

// UpdateFilter is a no-op: ffmpeg offers no filter-graph
// reconfiguration over its plain CLI surface. The supervisor keeps the
// authoritative settings; a restart picks them up.
func (p *ffmpegProcess) UpdateFilter(domain.AudioSettings) error { return nil }

// composeArgs builds the ffmpeg command line for the launch. With
// dual-input mixing enabled the two microphone inputs run through
// independent volume filters into amix.
func composeArgs(spec LaunchSpec) []string {
	args := []string{"-re", "-i", spec.InputSource}

	if spec.Audio.MixMultipleInputs {
		args = append(args,
			"-i", spec.Audio.PrimaryInput,
			"-i", spec.Audio.SecondaryInput,
			"-filter_complex", mixFilter(spec.Audio),
			"-map", "0:v", "-map", "[aout]",
		)
	}

	args = append(args,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-b:v", spec.Video.Bitrate,
		"-maxrate", spec.Video.MaxBitrate,
		"-bufsize", spec.Video.BufferSize,
		"-r", strconv.Itoa(spec.Video.FPS),
		"-s", spec.Video.Resolution,
		"-c:a", "aac",
		"-b:a", spec.Audio.Bitrate,
		"-f", "flv",
		spec.Endpoint,
	)
	return args
}

func mixFilter(a domain.AudioSettings) string {
	return fmt.Sprintf(
		"[1:a]volume=%s[a1];[2:a]volume=%s[a2];[a1][a2]amix=inputs=2:duration=longest[aout]",
		gainExpr(a.PrimaryGain, a.PrimaryMuted),
		gainExpr(a.SecondaryGain, a.SecondaryMuted),
	)
}

func gainExpr(gain float64, muted bool) string {
	if muted {
		return "0.0"
	}
	return strconv.FormatFloat(gain, 'f', -1, 64)
}
