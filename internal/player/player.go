// Package player runs playback through an external player process. One
// process at a time; Play replaces whatever is currently running.
package player

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"

	"podradio/internal/domain"
)

// DefaultBinaries is tried in order when no player binary is configured.
var DefaultBinaries = []string{"mpv", "ffplay"}

type Player struct {
	mu       sync.Mutex
	cmd      *exec.Cmd
	playing  bool
	paused   bool
	binary   string
	resolver *Resolver
	logger   *slog.Logger
}

func New(binary string, logger *slog.Logger) (*Player, error) {
	resolved, err := resolveBinary(binary)
	if err != nil {
		return nil, err
	}

	return &Player{
		binary:   resolved,
		resolver: NewResolver(),
		logger:   logger,
	}, nil
}

func resolveBinary(binary string) (string, error) {
	if binary != "" {
		return exec.LookPath(binary)
	}
	for _, candidate := range DefaultBinaries {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no player binary found (tried %v)", DefaultBinaries)
}

func playerArgs(binary, mediaURL string) []string {
	// ffplay needs flags to behave as a headless audio player; mpv variants
	// take the same switches.
	if base := binary; len(base) >= 6 && base[len(base)-6:] == "ffplay" {
		return []string{"-nodisp", "-autoexit", "-loglevel", "quiet", mediaURL}
	}
	return []string{"--no-video", "--really-quiet", mediaURL}
}

// Play resolves url and starts a fresh player process for it, stopping any
// current one first.
func (p *Player) Play(ctx context.Context, mediaURL string) error {
	resolved, err := p.resolver.Resolve(ctx, mediaURL)
	if err != nil {
		return domain.NewCommandError(domain.CodePlayerFailure, "Playback failed").WithDetails(err.Error())
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	cmd := exec.Command(p.binary, playerArgs(p.binary, resolved)...)
	if err := cmd.Start(); err != nil {
		return domain.NewCommandError(domain.CodePlayerFailure, "Playback failed").WithDetails(err.Error())
	}

	p.cmd = cmd
	p.playing = true
	p.paused = false
	if p.logger != nil {
		p.logger.Info("player_start", slog.String("url", resolved), slog.Int("pid", cmd.Process.Pid))
	}

	go p.reap(cmd)
	return nil
}

// reap waits for the process and clears the playing flag once it exits on
// its own. A process replaced by a newer Play call is ignored.
func (p *Player) reap(cmd *exec.Cmd) {
	err := cmd.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == cmd {
		p.playing = false
		p.paused = false
		p.cmd = nil
		if err != nil && p.logger != nil {
			p.logger.Debug("player_exit", slog.String("error", err.Error()))
		}
	}
}

// Pause suspends the player process. Calling it again resumes playback.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil || p.cmd.Process == nil {
		return domain.NewCommandError(domain.CodePlayerFailure, "Player control failed").WithDetails("nothing is playing")
	}

	signal := syscall.SIGSTOP
	if p.paused {
		signal = syscall.SIGCONT
	}
	if err := p.cmd.Process.Signal(signal); err != nil {
		return domain.NewCommandError(domain.CodePlayerFailure, "Player control failed").WithDetails(err.Error())
	}
	p.paused = !p.paused
	return nil
}

// Stop kills the player process if one is running. Stopping an idle player
// is a no-op.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	return nil
}

func (p *Player) stopLocked() {
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	p.cmd = nil
	p.playing = false
	p.paused = false
}

func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing && !p.paused
}
