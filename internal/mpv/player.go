package mpv

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mmcdole/reel/internal/player"
)

// Player owns one mpv process and the surface connected to it. The process
// is started on first use and restarted if it has exited
type Player struct {
	launch  LaunchOptions
	surface SurfaceOptions
	logger  *slog.Logger

	mu   sync.Mutex
	proc *Process
	surf *Surface
}

// NewPlayer creates a player that launches mpv with opts on demand
func NewPlayer(launch LaunchOptions, surface SurfaceOptions) *Player {
	if launch.Logger == nil {
		launch.Logger = slog.Default()
	}
	if surface.Logger == nil {
		surface.Logger = launch.Logger
	}
	return &Player{launch: launch, surface: surface, logger: launch.Logger}
}

// Open returns a connected surface and its fullscreen providers, mpv's own
// fullscreen first and window maximize as the fallback
func (p *Player) Open(ctx context.Context) (player.Surface, []player.FullscreenProvider, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.surf != nil && p.alive() {
		return p.surf, p.providers(), nil
	}
	p.closeLocked()

	proc, err := Launch(ctx, p.launch)
	if err != nil {
		return nil, nil, err
	}
	surf, err := DialSurface(ctx, proc.Socket, p.surface)
	if err != nil {
		_ = proc.Close()
		return nil, nil, fmt.Errorf("failed to connect to mpv: %w", err)
	}
	p.proc = proc
	p.surf = surf
	return surf, p.providers(), nil
}

// Close stops mpv
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}

func (p *Player) providers() []player.FullscreenProvider {
	return []player.FullscreenProvider{p.surf.Fullscreen(), p.surf.Maximize()}
}

func (p *Player) alive() bool {
	select {
	case <-p.proc.Exited():
		return false
	case <-p.surf.Conn().Done():
		return false
	default:
		return true
	}
}

func (p *Player) closeLocked() {
	if p.surf != nil {
		if err := p.surf.Close(); err != nil {
			p.logger.Debug("failed to close mpv connection", "error", err)
		}
		p.surf = nil
	}
	if p.proc != nil {
		_ = p.proc.Close()
		p.proc = nil
	}
}
