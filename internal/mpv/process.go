package mpv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates no mpv binary could be located
var ErrNotFound = errors.New("mpv not found")

// candidatePaths lists where mpv is looked for on each platform, in order
var candidatePaths = map[string][]string{
	"darwin": {
		"mpv",
		"/opt/homebrew/bin/mpv",
		"/usr/local/bin/mpv",
		"/Applications/mpv.app/Contents/MacOS/mpv",
	},
	"linux": {"mpv", "/usr/bin/mpv", "/usr/local/bin/mpv", "/snap/bin/mpv"},
	"freebsd": {"mpv", "/usr/local/bin/mpv"},
}

// baseArgs keep mpv alive between files and quiet on the terminal we draw on
var baseArgs = []string{
	"--idle=yes",
	"--force-window=yes",
	"--no-terminal",
	"--keep-open=no",
	"--title=reel",
}

// LaunchOptions configures Launch
type LaunchOptions struct {
	Command     string   // explicit binary; empty searches the candidate chain
	Args        []string // extra arguments
	SocketDir   string   // directory for the IPC socket, default os.TempDir()
	StartupWait time.Duration
	Logger      *slog.Logger
}

// Process is a running mpv instance
type Process struct {
	Path   string
	Socket string

	cmd    *exec.Cmd
	exited chan struct{}
	logger *slog.Logger
}

// Launch starts mpv with an IPC socket and waits until the socket exists
func Launch(ctx context.Context, opts LaunchOptions) (*Process, error) {
	if runtime.GOOS == "windows" {
		return nil, fmt.Errorf("%w: IPC sockets are not supported on windows", ErrNotFound)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SocketDir == "" {
		opts.SocketDir = os.TempDir()
	}
	if opts.StartupWait <= 0 {
		opts.StartupWait = 5 * time.Second
	}

	path, err := resolve(opts.Command, opts.Logger)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.SocketDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}
	socket := filepath.Join(opts.SocketDir, "reel-mpv-"+uuid.NewString()[:8]+".sock")

	args := append([]string{}, baseArgs...)
	args = append(args, "--input-ipc-server="+socket)
	args = append(args, opts.Args...)

	cmd := exec.Command(path, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start mpv: %w", err)
	}
	opts.Logger.Info("launched mpv", "path", path, "socket", socket, "pid", cmd.Process.Pid)

	p := &Process{Path: path, Socket: socket, cmd: cmd, exited: make(chan struct{}), logger: opts.Logger}
	go func() {
		_ = cmd.Wait()
		close(p.exited)
	}()

	if err := p.waitForSocket(ctx, opts.StartupWait); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

// Exited is closed when the process exits
func (p *Process) Exited() <-chan struct{} { return p.exited }

// Close terminates mpv and removes its socket
func (p *Process) Close() error {
	defer os.Remove(p.Socket)

	select {
	case <-p.exited:
		return nil
	default:
	}

	if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
		p.logger.Debug("interrupt failed, killing mpv", "error", err)
		_ = p.cmd.Process.Kill()
	}
	select {
	case <-p.exited:
	case <-time.After(3 * time.Second):
		_ = p.cmd.Process.Kill()
		<-p.exited
	}
	return nil
}

func (p *Process) waitForSocket(ctx context.Context, limit time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if _, err := os.Stat(p.Socket); err == nil {
			return nil
		}
		select {
		case <-p.exited:
			return errors.New("mpv exited before opening its IPC socket")
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for mpv IPC socket: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// resolve finds the mpv binary: the configured command, else the first
// candidate present on this platform
func resolve(command string, logger *slog.Logger) (string, error) {
	if command != "" {
		path, err := exec.LookPath(command)
		if err != nil {
			return "", fmt.Errorf("%w: configured command %q: %v", ErrNotFound, command, err)
		}
		return path, nil
	}

	candidates, ok := candidatePaths[runtime.GOOS]
	if !ok {
		candidates = candidatePaths["linux"]
	}
	for _, c := range candidates {
		path, err := exec.LookPath(c)
		if err == nil {
			return path, nil
		}
		logger.Debug("mpv candidate not available", "path", c, "error", err)
	}
	return "", ErrNotFound
}
