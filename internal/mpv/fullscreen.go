package mpv

import (
	"context"
	"time"
)

// PropertyProvider enters fullscreen by setting a boolean mpv property
type PropertyProvider struct {
	Label    string
	Property string

	conn    *Conn
	timeout time.Duration
}

func (p *PropertyProvider) Name() string { return p.Label }

func (p *PropertyProvider) Enter() error { return p.set(true) }

func (p *PropertyProvider) Exit() error { return p.set(false) }

func (p *PropertyProvider) set(v bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.conn.SetProperty(ctx, p.Property, v)
}
