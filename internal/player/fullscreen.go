package player

// FullscreenProvider is one way of entering fullscreen
type FullscreenProvider interface {
	Name() string
	Enter() error
	Exit() error
}

// FuncProvider adapts a pair of functions to FullscreenProvider
type FuncProvider struct {
	Label     string
	EnterFunc func() error
	ExitFunc  func() error
}

func (p FuncProvider) Name() string { return p.Label }

func (p FuncProvider) Enter() error {
	if p.EnterFunc == nil {
		return errNoMethod
	}
	return p.EnterFunc()
}

func (p FuncProvider) Exit() error {
	if p.ExitFunc == nil {
		return nil
	}
	return p.ExitFunc()
}

// fullscreenChain tries providers in order until one succeeds
type fullscreenChain struct {
	providers []FullscreenProvider
	active    FullscreenProvider
}

// newFullscreenChain orders the surface-level provider ahead of the container ones
func newFullscreenChain(surface FullscreenProvider, container []FullscreenProvider) *fullscreenChain {
	var ps []FullscreenProvider
	if surface != nil {
		ps = append(ps, surface)
	}
	for _, p := range container {
		if p != nil {
			ps = append(ps, p)
		}
	}
	return &fullscreenChain{providers: ps}
}

func (c *fullscreenChain) enter() error {
	if c.active != nil {
		return nil
	}
	fe := &FullscreenError{}
	for _, p := range c.providers {
		if err := p.Enter(); err != nil {
			fe.add(p.Name(), err)
			continue
		}
		c.active = p
		return nil
	}
	return fe
}

// exit leaves fullscreen through the provider that entered it
func (c *fullscreenChain) exit() error {
	if c.active == nil {
		return nil
	}
	p := c.active
	c.active = nil
	return p.Exit()
}

func (c *fullscreenChain) isActive() bool { return c.active != nil }
