package player

// Key names a keyboard shortcut. Values match the key strings produced by
// terminal input libraries
type Key string

const (
	KeySpace  Key = " "
	KeyLeft   Key = "left"
	KeyRight  Key = "right"
	KeyUp     Key = "up"
	KeyDown   Key = "down"
	KeyMute   Key = "m"
	KeyFull   Key = "f"
	KeyEscape Key = "esc"
)

// HandleKey runs the shortcut bound to k. Shortcuts are ignored while focus
// is in a text input and in the native presentation. Returns whether the
// key was consumed
func (c *Controller) HandleKey(k Key, inTextInput bool) bool {
	if inTextInput || c.Presentation() == PresentationNative {
		return false
	}

	var err error
	switch k {
	case KeySpace:
		err = c.TogglePlay()
	case KeyLeft:
		err = c.Skip(-SkipStep)
	case KeyRight:
		err = c.Skip(SkipStep)
	case KeyUp:
		err = c.nudgeVolume(VolumeStep)
	case KeyDown:
		err = c.nudgeVolume(-VolumeStep)
	case KeyMute:
		err = c.ToggleMute()
	case KeyFull:
		// A failure is recorded as a notice on the session
		_ = c.ToggleFullscreen()
	case KeyEscape:
		if !c.Session().Fullscreen {
			return false
		}
		c.ExitFullscreen()
	default:
		return false
	}
	if err != nil {
		c.logger.Debug("shortcut ignored", "key", string(k), "error", err)
	}
	return true
}
