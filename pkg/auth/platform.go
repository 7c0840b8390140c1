package auth

// PlatformContext carries the host handle native UI is attached to: an Android activity or
// application on mobile, a window on desktop. The handle is opaque to this module.
type PlatformContext struct {
	Handle any
}

// NewPlatformContext wraps a host handle.
func NewPlatformContext(handle any) PlatformContext {
	return PlatformContext{Handle: handle}
}

// IsZero reports whether no handle was injected.
func (p PlatformContext) IsZero() bool {
	return p.Handle == nil
}
