package spec

import "log"

// Loader owns the currently active spec for a test session. A failed
// reload is reported but leaves the prior spec (and its checksum) active,
// so a bad file on disk never strands the stand mid-shift.
type Loader struct {
	current *TestSpec
	path    string
}

// Current returns the active spec, or nil when none has loaded.
func (l *Loader) Current() *TestSpec { return l.current }

// Path returns the file the active spec was loaded from.
func (l *Loader) Path() string { return l.path }

// Checksum returns the active spec's checksum, or "" when none is loaded.
func (l *Loader) Checksum() string {
	if l.current == nil {
		return ""
	}
	return l.current.Checksum
}

// Reload loads path and makes it the active spec. On failure the previous
// spec stays active and the error is returned.
func (l *Loader) Reload(path string) error {
	ts, err := Load(path)
	if err != nil {
		log.Printf("[Spec] load failed, keeping previous spec: %v", err)
		return err
	}
	l.current = ts
	l.path = path
	return nil
}
