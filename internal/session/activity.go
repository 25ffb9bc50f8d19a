package session

import (
	"fmt"
	"time"
)

// SignalKind is the type of a raw interaction signal.
type SignalKind int

const (
	Pointer SignalKind = iota
	Submit
	Key
	Touch
	// Visibility reports the panel being hidden or shown again; Surface is ignored.
	Visibility
)

func (k SignalKind) String() string {
	switch k {
	case Pointer:
		return "pointer"
	case Submit:
		return "submit"
	case Key:
		return "key"
	case Touch:
		return "touch"
	case Visibility:
		return "visibility"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Interaction surfaces.
const (
	SurfaceStatus    = "status"
	SurfaceBrowser   = "browser"
	SurfaceTransfers = "transfers"
	SurfaceDialog    = "dialog"
	SurfaceSettings  = "settings"
	SurfaceLog       = "log"
	SurfaceNotice    = "notice"
)

const (
	// KeyQuietPeriod is how long typing must pause before it counts as activity.
	KeyQuietPeriod = 2 * time.Second
	// VisibilityThreshold is the minimum hidden time after which coming back counts as activity.
	VisibilityThreshold = 10 * time.Minute
)

// deniedSurfaces can never be allow-listed.
var deniedSurfaces = map[string]bool{
	SurfaceSettings: true,
	SurfaceLog:      true,
	SurfaceNotice:   true,
}

// DefaultSurfaces returns the interaction surfaces whose signals count as activity.
func DefaultSurfaces() []string {
	return []string{SurfaceStatus, SurfaceBrowser, SurfaceTransfers, SurfaceDialog}
}

// Signal is a raw user interaction reported by a front end.
type Signal struct {
	Kind    SignalKind
	Surface string
	At      time.Time
	Hidden  bool
}

// tracker classifies signals and owns the last-activity timestamp. It runs on the manager loop.
type tracker struct {
	allowed   map[string]bool
	clock     Clock
	post      func(func()) bool
	connected func() bool
	record    func()

	lastActivity time.Time
	keyTimer     Timer
	keyGen       uint64
	hiddenAt     time.Time
}

func newTracker(surfaces []string, clock Clock, post func(func()) bool) *tracker {
	if surfaces == nil {
		surfaces = DefaultSurfaces()
	}

	allowed := make(map[string]bool, len(surfaces))
	for _, s := range surfaces {
		if !deniedSurfaces[s] {
			allowed[s] = true
		}
	}

	return &tracker{allowed: allowed, clock: clock, post: post}
}

func (t *tracker) allows(surface string) bool {
	return t.allowed[surface]
}

func (t *tracker) handle(sig Signal) {
	switch sig.Kind {
	case Visibility:
		t.visibility(sig)
	case Key:
		if t.allows(sig.Surface) {
			t.debounceKey()
		}
	default:
		if t.allows(sig.Surface) {
			t.record()
		}
	}
}

func (t *tracker) visibility(sig Signal) {
	if sig.Hidden {
		if t.connected() {
			t.hiddenAt = sig.At
		}
		return
	}

	if t.hiddenAt.IsZero() {
		return
	}
	away := sig.At.Sub(t.hiddenAt)
	t.hiddenAt = time.Time{}

	if away >= VisibilityThreshold && t.connected() {
		t.record()
	}
}

func (t *tracker) debounceKey() {
	if t.keyTimer != nil {
		t.keyTimer.Stop()
	}
	t.keyGen++
	gen := t.keyGen

	t.keyTimer = t.clock.AfterFunc(KeyQuietPeriod, func() {
		t.post(func() {
			if gen != t.keyGen {
				return
			}
			t.keyTimer = nil
			t.record()
		})
	})
}

// touch stamps the activity record.
func (t *tracker) touch(now time.Time) {
	t.lastActivity = now
}

func (t *tracker) reset() {
	if t.keyTimer != nil {
		t.keyTimer.Stop()
		t.keyTimer = nil
	}
	t.keyGen++
	t.hiddenAt = time.Time{}
}
