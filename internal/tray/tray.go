// Package tray provides a system tray menu for mudra.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Tray is the system tray menu: an enable toggle, the link state, the last
// dispatched command and Quit.
type Tray struct {
	onToggle func(enabled bool)
	onQuit   func()
	enabled  bool
	link     string
	last     string
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuLink   *systray.MenuItem
	menuLast   *systray.MenuItem
}

// New creates a new Tray instance with enabled state set to true by default.
func New() *Tray {
	return &Tray{
		enabled: true,
		link:    linkTitle("", false),
		last:    lastTitle(""),
	}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray. It must be called from the main goroutine
// and blocks until Stop or Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Stop closes the tray from any goroutine.
func (t *Tray) Stop() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra hand gesture commands")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle gesture recognition")
	systray.AddSeparator()

	t.menuLink = systray.AddMenuItem(t.link, "Serial link")
	t.menuLink.Disable()
	t.menuLast = systray.AddMenuItem(t.last, "Last dispatched command")
	t.menuLast.Disable()
	systray.AddSeparator()
	t.mu.Unlock()

	menuQuit := systray.AddMenuItem("Quit", "Quit Mudra")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled

	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}

	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetLinkStatus updates the link line of the menu.
func (t *Tray) SetLinkStatus(port string, available bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.link = linkTitle(port, available)
	if t.menuLink != nil {
		t.menuLink.SetTitle(t.link)
	}
}

// SetLastCommand updates the last command line of the menu.
func (t *Tray) SetLastCommand(summary string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = lastTitle(summary)
	if t.menuLast != nil {
		t.menuLast.SetTitle(t.last)
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func linkTitle(port string, available bool) string {
	if port == "" {
		return "Link: unknown"
	}
	if available {
		return "Link: " + port
	}
	return "Link: " + port + " (offline)"
}

func lastTitle(summary string) string {
	if summary == "" {
		return "Last: none"
	}
	return "Last: " + summary
}
