package domain

import "time"

// ReminderWindow is a lead time before expiry at which the user is reminded.
type ReminderWindow string

const (
	Reminder3Days    ReminderWindow = "3d"
	Reminder1Day     ReminderWindow = "1d"
	Reminder1Hour    ReminderWindow = "1h"
	Reminder15Minute ReminderWindow = "15m"
)

// ReminderWindows lists the windows from the longest lead time to the shortest.
func ReminderWindows() []ReminderWindow {
	return []ReminderWindow{Reminder3Days, Reminder1Day, Reminder1Hour, Reminder15Minute}
}

// Duration returns the lead time of the window.
func (w ReminderWindow) Duration() time.Duration {
	switch w {
	case Reminder3Days:
		return 72 * time.Hour
	case Reminder1Day:
		return 24 * time.Hour
	case Reminder1Hour:
		return time.Hour
	case Reminder15Minute:
		return 15 * time.Minute
	default:
		return 0
	}
}

// IsValid checks if the window is known.
func (w ReminderWindow) IsValid() bool {
	return w.Duration() > 0
}

// AppliesTo reports whether the window is meaningful for a tariff:
// the lead time must be shorter than the tariff's grant.
func (w ReminderWindow) AppliesTo(t Tariff) bool {
	return w.Duration() < time.Duration(t.DurationHours)*time.Hour
}

// DueReminder returns the shortest applicable window the subscription has entered
// without a reminder having been recorded. Longer windows that were skipped are
// not reported once a shorter one is due.
func DueReminder(sub *Subscription, t Tariff, now time.Time) (ReminderWindow, bool) {
	if sub.Status() != StatusActive || sub.EndDate() == nil || !sub.EndDate().After(now) {
		return "", false
	}
	left := sub.EndDate().Sub(now)
	windows := ReminderWindows()
	for i := len(windows) - 1; i >= 0; i-- {
		w := windows[i]
		if !w.AppliesTo(t) || left > w.Duration() {
			continue
		}
		if _, sent := sub.ReminderSentAt(w); sent {
			return "", false
		}
		return w, true
	}
	return "", false
}
