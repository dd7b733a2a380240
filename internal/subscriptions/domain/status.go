package domain

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusPending       Status = "pending"
	StatusActive        Status = "active"
	StatusExtendPending Status = "extend_pending"
	StatusExpired       Status = "expired"
	StatusCancelled     Status = "cancelled"
)

// IsValid checks if the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusExtendPending, StatusExpired, StatusCancelled:
		return true
	default:
		return false
	}
}

// GrantsAccess reports whether the status can grant access, date permitting.
func (s Status) GrantsAccess() bool {
	return s == StatusActive || s == StatusExtendPending
}

// IsOpen reports whether the status occupies its scope (pending or active).
func (s Status) IsOpen() bool {
	return s == StatusPending || s == StatusActive
}

// AccessStatuses lists the statuses that can grant access.
func AccessStatuses() []Status {
	return []Status{StatusActive, StatusExtendPending}
}
