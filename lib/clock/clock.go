package clock

import "time"

const layout = "2006-01-02T15:04:05Z"

func Now() string {
	return time.Now().UTC().Format(layout)
}

// Deadline returns the moment the referral redemption window closes for
// an account registered at the given time.
func Deadline(registeredAt time.Time, window time.Duration) time.Time {
	return registeredAt.Add(window)
}
