package ratelimit

// Sweep runs one sweep pass synchronously, bypassing the background timer.
func (l *Limiter) Sweep() { l.sweep() }
