package reservations

// statusSources maps each target status to the set of statuses a guarded
// update may transition from. This is the whole state machine:
// pending -> authorized -> scheduled -> completed, with cancelled and
// failed as alternate terminals.
var statusSources = map[string][]string{
	StatusAuthorized: {StatusPending},
	StatusScheduled:  {StatusAuthorized},
	StatusCompleted:  {StatusScheduled},
	StatusCancelled:  {StatusPending, StatusAuthorized, StatusScheduled},
	StatusFailed:     {StatusPending, StatusAuthorized},
}

// paymentStatusSources is the payment sub-status DAG. Transitions are
// monotone: an earlier stage never overwrites a later one, which is what
// makes out-of-order webhook delivery safe.
var paymentStatusSources = map[string][]string{
	PaymentAuthorized:        {PaymentPending},
	PaymentCaptured:          {PaymentPending, PaymentAuthorized},
	PaymentPartiallyRefunded: {PaymentCaptured, PaymentPartiallyRefunded},
	PaymentRefunded:          {PaymentCaptured, PaymentPartiallyRefunded},
	PaymentFailed:            {PaymentPending, PaymentAuthorized},
}

// StatusSources returns the allowed source statuses for a lifecycle
// transition, or nil if the target is unknown or initial.
func StatusSources(to string) []string {
	return statusSources[to]
}

// PaymentStatusSources returns the allowed source payment statuses.
func PaymentStatusSources(to string) []string {
	return paymentStatusSources[to]
}

// CanTransition reports whether the lifecycle state machine allows
// from -> to.
func CanTransition(from, to string) bool {
	for _, s := range statusSources[to] {
		if s == from {
			return true
		}
	}
	return false
}
