package enums

import "fmt"

// HailStatus tracks the lifecycle of a hail.
type HailStatus string

const (
	HailStatusEmitted                   HailStatus = "emitted"
	HailStatusReceived                  HailStatus = "received"
	HailStatusSentToOperator            HailStatus = "sent_to_operator"
	HailStatusReceivedByOperator        HailStatus = "received_by_operator"
	HailStatusReceivedByTaxi            HailStatus = "received_by_taxi"
	HailStatusAcceptedByTaxi            HailStatus = "accepted_by_taxi"
	HailStatusAcceptedByCustomer        HailStatus = "accepted_by_customer"
	HailStatusDeclinedByTaxi            HailStatus = "declined_by_taxi"
	HailStatusDeclinedByCustomer        HailStatus = "declined_by_customer"
	HailStatusIncidentCustomer          HailStatus = "incident_customer"
	HailStatusIncidentTaxi              HailStatus = "incident_taxi"
	HailStatusTimeoutCustomer           HailStatus = "timeout_customer"
	HailStatusTimeoutTaxi               HailStatus = "timeout_taxi"
	HailStatusTimeoutAcceptedByCustomer HailStatus = "timeout_accepted_by_customer"
	HailStatusOutdatedCustomer          HailStatus = "outdated_customer"
	HailStatusOutdatedTaxi              HailStatus = "outdated_taxi"
	HailStatusFailure                   HailStatus = "failure"
	HailStatusCustomerBanned            HailStatus = "customer_banned"
	HailStatusCustomerOnBoard           HailStatus = "customer_on_board"
	HailStatusFinished                  HailStatus = "finished"
)

var validHailStatuses = []HailStatus{
	HailStatusEmitted,
	HailStatusReceived,
	HailStatusSentToOperator,
	HailStatusReceivedByOperator,
	HailStatusReceivedByTaxi,
	HailStatusAcceptedByTaxi,
	HailStatusAcceptedByCustomer,
	HailStatusDeclinedByTaxi,
	HailStatusDeclinedByCustomer,
	HailStatusIncidentCustomer,
	HailStatusIncidentTaxi,
	HailStatusTimeoutCustomer,
	HailStatusTimeoutTaxi,
	HailStatusTimeoutAcceptedByCustomer,
	HailStatusOutdatedCustomer,
	HailStatusOutdatedTaxi,
	HailStatusFailure,
	HailStatusCustomerBanned,
	HailStatusCustomerOnBoard,
	HailStatusFinished,
}

// terminalHailStatuses are statuses that end a hail. Once a hail reaches
// one of these, no further transition is accepted and the taxi is no
// longer bound to the ride.
var terminalHailStatuses = map[HailStatus]struct{}{
	HailStatusDeclinedByTaxi:            {},
	HailStatusDeclinedByCustomer:        {},
	HailStatusIncidentCustomer:          {},
	HailStatusIncidentTaxi:              {},
	HailStatusTimeoutCustomer:           {},
	HailStatusTimeoutTaxi:               {},
	HailStatusTimeoutAcceptedByCustomer: {},
	HailStatusOutdatedCustomer:          {},
	HailStatusOutdatedTaxi:              {},
	HailStatusFailure:                   {},
	HailStatusCustomerBanned:            {},
	HailStatusFinished:                  {},
}

// String implements fmt.Stringer.
func (h HailStatus) String() string {
	return string(h)
}

// IsValid reports whether the value is a known HailStatus.
func (h HailStatus) IsValid() bool {
	for _, candidate := range validHailStatuses {
		if candidate == h {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status ends the hail lifecycle.
func (h HailStatus) IsTerminal() bool {
	_, ok := terminalHailStatuses[h]
	return ok
}

// IsInProgress reports whether an active ride or negotiation is underway.
func (h HailStatus) IsInProgress() bool {
	return h.IsValid() && !h.IsTerminal()
}

// ValidHailStatuses returns a copy of every known hail status.
func ValidHailStatuses() []HailStatus {
	out := make([]HailStatus, len(validHailStatuses))
	copy(out, validHailStatuses)
	return out
}

// ParseHailStatus converts raw input into a HailStatus.
func ParseHailStatus(value string) (HailStatus, error) {
	for _, candidate := range validHailStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid hail status %q", value)
}
