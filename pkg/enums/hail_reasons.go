package enums

import "fmt"

// ReportingCustomerReason is the motive given by a taxi reporting a customer.
type ReportingCustomerReason string

const (
	ReportingCustomerKO          ReportingCustomerReason = "ko"
	ReportingCustomerPayment     ReportingCustomerReason = "payment"
	ReportingCustomerCourtesy    ReportingCustomerReason = "courtesy"
	ReportingCustomerRoute       ReportingCustomerReason = "route"
	ReportingCustomerCleanliness ReportingCustomerReason = "cleanliness"
	ReportingCustomerLate        ReportingCustomerReason = "late"
	ReportingCustomerAggressive  ReportingCustomerReason = "aggressive"
	ReportingCustomerNoShow      ReportingCustomerReason = "no_show"
)

var validReportingCustomerReasons = []ReportingCustomerReason{
	ReportingCustomerKO,
	ReportingCustomerPayment,
	ReportingCustomerCourtesy,
	ReportingCustomerRoute,
	ReportingCustomerCleanliness,
	ReportingCustomerLate,
	ReportingCustomerAggressive,
	ReportingCustomerNoShow,
}

func (r ReportingCustomerReason) IsValid() bool {
	for _, candidate := range validReportingCustomerReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReportingCustomerReason converts raw input into a ReportingCustomerReason.
func ParseReportingCustomerReason(value string) (ReportingCustomerReason, error) {
	for _, candidate := range validReportingCustomerReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reporting customer reason %q", value)
}

// IncidentCustomerReason is the motive a customer gives when declaring an
// incident. The empty value is accepted: most client apps do not ask.
type IncidentCustomerReason string

const (
	IncidentCustomerNone       IncidentCustomerReason = ""
	IncidentCustomerMudRiver   IncidentCustomerReason = "mud_river"
	IncidentCustomerParade     IncidentCustomerReason = "parade"
	IncidentCustomerEarthquake IncidentCustomerReason = "earthquake"
)

var validIncidentCustomerReasons = []IncidentCustomerReason{
	IncidentCustomerNone,
	IncidentCustomerMudRiver,
	IncidentCustomerParade,
	IncidentCustomerEarthquake,
}

func (r IncidentCustomerReason) IsValid() bool {
	for _, candidate := range validIncidentCustomerReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// IncidentTaxiReason is the motive a taxi gives when declaring an incident.
type IncidentTaxiReason string

const (
	IncidentTaxiNoShow       IncidentTaxiReason = "no_show"
	IncidentTaxiAddress      IncidentTaxiReason = "address"
	IncidentTaxiTraffic      IncidentTaxiReason = "traffic"
	IncidentTaxiBreakdown    IncidentTaxiReason = "breakdown"
	IncidentTaxiTrafficJam   IncidentTaxiReason = "traffic_jam"
	IncidentTaxiGarbageTruck IncidentTaxiReason = "garbage_truck"
)

var validIncidentTaxiReasons = []IncidentTaxiReason{
	IncidentTaxiNoShow,
	IncidentTaxiAddress,
	IncidentTaxiTraffic,
	IncidentTaxiBreakdown,
	IncidentTaxiTrafficJam,
	IncidentTaxiGarbageTruck,
}

func (r IncidentTaxiReason) IsValid() bool {
	for _, candidate := range validIncidentTaxiReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// RatingRideReason qualifies a low ride rating left by the customer.
type RatingRideReason string

const (
	RatingRideKO              RatingRideReason = "ko"
	RatingRidePayment         RatingRideReason = "payment"
	RatingRideCourtesy        RatingRideReason = "courtesy"
	RatingRideRoute           RatingRideReason = "route"
	RatingRideCleanliness     RatingRideReason = "cleanliness"
	RatingRideLate            RatingRideReason = "late"
	RatingRideNoCreditCard    RatingRideReason = "no_credit_card"
	RatingRideBadItinerary    RatingRideReason = "bad_itinerary"
	RatingRideDirtyTaxi       RatingRideReason = "dirty_taxi"
	RatingRideAutomaticRating RatingRideReason = "automatic_rating"
)

var validRatingRideReasons = []RatingRideReason{
	RatingRideKO,
	RatingRidePayment,
	RatingRideCourtesy,
	RatingRideRoute,
	RatingRideCleanliness,
	RatingRideLate,
	RatingRideNoCreditCard,
	RatingRideBadItinerary,
	RatingRideDirtyTaxi,
	RatingRideAutomaticRating,
}

func (r RatingRideReason) IsValid() bool {
	for _, candidate := range validRatingRideReasons {
		if candidate == r {
			return true
		}
	}
	return false
}
