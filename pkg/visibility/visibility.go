package visibility

import (
	"time"

	"github.com/openmaraude/apitaxi/pkg/db/models"
	"github.com/openmaraude/apitaxi/pkg/enums"
	pkgerrors "github.com/openmaraude/apitaxi/pkg/errors"
)

// Horizon is how far back non-admin accounts can read hails. Older rides
// are blurred and then archived, so exposing them would only leak stale
// personal data.
const Horizon = 60 * 24 * time.Hour

// EnsureHailVisible enforces who can read a hail: admins see everything,
// the moteur that emitted it and the operateur of its taxi see their own,
// and nobody else learns the hail exists.
func EnsureHailVisible(user *models.User, hail *models.Hail, now time.Time) error {
	if hail == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "hail not found")
	}
	if user == nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if user.HasRole(string(enums.RoleAdmin)) {
		return nil
	}
	if hail.AddedBy != user.ID && hail.OperateurID != user.ID {
		return pkgerrors.New(pkgerrors.CodeNotFound, "hail not found")
	}
	if now.Sub(hail.CreationDatetime) > Horizon {
		return pkgerrors.New(pkgerrors.CodeNotFound, "hail not found")
	}
	return nil
}

// CustomerPhoneNumberVisible reports whether the customer phone number may
// appear in responses. The driver only needs it between pickup acceptance
// and the end of the ride.
func CustomerPhoneNumberVisible(status enums.HailStatus) bool {
	switch status {
	case enums.HailStatusAcceptedByCustomer, enums.HailStatusCustomerOnBoard:
		return true
	}
	return false
}

// TaxiPositionVisible reports whether the live taxi position and crowfly
// distance may be attached to a hail response.
func TaxiPositionVisible(status enums.HailStatus) bool {
	switch status {
	case enums.HailStatusAcceptedByTaxi,
		enums.HailStatusAcceptedByCustomer,
		enums.HailStatusCustomerOnBoard:
		return true
	}
	return false
}
