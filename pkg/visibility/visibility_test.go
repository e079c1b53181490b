package visibility

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/openmaraude/apitaxi/pkg/db/models"
	"github.com/openmaraude/apitaxi/pkg/enums"
	pkgerrors "github.com/openmaraude/apitaxi/pkg/errors"
)

func userWithRoles(roles ...string) *models.User {
	return &models.User{ID: uuid.New(), Roles: pq.StringArray(roles)}
}

func TestEnsureHailVisible(t *testing.T) {
	now := time.Now()
	moteur := userWithRoles("moteur")
	operateur := userWithRoles("operateur")
	stranger := userWithRoles("moteur")
	admin := userWithRoles("admin")

	hail := &models.Hail{
		ID:               "aBc1234",
		AddedBy:          moteur.ID,
		OperateurID:      operateur.ID,
		CreationDatetime: now.Add(-time.Hour),
	}

	tests := []struct {
		name     string
		user     *models.User
		hail     *models.Hail
		wantCode pkgerrors.Code
	}{
		{name: "moteur sees its own hail", user: moteur, hail: hail},
		{name: "operateur sees its taxi's hail", user: operateur, hail: hail},
		{name: "admin sees everything", user: admin, hail: hail},
		{name: "unrelated account gets not found", user: stranger, hail: hail, wantCode: pkgerrors.CodeNotFound},
		{name: "missing hail", user: moteur, hail: nil, wantCode: pkgerrors.CodeNotFound},
		{name: "missing user", user: nil, hail: hail, wantCode: pkgerrors.CodeUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := EnsureHailVisible(tc.user, tc.hail, now)
			if tc.wantCode == "" {
				if err != nil {
					t.Fatalf("expected visible, got %v", err)
				}
				return
			}
			appErr := pkgerrors.As(err)
			if appErr == nil {
				t.Fatalf("expected typed error, got %v", err)
			}
			if appErr.Code() != tc.wantCode {
				t.Fatalf("expected code %s, got %s", tc.wantCode, appErr.Code())
			}
		})
	}
}

func TestEnsureHailVisibleHorizon(t *testing.T) {
	now := time.Now()
	moteur := userWithRoles("moteur")
	admin := userWithRoles("admin")
	old := &models.Hail{
		ID:               "oLd4567",
		AddedBy:          moteur.ID,
		OperateurID:      uuid.New(),
		CreationDatetime: now.Add(-Horizon - time.Hour),
	}

	if err := EnsureHailVisible(moteur, old, now); err == nil {
		t.Fatal("expected hails past the horizon to be hidden from non-admins")
	}
	if err := EnsureHailVisible(admin, old, now); err != nil {
		t.Fatalf("admins should still see old hails, got %v", err)
	}
}

func TestCustomerPhoneNumberVisible(t *testing.T) {
	visible := []enums.HailStatus{
		enums.HailStatusAcceptedByCustomer,
		enums.HailStatusCustomerOnBoard,
	}
	hidden := []enums.HailStatus{
		enums.HailStatusReceived,
		enums.HailStatusReceivedByTaxi,
		enums.HailStatusAcceptedByTaxi,
		enums.HailStatusFinished,
		enums.HailStatusDeclinedByCustomer,
	}
	for _, status := range visible {
		if !CustomerPhoneNumberVisible(status) {
			t.Fatalf("phone number should be visible in %s", status)
		}
	}
	for _, status := range hidden {
		if CustomerPhoneNumberVisible(status) {
			t.Fatalf("phone number should be hidden in %s", status)
		}
	}
}

func TestTaxiPositionVisible(t *testing.T) {
	if !TaxiPositionVisible(enums.HailStatusAcceptedByTaxi) {
		t.Fatal("position should be visible once the taxi accepted")
	}
	if TaxiPositionVisible(enums.HailStatusFinished) {
		t.Fatal("position should be hidden after the ride")
	}
	if TaxiPositionVisible(enums.HailStatusReceivedByOperator) {
		t.Fatal("position should be hidden before acceptance")
	}
}
