package hails

import (
	"testing"

	"github.com/openmaraude/apitaxi/pkg/enums"
	pkgerrors "github.com/openmaraude/apitaxi/pkg/errors"
)

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		name     string
		from, to enums.HailStatus
		actor    Actor
		wantCode pkgerrors.Code
	}{
		{
			name: "operator accepts", actor: ActorOperateur,
			from: enums.HailStatusReceivedByTaxi, to: enums.HailStatusAcceptedByTaxi,
		},
		{
			name: "moteur cannot accept for the taxi", actor: ActorMoteur,
			from: enums.HailStatusReceivedByTaxi, to: enums.HailStatusAcceptedByTaxi,
			wantCode: pkgerrors.CodeForbidden,
		},
		{
			name: "customer accepts", actor: ActorMoteur,
			from: enums.HailStatusAcceptedByTaxi, to: enums.HailStatusAcceptedByCustomer,
		},
		{
			name: "operator cannot accept for the customer", actor: ActorOperateur,
			from: enums.HailStatusAcceptedByTaxi, to: enums.HailStatusAcceptedByCustomer,
			wantCode: pkgerrors.CodeForbidden,
		},
		{
			name: "no skipping states", actor: ActorOperateur,
			from: enums.HailStatusReceived, to: enums.HailStatusAcceptedByTaxi,
			wantCode: pkgerrors.CodeStateConflict,
		},
		{
			name: "terminal statuses are final", actor: ActorAdmin,
			from: enums.HailStatusFinished, to: enums.HailStatusReceived,
			wantCode: pkgerrors.CodeStateConflict,
		},
		{
			name: "admin may take any defined edge", actor: ActorAdmin,
			from: enums.HailStatusReceivedByTaxi, to: enums.HailStatusTimeoutTaxi,
		},
		{
			name: "system forces timeouts", actor: ActorSystem,
			from: enums.HailStatusAcceptedByCustomer, to: enums.HailStatusTimeoutAcceptedByCustomer,
		},
		{
			name: "customer declares incident on board", actor: ActorMoteur,
			from: enums.HailStatusCustomerOnBoard, to: enums.HailStatusIncidentCustomer,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckTransition(tc.from, tc.to, tc.actor)
			if tc.wantCode == "" {
				if err != nil {
					t.Fatalf("expected the edge to be allowed, got %v", err)
				}
				return
			}
			appErr := pkgerrors.As(err)
			if appErr == nil || appErr.Code() != tc.wantCode {
				t.Fatalf("expected %s, got %v", tc.wantCode, err)
			}
		})
	}
}

func TestVehicleStatusAfter(t *testing.T) {
	tests := []struct {
		status enums.HailStatus
		want   enums.VehicleStatus
		touch  bool
	}{
		{enums.HailStatusAcceptedByCustomer, enums.VehicleStatusOncoming, true},
		{enums.HailStatusCustomerOnBoard, enums.VehicleStatusOccupied, true},
		{enums.HailStatusFinished, enums.VehicleStatusFree, true},
		{enums.HailStatusDeclinedByTaxi, enums.VehicleStatusOff, true},
		{enums.HailStatusTimeoutTaxi, enums.VehicleStatusOff, true},
		{enums.HailStatusAcceptedByTaxi, "", false},
		{enums.HailStatusReceivedByTaxi, "", false},
	}
	for _, tc := range tests {
		got, ok := VehicleStatusAfter(tc.status)
		if ok != tc.touch {
			t.Fatalf("%s: expected touch=%v", tc.status, tc.touch)
		}
		if ok && got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.status, tc.want, got)
		}
	}
}

func TestTimeoutFor(t *testing.T) {
	after, target, ok := TimeoutFor(enums.HailStatusReceivedByTaxi)
	if !ok || after != 30 || target != enums.HailStatusTimeoutTaxi {
		t.Fatalf("unexpected watchdog: %d %s %v", after, target, ok)
	}
	after, target, ok = TimeoutFor(enums.HailStatusAcceptedByCustomer)
	if !ok || after != 1800 || target != enums.HailStatusTimeoutAcceptedByCustomer {
		t.Fatalf("unexpected watchdog: %d %s %v", after, target, ok)
	}
	if _, _, ok := TimeoutFor(enums.HailStatusFinished); ok {
		t.Fatal("terminal statuses have no watchdog")
	}
	if _, _, ok := TimeoutFor(enums.HailStatusReceivedByOperator); ok {
		t.Fatal("delivery handles received_by_operator, no watchdog expected")
	}
}
