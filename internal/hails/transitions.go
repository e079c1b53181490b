package hails

import (
	"fmt"

	"github.com/openmaraude/apitaxi/pkg/enums"
	pkgerrors "github.com/openmaraude/apitaxi/pkg/errors"
)

// Actor identifies who requests a transition. Timeouts and the delivery
// worker act as the system; admins may force any edge.
type Actor string

const (
	ActorMoteur    Actor = "moteur"
	ActorOperateur Actor = "operateur"
	ActorSystem    Actor = "system"
	ActorAdmin     Actor = "admin"
)

// transitions lists for every status the reachable statuses and who may
// take the edge.
var transitions = map[enums.HailStatus]map[enums.HailStatus][]Actor{
	enums.HailStatusReceived: {
		enums.HailStatusSentToOperator: {ActorSystem},
		enums.HailStatusFailure:        {ActorSystem},
	},
	enums.HailStatusSentToOperator: {
		enums.HailStatusReceivedByOperator: {ActorSystem, ActorOperateur},
		enums.HailStatusFailure:            {ActorSystem},
	},
	enums.HailStatusReceivedByOperator: {
		enums.HailStatusReceivedByTaxi: {ActorOperateur},
		enums.HailStatusFailure:        {ActorSystem},
	},
	enums.HailStatusReceivedByTaxi: {
		enums.HailStatusAcceptedByTaxi:   {ActorOperateur},
		enums.HailStatusDeclinedByTaxi:   {ActorOperateur},
		enums.HailStatusIncidentTaxi:     {ActorOperateur},
		enums.HailStatusIncidentCustomer: {ActorMoteur},
		enums.HailStatusTimeoutTaxi:      {ActorSystem},
	},
	enums.HailStatusAcceptedByTaxi: {
		enums.HailStatusAcceptedByCustomer: {ActorMoteur},
		enums.HailStatusDeclinedByCustomer: {ActorMoteur},
		enums.HailStatusIncidentCustomer:   {ActorMoteur},
		enums.HailStatusIncidentTaxi:       {ActorOperateur},
		enums.HailStatusTimeoutCustomer:    {ActorSystem},
	},
	enums.HailStatusAcceptedByCustomer: {
		enums.HailStatusCustomerOnBoard:           {ActorOperateur},
		enums.HailStatusDeclinedByCustomer:        {ActorMoteur},
		enums.HailStatusIncidentCustomer:          {ActorMoteur},
		enums.HailStatusIncidentTaxi:              {ActorOperateur},
		enums.HailStatusTimeoutAcceptedByCustomer: {ActorSystem},
	},
	enums.HailStatusCustomerOnBoard: {
		enums.HailStatusFinished:         {ActorOperateur},
		enums.HailStatusIncidentCustomer: {ActorMoteur},
		enums.HailStatusIncidentTaxi:     {ActorOperateur},
		enums.HailStatusTimeoutTaxi:      {ActorSystem},
	},
}

// CheckTransition validates one edge of the hail lifecycle for the
// given actor. Admins may take any defined edge.
func CheckTransition(from, to enums.HailStatus, actor Actor) error {
	if from.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("hail already terminal in status %s", from))
	}
	allowed, ok := transitions[from][to]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move hail from %s to %s", from, to))
	}
	if actor == ActorAdmin {
		return nil
	}
	for _, candidate := range allowed {
		if candidate == actor {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden,
		fmt.Sprintf("%s cannot move hail from %s to %s", actor, from, to))
}

// vehicleStatusAfter maps a hail transition to the vehicle status the
// taxi should broadcast afterwards. Statuses absent from the map leave
// the vehicle untouched.
var vehicleStatusAfter = map[enums.HailStatus]enums.VehicleStatus{
	enums.HailStatusAcceptedByCustomer:        enums.VehicleStatusOncoming,
	enums.HailStatusCustomerOnBoard:           enums.VehicleStatusOccupied,
	enums.HailStatusDeclinedByCustomer:        enums.VehicleStatusFree,
	enums.HailStatusIncidentCustomer:          enums.VehicleStatusFree,
	enums.HailStatusIncidentTaxi:              enums.VehicleStatusFree,
	enums.HailStatusFinished:                  enums.VehicleStatusFree,
	enums.HailStatusTimeoutCustomer:           enums.VehicleStatusFree,
	enums.HailStatusTimeoutAcceptedByCustomer: enums.VehicleStatusFree,
	enums.HailStatusFailure:                   enums.VehicleStatusFree,
	enums.HailStatusDeclinedByTaxi:            enums.VehicleStatusOff,
	enums.HailStatusTimeoutTaxi:               enums.VehicleStatusOff,
}

// VehicleStatusAfter returns the vehicle status implied by a hail
// status, or false when the transition does not touch the vehicle.
func VehicleStatusAfter(status enums.HailStatus) (enums.VehicleStatus, bool) {
	vs, ok := vehicleStatusAfter[status]
	return vs, ok
}

// timeout describes the watchdog armed when a hail enters a status.
type timeout struct {
	after  int64 // seconds
	target enums.HailStatus
}

// received_by_operator has no watchdog: the delivery path itself fails
// the hail when the operator endpoint does not answer.
var timeouts = map[enums.HailStatus]timeout{
	enums.HailStatusReceivedByTaxi:     {after: 30, target: enums.HailStatusTimeoutTaxi},
	enums.HailStatusAcceptedByTaxi:     {after: 60, target: enums.HailStatusTimeoutCustomer},
	enums.HailStatusAcceptedByCustomer: {after: 30 * 60, target: enums.HailStatusTimeoutAcceptedByCustomer},
	enums.HailStatusCustomerOnBoard:    {after: 2 * 60 * 60, target: enums.HailStatusTimeoutTaxi},
}

// TimeoutFor returns the watchdog delay (seconds) and target status
// armed when a hail enters the given status, or false when none exists.
func TimeoutFor(status enums.HailStatus) (int64, enums.HailStatus, bool) {
	t, ok := timeouts[status]
	return t.after, t.target, ok
}
