package enums

import "fmt"

// VehicleStatus is the availability broadcast by a taxi through its operator.
type VehicleStatus string

const (
	VehicleStatusFree      VehicleStatus = "free"
	VehicleStatusAnswering VehicleStatus = "answering"
	VehicleStatusOccupied  VehicleStatus = "occupied"
	VehicleStatusOncoming  VehicleStatus = "oncoming"
	VehicleStatusOff       VehicleStatus = "off"
)

var validVehicleStatuses = []VehicleStatus{
	VehicleStatusFree,
	VehicleStatusAnswering,
	VehicleStatusOccupied,
	VehicleStatusOncoming,
	VehicleStatusOff,
}

// String implements fmt.Stringer.
func (v VehicleStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known VehicleStatus.
func (v VehicleStatus) IsValid() bool {
	for _, candidate := range validVehicleStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVehicleStatus converts raw input into a VehicleStatus.
func ParseVehicleStatus(value string) (VehicleStatus, error) {
	for _, candidate := range validVehicleStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid vehicle status %q", value)
}
