package geostore

import (
	"fmt"
	"strconv"
	"strings"
)

// Redis keys shared with the position ingestion workers. The hash
// taxi:<id> maps operator emails to the latest position blob; the two
// geo indexes and their timestamp mirrors are documented on Cleanup.
const (
	geoIndexKey         = "geoindex"
	geoIndexOperatorKey = "geoindex_2"
	timestampsKey       = "timestamps"
	timestampsIDKey     = "timestamps_id"
	notAvailableKey     = "not_available"

	taxiKeyPrefix  = "taxi:"
	taxiKeyPattern = "taxi:*"
)

func taxiKey(taxiID string) string {
	return taxiKeyPrefix + taxiID
}

func hailLogKey(hailID string) string {
	return "hail:" + hailID
}

func taxiStatusKey(taxiID string) string {
	return "taxi_status:" + taxiID
}

func formatScore(ts int64) string {
	return strconv.FormatInt(ts, 10)
}

// OperatorMember builds the `taxi_id:operator` member used by the
// per-operator geo and timestamp sets.
func OperatorMember(taxiID, operator string) string {
	return taxiID + ":" + operator
}

// SplitOperatorMember splits a `taxi_id:operator` member on the first
// colon; operator emails may contain further colons.
func SplitOperatorMember(member string) (taxiID, operator string) {
	idx := strings.Index(member, ":")
	if idx < 0 {
		return member, ""
	}
	return member[:idx], member[idx+1:]
}

// Entry is the per-operator position blob stored in the taxi:<id> hash.
//
// Wire format: "<timestamp> <lat> <lon> <status> <device> <version>".
// The status and device fields are legacy; the authoritative taxi status
// lives in the vehicle description row.
type Entry struct {
	Timestamp int64
	Lat       float64
	Lon       float64
	Status    string
	Device    string
	Version   int
}

func (e Entry) encode() string {
	return fmt.Sprintf("%d %s %s %s %s %d",
		e.Timestamp,
		strconv.FormatFloat(e.Lat, 'f', -1, 64),
		strconv.FormatFloat(e.Lon, 'f', -1, 64),
		e.Status,
		e.Device,
		e.Version,
	)
}

func decodeEntry(raw string) (Entry, error) {
	fields := strings.Fields(raw)
	if len(fields) != 6 {
		return Entry{}, fmt.Errorf("taxi entry: expected 6 fields, got %d in %q", len(fields), raw)
	}

	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("taxi entry: parse timestamp: %w", err)
	}
	lat, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Entry{}, fmt.Errorf("taxi entry: parse lat: %w", err)
	}
	lon, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return Entry{}, fmt.Errorf("taxi entry: parse lon: %w", err)
	}
	version, err := strconv.Atoi(fields[5])
	if err != nil {
		return Entry{}, fmt.Errorf("taxi entry: parse version: %w", err)
	}

	return Entry{
		Timestamp: ts,
		Lat:       lat,
		Lon:       lon,
		Status:    fields[3],
		Device:    fields[4],
		Version:   version,
	}, nil
}
