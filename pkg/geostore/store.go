package geostore

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openmaraude/apitaxi/pkg/logger"
)

// Store reads and writes the real-time taxi data held in Redis.
type Store struct {
	rdb *redis.Client
	log *logger.Logger
}

// NewStoreParams wires the dependencies of Store.
type NewStoreParams struct {
	Redis  *redis.Client
	Logger *logger.Logger
}

func NewStore(params NewStoreParams) *Store {
	return &Store{
		rdb: params.Redis,
		log: params.Logger,
	}
}

// Position is one taxi position reported by an operator.
type Position struct {
	TaxiID string
	Lat    float64
	Lon    float64
}

// UpdatePositions records a batch of positions for one operator. All
// writes go through a single pipeline so a batch is either fully applied
// or not at all when the connection drops mid-flight.
func (s *Store) UpdatePositions(ctx context.Context, operator string, now time.Time, positions []Position) error {
	ts := now.Unix()
	score := float64(ts)

	pipe := s.rdb.Pipeline()
	for _, pos := range positions {
		entry := Entry{
			Timestamp: ts,
			Lat:       pos.Lat,
			Lon:       pos.Lon,
			Status:    "free",
			Device:    "phone",
			Version:   2,
		}
		pipe.HSet(ctx, taxiKey(pos.TaxiID), operator, entry.encode())
		pipe.GeoAdd(ctx, geoIndexKey, &redis.GeoLocation{
			Name:      pos.TaxiID,
			Longitude: pos.Lon,
			Latitude:  pos.Lat,
		})
		pipe.GeoAdd(ctx, geoIndexOperatorKey, &redis.GeoLocation{
			Name:      OperatorMember(pos.TaxiID, operator),
			Longitude: pos.Lon,
			Latitude:  pos.Lat,
		})
		pipe.ZAdd(ctx, timestampsKey, redis.Z{Score: score, Member: OperatorMember(pos.TaxiID, operator)})
		pipe.ZAdd(ctx, timestampsIDKey, redis.Z{Score: score, Member: pos.TaxiID})
	}
	_, err := pipe.Exec(ctx)
	return err
}

// GetTaxi returns the last position blob an operator stored for a taxi,
// or nil when the operator never reported it.
func (s *Store) GetTaxi(ctx context.Context, taxiID, operator string) (*Entry, error) {
	raw, err := s.rdb.HGet(ctx, taxiKey(taxiID), operator).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entry, err := decodeEntry(raw)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Location is one geo search hit from the per-operator index.
type Location struct {
	TaxiID   string
	Operator string
	Lat      float64
	Lon      float64
	// Distance from the search center, meters.
	Distance float64
}

// LocationsByOperator searches taxis around (lon, lat) within radius
// meters and groups the hits by taxi ID. A taxi reported by several
// operators yields one Location per operator.
func (s *Store) LocationsByOperator(ctx context.Context, lon, lat, radiusMeters float64) (map[string][]Location, error) {
	hits, err := s.rdb.GeoSearchLocation(ctx, geoIndexOperatorKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lon,
			Latitude:   lat,
			Radius:     radiusMeters,
			RadiusUnit: "m",
			Sort:       "ASC",
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, err
	}

	locations := make(map[string][]Location)
	for _, hit := range hits {
		taxiID, operator := SplitOperatorMember(hit.Name)
		locations[taxiID] = append(locations[taxiID], Location{
			TaxiID:   taxiID,
			Operator: operator,
			Lat:      hit.Latitude,
			Lon:      hit.Longitude,
			Distance: hit.Dist,
		})
	}
	return locations, nil
}

// SetTaxiAvailability mirrors the vehicle status into the not_available
// sorted set so dispatch can exclude busy taxis without a database read.
// The score is the time the flag was raised, which keeps ZMSCORE lookups
// unambiguous: a zero score means the member is absent.
func (s *Store) SetTaxiAvailability(ctx context.Context, taxiID, operator string, available bool) error {
	member := OperatorMember(taxiID, operator)
	if available {
		return s.rdb.ZRem(ctx, notAvailableKey, member).Err()
	}
	return s.rdb.ZAdd(ctx, notAvailableKey, redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: member,
	}).Err()
}

// NotAvailableMembers reports which of the given (taxi, operator) pairs
// are currently flagged not available.
func (s *Store) NotAvailableMembers(ctx context.Context, members []string) (map[string]bool, error) {
	if len(members) == 0 {
		return map[string]bool{}, nil
	}
	scores, err := s.rdb.ZMScore(ctx, notAvailableKey, members...).Result()
	if err != nil {
		return nil, err
	}
	flagged := make(map[string]bool, len(members))
	for i, member := range members {
		if i < len(scores) {
			flagged[member] = scores[i] != 0
		}
	}
	return flagged, nil
}

// Cleanup drops geo index members older than maxAge.
//
// A geo index is a sorted set scored by geohash, so expiring by time
// directly is not possible. The update timestamps live in separate
// sorted sets; stale members are removed there first, then ZINTERSTORE
// with a zero weight on the timestamp set keeps only geo members that
// still have a fresh timestamp.
func (s *Store) Cleanup(ctx context.Context, now time.Time, maxAge time.Duration) error {
	threshold := formatScore(now.Add(-maxAge).Unix())

	if err := s.rdb.ZRemRangeByScore(ctx, timestampsKey, "0", threshold).Err(); err != nil {
		return err
	}
	if err := s.rdb.ZInterStore(ctx, geoIndexOperatorKey, &redis.ZStore{
		Keys:    []string{timestampsKey, geoIndexOperatorKey},
		Weights: []float64{0, 1},
	}).Err(); err != nil {
		return err
	}

	if err := s.rdb.ZRemRangeByScore(ctx, timestampsIDKey, "0", threshold).Err(); err != nil {
		return err
	}
	return s.rdb.ZInterStore(ctx, geoIndexKey, &redis.ZStore{
		Keys:    []string{timestampsIDKey, geoIndexKey},
		Weights: []float64{0, 1},
	}).Err()
}

const scanBatchSize = 500

// HashEntry is one decoded (taxi, operator) position blob read from a
// taxi:<id> hash.
type HashEntry struct {
	TaxiID   string
	Operator string
	Entry    Entry
}

// ListTaxis walks every taxi:<id> hash and returns the entries whose
// stored timestamp falls in [min, max]. The timestamps sorted sets only
// survive the freshness sweep, so ranges reaching further back must be
// answered from the hashes. Linear in the number of taxis ever seen;
// reserved to the maintenance jobs.
func (s *Store) ListTaxis(ctx context.Context, min, max time.Time) ([]HashEntry, error) {
	lo, hi := min.Unix(), max.Unix()
	var entries []HashEntry
	iter := s.rdb.Scan(ctx, 0, taxiKeyPattern, scanBatchSize).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		fields, err := s.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		taxiID := strings.TrimPrefix(key, taxiKeyPrefix)
		for operator, raw := range fields {
			entry, err := decodeEntry(raw)
			if err != nil {
				if s.log != nil {
					s.log.Warn(ctx, "skipping unreadable taxi entry")
				}
				continue
			}
			if entry.Timestamp < lo || entry.Timestamp > hi {
				continue
			}
			entries = append(entries, HashEntry{TaxiID: taxiID, Operator: operator, Entry: entry})
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// ListTaxiIDs returns the ID of every taxi holding a hash key, whatever
// the age of its entries.
func (s *Store) ListTaxiIDs(ctx context.Context) ([]string, error) {
	var ids []string
	iter := s.rdb.Scan(ctx, 0, taxiKeyPattern, scanBatchSize).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), taxiKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// BlurStale rewrites every position blob older than the cutoff with
// zeroed coordinates. The timestamp and operator survive so usage stats
// and the orphan sweep can still date the entry. Returns the number of
// entries rewritten; already zeroed entries are left alone.
func (s *Store) BlurStale(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := s.ListTaxis(ctx, time.Unix(0, 0), cutoff)
	if err != nil {
		return 0, err
	}
	pipe := s.rdb.Pipeline()
	blurred := 0
	for _, item := range stale {
		if item.Entry.Lat == 0 && item.Entry.Lon == 0 {
			continue
		}
		entry := Entry{
			Timestamp: item.Entry.Timestamp,
			Lat:       0,
			Lon:       0,
			Status:    "free",
			Device:    "phone",
			Version:   2,
		}
		pipe.HSet(ctx, taxiKey(item.TaxiID), item.Operator, entry.encode())
		blurred++
	}
	if blurred == 0 {
		return 0, nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return blurred, nil
}

// DropTaxis deletes the taxi:<id> hashes of the given taxis. The geo
// index and timestamp members of a dead taxi already expired through
// Cleanup, so the hashes are the only state left to remove.
func (s *Store) DropTaxis(ctx context.Context, taxiIDs []string) error {
	if len(taxiIDs) == 0 {
		return nil
	}
	pipe := s.rdb.Pipeline()
	for _, id := range taxiIDs {
		pipe.Del(ctx, taxiKey(id))
	}
	_, err := pipe.Exec(ctx)
	return err
}

const hailLogRetention = 60 * 24 * time.Hour

// HailLogEntry is one audit record of an exchange about a hail.
type HailLogEntry struct {
	Method             string    `json:"method"`
	RequestPayload     any       `json:"request_payload,omitempty"`
	RequestUser        string    `json:"request_user,omitempty"`
	HailInitialStatus  string    `json:"hail_initial_status"`
	HailFinalStatus    string    `json:"hail_final_status"`
	ResponsePayload    any       `json:"response_payload,omitempty"`
	ResponseStatusCode *int      `json:"response_status_code,omitempty"`
	At                 time.Time `json:"at"`
}

// LogHail appends an audit entry to the hail:<id> sorted set, scored by
// time so the history reads in order.
func (s *Store) LogHail(ctx context.Context, hailID string, entry HailLogEntry) error {
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	key := hailLogKey(hailID)
	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(entry.At.UnixNano()), Member: string(raw)})
	pipe.Expire(ctx, key, hailLogRetention)
	_, err = pipe.Exec(ctx)
	return err
}

// HailLog returns every audit entry recorded for a hail, oldest first.
func (s *Store) HailLog(ctx context.Context, hailID string) ([]HailLogEntry, error) {
	raws, err := s.rdb.ZRange(ctx, hailLogKey(hailID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]HailLogEntry, 0, len(raws))
	for _, raw := range raws {
		var entry HailLogEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			if s.log != nil {
				s.log.Warn(ctx, "skipping unreadable hail log entry")
			}
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// LogTaxiStatus appends a status change to the taxi_status:<id> history.
func (s *Store) LogTaxiStatus(ctx context.Context, taxiID, status string, now time.Time) error {
	key := taxiStatusKey(taxiID)
	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: status + " " + formatScore(now.Unix()),
	})
	pipe.Expire(ctx, key, hailLogRetention)
	_, err := pipe.Exec(ctx)
	return err
}

// Ping verifies the backing connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
