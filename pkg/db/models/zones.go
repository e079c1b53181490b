package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// GeoJSON stores a raw GeoJSON geometry in a jsonb column. Decoding into
// orb geometries happens in the zones index, not at scan time.
type GeoJSON json.RawMessage

func (g *GeoJSON) Scan(src any) error {
	if src == nil {
		*g = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		*g = append((*g)[0:0], v...)
		return nil
	case string:
		*g = GeoJSON(v)
		return nil
	default:
		return fmt.Errorf("GeoJSON: unsupported Scan type %T", src)
	}
}

func (g GeoJSON) Value() (driver.Value, error) {
	if len(g) == 0 {
		return nil, nil
	}
	return []byte(g), nil
}

func (g GeoJSON) MarshalJSON() ([]byte, error) {
	if len(g) == 0 {
		return []byte("null"), nil
	}
	return []byte(g), nil
}

func (g *GeoJSON) UnmarshalJSON(data []byte) error {
	*g = append((*g)[0:0], data...)
	return nil
}

// Town is one commune, keyed by its INSEE code, with its boundary polygon.
type Town struct {
	InseeCode string    `gorm:"column:insee;type:text;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Shape     GeoJSON   `gorm:"column:shape;type:jsonb;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// ZUPC is a shared pickup zone grouping several towns: a taxi whose ADS
// is registered in any member town may pick up across the whole union.
type ZUPC struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ZUPCID       string         `gorm:"column:zupc_id;type:text;not null;uniqueIndex"`
	Nom          string         `gorm:"column:nom;not null"`
	AllowedInsee pq.StringArray `gorm:"type:text[];column:allowed;not null;default:ARRAY[]::text[]"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (ZUPC) TableName() string {
	return "zupc"
}

// Exclusion is an area where street hailing is forbidden, such as an
// airport terminal or a train station concourse.
type Exclusion struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Shape     GeoJSON   `gorm:"column:shape;type:jsonb;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
