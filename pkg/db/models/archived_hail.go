package models

import (
	"time"
)

// ArchivedHail is the anonymized long-term record of a finished hail.
// Customer identifiers and exact coordinates are dropped at archive time;
// only the rounded pickup position and the outcome survive.
type ArchivedHail struct {
	ID               string    `gorm:"column:id;type:text;primaryKey"`
	CreationDatetime time.Time `gorm:"column:creation_datetime;not null"`
	Status           string    `gorm:"column:status;type:text;not null"`
	Moteur           string    `gorm:"column:moteur;type:text;not null"`
	Operateur        string    `gorm:"column:operateur;type:text;not null"`
	InseeCode        *string   `gorm:"column:insee"`
	CustomerLat      float64   `gorm:"column:customer_lat;not null"`
	CustomerLon      float64   `gorm:"column:customer_lon;not null"`
	ArchivedAt       time.Time `gorm:"column:archived_at;autoCreateTime"`
}
