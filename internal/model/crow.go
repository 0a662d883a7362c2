package model

import (
	"fmt"
	"time"
)

const (
	DefaultCreditName = "Unknown"
	DefaultCreditLink = "#"
	DefaultCrowName   = "Unnamed Crow"
)

type Crow struct {
	CrowID      string    `db:"crow_id" json:"crow_id"`
	Seq         int64     `db:"seq" json:"-"`
	ImgURL      string    `db:"img_url" json:"img_url"`
	AvgRating   float64   `db:"avg_rating" json:"avg_rating"`
	RatingCount int64     `db:"rating_count" json:"rating_count"`
	CreditName  *string   `db:"credit_name" json:"credit_name"`
	CreditLink  *string   `db:"credit_link" json:"credit_link"`
	Name        *string   `db:"name" json:"name"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CrowDetails is a crow with every optional display field filled in.
type CrowDetails struct {
	CrowID      string  `json:"crow_id"`
	ImgURL      string  `json:"img_url"`
	AvgRating   float64 `json:"avg_rating"`
	RatingCount int64   `json:"rating_count"`
	CreditName  string  `json:"credit_name"`
	CreditLink  string  `json:"credit_link"`
	Name        string  `json:"name"`
}

// Rating is the aggregate left on a crow after a vote.
type Rating struct {
	AvgRating   float64 `db:"avg_rating" json:"avg_rating"`
	RatingCount int64   `db:"rating_count" json:"rating_count"`
}

func CrowID(seq int64) string {
	return fmt.Sprintf("crow_%d", seq)
}

func (c *Crow) Details() CrowDetails {
	return CrowDetails{
		CrowID:      c.CrowID,
		ImgURL:      c.ImgURL,
		AvgRating:   c.AvgRating,
		RatingCount: c.RatingCount,
		CreditName:  valueOr(c.CreditName, DefaultCreditName),
		CreditLink:  valueOr(c.CreditLink, DefaultCreditLink),
		Name:        valueOr(c.Name, DefaultCrowName),
	}
}

func valueOr(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}
