package model

import "time"

type Name struct {
	NameID    string    `db:"name_id" json:"name_id"`
	CrowID    string    `db:"crow_id" json:"-"`
	Name      string    `db:"name" json:"name"`
	Upvotes   int64     `db:"upvotes" json:"upvotes"`
	Downvotes int64     `db:"downvotes" json:"downvotes"`
	CreatedAt time.Time `db:"created_at" json:"-"`
}

const (
	VoteUp   = "upvote"
	VoteDown = "downvote"
)

func IsValidVoteType(voteType string) bool {
	return voteType == VoteUp || voteType == VoteDown
}
