package model

import "time"

// FollowEdge is a directed user-to-user follow relation. The composite
// unique index is the concurrency guard: a racing duplicate insert is
// rejected by the store, never double-counted.
type FollowEdge struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	FollowerID string `gorm:"column:follower_id;size:190;not null;index:idx_follower;uniqueIndex:ux_follow_pair"`
	FolloweeID string `gorm:"column:followee_id;size:190;not null;index:idx_followee;uniqueIndex:ux_follow_pair"`
	CreatedAt  time.Time
}

func (FollowEdge) TableName() string {
	return "user_follows"
}

// ClubFollow is a directed user-to-club follow relation, unique per pair.
type ClubFollow struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	UserID    string `gorm:"column:user_id;size:190;not null;index:idx_club_follow_user;uniqueIndex:ux_club_follow_pair"`
	ClubID    string `gorm:"column:club_id;size:190;not null;index:idx_club_follow_club;uniqueIndex:ux_club_follow_pair"`
	CreatedAt time.Time
}

func (ClubFollow) TableName() string {
	return "user_following_clubs"
}
