package model

import "time"

// Club is an admin-managed community with an independent lifecycle.
type Club struct {
	ID            string `gorm:"column:id;primaryKey;size:190;not null"`
	Name          string `gorm:"column:name;size:190;not null;index"`
	District      string `gorm:"column:district;size:190;not null;index"`
	DistrictID    string `gorm:"column:district_id;size:64;not null"`
	Description   string `gorm:"column:description;type:text"`
	LogoURL       string `gorm:"column:logo_url;size:512"`
	CoverImageURL string `gorm:"column:cover_image_url;size:512"`
	Email         string `gorm:"column:email;size:320"`
	Phone         string `gorm:"column:phone;size:64"`
	Address       string `gorm:"column:address;size:512"`
	FacebookURL   string `gorm:"column:facebook_url;size:512"`
	InstagramURL  string `gorm:"column:instagram_url;size:512"`
	TwitterURL    string `gorm:"column:twitter_url;size:512"`
	IsOfficial    bool   `gorm:"column:is_official;not null;default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Club) TableName() string {
	return "clubs"
}

// District groups clubs geographically. TotalClubs is maintained by the
// admin club CRUD; TotalMembers is a reported figure, not derived.
type District struct {
	Name         string `gorm:"column:name;primaryKey;size:190;not null"`
	TotalClubs   int64  `gorm:"column:total_clubs;not null;default:0"`
	TotalMembers int64  `gorm:"column:total_members;not null;default:0"`
}

func (District) TableName() string {
	return "districts"
}
