package repository

import "time"

type User struct {
	ID             uint   `gorm:"primaryKey"`
	Username       string `gorm:"type:varchar(20);uniqueIndex;not null"`
	Email          string `gorm:"type:varchar(255);uniqueIndex;not null"`
	ImageURL       string `gorm:"type:text;not null"`
	HeaderImageURL string `gorm:"type:text;not null"`
	Bio            string `gorm:"type:text"`
	Location       string `gorm:"type:varchar(50)"`
	PasswordHash   string `gorm:"not null"`
	CreatedAt      time.Time
}

// Follow is the directed edge FollowerID -> FollowedID. The pair is the
// primary key, so an edge exists at most once.
type Follow struct {
	FollowerID uint `gorm:"primaryKey;autoIncrement:false"`
	FollowedID uint `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt  time.Time
}

type Message struct {
	ID        uint      `gorm:"primaryKey"`
	Text      string    `gorm:"type:varchar(140);not null"`
	Timestamp time.Time `gorm:"not null;index"`
	UserID    uint      `gorm:"not null;index"`
}

// Like records that UserID liked MessageID, at most once per pair.
type Like struct {
	UserID    uint `gorm:"primaryKey;autoIncrement:false"`
	MessageID uint `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time
}

type likeRow struct {
	MessageID uint
	Username  string
}
