package models

import (
	"encoding/json"
	"time"
)

// UserRecord is the relational row of a User. Seq keeps the saved order.
type UserRecord struct {
	Seq          uint      `gorm:"primaryKey;autoIncrement"`
	UserID       string    `gorm:"size:36;uniqueIndex;not null"`
	StudentID    string    `gorm:"size:64;uniqueIndex;not null"`
	Email        string    `gorm:"size:255"`
	Nickname     string    `gorm:"size:64;not null"`
	AvatarPath   string    `gorm:"size:512"`
	RegisteredAt time.Time `gorm:"not null"`
	PasswordHash string    `gorm:"size:255"`
	Salt         string    `gorm:"size:64"`
	Role         string    `gorm:"size:16;not null"`
	PostIDs      string    `gorm:"type:text"`
	BannedUntil  time.Time
}

func (UserRecord) TableName() string { return "forum_users" }

// PostRecord is the relational row of a Post. Images and the comment tree are
// stored as JSON text.
type PostRecord struct {
	Seq          uint      `gorm:"primaryKey;autoIncrement"`
	PostID       string    `gorm:"size:36;uniqueIndex;not null"`
	Title        string    `gorm:"size:255;not null"`
	Content      string    `gorm:"type:text"`
	AuthorID     string    `gorm:"size:36;index"`
	Category     string    `gorm:"size:32;index"`
	Status       string    `gorm:"size:16;index"`
	PublishTime  time.Time `gorm:"index"`
	UpdateTime   time.Time
	ViewCount    int
	LikeCount    int
	CommentCount int
	Images       string `gorm:"type:text"`
	Anonymous    bool
	Sensitive    bool
	ForceDeleted bool
	Comments     string `gorm:"type:longtext"`
}

func (PostRecord) TableName() string { return "forum_posts" }

func (u *User) ToRecord() (UserRecord, error) {
	ids, err := json.Marshal(nonNilStrings(u.PostIDs))
	if err != nil {
		return UserRecord{}, err
	}
	return UserRecord{
		UserID:       u.ID,
		StudentID:    u.StudentID,
		Email:        u.Email,
		Nickname:     u.Nickname,
		AvatarPath:   u.AvatarPath,
		RegisteredAt: u.RegisteredAt,
		PasswordHash: u.PasswordHash,
		Salt:         u.Salt,
		Role:         string(u.Role),
		PostIDs:      string(ids),
		BannedUntil:  u.BannedUntil,
	}, nil
}

func (r UserRecord) ToUser() (*User, error) {
	u := &User{
		ID:           r.UserID,
		StudentID:    r.StudentID,
		Email:        r.Email,
		Nickname:     r.Nickname,
		AvatarPath:   r.AvatarPath,
		RegisteredAt: r.RegisteredAt,
		PasswordHash: r.PasswordHash,
		Salt:         r.Salt,
		Role:         Role(r.Role),
		PostIDs:      []string{},
		BannedUntil:  r.BannedUntil,
	}
	if r.PostIDs != "" {
		if err := json.Unmarshal([]byte(r.PostIDs), &u.PostIDs); err != nil {
			return nil, err
		}
	}
	return u, nil
}

func (p *Post) ToRecord() (PostRecord, error) {
	images, err := json.Marshal(p.Images)
	if err != nil {
		return PostRecord{}, err
	}
	comments, err := json.Marshal(p.CommentList)
	if err != nil {
		return PostRecord{}, err
	}
	return PostRecord{
		PostID:       p.ID,
		Title:        p.Title,
		Content:      p.Content,
		AuthorID:     p.AuthorID,
		Category:     string(p.Category),
		Status:       string(p.Status),
		PublishTime:  p.PublishTime,
		UpdateTime:   p.UpdateTime,
		ViewCount:    p.ViewCount,
		LikeCount:    p.LikeCount,
		CommentCount: p.CommentCount,
		Images:       string(images),
		Anonymous:    p.Anonymous,
		Sensitive:    p.Sensitive,
		ForceDeleted: p.ForceDeleted,
		Comments:     string(comments),
	}, nil
}

func (r PostRecord) ToPost() (*Post, error) {
	p := &Post{
		ID:           r.PostID,
		Title:        r.Title,
		Content:      r.Content,
		AuthorID:     r.AuthorID,
		Category:     PostCategory(r.Category),
		Status:       PostStatus(r.Status),
		PublishTime:  r.PublishTime,
		UpdateTime:   r.UpdateTime,
		ViewCount:    r.ViewCount,
		LikeCount:    r.LikeCount,
		CommentCount: r.CommentCount,
		Anonymous:    r.Anonymous,
		Sensitive:    r.Sensitive,
		ForceDeleted: r.ForceDeleted,
	}
	if r.Images != "" {
		if err := json.Unmarshal([]byte(r.Images), &p.Images); err != nil {
			return nil, err
		}
	}
	if r.Comments != "" {
		if err := json.Unmarshal([]byte(r.Comments), &p.CommentList); err != nil {
			return nil, err
		}
	}
	p.Bind(nil)
	return p, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
