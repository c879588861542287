package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cppla/campusbbs/events"
)

// Role tags what an account may do.
type Role string

const (
	RoleRegular Role = "regular"
	RoleAdmin   Role = "admin"
)

// DefaultAvatar is assigned to new accounts.
const DefaultAvatar = "avatar.png"

// PasswordHasher turns a plaintext password into a salted hash and checks it back.
type PasswordHasher interface {
	Hash(plain string) (hash, salt string, err error)
	Verify(plain, hash, salt string) bool
}

// User is a forum account. Regular users and administrators share this record
// and differ only by Role.
type User struct {
	ID           string    `json:"user_id"`
	StudentID    string    `json:"student_id"`
	Email        string    `json:"email"`
	Nickname     string    `json:"nickname"`
	AvatarPath   string    `json:"avatar_path"`
	RegisteredAt time.Time `json:"registration_time"`
	PasswordHash string    `json:"hashed_password"`
	Salt         string    `json:"salt"`
	Role         Role      `json:"role"`
	PostIDs      []string  `json:"my_posts"`
	BannedUntil  time.Time `json:"banned_until"`

	notifications []events.Event
}

// NewUser creates a regular account with the default avatar.
func NewUser(studentID, nickname, email string) *User {
	return &User{
		ID:           uuid.NewString(),
		StudentID:    studentID,
		Email:        email,
		Nickname:     nickname,
		AvatarPath:   DefaultAvatar,
		RegisteredAt: Now(),
		Role:         RoleRegular,
		PostIDs:      []string{},
	}
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// CanModerate covers force deletion, status changes, bans and report review.
func (u *User) CanModerate() bool { return u.IsAdmin() }

// CanReport and CanLike are regular-account capabilities.
func (u *User) CanReport() bool { return u.Role == RoleRegular }
func (u *User) CanLike() bool   { return u.Role == RoleRegular }

// CanPostIn reports whether u may open a thread in c.
func (u *User) CanPostIn(c PostCategory) bool {
	return c.Valid() && (c.IsUserPostable() || u.IsAdmin())
}

// SetPassword replaces the stored hash and salt.
func (u *User) SetPassword(h PasswordHasher, plain string) error {
	hash, salt, err := h.Hash(plain)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.Salt = salt
	return nil
}

func (u *User) VerifyPassword(h PasswordHasher, plain string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return h.Verify(plain, u.PasswordHash, u.Salt)
}

// UpdatePassword changes the password after checking the old one.
func (u *User) UpdatePassword(h PasswordHasher, oldPlain, newPlain string) bool {
	if !u.VerifyPassword(h, oldPlain) {
		return false
	}
	return u.SetPassword(h, newPlain) == nil
}

// UpdateProfile sets nickname and avatar. Blank values keep the current ones.
func (u *User) UpdateProfile(nickname, avatar string) {
	if s := strings.TrimSpace(nickname); s != "" {
		u.Nickname = s
	}
	if s := strings.TrimSpace(avatar); s != "" {
		u.AvatarPath = s
	}
}

// AddPostID records authorship. Duplicates are ignored.
func (u *User) AddPostID(id string) {
	for _, cur := range u.PostIDs {
		if cur == id {
			return
		}
	}
	u.PostIDs = append(u.PostIDs, id)
}

// Ban blocks logins for days. A non-positive duration bans permanently.
func (u *User) Ban(days int, now time.Time) {
	if days <= 0 {
		u.BannedUntil = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
		return
	}
	u.BannedUntil = now.AddDate(0, 0, days)
}

func (u *User) Unban() { u.BannedUntil = time.Time{} }

func (u *User) IsBanned(now time.Time) bool {
	return !u.BannedUntil.IsZero() && now.Before(u.BannedUntil)
}

// ObserverID implements events.Observer.
func (u *User) ObserverID() string { return u.ID }

// Notify appends ev to the user's notification list.
func (u *User) Notify(ev events.Event) {
	u.notifications = append(u.notifications, ev)
}

// Notifications returns a copy of the received notifications, oldest first.
func (u *User) Notifications() []events.Event {
	out := make([]events.Event, len(u.notifications))
	copy(out, u.notifications)
	return out
}

// Profile is the public part of an account.
type Profile struct {
	ID           string    `json:"user_id"`
	StudentID    string    `json:"student_id"`
	Nickname     string    `json:"nickname"`
	AvatarPath   string    `json:"avatar_path"`
	Role         Role      `json:"role"`
	RegisteredAt time.Time `json:"registration_time"`
	PostCount    int       `json:"post_count"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:           u.ID,
		StudentID:    u.StudentID,
		Nickname:     u.Nickname,
		AvatarPath:   u.AvatarPath,
		Role:         u.Role,
		RegisteredAt: u.RegisteredAt,
		PostCount:    len(u.PostIDs),
	}
}
