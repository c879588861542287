package services

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cppla/campusbbs/events"
	"github.com/cppla/campusbbs/models"
	"github.com/cppla/campusbbs/session"
)

// Register creates a regular account, or an administrator when the student id
// is configured as one. Conflicts are checked before the code is consumed.
func (f *Forum) Register(req RegisterRequest) (models.Profile, error) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	req.Nickname = strings.TrimSpace(req.Nickname)
	req.Code = strings.TrimSpace(req.Code)
	if err := f.checkStruct(req); err != nil {
		return models.Profile{}, err
	}
	if req.Password != req.ConfirmPassword {
		return models.Profile{}, errInput("passwords do not match")
	}
	email, err := f.campusEmail(req.Email)
	if err != nil {
		return models.Profile{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, taken := f.byStudent[studentKey(req.StudentID)]; taken {
		return models.Profile{}, fmt.Errorf("%w: student id already registered", ErrConflict)
	}
	if f.nicknameTaken(req.Nickname, "") {
		return models.Profile{}, fmt.Errorf("%w: nickname already taken", ErrConflict)
	}
	if !f.codes.IsCodeValid(email, req.Code) {
		return models.Profile{}, ErrInvalidCode
	}

	u := models.NewUser(req.StudentID, req.Nickname, email)
	if f.isAdminStudentID(req.StudentID) {
		u.Role = models.RoleAdmin
	}
	if err := u.SetPassword(f.hasher, req.Password); err != nil {
		return models.Profile{}, fmt.Errorf("hash password: %w", err)
	}
	f.users = append(f.users, u)
	f.byID[u.ID] = u
	f.byStudent[studentKey(u.StudentID)] = u
	f.logger.Info("user registered", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	return u.Profile(), nil
}

// Login verifies the credential and binds the account to sess.
func (f *Forum) Login(sess *session.Session, studentID, password string) (models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.byStudent[studentKey(studentID)]
	if !ok || !u.VerifyPassword(f.hasher, password) {
		return models.Profile{}, fmt.Errorf("%w: wrong student id or password", ErrUnauthorized)
	}
	if u.IsBanned(f.now()) {
		return models.Profile{}, fmt.Errorf("%w: account banned until %s", ErrForbidden, u.BannedUntil.Format("2006-01-02"))
	}
	sess.StartSession(u)
	return u.Profile(), nil
}

func (f *Forum) Logout(sess *session.Session) {
	sess.ClearSession()
}

// Profile returns the public profile of userID.
func (f *Forum) Profile(userID string) (models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return models.Profile{}, ErrNotFound
	}
	return u.Profile(), nil
}

// Me returns the profile of the session's user.
func (f *Forum) Me(sess *session.Session) (models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.actor(sess)
	if err != nil {
		return models.Profile{}, err
	}
	return u.Profile(), nil
}

// UpdateProfile changes nickname and avatar. Blank fields are left alone.
func (f *Forum) UpdateProfile(sess *session.Session, req ProfileRequest) (models.Profile, error) {
	if err := f.checkStruct(req); err != nil {
		return models.Profile{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.actor(sess)
	if err != nil {
		return models.Profile{}, err
	}
	if nick := strings.TrimSpace(req.Nickname); nick != "" && f.nicknameTaken(nick, u.ID) {
		return models.Profile{}, fmt.Errorf("%w: nickname already taken", ErrConflict)
	}
	u.UpdateProfile(req.Nickname, req.AvatarPath)
	return u.Profile(), nil
}

// ChangePassword requires the current password.
func (f *Forum) ChangePassword(sess *session.Session, req PasswordRequest) error {
	if err := f.checkStruct(req); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.actor(sess)
	if err != nil {
		return err
	}
	if !u.UpdatePassword(f.hasher, req.OldPassword, req.NewPassword) {
		return fmt.Errorf("%w: current password is wrong", ErrUnauthorized)
	}
	return nil
}

// Notifications lists what the session's user has received since start-up.
func (f *Forum) Notifications(sess *session.Session) ([]events.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.actor(sess)
	if err != nil {
		return nil, err
	}
	return u.Notifications(), nil
}

// ReportUser files a complaint against a user or a post. Only regular users
// may report.
func (f *Forum) ReportUser(sess *session.Session, targetID, reason string) (models.Report, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.Report{}, errInput("reason is required")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.actor(sess)
	if err != nil {
		return models.Report{}, err
	}
	if !u.CanReport() {
		return models.Report{}, ErrForbidden
	}
	_, isUser := f.byID[targetID]
	_, isPost := f.postByID[targetID]
	if !isUser && !isPost {
		return models.Report{}, ErrNotFound
	}
	if targetID == u.ID {
		return models.Report{}, errInput("cannot report yourself")
	}
	r := models.NewReport(targetID, u.ID, reason)
	f.reports = append(f.reports, r)
	f.logger.Info("report filed", zap.String("report_id", r.ID), zap.String("target", targetID))
	return r, nil
}

// ReviewReports lists filed reports, newest first. Administrators only.
func (f *Forum) ReviewReports(sess *session.Session) ([]models.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.actor(sess)
	if err != nil {
		return nil, err
	}
	if !u.CanModerate() {
		return nil, ErrForbidden
	}
	out := make([]models.Report, 0, len(f.reports))
	for i := len(f.reports) - 1; i >= 0; i-- {
		out = append(out, f.reports[i])
	}
	return out, nil
}

// BanUser blocks a regular account for days; days <= 0 bans permanently.
func (f *Forum) BanUser(sess *session.Session, userID string, days int) (models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	admin, err := f.actor(sess)
	if err != nil {
		return models.Profile{}, err
	}
	if !admin.CanModerate() {
		return models.Profile{}, ErrForbidden
	}
	target, ok := f.byID[userID]
	if !ok {
		return models.Profile{}, ErrNotFound
	}
	if target.IsAdmin() {
		return models.Profile{}, fmt.Errorf("%w: administrators cannot be banned", ErrForbidden)
	}
	target.Ban(days, f.now())
	f.logger.Info("user banned", zap.String("user_id", target.ID), zap.Int("days", days), zap.String("by", admin.ID))
	return target.Profile(), nil
}

// UnbanUser lifts a ban. Administrators only.
func (f *Forum) UnbanUser(sess *session.Session, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	admin, err := f.actor(sess)
	if err != nil {
		return err
	}
	if !admin.CanModerate() {
		return ErrForbidden
	}
	target, ok := f.byID[userID]
	if !ok {
		return ErrNotFound
	}
	target.Unban()
	return nil
}

func (f *Forum) nicknameTaken(nickname, exceptID string) bool {
	for _, u := range f.users {
		if u.ID != exceptID && u.Nickname == nickname {
			return true
		}
	}
	return false
}
