package store

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/campusbbs/models"
)

const insertBatchSize = 100

// GormLoader maps the collections onto the forum_users and forum_posts tables.
// A save deletes every row and inserts the new set inside one transaction.
type GormLoader struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormLoader migrates the schema and returns a loader on db.
func NewGormLoader(db *gorm.DB, logger *zap.Logger) (*GormLoader, error) {
	if err := db.AutoMigrate(&models.UserRecord{}, &models.PostRecord{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return newGormLoader(db, logger), nil
}

func newGormLoader(db *gorm.DB, logger *zap.Logger) *GormLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormLoader{db: db, logger: logger}
}

func (g *GormLoader) LoadUsers() []*models.User {
	var rows []models.UserRecord
	if err := g.db.Order("seq").Find(&rows).Error; err != nil {
		g.logger.Warn("load users failed", zap.Error(err))
		return []*models.User{}
	}
	users := make([]*models.User, 0, len(rows))
	for _, r := range rows {
		u, err := r.ToUser()
		if err != nil {
			g.logger.Warn("skip unreadable user row", zap.String("user_id", r.UserID), zap.Error(err))
			continue
		}
		users = append(users, u)
	}
	return users
}

func (g *GormLoader) SaveUsers(users []*models.User) bool {
	rows := make([]models.UserRecord, 0, len(users))
	for _, u := range users {
		if u == nil {
			continue
		}
		r, err := u.ToRecord()
		if err != nil {
			g.logger.Error("encode user failed", zap.String("user_id", u.ID), zap.Error(err))
			return false
		}
		rows = append(rows, r)
	}
	return g.replace(&models.UserRecord{}, rows, len(rows))
}

func (g *GormLoader) LoadPosts() []*models.Post {
	var rows []models.PostRecord
	if err := g.db.Order("seq").Find(&rows).Error; err != nil {
		g.logger.Warn("load posts failed", zap.Error(err))
		return []*models.Post{}
	}
	posts := make([]*models.Post, 0, len(rows))
	for _, r := range rows {
		p, err := r.ToPost()
		if err != nil {
			g.logger.Warn("skip unreadable post row", zap.String("post_id", r.PostID), zap.Error(err))
			continue
		}
		posts = append(posts, p)
	}
	return posts
}

func (g *GormLoader) SavePosts(posts []*models.Post) bool {
	rows := make([]models.PostRecord, 0, len(posts))
	for _, p := range posts {
		if p == nil {
			continue
		}
		r, err := p.ToRecord()
		if err != nil {
			g.logger.Error("encode post failed", zap.String("post_id", p.ID), zap.Error(err))
			return false
		}
		rows = append(rows, r)
	}
	return g.replace(&models.PostRecord{}, rows, len(rows))
}

func (g *GormLoader) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (g *GormLoader) replace(model interface{}, rows interface{}, n int) bool {
	err := g.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
	if err != nil {
		g.logger.Error("save rows failed", zap.Int("count", n), zap.Error(err))
		return false
	}
	return true
}
