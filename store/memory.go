package store

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/campusbbs/models"
)

// MemoryLoader keeps serialized snapshots in process memory. Loads decode a
// fresh copy, so callers never share state with the store.
type MemoryLoader struct {
	mu     sync.Mutex
	users  []byte
	posts  []byte
	logger *zap.Logger
}

// NewMemoryLoader returns an empty store, or one holding the sample feed.
func NewMemoryLoader(seed bool, logger *zap.Logger) *MemoryLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &MemoryLoader{users: emptyArray, posts: emptyArray, logger: logger}
	if seed {
		m.SavePosts(SamplePosts(models.Now()))
	}
	return m
}

func (m *MemoryLoader) LoadUsers() []*models.User {
	var users []*models.User
	if !m.decode(m.snapshot(&m.users), &users) {
		return []*models.User{}
	}
	return normalizeUsers(users)
}

func (m *MemoryLoader) SaveUsers(users []*models.User) bool {
	if users == nil {
		users = []*models.User{}
	}
	return m.store(&m.users, users)
}

func (m *MemoryLoader) LoadPosts() []*models.Post {
	var posts []*models.Post
	if !m.decode(m.snapshot(&m.posts), &posts) {
		return []*models.Post{}
	}
	return normalizePosts(posts)
}

func (m *MemoryLoader) SavePosts(posts []*models.Post) bool {
	if posts == nil {
		posts = []*models.Post{}
	}
	return m.store(&m.posts, posts)
}

func (m *MemoryLoader) Close() error { return nil }

func (m *MemoryLoader) snapshot(slot *[]byte) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *slot
}

func (m *MemoryLoader) store(slot *[]byte, v interface{}) bool {
	b, err := json.Marshal(v)
	if err != nil {
		m.logger.Error("encode snapshot failed", zap.Error(err))
		return false
	}
	m.mu.Lock()
	*slot = b
	m.mu.Unlock()
	return true
}

func (m *MemoryLoader) decode(b []byte, out interface{}) bool {
	if err := json.Unmarshal(b, out); err != nil {
		m.logger.Warn("decode snapshot failed", zap.Error(err))
		return false
	}
	return true
}

type samplePost struct {
	title, content, author string
	category               models.PostCategory
	views, likes, comments int
	age                    time.Duration
}

var sampleFeed = []samplePost{
	{"Java多线程学习心得", "最近在学习Java多线程编程，分享一些心得体会...", "student_001", models.CategoryLearning, 150, 45, 23, 2 * time.Hour},
	{"校园篮球比赛通知", "本周五下午体育馆举行篮球比赛，欢迎大家参加！", "sports_committee", models.CategoryCampusLife, 320, 120, 56, 5 * time.Hour},
	{"转让二手笔记本电脑", "联想ThinkPad，9成新，配置：i7/16G/512G SSD", "student_2024", models.CategorySecondHand, 180, 65, 12, 24 * time.Hour},
	{"周末编程学习小组招募", "寻找对Java开发感兴趣的同学一起学习交流", "tech_group", models.CategoryActivity, 95, 32, 18, 48 * time.Hour},
	{"关于宿舍网络的问题", "最近宿舍网络不太稳定，有相同情况的同学吗？", "student_net", models.CategoryQnA, 210, 78, 45, 10 * time.Hour},
	{"实习经验分享会", "本周六下午有学长学姐分享实习经验，欢迎参加", "career_center", models.CategoryEmployment, 420, 200, 89, time.Hour},
}

// SamplePosts builds the demo feed: six published posts with preset counters,
// published at fixed offsets before now.
func SamplePosts(now time.Time) []*models.Post {
	out := make([]*models.Post, 0, len(sampleFeed))
	for _, s := range sampleFeed {
		p := models.NewPost(s.title, s.content, s.author, s.category)
		p.Publish()
		p.PublishTime = now.Add(-s.age)
		p.UpdateTime = p.PublishTime
		p.ViewCount = s.views
		p.LikeCount = s.likes
		p.CommentCount = s.comments
		out = append(out, p)
	}
	return out
}
