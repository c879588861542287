package services

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/campusbbs/events"
	"github.com/cppla/campusbbs/models"
	"github.com/cppla/campusbbs/session"
	"github.com/cppla/campusbbs/store"
	"github.com/cppla/campusbbs/utils"
)

type fakeCodes struct {
	codes map[string]string
	sent  []string
	fail  bool
}

func newFakeCodes() *fakeCodes { return &fakeCodes{codes: map[string]string{}} }

func (c *fakeCodes) SendCode(_ context.Context, email string) bool {
	if c.fail {
		return false
	}
	c.codes[email] = "123456"
	c.sent = append(c.sent, email)
	return true
}

func (c *fakeCodes) IsCodeValid(email, code string) bool {
	if want, ok := c.codes[email]; ok && want == code {
		delete(c.codes, email)
		return true
	}
	return false
}

type fixture struct {
	forum  *Forum
	codes  *fakeCodes
	loader store.DataLoader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loader := store.NewMemoryLoader(false, nil)
	codes := newFakeCodes()
	f := New(loader, utils.PBKDF2Hasher{Iterations: 10}, codes, nil, nil, Options{
		AdminStudentIDs: []string{"ADMIN01"},
	})
	f.Load()
	return &fixture{forum: f, codes: codes, loader: loader}
}

// signUp registers and logs in, returning a session bound to the new account.
func (fx *fixture) signUp(t *testing.T, studentID, nickname string) (*session.Session, models.Profile) {
	t.Helper()
	email := studentID + "@buaa.edu.cn"
	require.NoError(t, fx.forum.SendCode(context.Background(), email))
	_, err := fx.forum.Register(RegisterRequest{
		StudentID:       studentID,
		Nickname:        nickname,
		Email:           email,
		Code:            "123456",
		Password:        "secret123",
		ConfirmPassword: "secret123",
	})
	require.NoError(t, err)
	sess := session.New()
	prof, err := fx.forum.Login(sess, studentID, "secret123")
	require.NoError(t, err)
	return sess, prof
}

func (fx *fixture) publish(t *testing.T, sess *session.Session, title, category string) PostDetail {
	t.Helper()
	d, err := fx.forum.CreatePost(sess, CreatePostRequest{
		Title: title, Content: title + " 的正文", Category: category, Publish: true,
	})
	require.NoError(t, err)
	return d
}

func TestRegister_Validation(t *testing.T) {
	fx := newFixture(t)
	f := fx.forum
	fx.signUp(t, "20230001", "alice")

	base := RegisterRequest{
		StudentID: "20230002", Nickname: "bob", Email: "bob",
		Code: "123456", Password: "secret123", ConfirmPassword: "secret123",
	}

	mismatch := base
	mismatch.ConfirmPassword = "other"
	_, err := f.Register(mismatch)
	assert.ErrorIs(t, err, ErrInvalidInput)

	foreign := base
	foreign.Email = "bob@gmail.com"
	_, err = f.Register(foreign)
	assert.ErrorIs(t, err, ErrInvalidInput)

	dupID := base
	dupID.StudentID = "20230001"
	_, err = f.Register(dupID)
	assert.ErrorIs(t, err, ErrConflict)

	dupNick := base
	dupNick.Nickname = "alice"
	_, err = f.Register(dupNick)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.Register(base)
	assert.ErrorIs(t, err, ErrInvalidCode, "no code was sent to bob")

	require.NoError(t, f.SendCode(context.Background(), "bob"))
	assert.Equal(t, "bob@buaa.edu.cn", fx.codes.sent[len(fx.codes.sent)-1])
	prof, err := f.Register(base)
	require.NoError(t, err)
	assert.Equal(t, models.RoleRegular, prof.Role)

	_, err = f.Register(RegisterRequest{StudentID: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRegister_ConfiguredAdmin(t *testing.T) {
	fx := newFixture(t)
	_, prof := fx.signUp(t, "admin01", "root")
	assert.Equal(t, models.RoleAdmin, prof.Role)
}

func TestSendCode_Failures(t *testing.T) {
	fx := newFixture(t)
	assert.ErrorIs(t, fx.forum.SendCode(context.Background(), ""), ErrInvalidInput)
	assert.ErrorIs(t, fx.forum.SendCode(context.Background(), "a@qq.com"), ErrInvalidInput)

	fx.codes.fail = true
	assert.ErrorIs(t, fx.forum.SendCode(context.Background(), "a"), ErrDelivery)

	var got []bool
	fx.forum.SendCodeAsync("a", func(ok bool) { got = append(got, ok) })
	assert.Equal(t, []bool{false}, got)
}

func TestLogin(t *testing.T) {
	fx := newFixture(t)
	sess, _ := fx.signUp(t, "20230001", "alice")
	assert.True(t, sess.IsLoggedIn())

	fx.forum.Logout(sess)
	assert.False(t, sess.IsLoggedIn())

	other := session.New()
	_, err := fx.forum.Login(other, "20230001", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, other.IsLoggedIn())
	_, err = fx.forum.Login(other, "nobody", "secret123")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestPostLifecycleAndNotifications(t *testing.T) {
	fx := newFixture(t)
	f := fx.forum
	alice, aliceProf := fx.signUp(t, "20230001", "alice")
	bob, bobProf := fx.signUp(t, "20230002", "bob")

	draft, err := f.CreatePost(alice, CreatePostRequest{
		Title: "期末复习", Content: "一起复习吧", Category: "学习交流",
		Images: []ImageInput{{OriginalName: "notes.png", FileSize: 1024}},
	})
	require.NoError(t, err)
	assert.Equal(t, "草稿", draft.Status)
	assert.Equal(t, 1, draft.ImageCount)
	assert.Equal(t, "alice", draft.Author)

	_, err = f.ViewPost(bob, draft.ID)
	assert.ErrorIs(t, err, ErrNotFound, "drafts are hidden from other readers")
	_, err = f.AddComment(bob, draft.ID, "hi")
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.PublishPost(bob, draft.ID, false)
	assert.ErrorIs(t, err, ErrForbidden)
	pub, err := f.PublishPost(alice, draft.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "已发布", pub.Status)

	c, err := f.AddComment(bob, pub.ID, "我也来")
	require.NoError(t, err)
	_, err = f.ReplyComment(alice, pub.ID, c.ID, "欢迎")
	require.NoError(t, err)
	_, err = f.ReplyComment(alice, pub.ID, "missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)

	likes, err := f.LikePost(bob, pub.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, likes)

	view, err := f.ViewPost(nil, pub.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.ViewCount)
	assert.Equal(t, 2, view.CommentCount)
	require.Len(t, view.Comments, 1)
	assert.Len(t, view.Comments[0].Replies, 1)
	assert.Equal(t, aliceProf.ID, view.AuthorID)
	assert.Empty(t, view.RealAuthorID)

	aliceNotes, err := f.Notifications(alice)
	require.NoError(t, err)
	require.Len(t, aliceNotes, 2)
	assert.Equal(t, events.CommentCreated, aliceNotes[0].Type)
	assert.Equal(t, "bob 评论了你的帖子《期末复习》：我也来", aliceNotes[0].Message)
	assert.Equal(t, events.PostLiked, aliceNotes[1].Type)

	bobNotes, err := f.Notifications(bob)
	require.NoError(t, err)
	require.Len(t, bobNotes, 1)
	assert.Equal(t, events.ReplyCreated, bobNotes[0].Type)
	assert.Equal(t, aliceProf.ID, bobNotes[0].ActorID)
	assert.Equal(t, bobProf.ID, bobNotes[0].RecipientID)

	updated, err := f.UpdatePost(alice, pub.ID, UpdatePostRequest{Title: "期末复习(更新)", Content: "新内容", Category: "qna"})
	require.NoError(t, err)
	assert.Equal(t, "qna", updated.CategoryKey)
	_, err = f.UpdatePost(bob, pub.ID, UpdatePostRequest{Title: "x", Content: "y", Category: "qna"})
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, f.DeletePost(alice, pub.ID))
	assert.ErrorIs(t, f.DeletePost(alice, pub.ID), ErrConflict)
	_, err = f.ViewPost(nil, pub.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	restored, err := f.RestorePost(alice, pub.ID)
	require.NoError(t, err)
	assert.Equal(t, "已发布", restored.Status)
}

func TestAnonymousPostRevealsAuthorToAdminsOnly(t *testing.T) {
	fx := newFixture(t)
	alice, aliceProf := fx.signUp(t, "20230001", "alice")
	bob, _ := fx.signUp(t, "20230002", "bob")
	admin, _ := fx.signUp(t, "ADMIN01", "root")

	d, err := fx.forum.CreatePost(alice, CreatePostRequest{
		Title: "匿名树洞", Content: "说点心里话", Category: "campus_life", Publish: true, Anonymous: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "某同学", d.Author)
	assert.Empty(t, d.AuthorID)

	asBob, err := fx.forum.ViewPost(bob, d.ID)
	require.NoError(t, err)
	assert.Empty(t, asBob.RealAuthorID)

	asAdmin, err := fx.forum.ViewPost(admin, d.ID)
	require.NoError(t, err)
	assert.Equal(t, aliceProf.ID, asAdmin.RealAuthorID)

	mine, err := fx.forum.UserPosts(bob, aliceProf.ID)
	require.NoError(t, err)
	assert.Empty(t, mine, "anonymous posts stay off the public profile")
	mine, err = fx.forum.UserPosts(alice, aliceProf.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestRolePermissions(t *testing.T) {
	fx := newFixture(t)
	f := fx.forum
	alice, _ := fx.signUp(t, "20230001", "alice")
	admin, _ := fx.signUp(t, "ADMIN01", "root")

	_, err := f.CreatePost(alice, CreatePostRequest{Title: "公告", Content: "内容", Category: "announcement", Publish: true})
	assert.ErrorIs(t, err, ErrForbidden)
	notice := fx.publish(t, admin, "系统公告", "announcement")
	assert.Equal(t, "announcement", notice.CategoryKey)

	post := fx.publish(t, alice, "普通帖", "learning")
	_, err = f.LikePost(admin, post.ID)
	assert.ErrorIs(t, err, ErrForbidden, "administrators cannot like")
	_, err = f.TransitionPost(alice, post.ID, "locked")
	assert.ErrorIs(t, err, ErrForbidden)

	locked, err := f.TransitionPost(admin, post.ID, "locked")
	require.NoError(t, err)
	assert.Equal(t, "已锁定", locked.Status)
	_, err = f.AddComment(alice, post.ID, "还能评论吗")
	assert.ErrorIs(t, err, ErrConflict)
	_, err = f.TransitionPost(admin, post.ID, "draft")
	assert.ErrorIs(t, err, ErrConflict)
	_, err = f.TransitionPost(admin, post.ID, "bogus")
	assert.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, f.DeletePost(admin, post.ID))
	_, err = f.RestorePost(alice, post.ID)
	assert.ErrorIs(t, err, ErrConflict, "force-deleted posts stay deleted")
	_, err = f.TransitionPost(admin, post.ID, "published")
	assert.ErrorIs(t, err, ErrConflict)

	notes, err := f.Notifications(alice)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, events.PostModerated, notes[0].Type)
	assert.Equal(t, events.PostModerated, notes[1].Type)
}

func TestReportsAndBans(t *testing.T) {
	fx := newFixture(t)
	f := fx.forum
	alice, aliceProf := fx.signUp(t, "20230001", "alice")
	bob, bobProf := fx.signUp(t, "20230002", "bob")
	admin, adminProf := fx.signUp(t, "ADMIN01", "root")

	_, err := f.ReportUser(alice, bobProf.ID, "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.ReportUser(alice, "ghost", "spam")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.ReportUser(admin, bobProf.ID, "spam")
	assert.ErrorIs(t, err, ErrForbidden)
	r, err := f.ReportUser(alice, bobProf.ID, "spam")
	require.NoError(t, err)
	assert.Equal(t, aliceProf.ID, r.ReporterID)

	_, err = f.ReviewReports(alice)
	assert.ErrorIs(t, err, ErrForbidden)
	reports, err := f.ReviewReports(admin)
	require.NoError(t, err)
	require.Len(t, reports, 1)

	_, err = f.BanUser(alice, bobProf.ID, 3)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.BanUser(admin, adminProf.ID, 3)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.BanUser(admin, bobProf.ID, 0)
	require.NoError(t, err)

	_, err = f.CreatePost(bob, CreatePostRequest{Title: "t", Content: "c", Category: "qna"})
	assert.ErrorIs(t, err, ErrForbidden, "banned sessions are refused")
	_, err = f.Login(session.New(), "20230002", "secret123")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.Authenticate(bobProf.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, f.UnbanUser(admin, bobProf.ID))
	_, err = f.Authenticate(bobProf.ID)
	assert.NoError(t, err)
}

func TestProfileAndPassword(t *testing.T) {
	fx := newFixture(t)
	f := fx.forum
	alice, aliceProf := fx.signUp(t, "20230001", "alice")
	fx.signUp(t, "20230002", "bob")

	_, err := f.UpdateProfile(alice, ProfileRequest{Nickname: "bob"})
	assert.ErrorIs(t, err, ErrConflict)
	prof, err := f.UpdateProfile(alice, ProfileRequest{Nickname: "alice2", AvatarPath: "me.png"})
	require.NoError(t, err)
	assert.Equal(t, "alice2", prof.Nickname)
	assert.Equal(t, "me.png", prof.AvatarPath)

	prof, err = f.UpdateProfile(alice, ProfileRequest{})
	require.NoError(t, err)
	assert.Equal(t, "alice2", prof.Nickname)

	assert.ErrorIs(t, f.ChangePassword(alice, PasswordRequest{OldPassword: "nope", NewPassword: "another1"}), ErrUnauthorized)
	require.NoError(t, f.ChangePassword(alice, PasswordRequest{OldPassword: "secret123", NewPassword: "another1"}))
	_, err = f.Login(session.New(), "20230001", "another1")
	assert.NoError(t, err)

	got, err := f.Profile(aliceProf.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice2", got.Nickname)
	_, err = f.Profile("ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.Me(session.New())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestFeed(t *testing.T) {
	fx := newFixture(t)
	f := fx.forum
	alice, _ := fx.signUp(t, "20230001", "alice")
	bob, _ := fx.signUp(t, "20230002", "bob")

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, fx.publish(t, alice, fmt.Sprintf("Go 笔记 %d", i), "learning").ID)
	}
	second := fx.publish(t, alice, "出二手自行车", "second_hand")
	_, err := f.CreatePost(alice, CreatePostRequest{Title: "草稿 Go", Content: "c", Category: "learning"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := f.LikePost(bob, second.ID)
		require.NoError(t, err)
	}

	page, err := f.Feed(FeedQuery{Category: "learning", PageSize: 2, Page: 3})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total, "drafts are excluded")
	assert.Len(t, page.Posts, 1)

	page, err = f.Feed(FeedQuery{Keyword: "go"})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)

	page, err = f.Feed(FeedQuery{Keyword: "正文", SearchIn: "content"})
	require.NoError(t, err)
	assert.Equal(t, 6, page.Total)

	page, err = f.Feed(FeedQuery{Sort: "hot"})
	require.NoError(t, err)
	require.NotEmpty(t, page.Posts)
	assert.Equal(t, second.ID, page.Posts[0].ID)

	page, err = f.Feed(FeedQuery{Page: 99})
	require.NoError(t, err)
	assert.Empty(t, page.Posts)
	assert.Equal(t, 6, page.Total)

	_, err = f.Feed(FeedQuery{Category: "nope"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Empty(t, f.HotPosts(10), "nothing is above the default threshold")
	stats := f.Stats()
	assert.Equal(t, 2, stats.Users)
	assert.Equal(t, 7, stats.Posts)
	assert.Equal(t, 6, stats.Published)
}

func TestHotPostsUsesThreshold(t *testing.T) {
	loader := store.NewMemoryLoader(true, nil)
	f := New(loader, utils.BcryptHasher{Cost: 4}, newFakeCodes(), nil, nil, Options{HotThreshold: 60})
	f.Load()

	hot := f.HotPosts(0)
	require.NotEmpty(t, hot)
	for i := 1; i < len(hot); i++ {
		assert.GreaterOrEqual(t, hot[i-1].HotScore, hot[i].HotScore)
	}
	for _, p := range hot {
		assert.Greater(t, p.HotScore, 60.0)
	}
	assert.Len(t, f.HotPosts(1), 1)
}

func TestSaveAndReloadRebindsEvents(t *testing.T) {
	fx := newFixture(t)
	alice, aliceProf := fx.signUp(t, "20230001", "alice")
	post := fx.publish(t, alice, "持久化", "qna")

	d := utils.NewDispatcher(4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() { d.Run(ctx); close(loopDone) }()

	fx.forum.tasks = d
	var saved []bool
	fx.forum.SaveAsync(func(ok bool) { saved = append(saved, ok) })
	d.Wait()
	cancel()
	<-loopDone
	assert.Equal(t, []bool{true}, saved)

	reloaded := New(fx.loader, utils.PBKDF2Hasher{Iterations: 10}, newFakeCodes(), nil, nil, Options{})
	reloaded.Load()
	aliceAgain := session.New()
	_, err := reloaded.Login(aliceAgain, "20230001", "secret123")
	require.NoError(t, err)

	require.NoError(t, reloaded.SendCode(context.Background(), "20230003"))
	_, err = reloaded.Register(RegisterRequest{
		StudentID: "20230003", Nickname: "carol", Email: "20230003",
		Code: "123456", Password: "secret123", ConfirmPassword: "secret123",
	})
	require.NoError(t, err)
	carol := session.New()
	_, err = reloaded.Login(carol, "20230003", "secret123")
	require.NoError(t, err)

	_, err = reloaded.AddComment(carol, post.ID, "来自重启之后")
	require.NoError(t, err)
	notes, err := reloaded.Notifications(aliceAgain)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, aliceProf.ID, notes[0].RecipientID)

	mine, err := reloaded.UserPosts(aliceAgain, aliceProf.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, post.ID, mine[0].ID)
	assert.True(t, reloaded.Save())
}

func TestSubjectSubscribersSeeComments(t *testing.T) {
	fx := newFixture(t)
	alice, _ := fx.signUp(t, "20230001", "alice")
	bob, _ := fx.signUp(t, "20230002", "bob")
	post := fx.publish(t, alice, "订阅", "activity")

	watcher := &models.User{ID: "watcher"}
	fx.forum.Bus().Subscribe(post.ID, watcher)
	_, err := fx.forum.AddComment(bob, post.ID, "ping")
	require.NoError(t, err)
	assert.Len(t, watcher.Notifications(), 1)
}

func TestFeed_HugePageIsEmpty(t *testing.T) {
	fx := newFixture(t)
	alice, _ := fx.signUp(t, "20230001", "alice")
	fx.publish(t, alice, "分页", "learning")

	for _, page := range []int{math.MaxInt64 / 10, math.MaxInt} {
		out, err := fx.forum.Feed(FeedQuery{Page: page, PageSize: 20})
		require.NoError(t, err)
		assert.Empty(t, out.Posts)
		assert.Equal(t, 1, out.Total)
		assert.Equal(t, page, out.Page)
	}
}

func TestViewsCarryRelativeTime(t *testing.T) {
	base := time.Date(2024, 12, 10, 9, 0, 0, 0, time.Local)
	prev := models.Now
	models.Now = func() time.Time { return base }
	t.Cleanup(func() { models.Now = prev })

	fx := newFixture(t)
	alice, _ := fx.signUp(t, "20230001", "alice")
	bob, _ := fx.signUp(t, "20230002", "bob")
	post := fx.publish(t, alice, "时间", "qna")
	c, err := fx.forum.AddComment(bob, post.ID, "一楼")
	require.NoError(t, err)
	assert.Equal(t, "刚刚", c.RelativeTime)

	fx.forum.now = func() time.Time { return base.Add(3 * time.Hour) }
	reply, err := fx.forum.ReplyComment(alice, post.ID, c.ID, "回复")
	require.NoError(t, err)
	assert.Equal(t, "3 小时前", reply.RelativeTime, "the reply was stamped with the pinned model clock")

	page, err := fx.forum.Feed(FeedQuery{})
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "3 小时前", page.Posts[0].RelativeTime)

	d, err := fx.forum.ViewPost(nil, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "3 小时前", d.RelativeTime)
	require.Len(t, d.Comments, 1)
	assert.Equal(t, "3 小时前", d.Comments[0].RelativeTime)
	require.Len(t, d.Comments[0].Replies, 1)
	assert.Equal(t, "3 小时前", d.Comments[0].Replies[0].RelativeTime)
}

func TestFeedHotFlagFollowsConfiguredThreshold(t *testing.T) {
	f := New(store.NewMemoryLoader(true, nil), utils.BcryptHasher{Cost: 4}, newFakeCodes(), nil, nil, Options{HotThreshold: 60})
	f.Load()

	page, err := f.Feed(FeedQuery{PageSize: 100})
	require.NoError(t, err)
	flagged := 0
	for _, p := range page.Posts {
		assert.Equal(t, p.HotScore > 60, p.IsHot, p.ID)
		if p.IsHot {
			flagged++
		}
	}
	assert.Len(t, f.HotPosts(0), flagged)
	assert.Equal(t, flagged, f.Stats().HotPosts)
	assert.Less(t, flagged, len(page.Posts), "some seeded posts sit between the default and configured thresholds")
}

// countingLoader counts post saves.
type countingLoader struct {
	store.DataLoader
	saves int
}

func (l *countingLoader) SavePosts(posts []*models.Post) bool {
	l.saves++
	return l.DataLoader.SavePosts(posts)
}

func TestViewsAreFlushedInBatches(t *testing.T) {
	loader := &countingLoader{DataLoader: store.NewMemoryLoader(false, nil)}
	codes := newFakeCodes()
	f := New(loader, utils.PBKDF2Hasher{Iterations: 10}, codes, nil, nil, Options{})
	f.Load()
	fx := &fixture{forum: f, codes: codes, loader: loader}
	alice, _ := fx.signUp(t, "20230001", "alice")
	post := fx.publish(t, alice, "浏览", "daily")

	assert.False(t, f.FlushViews(), "nothing viewed yet")
	before := loader.saves
	for i := 0; i < 5; i++ {
		_, err := f.ViewPost(nil, post.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, before, loader.saves, "views alone do not save")

	assert.True(t, f.FlushViews())
	assert.Equal(t, before+1, loader.saves)
	assert.False(t, f.FlushViews())
	stored := loader.LoadPosts()
	require.Len(t, stored, 1)
	assert.Equal(t, 5, stored[0].ViewCount)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { f.FlushLoop(ctx, time.Millisecond); close(done) }()
	_, err := f.ViewPost(nil, post.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		posts := loader.LoadPosts()
		return len(posts) == 1 && posts[0].ViewCount == 6
	}, time.Second, 5*time.Millisecond, "the flush loop saves pending views")
	cancel()
	<-done
}
