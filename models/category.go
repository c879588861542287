package models

import (
	"sort"
	"strings"
)

// PostCategory identifies the board a post belongs to.
type PostCategory string

const (
	CategoryLearning     PostCategory = "learning"
	CategoryCampusLife   PostCategory = "campus_life"
	CategorySecondHand   PostCategory = "second_hand"
	CategoryActivity     PostCategory = "activity"
	CategoryQnA          PostCategory = "qna"
	CategoryEmployment   PostCategory = "employment"
	CategoryAnnouncement PostCategory = "announcement"
)

type categoryInfo struct {
	name     string
	icon     string
	weight   int
	postable bool
}

var categoryTable = map[PostCategory]categoryInfo{
	CategoryLearning:     {name: "学习交流", icon: "📚", weight: 1, postable: true},
	CategoryCampusLife:   {name: "校园生活", icon: "🏫", weight: 2, postable: true},
	CategorySecondHand:   {name: "二手交易", icon: "🛒", weight: 3, postable: true},
	CategoryActivity:     {name: "活动召集", icon: "🎉", weight: 4, postable: true},
	CategoryQnA:          {name: "问答求助", icon: "❓", weight: 5, postable: true},
	CategoryEmployment:   {name: "就业实习", icon: "💼", weight: 6, postable: true},
	CategoryAnnouncement: {name: "官方公告", icon: "📢", weight: 7, postable: false},
}

// Valid reports whether c is one of the known categories.
func (c PostCategory) Valid() bool {
	_, ok := categoryTable[c]
	return ok
}

// DisplayName returns the localized board name.
func (c PostCategory) DisplayName() string {
	return categoryTable[c].name
}

// Icon returns the glyph shown next to the board name.
func (c PostCategory) Icon() string {
	return categoryTable[c].icon
}

// SortWeight orders categories in menus. Unknown categories weigh 0.
func (c PostCategory) SortWeight() int {
	return categoryTable[c].weight
}

// IsUserPostable is false for boards reserved to administrators.
func (c PostCategory) IsUserPostable() bool {
	return categoryTable[c].postable
}

// DisplayText is the icon followed by the board name.
func (c PostCategory) DisplayText() string {
	info, ok := categoryTable[c]
	if !ok {
		return ""
	}
	return info.icon + " " + info.name
}

// ParseCategory accepts either the key ("qna") or the localized name ("问答求助").
func ParseCategory(s string) (PostCategory, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	key := PostCategory(strings.ToLower(s))
	if key.Valid() {
		return key, true
	}
	for c, info := range categoryTable {
		if info.name == s {
			return c, true
		}
	}
	return "", false
}

// Categories lists every category ordered by sort weight.
func Categories() []PostCategory {
	out := make([]PostCategory, 0, len(categoryTable))
	for c := range categoryTable {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SortWeight() < out[j].SortWeight()
	})
	return out
}

// UserPostableCategories lists the boards regular accounts may post to.
func UserPostableCategories() []PostCategory {
	var out []PostCategory
	for _, c := range Categories() {
		if c.IsUserPostable() {
			out = append(out, c)
		}
	}
	return out
}
