// Package itunes holds the Apple Podcasts category catalogue and helpers for
// the "Top > Sub" category notation stored on feeds.
package itunes

import (
	"sort"
	"strings"
)

// Separator joins a top-level category and a subcategory in stored values.
const Separator = " > "

// Category is one top-level entry of the catalogue.
type Category struct {
	Name          string   `json:"name"`
	Subcategories []string `json:"subcategories"`
}

var catalogue = []Category{
	{"Arts", []string{"Books", "Design", "Fashion & Beauty", "Food", "Performing Arts", "Visual Arts"}},
	{"Business", []string{"Careers", "Entrepreneurship", "Investing", "Management", "Marketing", "Non-Profit"}},
	{"Comedy", []string{"Comedy Interviews", "Improv", "Stand-Up"}},
	{"Education", []string{"Courses", "How To", "Language Learning", "Self-Improvement"}},
	{"Fiction", []string{"Comedy Fiction", "Drama", "Science Fiction"}},
	{"Government", nil},
	{"History", nil},
	{"Health & Fitness", []string{"Alternative Health", "Fitness", "Medicine", "Mental Health", "Nutrition", "Sexuality"}},
	{"Kids & Family", []string{"Education for Kids", "Parenting", "Pets & Animals", "Stories for Kids"}},
	{"Leisure", []string{"Animation & Manga", "Automotive", "Aviation", "Crafts", "Games", "Hobbies", "Home & Garden", "Video Games"}},
	{"Music", []string{"Music Commentary", "Music History", "Music Interviews"}},
	{"News", []string{"Business News", "Daily News", "Entertainment News", "News Commentary", "Politics", "Sports News", "Tech News"}},
	{"Religion & Spirituality", []string{"Buddhism", "Christianity", "Hinduism", "Islam", "Judaism", "Religion", "Spirituality"}},
	{"Science", []string{"Astronomy", "Chemistry", "Earth Sciences", "Life Sciences", "Mathematics", "Natural Sciences", "Nature", "Physics", "Social Sciences"}},
	{"Society & Culture", []string{"Documentary", "Personal Journals", "Philosophy", "Places & Travel", "Relationships"}},
	{"Sports", []string{"Baseball", "Basketball", "Cricket", "Fantasy Sports", "Football", "Golf", "Hockey", "Rugby", "Running", "Soccer", "Swimming", "Tennis", "Volleyball", "Wilderness", "Wrestling"}},
	{"Technology", nil},
	{"True Crime", nil},
	{"TV & Film", []string{"After Shows", "Film History", "Film Interviews", "Film Reviews", "TV Reviews"}},
}

// Categories returns a copy of the catalogue in display order.
func Categories() []Category {
	out := make([]Category, len(catalogue))
	for i, c := range catalogue {
		out[i] = Category{Name: c.Name, Subcategories: append([]string(nil), c.Subcategories...)}
	}
	return out
}

// Split separates a stored category value into its top-level name and
// optional subcategory.
func Split(value string) (top, sub string) {
	top, sub, _ = strings.Cut(value, strings.TrimSpace(Separator))
	return strings.TrimSpace(top), strings.TrimSpace(sub)
}

// Canonical returns the catalogue spelling of value ("Top" or "Top > Sub"),
// matching names case-insensitively. ok is false for unknown categories.
func Canonical(value string) (string, bool) {
	top, sub := Split(value)
	if top == "" {
		return "", false
	}
	for _, c := range catalogue {
		if !strings.EqualFold(c.Name, top) {
			continue
		}
		if sub == "" {
			return c.Name, true
		}
		for _, s := range c.Subcategories {
			if strings.EqualFold(s, sub) {
				return c.Name + Separator + s, true
			}
		}
		return "", false
	}
	return "", false
}

// Flatten lists every valid stored value, sorted.
func Flatten() []string {
	var out []string
	for _, c := range catalogue {
		out = append(out, c.Name)
		for _, s := range c.Subcategories {
			out = append(out, c.Name+Separator+s)
		}
	}
	sort.Strings(out)
	return out
}
