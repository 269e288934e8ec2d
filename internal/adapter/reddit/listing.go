package reddit

import (
	"math"
	"time"

	"trendcraft/internal/domain/trend"
)

// Post is the subset of a Reddit link we read
type Post struct {
	Title       string  `json:"title"`
	Permalink   string  `json:"permalink"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	Subreddit   string  `json:"subreddit"`
	Created     float64 `json:"created_utc"`
	Over18      bool    `json:"over_18"`
	Stickied    bool    `json:"stickied"`
}

// Listing is the envelope returned by listing endpoints
type Listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Kind string `json:"kind"`
			Data Post   `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Candidates converts listing posts into candidate items. Stickied
// moderator posts are skipped; fallbackTag fills a missing subreddit name.
func (l Listing) Candidates(fallbackTag string) []trend.CandidateItem {
	items := make([]trend.CandidateItem, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		p := child.Data
		if p.Stickied {
			continue
		}
		tag := p.Subreddit
		if tag == "" {
			tag = fallbackTag
		}
		items = append(items, trend.CandidateItem{
			Title:        p.Title,
			SourceTag:    tag,
			RawScore:     p.Score,
			CommentCount: p.NumComments,
			CreatedAt:    unixSeconds(p.Created),
			IsAdult:      p.Over18,
		})
	}
	return items
}

func unixSeconds(v float64) time.Time {
	if v <= 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}
