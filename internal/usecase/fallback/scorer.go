// Package fallback ranks videos with an additive heuristic score computed
// directly from document-store fields. It serves every retrieval path when
// the search index is unreachable, disabled, or returns nothing, and must
// stay deterministic: identical inputs and "now" always produce the same
// ordering.
package fallback

import (
	"sort"
	"strings"
	"time"

	"github.com/clipdeck/vidrank/internal/domain"
)

// Search-path weights: presence-of-match bonuses plus popularity and recency.
const (
	titleMatchBonus       = 50.0
	descriptionMatchBonus = 20.0
	subscriptionBonus     = 30.0
	searchViewCap         = 20.0
	searchRecencyDays     = 10.0
)

// Recommendation-path weights.
const (
	tagOverlapWeight = 8.0
	feedViewCap      = 25.0
	feedRecencyDays  = 20.0
)

// Search substring-matches the query against title, description, and tags
// (case-insensitive), scores the matches, and returns them ordered. The
// returned list is unpaginated; callers slice it.
func Search(docs []domain.VideoDocument, q *domain.FallbackQuery, now time.Time) []domain.Hit {
	needle := strings.ToLower(strings.TrimSpace(q.Query))
	subs := toSet(q.SubscribedOwnerIDs)
	excluded := toSet(q.ExcludeIDs)

	hits := make([]domain.Hit, 0, len(docs))
	for _, doc := range docs {
		if !doc.IsPublished {
			continue
		}
		if _, skip := excluded[doc.ID]; skip {
			continue
		}
		if needle != "" && !matchesQuery(&doc, needle) {
			continue
		}
		hits = append(hits, domain.Hit{
			VideoID: doc.ID,
			Score:   searchScore(&doc, needle, subs, now),
			Video:   doc,
		})
	}

	switch q.Sort {
	case domain.SortDate:
		sortByTime(hits, createdAt)
	case domain.SortViews:
		sortByViews(hits, createdAt)
	default:
		sortByScore(hits, createdAt)
	}
	return hits
}

// Recommend scores all published, not-excluded documents with the
// recommendation formula and returns them ordered.
func Recommend(docs []domain.VideoDocument, q *domain.FallbackQuery, now time.Time) []domain.Hit {
	subs := toSet(q.SubscribedOwnerIDs)
	excluded := toSet(q.ExcludeIDs)

	hits := make([]domain.Hit, 0, len(docs))
	for _, doc := range docs {
		if !doc.IsPublished {
			continue
		}
		if _, skip := excluded[doc.ID]; skip {
			continue
		}
		hits = append(hits, domain.Hit{
			VideoID: doc.ID,
			Score:   recommendScore(&doc, subs, q.TopTags, now),
			Video:   doc,
		})
	}

	sortByScore(hits, publishedAt)
	return hits
}

// searchScore = title/description match bonuses + subscription bonus +
// capped view bonus + linear recency decay over createdAt.
func searchScore(doc *domain.VideoDocument, needle string, subs map[string]struct{}, now time.Time) float64 {
	var score float64
	if needle != "" {
		if strings.Contains(strings.ToLower(doc.Title), needle) {
			score += titleMatchBonus
		}
		if strings.Contains(strings.ToLower(doc.Description), needle) {
			score += descriptionMatchBonus
		}
	}
	if _, ok := subs[doc.OwnerID]; ok {
		score += subscriptionBonus
	}
	score += viewBonus(doc.Views, searchViewCap)
	score += recencyBonus(doc.CreatedAt, now, searchRecencyDays)
	return score
}

// recommendScore = subscription bonus + tag overlap + capped view bonus +
// linear recency decay over publishedAt.
func recommendScore(doc *domain.VideoDocument, subs map[string]struct{}, topTags []string, now time.Time) float64 {
	var score float64
	if _, ok := subs[doc.OwnerID]; ok {
		score += subscriptionBonus
	}
	score += tagOverlapWeight * float64(tagOverlap(doc.Tags, topTags))
	score += viewBonus(doc.Views, feedViewCap)
	score += recencyBonus(doc.PublishedAt, now, feedRecencyDays)
	return score
}

func matchesQuery(doc *domain.VideoDocument, needle string) bool {
	if strings.Contains(strings.ToLower(doc.Title), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(doc.Description), needle) {
		return true
	}
	for _, tag := range doc.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

func viewBonus(views int64, limit float64) float64 {
	bonus := float64(views) / 1000
	if bonus > limit {
		return limit
	}
	return bonus
}

// recencyBonus decays linearly from window to 0 over window days.
func recencyBonus(t time.Time, now time.Time, window float64) float64 {
	if t.IsZero() {
		return 0
	}
	ageDays := now.Sub(t).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	if ageDays > window {
		ageDays = window
	}
	return window - ageDays
}

func tagOverlap(tags, topTags []string) int {
	if len(tags) == 0 || len(topTags) == 0 {
		return 0
	}
	set := toSet(topTags)
	n := 0
	for _, t := range tags {
		if _, ok := set[t]; ok {
			n++
		}
	}
	return n
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// timeKey selects which timestamp breaks ties for a given path.
type timeKey func(*domain.VideoDocument) time.Time

func createdAt(d *domain.VideoDocument) time.Time   { return d.CreatedAt }
func publishedAt(d *domain.VideoDocument) time.Time { return d.PublishedAt }

// sortByScore orders by descending score, then newest, then id for a total
// deterministic order.
func sortByScore(hits []domain.Hit, key timeKey) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		ti, tj := key(&hits[i].Video), key(&hits[j].Video)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return hits[i].VideoID < hits[j].VideoID
	})
}

func sortByTime(hits []domain.Hit, key timeKey) {
	sort.SliceStable(hits, func(i, j int) bool {
		ti, tj := key(&hits[i].Video), key(&hits[j].Video)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return hits[i].VideoID < hits[j].VideoID
	})
}

func sortByViews(hits []domain.Hit, key timeKey) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Video.Views != hits[j].Video.Views {
			return hits[i].Video.Views > hits[j].Video.Views
		}
		ti, tj := key(&hits[i].Video), key(&hits[j].Video)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return hits[i].VideoID < hits[j].VideoID
	})
}
