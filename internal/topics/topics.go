// Package topics derives the push topics interested in a news document change.
package topics

import (
	"sort"
	"strings"

	"github.com/herewego/transfer-admin/internal/models"
)

// Separator joins the "from" and "to" club names inside NewsItem.FromTo.
const Separator = "→"

const (
	// BreakingNews is the global topic for newly breaking items.
	BreakingNews = "breaking_news"

	SuffixAll      = "all"
	SuffixOfficial = "official"

	DefaultPlayerName = "Player"
	DefaultFromTo     = "Transfer details"
)

// Item returns the per-document topic.
func Item(newsID string) string {
	if newsID == "" {
		return ""
	}
	return "item_" + newsID
}

// Sanitize turns a club name into a topic name such as club_real_madrid_all.
// It returns "" when nothing usable is left of the name.
func Sanitize(name, suffix string) string {
	if name == "" {
		return ""
	}

	kept := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case isSpace(r):
			return ' '
		default:
			return -1
		}
	}, strings.ToLower(name))

	slug := strings.Join(strings.Fields(kept), "_")
	for strings.Contains(slug, "__") {
		slug = strings.ReplaceAll(slug, "__", "_")
	}
	slug = strings.Trim(slug, "_")
	if slug == "" {
		return ""
	}

	return "club_" + slug + "_" + suffix
}

// isSpace matches the whitespace class clients use when they build the same
// topic names: ASCII whitespace, Unicode space separators, the line and
// paragraph separators and U+FEFF. U+0085 is not part of it.
func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ',
		'\u00a0', '\u1680', '\u2028', '\u2029', '\u202f', '\u205f', '\u3000', '\ufeff':
		return true
	}
	return r >= '\u2000' && r <= '\u200a'
}

// SplitClubs returns the non-empty, trimmed club names encoded in fromTo.
func SplitClubs(fromTo string) []string {
	parts := strings.Split(fromTo, Separator)
	clubs := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			clubs = append(clubs, trimmed)
		}
	}
	return clubs
}

// ComposeFromTo encodes a transfer direction the way SplitClubs expects it:
// "From → To", "From" for a departure, "→ To" for a free-agent signing.
func ComposeFromTo(from, to string) string {
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	switch {
	case from != "" && to != "":
		return from + " " + Separator + " " + to
	case from != "":
		return from
	case to != "":
		return Separator + " " + to
	default:
		return ""
	}
}

// Fields are the after-state values the dispatcher works with, defaults applied.
type Fields struct {
	PlayerName      string
	FromTo          string
	MilestoneStatus int
	IsBreakingNews  bool
}

// Extract applies the notification defaults to a news item.
func Extract(item *models.NewsItem) Fields {
	f := Fields{
		PlayerName:      DefaultPlayerName,
		FromTo:          DefaultFromTo,
		MilestoneStatus: models.MilestoneRumor,
	}
	if item == nil {
		return f
	}
	if item.PlayerName != "" {
		f.PlayerName = item.PlayerName
	}
	if item.FromTo != "" {
		f.FromTo = item.FromTo
	}
	if item.MilestoneStatus != 0 {
		f.MilestoneStatus = item.MilestoneStatus
	}
	f.IsBreakingNews = item.IsBreakingNews
	return f
}

// Set is an unordered collection of topic names.
type Set map[string]struct{}

// Add inserts topic unless it is empty.
func (s Set) Add(topic string) {
	if topic == "" {
		return
	}
	s[topic] = struct{}{}
}

// Contains reports whether topic is in the set.
func (s Set) Contains(topic string) bool {
	_, ok := s[topic]
	return ok
}

// Sorted returns the topics in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for topic := range s {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

// Derive computes the topics to notify for a change. Deletions yield an empty set.
func Derive(change models.Change) Set {
	set := Set{}
	if change.Kind == models.Deleted || change.After == nil {
		return set
	}

	isNew := change.Kind == models.Created
	isUpdate := change.Kind == models.Updated && change.Before != nil
	f := Extract(change.After)

	set.Add(Item(change.DocumentID))

	milestoneChanged := isUpdate && change.After.MilestoneStatus != change.Before.MilestoneStatus
	if isNew || milestoneChanged {
		official := abs(f.MilestoneStatus) == models.MilestoneOfficial
		for _, club := range SplitClubs(f.FromTo) {
			set.Add(Sanitize(club, SuffixAll))
			if official {
				set.Add(Sanitize(club, SuffixOfficial))
			}
		}
	}

	becameBreaking := isUpdate && f.IsBreakingNews && !change.Before.IsBreakingNews
	if (isNew && f.IsBreakingNews) || becameBreaking {
		set.Add(BreakingNews)
	}

	return set
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
