package topics_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/herewego/transfer-admin/internal/models"
	"github.com/herewego/transfer-admin/internal/topics"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		suffix string
		want   string
	}{
		{name: "two words", input: "Real Madrid", suffix: "all", want: "club_real_madrid_all"},
		{name: "punctuation and double space", input: "Inter  Milan!!", suffix: "all", want: "club_inter_milan_all"},
		{name: "empty", input: "", suffix: "all", want: ""},
		{name: "only symbols", input: "!!! ???", suffix: "all", want: ""},
		{name: "official suffix", input: "Chelsea", suffix: "official", want: "club_chelsea_official"},
		{name: "digits kept", input: "Schalke 04", suffix: "all", want: "club_schalke_04_all"},
		{name: "accents dropped", input: "Atlético Madrid", suffix: "all", want: "club_atltico_madrid_all"},
		{name: "underscores stripped", input: "_Paris_ Saint-Germain_", suffix: "all", want: "club_paris_saintgermain_all"},
		{name: "tabs and newlines", input: "\tBayern\n München ", suffix: "all", want: "club_bayern_mnchen_all"},
		{name: "byte order mark separates words", input: "Real\ufeffMadrid", suffix: "all", want: "club_real_madrid_all"},
		{name: "no-break and ideographic spaces", input: "Real\u00a0Madrid\u3000B", suffix: "all", want: "club_real_madrid_b_all"},
		{name: "next line is not whitespace", input: "Real\u0085Madrid", suffix: "all", want: "club_realmadrid_all"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, topics.Sanitize(tt.input, tt.suffix))
		})
	}
}

func TestSplitClubs(t *testing.T) {
	require.Equal(t, []string{"Real Madrid", "Chelsea"}, topics.SplitClubs("Real Madrid → Chelsea"))
	require.Equal(t, []string{"Chelsea"}, topics.SplitClubs("→ Chelsea"))
	require.Equal(t, []string{"Ajax"}, topics.SplitClubs("Ajax"))
	require.Empty(t, topics.SplitClubs(""))
	require.Empty(t, topics.SplitClubs(" → "))
}

func TestComposeFromToRoundTrips(t *testing.T) {
	require.Equal(t, "Ajax → Chelsea", topics.ComposeFromTo("Ajax", "Chelsea"))
	require.Equal(t, "Ajax", topics.ComposeFromTo(" Ajax ", ""))
	require.Equal(t, "→ Chelsea", topics.ComposeFromTo("", "Chelsea"))
	require.Equal(t, "", topics.ComposeFromTo("", " "))

	require.Equal(t, []string{"Ajax", "Chelsea"}, topics.SplitClubs(topics.ComposeFromTo("Ajax", "Chelsea")))
}

func TestExtractDefaults(t *testing.T) {
	f := topics.Extract(&models.NewsItem{})
	require.Equal(t, "Player", f.PlayerName)
	require.Equal(t, "Transfer details", f.FromTo)
	require.Equal(t, 1, f.MilestoneStatus)
	require.False(t, f.IsBreakingNews)

	f = topics.Extract(&models.NewsItem{PlayerName: "Mbappé", FromTo: "PSG → Real Madrid", MilestoneStatus: -4, IsBreakingNews: true})
	require.Equal(t, "Mbappé", f.PlayerName)
	require.Equal(t, "PSG → Real Madrid", f.FromTo)
	require.Equal(t, -4, f.MilestoneStatus)
	require.True(t, f.IsBreakingNews)
}

func change(t *testing.T, before, after *models.NewsItem) models.Change {
	t.Helper()
	c, err := models.NewChange("n1", before, after)
	require.NoError(t, err)
	return c
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name   string
		before *models.NewsItem
		after  *models.NewsItem
		want   []string
	}{
		{
			name:  "new official transfer",
			after: &models.NewsItem{FromTo: "Real Madrid → Chelsea", MilestoneStatus: 5},
			want: []string{
				"club_chelsea_all", "club_chelsea_official",
				"club_real_madrid_all", "club_real_madrid_official",
				"item_n1",
			},
		},
		{
			name:  "new breaking rumor",
			after: &models.NewsItem{FromTo: "Ajax → Chelsea", MilestoneStatus: 1, IsBreakingNews: true},
			want:  []string{"breaking_news", "club_ajax_all", "club_chelsea_all", "item_n1"},
		},
		{
			name:  "free agent signing",
			after: &models.NewsItem{FromTo: "→ Chelsea", MilestoneStatus: 2},
			want:  []string{"club_chelsea_all", "item_n1"},
		},
		{
			name:  "canceled at official still notifies official topics",
			after: &models.NewsItem{FromTo: "Ajax", MilestoneStatus: -5},
			want:  []string{"club_ajax_all", "club_ajax_official", "item_n1"},
		},
		{
			name:  "new item without clubs falls back to default text",
			after: &models.NewsItem{},
			want:  []string{"club_transfer_details_all", "item_n1"},
		},
		{
			name:  "unsanitizable club skipped",
			after: &models.NewsItem{FromTo: "!!! → Chelsea"},
			want:  []string{"club_chelsea_all", "item_n1"},
		},
		{
			name:   "update without milestone change",
			before: &models.NewsItem{FromTo: "Ajax → Chelsea", MilestoneStatus: 2},
			after:  &models.NewsItem{FromTo: "Ajax → Arsenal", MilestoneStatus: 2, Summary: "edited"},
			want:   []string{"item_n1"},
		},
		{
			name:   "milestone advanced",
			before: &models.NewsItem{FromTo: "Ajax → Chelsea", MilestoneStatus: 4},
			after:  &models.NewsItem{FromTo: "Ajax → Chelsea", MilestoneStatus: 5},
			want: []string{
				"club_ajax_all", "club_ajax_official",
				"club_chelsea_all", "club_chelsea_official",
				"item_n1",
			},
		},
		{
			name:   "missing milestone set to rumor counts as a change",
			before: &models.NewsItem{FromTo: "Ajax → Chelsea"},
			after:  &models.NewsItem{FromTo: "Ajax → Chelsea", MilestoneStatus: 1},
			want:   []string{"club_ajax_all", "club_chelsea_all", "item_n1"},
		},
		{
			name:   "missing milestone that stays missing is no change",
			before: &models.NewsItem{FromTo: "Ajax → Chelsea"},
			after:  &models.NewsItem{FromTo: "Ajax → Chelsea", Summary: "edited"},
			want:   []string{"item_n1"},
		},
		{
			name:   "milestone canceled",
			before: &models.NewsItem{FromTo: "Ajax → Chelsea", MilestoneStatus: 3},
			after:  &models.NewsItem{FromTo: "Ajax → Chelsea", MilestoneStatus: -3},
			want:   []string{"club_ajax_all", "club_chelsea_all", "item_n1"},
		},
		{
			name:   "became breaking",
			before: &models.NewsItem{FromTo: "Ajax", MilestoneStatus: 2},
			after:  &models.NewsItem{FromTo: "Ajax", MilestoneStatus: 2, IsBreakingNews: true},
			want:   []string{"breaking_news", "item_n1"},
		},
		{
			name:   "still breaking",
			before: &models.NewsItem{FromTo: "Ajax", MilestoneStatus: 2, IsBreakingNews: true},
			after:  &models.NewsItem{FromTo: "Ajax", MilestoneStatus: 2, IsBreakingNews: true},
			want:   []string{"item_n1"},
		},
		{
			name:   "no longer breaking",
			before: &models.NewsItem{FromTo: "Ajax", MilestoneStatus: 2, IsBreakingNews: true},
			after:  &models.NewsItem{FromTo: "Ajax", MilestoneStatus: 2},
			want:   []string{"item_n1"},
		},
		{
			name:   "deletion",
			before: &models.NewsItem{FromTo: "Ajax", MilestoneStatus: 5, IsBreakingNews: true},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := topics.Derive(change(t, tt.before, tt.after)).Sorted()
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Derive() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDeriveIsDeterministic(t *testing.T) {
	c := change(t, nil, &models.NewsItem{FromTo: "Real Madrid → Chelsea", MilestoneStatus: 5, IsBreakingNews: true})
	first := topics.Derive(c)
	second := topics.Derive(c)
	require.Equal(t, first.Sorted(), second.Sorted())
	require.True(t, first.Contains("breaking_news"))
	require.True(t, first.Contains("item_n1"))
}

func TestSetIgnoresEmpty(t *testing.T) {
	s := topics.Set{}
	s.Add("")
	s.Add("item_a")
	s.Add("item_a")
	require.Len(t, s, 1)
	require.Equal(t, "", topics.Item(""))
}
