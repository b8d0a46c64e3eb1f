package blacklist

import (
	"testing"

	"github.com/zapdispatch/zapdispatch/internal/model"
)

func TestBuildBlockedSet_ParsesPhonesAndIDs(t *testing.T) {
	t.Parallel()

	set := BuildBlockedSet([]model.BlacklistEntry{
		{Phone: "5521999999999"},
		{Phone: "+5511888888888", NumberIDs: "101, 202,303"},
		{Phone: "not-a-phone", NumberIDs: "abc, 404"},
		{NumberIDs: ""},
	})

	if _, ok := set.Phones["5521999999999"]; !ok {
		t.Fatalf("expected literal phone to be blocked")
	}
	if _, ok := set.Phones["+5511888888888"]; !ok {
		t.Fatalf("expected plus-prefixed phone to be blocked")
	}
	if _, ok := set.Phones["not-a-phone"]; ok {
		t.Fatalf("malformed phone should be ignored")
	}

	for _, id := range []string{"101", "202", "303", "404"} {
		if _, ok := set.FileIDs[id]; !ok {
			t.Fatalf("expected file id %s to be blocked", id)
		}
	}
	if _, ok := set.FileIDs["abc"]; ok {
		t.Fatalf("non-numeric id should be ignored")
	}
}

func TestFilter_ExcludesBlockedPhone(t *testing.T) {
	t.Parallel()

	set := BuildBlockedSet([]model.BlacklistEntry{{Phone: "5521999999999"}})

	out := Filter(set, []model.Message{
		{ID: "a", Recipient: "5521999999999"},
		{ID: "b", Recipient: "5521888888888"},
	})

	if len(out) != 1 || out[0].ID != "b" {
		t.Fatalf("expected only message b to survive, got %+v", out)
	}
}

func TestFilter_ExcludesBlockedFileID(t *testing.T) {
	t.Parallel()

	set := BuildBlockedSet([]model.BlacklistEntry{{Phone: "111", NumberIDs: "42"}})

	out := Filter(set, []model.Message{
		{ID: "a", Recipient: "5521777777777", Filename: "42.jpg"},
		{ID: "b", Recipient: "5521777777777", Filename: "43.jpg"},
		{ID: "c", Recipient: "5521777777777", Filename: "report.pdf"},
	})

	if len(out) != 2 {
		t.Fatalf("expected 2 survivors, got %d", len(out))
	}
	for _, m := range out {
		if m.ID == "a" {
			t.Fatalf("message with blocked file id should be excluded")
		}
	}
}

func TestFileID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		filename string
		want     string
	}{
		{"42.jpg", "42"},
		{"42.final.jpg", "42"},
		{"report.pdf", ""},
		{"", ""},
		{"99", "99"},
	}

	for _, tc := range cases {
		if got := FileID(tc.filename); got != tc.want {
			t.Fatalf("FileID(%q) = %q, want %q", tc.filename, got, tc.want)
		}
	}
}

func TestFilter_EmptyBlockedSetKeepsAll(t *testing.T) {
	t.Parallel()

	set := BuildBlockedSet(nil)
	msgs := []model.Message{{ID: "a"}, {ID: "b"}}

	if out := Filter(set, msgs); len(out) != 2 {
		t.Fatalf("expected all messages retained, got %d", len(out))
	}
}
