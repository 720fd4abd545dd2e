// Property-based tests for GiveawayService.
package service

import (
	"context"
	"testing"
	"time"

	"pgregory.net/rapid"

	"giveaway-bot/internal/model"
)

// TestCreateEndTimeProperty checks every valid creation ends exactly duration
// seconds after it was created and starts with no participants.
func TestCreateEndTimeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		env, err := buildEnv(nil)
		if err != nil {
			t.Fatalf("build env: %v", err)
		}
		defer env.svc.Stop()

		params := CreateParams{
			Title:           rapid.StringMatching(`[A-Za-z][A-Za-z0-9 ]{0,20}`).Draw(t, "title"),
			Prize:           rapid.StringMatching(`[A-Za-z][A-Za-z0-9 ]{0,20}`).Draw(t, "prize"),
			DurationSeconds: rapid.Int64Range(3600, 30*24*3600).Draw(t, "duration"),
			WinnerCount:     rapid.IntRange(1, 100).Draw(t, "winners"),
		}

		res, err := env.svc.Create(context.Background(), params)
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}

		g := res.Giveaway
		want := g.CreatedAt.Add(time.Duration(params.DurationSeconds) * time.Second)
		if !g.EndTime.Equal(want) {
			t.Fatalf("end time %v, want %v", g.EndTime, want)
		}
		if len(g.Participants) != 0 {
			t.Fatalf("expected no participants, got %d", len(g.Participants))
		}
		if g.Status != model.StatusOpen {
			t.Fatalf("expected open, got %s", g.Status)
		}
	})
}

// TestJoinUniquenessProperty checks that for any sequence of joins the first
// join of an identity is accepted, repeats are rejected, and the participant
// list holds each identity once in first-join order.
func TestJoinUniquenessProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		env, err := buildEnv(nil)
		if err != nil {
			t.Fatalf("build env: %v", err)
		}
		defer env.svc.Stop()

		g := env.create(t, 1)
		ids := rapid.SliceOfN(rapid.Int64Range(1, 8), 1, 40).Draw(t, "ids")

		seen := make(map[int64]bool)
		var order []int64
		for _, id := range ids {
			res, err := env.svc.Join(context.Background(), g.ID, participant(id))
			if err != nil {
				t.Fatalf("join failed: %v", err)
			}
			want := JoinAccepted
			if seen[id] {
				want = JoinAlreadyJoined
			} else {
				seen[id] = true
				order = append(order, id)
			}
			if res != want {
				t.Fatalf("join %d: got %s, want %s", id, res, want)
			}
		}

		stored, err := env.svc.Get(g.ID)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if len(stored.Participants) != len(order) {
			t.Fatalf("expected %d participants, got %d", len(order), len(stored.Participants))
		}
		for i, p := range stored.Participants {
			if p.UserID != order[i] {
				t.Fatalf("participant %d is %d, want %d", i, p.UserID, order[i])
			}
		}
	})
}

// TestFinalizeWinnerCountProperty checks the draw size and that winners are
// distinct participants.
func TestFinalizeWinnerCountProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		env, err := buildEnv(nil)
		if err != nil {
			t.Fatalf("build env: %v", err)
		}
		defer env.svc.Stop()

		k := rapid.IntRange(1, 10).Draw(t, "winners")
		n := rapid.IntRange(0, 15).Draw(t, "participants")

		g := env.create(t, k)
		for id := int64(1); id <= int64(n); id++ {
			if _, err := env.svc.Join(context.Background(), g.ID, participant(id)); err != nil {
				t.Fatalf("join failed: %v", err)
			}
		}

		res, err := env.svc.Finalize(context.Background(), g.ID)
		if err != nil {
			t.Fatalf("finalize failed: %v", err)
		}
		if len(res.Winners) != min(k, n) {
			t.Fatalf("expected %d winners, got %d", min(k, n), len(res.Winners))
		}

		drawn := make(map[int64]bool)
		for _, w := range res.Winners {
			if w.UserID < 1 || w.UserID > int64(n) || drawn[w.UserID] {
				t.Fatalf("bad winner %d in %v", w.UserID, res.Winners)
			}
			drawn[w.UserID] = true
		}

		announcements := env.notifier.resultCount(g.ID) + env.notifier.emptyCount(g.ID)
		if announcements != 1 {
			t.Fatalf("expected one announcement, got %d", announcements)
		}
	})
}
