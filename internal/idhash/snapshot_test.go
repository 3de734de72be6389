package idhash

import (
	"testing"

	"voting-token-client/internal/domain"
)

func testSnapshot() *domain.Snapshot {
	snap := domain.EmptySnapshot()
	snap.Rounds = []domain.Round{
		{ID: 2, Title: "Second", EndTime: 1700003600, Active: true, TotalRewardPool: "50.0"},
		{ID: 1, Title: "First", EndTime: 1700000000, TotalRewardPool: "10.0"},
	}
	snap.Candidates[1] = []domain.Candidate{{ID: 1, Name: "Alice", VoteCount: 3}}
	snap.Candidates[2] = []domain.Candidate{{ID: 1, Name: "Bob"}, {ID: 2, Name: "Carol", VoteCount: 1}}
	snap.VoteStatus[2] = true
	snap.VoteStatus[1] = false
	return snap
}

func TestSnapshotDigest(t *testing.T) {
	a, err := SnapshotDigest(testSnapshot())
	if err != nil {
		t.Fatalf("SnapshotDigest: %v", err)
	}
	if len(a) != 64 {
		t.Errorf("digest length = %d, want 64", len(a))
	}

	b, err := SnapshotDigest(testSnapshot().Clone())
	if err != nil {
		t.Fatalf("SnapshotDigest: %v", err)
	}
	if a != b {
		t.Errorf("digest not deterministic: %s != %s", a, b)
	}

	changed := testSnapshot()
	changed.Candidates[2][1].VoteCount = 2
	c, err := SnapshotDigest(changed)
	if err != nil {
		t.Fatalf("SnapshotDigest: %v", err)
	}
	if a == c {
		t.Error("different vote counts produced the same digest")
	}
}

func TestSnapshotDigestNilIsEmpty(t *testing.T) {
	nilDigest, err := SnapshotDigest(nil)
	if err != nil {
		t.Fatalf("SnapshotDigest(nil): %v", err)
	}
	empty, err := SnapshotDigest(domain.EmptySnapshot())
	if err != nil {
		t.Fatalf("SnapshotDigest(empty): %v", err)
	}
	if nilDigest != empty {
		t.Errorf("nil digest %s != empty digest %s", nilDigest, empty)
	}
}

func TestRoundDigest(t *testing.T) {
	snap := testSnapshot()
	r := snap.Rounds[0]
	base := RoundDigest(r, snap.Candidates[r.ID])

	if got := RoundDigest(r, snap.Candidates[r.ID]); got != base {
		t.Errorf("RoundDigest not deterministic")
	}

	ended := r
	ended.Active = false
	if RoundDigest(ended, snap.Candidates[r.ID]) == base {
		t.Error("ending the round did not change the digest")
	}
	if RoundDigest(r, nil) == base {
		t.Error("dropping candidates did not change the digest")
	}
}
