package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"voting-token-client/internal/domain"
)

// SnapshotDigest computes a deterministic digest of a snapshot.
// Formula: SHA256(canonical JSON). encoding/json sorts map keys, so two
// snapshots with equal content always hash the same.
// Returns hex-encoded hash (64 characters).
func SnapshotDigest(snap *domain.Snapshot) (string, error) {
	if snap == nil {
		snap = domain.EmptySnapshot()
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// RoundDigest hashes one round together with its candidates.
// Formula: SHA256(id|title|endTime|active|pool|cand_id:votes,...)
func RoundDigest(r domain.Round, candidates []domain.Candidate) string {
	data := fmt.Sprintf("%d|%s|%d|%t|%s|", r.ID, r.Title, r.EndTime, r.Active, r.TotalRewardPool)
	for _, c := range candidates {
		data += fmt.Sprintf("%d:%d,", c.ID, c.VoteCount)
	}
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
