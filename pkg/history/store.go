// Package history persists routing outcomes on disk so past decisions
// can be inspected and costs totted up after the fact.
package history

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/zen-systems/tiergate/pkg/catalog"
)

// Record is one routed request as it completed.
type Record struct {
	Timestamp    int64        `json:"timestamp"`
	PromptSHA256 string       `json:"prompt_sha256"`
	BackendID    string       `json:"backend_id"`
	Provider     string       `json:"provider"`
	Tier         catalog.Tier `json:"tier"`
	Complexity   string       `json:"complexity,omitempty"`
	Policy       string       `json:"policy,omitempty"`
	InputTokens  int          `json:"input_tokens"`
	OutputTokens int          `json:"output_tokens"`
	Cost         float64      `json:"cost"`
	Escalated    bool         `json:"escalated,omitempty"`
	Summary      string       `json:"summary,omitempty"`
}

// Store writes records and raw outputs under a base directory. Records
// land in records/ named by timestamp and prompt hash; outputs are
// content-addressed under objects/ sharded by the first two hash chars.
type Store struct {
	BasePath string
}

// NewStore creates the store layout, defaulting to ~/.tiergate/history.
func NewStore(basePath string) (*Store, error) {
	if basePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		basePath = filepath.Join(home, ".tiergate", "history")
	}

	for _, d := range []string{
		filepath.Join(basePath, "records"),
		filepath.Join(basePath, "objects"),
	} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, err
		}
	}

	return &Store{BasePath: basePath}, nil
}

// HashPrompt returns the hex SHA256 of a prompt, the key records carry
// instead of the prompt text itself.
func HashPrompt(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// Append writes one record. A zero timestamp is filled with the current
// time.
func (s *Store) Append(rec Record) error {
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().Unix()
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}

	stamp := time.Unix(rec.Timestamp, 0).UTC().Format("20060102150405")
	short := rec.PromptSHA256
	if len(short) > 12 {
		short = short[:12]
	}
	path := filepath.Join(s.BasePath, "records", stamp+"__"+short+".json")
	return os.WriteFile(path, data, 0644)
}

// StoreOutput stores a raw model output content-addressed and returns
// its hash.
func (s *Store) StoreOutput(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	dir := filepath.Join(s.BasePath, "objects", hash[:2])
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return hash, os.WriteFile(filepath.Join(dir, hash), data, 0644)
}

// Recent returns up to n records, newest first.
func (s *Store) Recent(n int) ([]Record, error) {
	dir := filepath.Join(s.BasePath, "records")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			names = append(names, e.Name())
		}
	}
	// Timestamp-prefixed names sort chronologically.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	if n > 0 && len(names) > n {
		names = names[:n]
	}

	records := make([]Record, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// TotalCost sums the cost of every stored record.
func (s *Store) TotalCost() (float64, error) {
	records, err := s.Recent(0)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, rec := range records {
		total += rec.Cost
	}
	return total, nil
}
