// Package knowledge implements the per-agent, per-domain knowledge store
// with confidence-weighted merge semantics.
package knowledge

import (
	"sort"
	"sync"

	"github.com/takumi-oki/chorus/internal/clock"
	"github.com/takumi-oki/chorus/internal/metrics"
	"github.com/takumi-oki/chorus/internal/model"
)

// DefaultConfidence is applied when a caller adds knowledge without an
// explicit confidence.
const DefaultConfidence = 0.8

// LookupThreshold is the minimum confidence for cross-agent knowledge
// lookups.
const LookupThreshold = 0.6

type key struct {
	agentID string
	domain  string
}

// Store holds accumulated agent knowledge. Entries are never deleted;
// pruning is out of scope.
type Store struct {
	mu      sync.RWMutex
	entries map[key]*model.KnowledgeEntry
	clock   clock.Clock
}

// NewStore creates an empty store.
func NewStore(clk clock.Clock) *Store {
	return &Store{
		entries: make(map[key]*model.KnowledgeEntry),
		clock:   clk,
	}
}

// Add merges partial knowledge into the (agentID, domain) entry, or inserts
// it verbatim for a new pair. Merging unions the four set fields, nudges
// confidence toward 1.0 by 0.1×confidence (capped at 1.0), bumps usageCount,
// and refreshes lastUpdated. Confidence <= 0 means "use the default".
func (s *Store) Add(agentID, domain string, partial model.KnowledgeSet, confidence float64) model.KnowledgeEntry {
	if confidence <= 0 {
		confidence = DefaultConfidence
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{agentID: agentID, domain: domain}
	now := s.clock.Now()

	entry, ok := s.entries[k]
	if !ok {
		entry = &model.KnowledgeEntry{
			AgentID:     agentID,
			Domain:      domain,
			Knowledge:   dedupeSet(partial),
			Confidence:  confidence,
			LastUpdated: now,
		}
		s.entries[k] = entry
		metrics.KnowledgeEntries.Set(float64(len(s.entries)))
		return *entry
	}

	entry.Knowledge.Patterns = union(entry.Knowledge.Patterns, partial.Patterns)
	entry.Knowledge.Solutions = union(entry.Knowledge.Solutions, partial.Solutions)
	entry.Knowledge.BestPractices = union(entry.Knowledge.BestPractices, partial.BestPractices)
	entry.Knowledge.CommonIssues = union(entry.Knowledge.CommonIssues, partial.CommonIssues)
	entry.Confidence = min(1.0, entry.Confidence+0.1*confidence)
	entry.UsageCount++
	entry.LastUpdated = now
	return *entry
}

// Get returns the agent's entries, filtered by domain when one is given.
func (s *Store) Get(agentID, domain string) []model.KnowledgeEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.KnowledgeEntry
	for k, e := range s.entries {
		if k.agentID != agentID {
			continue
		}
		if domain != "" && k.domain != domain {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out
}

// FindWithKnowledge returns every agent's entry for the domain with
// confidence above the lookup threshold, sorted descending by confidence.
func (s *Store) FindWithKnowledge(domain string) []model.KnowledgeEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.KnowledgeEntry
	for k, e := range s.entries {
		if k.domain == domain && e.Confidence > LookupThreshold {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

// Confidence returns the agent's confidence in a domain, or 0 when the pair
// is unknown.
func (s *Store) Confidence(agentID, domain string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[key{agentID: agentID, domain: domain}]; ok {
		return e.Confidence
	}
	return 0
}

// Len returns the number of (agent, domain) entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func dedupeSet(ks model.KnowledgeSet) model.KnowledgeSet {
	return model.KnowledgeSet{
		Patterns:      union(nil, ks.Patterns),
		Solutions:     union(nil, ks.Solutions),
		BestPractices: union(nil, ks.BestPractices),
		CommonIssues:  union(nil, ks.CommonIssues),
	}
}

// union appends items from add that are not already present, preserving
// insertion order.
func union(base, add []string) []string {
	seen := make(map[string]bool, len(base))
	for _, s := range base {
		seen[s] = true
	}
	out := base
	for _, s := range add {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
