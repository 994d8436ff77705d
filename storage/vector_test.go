package storage

import (
	"testing"

	"lectureHall/config"
	"lectureHall/core"
)

func TestMemoryVectorStoreRanking(t *testing.T) {
	s := NewMemoryVectorStore()
	segments := []core.Segment{
		{Start: 0, End: 15, Text: "Welcome everyone to the lecture."},
		{Start: 15, End: 30, Text: "The derivative measures the rate of change."},
		{Start: 30, End: 45, Text: "Next week we discuss integrals."},
	}
	if n := s.Upsert("lecture.mp4", segments); n != 3 {
		t.Fatalf("Expected 3 indexed segments, got %d", n)
	}

	hits := s.Search("lecture.mp4", "derivative rate of change", 2)
	if len(hits) != 2 {
		t.Fatalf("Expected 2 hits, got %d", len(hits))
	}
	if hits[0].Text != segments[1].Text {
		t.Errorf("Expected derivative segment first, got %q", hits[0].Text)
	}
	if hits[0].Score < hits[1].Score {
		t.Errorf("Hits not sorted by score: %v then %v", hits[0].Score, hits[1].Score)
	}
	if hits[0].Start != 15 || hits[0].End != 30 {
		t.Errorf("Hit lost its timestamps: %+v", hits[0])
	}
}

func TestMemoryVectorStoreIsolatesVideos(t *testing.T) {
	s := NewMemoryVectorStore()
	s.Upsert("a.mp4", []core.Segment{{Text: "alpha content"}})
	s.Upsert("b.mp4", []core.Segment{{Text: "beta content"}})

	hits := s.Search("a.mp4", "beta", 10)
	for _, h := range hits {
		if h.Text == "beta content" {
			t.Error("Search leaked segments from another video")
		}
	}
	if hits := s.Search("unknown.mp4", "anything", 5); len(hits) != 0 {
		t.Errorf("Expected no hits for unknown video, got %d", len(hits))
	}
}

func TestMemoryVectorStoreUpsertReplaces(t *testing.T) {
	s := NewMemoryVectorStore()
	s.Upsert("a.mp4", []core.Segment{{Text: "old text"}, {Text: "more old"}})
	s.Upsert("a.mp4", []core.Segment{{Text: "fresh text"}})

	hits := s.Search("a.mp4", "text", 10)
	if len(hits) != 1 {
		t.Fatalf("Expected reindex to replace documents, got %d hits", len(hits))
	}
	if hits[0].Text != "fresh text" {
		t.Errorf("Expected fresh document, got %q", hits[0].Text)
	}
}

func TestNewVectorStoreFallsBackToMemory(t *testing.T) {
	cfg := &config.Config{VectorBackend: "pgvector"} // no API key, no database
	if _, ok := NewVectorStore(cfg).(*MemoryVectorStore); !ok {
		t.Error("Expected fallback to memory store without API configuration")
	}
	cfg = &config.Config{VectorBackend: "memory"}
	if _, ok := NewVectorStore(cfg).(*MemoryVectorStore); !ok {
		t.Error("Expected memory store for memory backend")
	}
}
