package storage

import (
	"database/sql"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateSession(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateSession("abc123", "rebellion", `{"synchronous":true}`); err != nil {
		t.Fatalf("create session: %v", err)
	}
	// Duplicate code should error
	if err := s.CreateSession("abc123", "rebellion", ""); err == nil {
		t.Fatal("expected error on duplicate code")
	}
}

func TestGetSession(t *testing.T) {
	s := newTestStore(t)
	s.CreateSession("abc123", "rebellion", `{"roles":["banker"]}`)

	row, err := s.GetSession("abc123")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if row.Code != "abc123" || row.GameType != "rebellion" {
		t.Fatalf("unexpected row %+v", row)
	}
	if row.Status != "waiting" {
		t.Fatalf("expected status waiting, got %s", row.Status)
	}
	if row.Settings != `{"roles":["banker"]}` {
		t.Fatalf("unexpected settings %s", row.Settings)
	}
	if row.CreatedAt.IsZero() {
		t.Fatal("expected non-zero CreatedAt")
	}
}

func TestGetSessionNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetSession("nonexistent")
	if err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestUpdateSessionStatusAndSettings(t *testing.T) {
	s := newTestStore(t)
	s.CreateSession("abc123", "rebellion", "")

	if err := s.UpdateSessionStatus("abc123", "playing"); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if err := s.UpdateSessionSettings("abc123", `{"synchronous":false}`); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	row, err := s.GetSession("abc123")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if row.Status != "playing" {
		t.Fatalf("expected playing, got %s", row.Status)
	}
	if row.Settings != `{"synchronous":false}` {
		t.Fatalf("unexpected settings %s", row.Settings)
	}
}

func TestListSessionsFiltered(t *testing.T) {
	s := newTestStore(t)
	s.CreateSession("aaa", "rebellion", "")
	s.CreateSession("bbb", "rebellion", "")
	s.UpdateSessionStatus("bbb", "playing")

	all, err := s.ListSessions("")
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(all))
	}

	rows, err := s.ListSessions("waiting")
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(rows) != 1 || rows[0].Code != "aaa" {
		t.Fatalf("expected only aaa waiting, got %+v", rows)
	}
}

func TestAppendAndListEvents(t *testing.T) {
	s := newTestStore(t)
	s.CreateSession("abc123", "rebellion", "")

	first, err := s.AppendEvent(EventRow{SessionCode: "abc123", Seq: 1, Type: "action_declaration", Player: "alice", Text: "alice's turn"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := s.AppendEvent(EventRow{SessionCode: "abc123", Type: "cards_changed", Player: "bob", Text: "bob's cards changed"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	s.AppendEvent(EventRow{SessionCode: "other", Type: "winner", Text: "x wins"})

	events, err := s.ListEvents("abc123", 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Seq != 1 || events[0].Player != "alice" || events[1].Type != "cards_changed" {
		t.Fatalf("unexpected events %+v", events)
	}

	later, err := s.ListEvents("abc123", first)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(later) != 1 || later[0].Player != "bob" {
		t.Fatalf("expected only bob's event after %d, got %+v", first, later)
	}
}

func TestResultsAndPlayerStats(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveResults("g1", "rebellion", []ResultRow{
		{PlayerID: "alice", Rank: 1, Score: 1},
		{PlayerID: "bob", Rank: 2},
	}); err != nil {
		t.Fatalf("save results: %v", err)
	}
	s.SaveResults("g2", "rebellion", []ResultRow{
		{PlayerID: "bob", Rank: 1, Score: 1},
		{PlayerID: "alice", Rank: 2},
	})
	// Saving again replaces rather than double counts.
	s.SaveResults("g2", "rebellion", []ResultRow{
		{PlayerID: "bob", Rank: 1, Score: 1},
		{PlayerID: "alice", Rank: 2},
	})

	st, err := s.PlayerStats("alice")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Played != 2 || st.Wins != 1 || st.TotalScore != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if st.LastPlayed == nil {
		t.Fatal("expected last played time")
	}

	none, err := s.PlayerStats("carol")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if none.Played != 0 || none.LastPlayed != nil {
		t.Fatalf("expected empty stats, got %+v", none)
	}
}

func TestDeleteSessionKeepsResults(t *testing.T) {
	s := newTestStore(t)
	s.CreateSession("abc123", "rebellion", "")
	s.AppendEvent(EventRow{SessionCode: "abc123", Type: "winner", Text: "alice wins"})
	s.SaveResults("abc123", "rebellion", []ResultRow{{PlayerID: "alice", Rank: 1, Score: 1}})

	if err := s.DeleteSession("abc123"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := s.GetSession("abc123"); err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows after delete, got %v", err)
	}
	events, err := s.ListEvents("abc123", 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected events deleted, got %d", len(events))
	}
	st, _ := s.PlayerStats("alice")
	if st.Played != 1 {
		t.Fatalf("expected results kept, got %+v", st)
	}
}
