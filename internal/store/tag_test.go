package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/foresafe/foresafe/internal/database"
)

func setupTagTestDB(t *testing.T) *TagStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewTagStore(db)
}

func TestTagInsertAndGet(t *testing.T) {
	ts := setupTagTestDB(t)
	ctx := context.Background()

	inserted, err := ts.Insert(ctx, "FS-0001")
	if err != nil {
		t.Fatalf("insert tag: %v", err)
	}
	if !inserted {
		t.Fatal("expected first insert to create the row")
	}

	got, err := ts.Get(ctx, "FS-0001")
	if err != nil {
		t.Fatalf("get tag: %v", err)
	}
	if got == nil {
		t.Fatal("expected tag, got nil")
	}
	if got.IsRegistered {
		t.Error("imported tag should be unregistered")
	}
	if got.WhatsAppNumber != nil || got.PushToken != nil {
		t.Errorf("unregistered tag has contact fields: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected created_at to be assigned by the store")
	}
}

func TestTagGetNotFound(t *testing.T) {
	ts := setupTagTestDB(t)

	got, err := ts.Get(context.Background(), "FS-9999")
	if err != nil {
		t.Fatalf("get tag: %v", err)
	}
	if got != nil {
		t.Error("expected nil for non-existent tag")
	}
}

func TestTagInsertDuplicateKeepsRow(t *testing.T) {
	ts := setupTagTestDB(t)
	ctx := context.Background()

	ts.Insert(ctx, "FS-0001")
	ts.Register(ctx, "FS-0001", "919876543210", nil)

	inserted, err := ts.Insert(ctx, "FS-0001")
	if err != nil {
		t.Fatalf("insert duplicate: %v", err)
	}
	if inserted {
		t.Error("duplicate insert should report false")
	}

	got, _ := ts.Get(ctx, "FS-0001")
	if !got.IsRegistered || got.RelayNumber() != "919876543210" {
		t.Errorf("duplicate insert overwrote registration: %+v", got)
	}
}

func TestTagInsertBatch(t *testing.T) {
	ts := setupTagTestDB(t)
	ctx := context.Background()
	ts.Insert(ctx, "FS-0002")

	n, err := ts.InsertBatch(ctx, []string{"FS-0001", "FS-0002", "FS-0003"})
	if err != nil {
		t.Fatalf("insert batch: %v", err)
	}
	if n != 2 {
		t.Errorf("inserted = %d, want 2", n)
	}

	count, _ := ts.Count(ctx)
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestTagRegisterOnce(t *testing.T) {
	ts := setupTagTestDB(t)
	ctx := context.Background()
	ts.Insert(ctx, "FS-0002")

	token := "sub-123"
	ok, err := ts.Register(ctx, "FS-0002", "919876543210", &token)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !ok {
		t.Fatal("expected first registration to succeed")
	}

	ok, err = ts.Register(ctx, "FS-0002", "910000000000", nil)
	if err != nil {
		t.Fatalf("second register: %v", err)
	}
	if ok {
		t.Error("second registration should not match")
	}

	got, _ := ts.Get(ctx, "FS-0002")
	if !got.IsRegistered {
		t.Error("expected registered")
	}
	if got.RelayNumber() != "919876543210" {
		t.Errorf("whatsapp = %q, want first registration's number", got.RelayNumber())
	}
	if got.PushToken == nil || *got.PushToken != "sub-123" {
		t.Errorf("push_token = %v, want sub-123", got.PushToken)
	}
}

func TestTagRegisterMissingRow(t *testing.T) {
	ts := setupTagTestDB(t)

	ok, err := ts.Register(context.Background(), "FS-0404", "919876543210", nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if ok {
		t.Error("registration must never create a row")
	}
	count, _ := ts.Count(context.Background())
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestTagLinkDeviceAndTogglePush(t *testing.T) {
	ts := setupTagTestDB(t)
	ctx := context.Background()
	ts.Insert(ctx, "FS-0001")

	ok, err := ts.LinkDevice(ctx, "FS-0001", "sub-1")
	if err != nil {
		t.Fatalf("link unregistered: %v", err)
	}
	if ok {
		t.Error("linking must not touch an unregistered row")
	}

	ts.Register(ctx, "FS-0001", "919876543210", nil)
	ts.SetPushEnabled(ctx, "FS-0001", false)

	ok, err = ts.LinkDevice(ctx, "FS-0001", "sub-1")
	if err != nil || !ok {
		t.Fatalf("link registered: ok=%v err=%v", ok, err)
	}
	got, _ := ts.Get(ctx, "FS-0001")
	if !got.PushEnabled {
		t.Error("linking should enable push")
	}
	if got.PushToken == nil || *got.PushToken != "sub-1" {
		t.Errorf("push_token = %v, want sub-1", got.PushToken)
	}

	ok, err = ts.SetPushEnabled(ctx, "FS-0001", false)
	if err != nil || !ok {
		t.Fatalf("disable push: ok=%v err=%v", ok, err)
	}
	got, _ = ts.Get(ctx, "FS-0001")
	if got.PushEnabled {
		t.Error("expected push disabled")
	}
	if !got.IsRegistered {
		t.Error("toggling push must not affect registration")
	}
}

func TestTagListSearch(t *testing.T) {
	ts := setupTagTestDB(t)
	ctx := context.Background()
	for _, id := range []string{"FS-0001", "FS-0002", "FS-0010", "XX_0001"} {
		ts.Insert(ctx, id)
	}

	all, err := ts.List(ctx, "", 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("len = %d, want 4", len(all))
	}

	got, _ := ts.List(ctx, "fs-000", 100)
	if len(got) != 2 {
		t.Errorf("search fs-000 matched %d, want 2", len(got))
	}

	got, _ = ts.List(ctx, "_", 100)
	if len(got) != 1 || got[0].TagID != "XX_0001" {
		t.Errorf("underscore should match literally, got %+v", got)
	}

	got, _ = ts.List(ctx, "", 2)
	if len(got) != 2 {
		t.Errorf("limit 2 returned %d", len(got))
	}
}

func TestTagListIDsAfterPages(t *testing.T) {
	ts := setupTagTestDB(t)
	ctx := context.Background()
	for i := 5; i >= 1; i-- {
		ts.Insert(ctx, fmt.Sprintf("FS-%04d", i))
	}

	page, err := ts.ListIDsAfter(ctx, "", 2)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(page) != 2 || page[0] != "FS-0001" || page[1] != "FS-0002" {
		t.Fatalf("first page = %v", page)
	}

	page, _ = ts.ListIDsAfter(ctx, page[len(page)-1], 10)
	if len(page) != 3 || page[0] != "FS-0003" || page[2] != "FS-0005" {
		t.Errorf("second page = %v", page)
	}
}

func TestTagStats(t *testing.T) {
	ts := setupTagTestDB(t)
	ctx := context.Background()

	st, err := ts.Stats(ctx, 5)
	if err != nil {
		t.Fatalf("stats on empty store: %v", err)
	}
	if st.Total != 0 || st.Registered != 0 || len(st.Recent) != 0 {
		t.Errorf("empty stats = %+v", st)
	}

	for i := 1; i <= 7; i++ {
		ts.Insert(ctx, fmt.Sprintf("FS-%04d", i))
	}
	ts.Register(ctx, "FS-0001", "919876543210", nil)
	ts.Register(ctx, "FS-0002", "919876543211", nil)

	st, err = ts.Stats(ctx, 5)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 7 {
		t.Errorf("total = %d, want 7", st.Total)
	}
	if st.Registered != 2 {
		t.Errorf("registered = %d, want 2", st.Registered)
	}
	if len(st.Recent) != 5 {
		t.Errorf("recent = %d, want 5", len(st.Recent))
	}
}
