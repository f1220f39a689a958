package db_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/YannKr/jpegforensics"
	"github.com/YannKr/jpegforensics/internal/db"
	"github.com/YannKr/jpegforensics/internal/model"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.Migrate(database, jpegforensics.MigrationFS); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return database
}

func TestMigrateIsIdempotent(t *testing.T) {
	database := openTestDB(t)
	if err := db.Migrate(database, jpegforensics.MigrationFS); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestAnalysisLifecycle(t *testing.T) {
	database := openTestDB(t)

	a := &model.Analysis{ID: "a1", Algorithm: "ghost", OriginalName: "x.jpg", InputPath: "/tmp/x.jpg"}
	if err := db.CreateAnalysis(database, a); err != nil {
		t.Fatalf("CreateAnalysis: %v", err)
	}

	got, err := db.GetAnalysis(database, "a1")
	if err != nil || got == nil {
		t.Fatalf("GetAnalysis: %v, %v", got, err)
	}
	if got.State != model.StatePending || got.ParamsJSON != "{}" {
		t.Errorf("new analysis state=%q params=%q", got.State, got.ParamsJSON)
	}

	claimed, err := db.ClaimNextAnalysis(database)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNextAnalysis: %v, %v", claimed, err)
	}
	if claimed.ID != "a1" || claimed.State != model.StateRunning || claimed.StartedAt == nil {
		t.Errorf("claimed = %+v", claimed)
	}

	again, err := db.ClaimNextAnalysis(database)
	if err != nil || again != nil {
		t.Errorf("second claim = %v, %v; want nil, nil", again, err)
	}

	if err := db.UpdateAnalysisProgress(database, "a1", 40, "ghost_q70"); err != nil {
		t.Fatal(err)
	}
	if err := db.CompleteAnalysis(database, "a1", `{"maps":[]}`); err != nil {
		t.Fatal(err)
	}
	got, _ = db.GetAnalysis(database, "a1")
	if got.State != model.StateCompleted || got.Progress != 100 || got.Stage != "ghost_q70" || got.CompletedAt == nil {
		t.Errorf("completed = %+v", got)
	}
	if got.ResultJSON != `{"maps":[]}` {
		t.Errorf("result = %q", got.ResultJSON)
	}
}

func TestGetMissingAnalysis(t *testing.T) {
	database := openTestDB(t)
	got, err := db.GetAnalysis(database, "nope")
	if err != nil || got != nil {
		t.Errorf("GetAnalysis(missing) = %v, %v; want nil, nil", got, err)
	}
}

func TestRequeueRunning(t *testing.T) {
	database := openTestDB(t)
	for _, id := range []string{"r1", "r2"} {
		if err := db.CreateAnalysis(database, &model.Analysis{ID: id, Algorithm: "ela"}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := db.ClaimNextAnalysis(database); err != nil {
		t.Fatal(err)
	}
	n, err := db.RequeueRunning(database)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("requeued %d, want 1", n)
	}
	list, err := db.ListRecentAnalyses(database, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range list {
		if a.State != model.StatePending {
			t.Errorf("%s state = %s, want PENDING", a.ID, a.State)
		}
	}
}

func TestFailAndListFinishedBefore(t *testing.T) {
	database := openTestDB(t)
	if err := db.CreateAnalysis(database, &model.Analysis{ID: "f1", Algorithm: "noise"}); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateAnalysis(database, &model.Analysis{ID: "p1", Algorithm: "noise"}); err != nil {
		t.Fatal(err)
	}
	if err := db.FailAnalysis(database, "f1", "boom"); err != nil {
		t.Fatal(err)
	}

	old, err := db.ListFinishedBefore(database, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(old) != 1 || old[0].ID != "f1" || old[0].ErrorMessage != "boom" {
		t.Fatalf("ListFinishedBefore = %+v", old)
	}

	none, err := db.ListFinishedBefore(database, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("got %d analyses older than an hour ago", len(none))
	}

	if err := db.DeleteAnalysis(database, "f1"); err != nil {
		t.Fatal(err)
	}
	if got, _ := db.GetAnalysis(database, "f1"); got != nil {
		t.Error("analysis survived DeleteAnalysis")
	}
}

func TestAPIKeys(t *testing.T) {
	database := openTestDB(t)
	k := &model.APIKey{ID: "k1", Name: "ci", KeyPrefix: "jf_abcd1234", KeyHash: "hash"}
	if err := db.CreateAPIKey(database, k); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetAPIKeyByPrefix(database, "jf_abcd1234")
	if err != nil || got == nil {
		t.Fatalf("GetAPIKeyByPrefix: %v, %v", got, err)
	}
	if got.KeyHash != "hash" || got.Name != "ci" {
		t.Errorf("key = %+v", got)
	}

	if err := db.TouchAPIKeyUsed(database, "k1"); err != nil {
		t.Fatal(err)
	}
	keys, err := db.ListAPIKeys(database)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0].LastUsedAt == nil {
		t.Errorf("ListAPIKeys = %+v", keys)
	}

	if err := db.DeleteAPIKey(database, "k1"); err != nil {
		t.Fatal(err)
	}
	if got, _ := db.GetAPIKeyByPrefix(database, "jf_abcd1234"); got != nil {
		t.Error("key survived DeleteAPIKey")
	}
}
