package store_test

import (
	"context"
	"testing"
	"time"

	"kicomport/internal/scan"
	"kicomport/internal/store"
	"kicomport/internal/testsupport"
)

func TestOpenInitializesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := st.NewJob(ctx, "abc123", "parts.zip", "/tmp/parts.zip")
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if job.ID == 0 {
		t.Fatal("expected job ID to be assigned")
	}
	if job.Status != store.StatusPending {
		t.Fatalf("expected pending status, got %s", job.Status)
	}

	fetched, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if fetched == nil || fetched.OriginalFilename != "parts.zip" {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}

	found, err := st.FindJobByMD5(ctx, "abc123")
	if err != nil {
		t.Fatalf("FindJobByMD5 failed: %v", err)
	}
	if found == nil || found.ID != job.ID {
		t.Fatalf("expected to find inserted job, got %#v", found)
	}
}

func TestReopenKeepsExistingData(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	first, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	job, err := first.NewJob(context.Background(), "md5-1", "a.zip", "")
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second := testsupport.MustOpenStore(t, cfg)
	fetched, err := second.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJob after reopen failed: %v", err)
	}
	if fetched == nil || fetched.MD5 != "md5-1" {
		t.Fatalf("expected job to survive reopen, got %#v", fetched)
	}
}

func TestFindJobByMD5SkipsDuplicates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	original := testsupport.NewJob(t, st, "same-hash", "first.zip")
	dup := testsupport.NewJob(t, st, "same-hash", "second.zip")
	dup.IsDuplicate = true
	dup.Status = store.StatusDuplicate
	if err := st.UpdateJob(ctx, dup); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	found, err := st.FindJobByMD5(ctx, "same-hash")
	if err != nil {
		t.Fatalf("FindJobByMD5 failed: %v", err)
	}
	if found == nil || found.ID != original.ID {
		t.Fatalf("expected original job, got %#v", found)
	}
}

func TestSetStatusClearsStaleError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, st, "h", "a.zip")
	job.ErrorMessage = "boom"
	job.Status = store.StatusFailed
	if err := st.UpdateJob(ctx, job); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	if err := st.SetStatus(ctx, job, store.StatusAnalyzing); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	fetched, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if fetched.Status != store.StatusAnalyzing || fetched.ErrorMessage != "" {
		t.Fatalf("expected cleared error, got %#v", fetched)
	}
}

func TestComponentsAndCandidates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, st, "h", "a.zip")
	comp, err := st.AddComponent(ctx, job.ID, "AD8232")
	if err != nil {
		t.Fatalf("AddComponent failed: %v", err)
	}

	low := &store.Candidate{
		ComponentID:    comp.ID,
		Kind:           scan.KindSymbol,
		Path:           "/tmp/a/AD8232.kicad_sym",
		RelPath:        "a/AD8232.kicad_sym",
		Name:           "AD8232",
		HeuristicScore: 0.4,
		CombinedScore:  0.24,
	}
	high := &store.Candidate{
		ComponentID:    comp.ID,
		Kind:           scan.KindSymbol,
		Path:           "/tmp/b/AD8232.kicad_sym",
		RelPath:        "b/AD8232.kicad_sym",
		Name:           "AD8232",
		HeuristicScore: 0.7,
		CombinedScore:  0.52,
	}
	for _, cand := range []*store.Candidate{low, high} {
		if err := st.AddCandidate(ctx, cand); err != nil {
			t.Fatalf("AddCandidate failed: %v", err)
		}
		if cand.ID == 0 {
			t.Fatal("expected candidate ID to be assigned")
		}
	}

	cands, err := st.CandidatesForComponent(ctx, comp.ID)
	if err != nil {
		t.Fatalf("CandidatesForComponent failed: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(cands))
	}
	if cands[0].ID != high.ID {
		t.Fatalf("expected highest combined score first, got %#v", cands[0])
	}

	comps, err := st.ComponentsForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("ComponentsForJob failed: %v", err)
	}
	if len(comps) != 1 || len(comps[0].Candidates) != 2 {
		t.Fatalf("unexpected components: %#v", comps)
	}
}

func TestSelectionRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, st, "h", "a.zip")
	comp, err := st.AddComponent(ctx, job.ID, "LM358")
	if err != nil {
		t.Fatalf("AddComponent failed: %v", err)
	}
	cand := &store.Candidate{ComponentID: comp.ID, Kind: scan.KindFootprint, Path: "/p", RelPath: "p", Name: "LM358"}
	if err := st.AddCandidate(ctx, cand); err != nil {
		t.Fatalf("AddCandidate failed: %v", err)
	}

	if err := st.SetSelection(ctx, comp.ID, scan.KindFootprint, &cand.ID); err != nil {
		t.Fatalf("SetSelection failed: %v", err)
	}
	fetched, err := st.GetComponent(ctx, comp.ID)
	if err != nil {
		t.Fatalf("GetComponent failed: %v", err)
	}
	if fetched.SelectedFootprintID == nil || *fetched.SelectedFootprintID != cand.ID {
		t.Fatalf("expected footprint selection, got %#v", fetched)
	}
	if got := fetched.SelectedID(scan.KindFootprint); got == nil || *got != cand.ID {
		t.Fatal("SelectedID did not report the footprint selection")
	}

	if err := st.ResetSelections(ctx, job.ID); err != nil {
		t.Fatalf("ResetSelections failed: %v", err)
	}
	fetched, err = st.GetComponent(ctx, comp.ID)
	if err != nil {
		t.Fatalf("GetComponent failed: %v", err)
	}
	if fetched.SelectedFootprintID != nil {
		t.Fatalf("expected cleared selection, got %#v", fetched)
	}
}

func TestSetSelectionUnknownComponent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	id := int64(1)
	if err := st.SetSelection(context.Background(), 9999, scan.KindSymbol, &id); err == nil {
		t.Fatal("expected error for unknown component")
	}
}

func TestSelectedCountByName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, st, "h", "a.zip")
	comp, err := st.AddComponent(ctx, job.ID, "NE555")
	if err != nil {
		t.Fatalf("AddComponent failed: %v", err)
	}
	cand := &store.Candidate{ComponentID: comp.ID, Kind: scan.KindSymbol, Path: "/p", RelPath: "p", Name: "NE555", SelectedCount: 3}
	if err := st.AddCandidate(ctx, cand); err != nil {
		t.Fatalf("AddCandidate failed: %v", err)
	}

	count, err := st.SelectedCountByName(ctx, string(scan.KindSymbol), "ne555")
	if err != nil {
		t.Fatalf("SelectedCountByName failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3, got %d", count)
	}

	count, err = st.SelectedCountByName(ctx, string(scan.KindSymbol), "unknown")
	if err != nil {
		t.Fatalf("SelectedCountByName failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 for unknown name, got %d", count)
	}
}

func TestJobLogs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, st, "h", "a.zip")
	if err := st.AppendJobLog(ctx, job.ID, "", "created"); err != nil {
		t.Fatalf("AppendJobLog failed: %v", err)
	}
	if err := st.AppendJobLog(ctx, job.ID, "error", "extract blew up"); err != nil {
		t.Fatalf("AppendJobLog failed: %v", err)
	}

	logs, err := st.JobLogs(ctx, job.ID)
	if err != nil {
		t.Fatalf("JobLogs failed: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(logs))
	}
	if logs[0].Level != "INFO" || logs[0].Message != "created" {
		t.Fatalf("unexpected first entry: %#v", logs[0])
	}
	if logs[1].Level != "ERROR" {
		t.Fatalf("expected normalized level, got %q", logs[1].Level)
	}
}

func TestPurgeExpiredRemovesTerminalJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	done := testsupport.NewJob(t, st, "h1", "done.zip")
	done.Status = store.StatusImported
	done.StoredPath = "/tmp/done.zip"
	if err := st.UpdateJob(ctx, done); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	active := testsupport.NewJob(t, st, "h2", "active.zip")
	active.Status = store.StatusWaitingForUser
	if err := st.UpdateJob(ctx, active); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	purged, err := st.PurgeExpired(ctx, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("PurgeExpired failed: %v", err)
	}
	if len(purged) != 1 || purged[0].ID != done.ID {
		t.Fatalf("expected only terminal job purged, got %#v", purged)
	}

	remaining, err := st.GetJob(ctx, done.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if remaining != nil {
		t.Fatal("expected purged job to be deleted")
	}
	kept, err := st.GetJob(ctx, active.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if kept == nil {
		t.Fatal("expected active job to survive purge")
	}
}

func TestHealthCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, st, "h1", "a.zip")
	waiting := testsupport.NewJob(t, st, "h2", "b.zip")
	waiting.Status = store.StatusWaitingForUser
	if err := st.UpdateJob(ctx, waiting); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	summary, err := st.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if summary.Total != 2 || summary.Pending != 1 || summary.WaitingForUser != 1 {
		t.Fatalf("unexpected summary: %#v", summary)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := store.ParseStatus("  Waiting_For_User "); !ok || status != store.StatusWaitingForUser {
		t.Fatalf("unexpected parse result: %v %v", status, ok)
	}
	if _, ok := store.ParseStatus("bogus"); ok {
		t.Fatal("expected bogus status to be rejected")
	}
	if !store.StatusImported.IsTerminal() || store.StatusAnalyzing.IsTerminal() {
		t.Fatal("unexpected terminal classification")
	}
}
