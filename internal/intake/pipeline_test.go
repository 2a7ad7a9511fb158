package intake_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"kicomport/internal/config"
	"kicomport/internal/intake"
	"kicomport/internal/ollama"
	"kicomport/internal/scan"
	"kicomport/internal/services"
	"kicomport/internal/store"
	"kicomport/internal/testsupport"
)

const symbolText = `(kicad_symbol_lib (version 20211014) (generator kicad)
  (symbol "NE555" (description "Precision timer")
    (pin passive line (at 0 0 0))
    (pin passive line (at 0 2.54 0))
  )
)`

const footprintText = `(footprint "NE555" (version 20221018)
  (descr "DIP-8 package")
  (pad "1" thru_hole circle (at 0 0))
  (pad "2" thru_hole circle (at 2.54 0))
)`

func bundleZip(t *testing.T, members map[string]string) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	// Write entries in sorted order so identical member maps always produce
	// byte-identical archives (and thus matching MD5s).
	for _, name := range slices.Sorted(maps.Keys(members)) {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := f.Write([]byte(members[name])); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func defaultBundle(t *testing.T) *bytes.Reader {
	return bundleZip(t, map[string]string{
		"library/NE555.kicad_sym": symbolText,
		"library/NE555.kicad_mod": footprintText,
		"3d/NE555.step":           "solid model data",
	})
}

type fakeScorer struct {
	scores map[int64]ollama.Score
	err    error
	called bool
}

func (f *fakeScorer) ScoreCandidates(ctx context.Context, comps []*store.Component) (map[int64]ollama.Score, error) {
	f.called = true
	if f.err != nil {
		return nil, f.err
	}
	if f.scores != nil {
		return f.scores, nil
	}
	out := make(map[int64]ollama.Score)
	for _, comp := range comps {
		for _, cand := range comp.Candidates {
			out[cand.ID] = ollama.Score{Value: 0.5, Reason: "plausible"}
		}
	}
	return out, nil
}

func newPipeline(t *testing.T, opts ...intake.PipelineOption) (*intake.Pipeline, *store.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	return intake.New(st, cfg, nil, opts...), st, cfg
}

func TestIngestUploadAnalyzesBundle(t *testing.T) {
	p, st, _ := newPipeline(t)
	ctx := context.Background()

	job, err := p.IngestUpload(ctx, defaultBundle(t), "ne555_bundle.zip")
	if err != nil {
		t.Fatalf("IngestUpload: %v", err)
	}
	if job.Status != store.StatusWaitingForUser {
		t.Fatalf("status = %s, want waiting_for_user", job.Status)
	}
	if job.ExtractedPath == "" {
		t.Fatal("expected extracted path recorded")
	}

	comps, err := st.ComponentsForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("ComponentsForJob: %v", err)
	}
	if len(comps) != 1 || comps[0].Name != "NE555" {
		t.Fatalf("unexpected components: %#v", comps)
	}
	kinds := make(map[scan.Kind]int)
	for _, cand := range comps[0].Candidates {
		kinds[cand.Kind]++
		if cand.CombinedScore <= 0 {
			t.Fatalf("candidate not scored: %#v", cand)
		}
	}
	if kinds[scan.KindSymbol] != 1 || kinds[scan.KindFootprint] != 1 || kinds[scan.KindModel] != 1 {
		t.Fatalf("unexpected kind spread: %v", kinds)
	}
}

func TestIngestUploadRejectsUnknownExtension(t *testing.T) {
	p, _, _ := newPipeline(t)
	_, err := p.IngestUpload(context.Background(), strings.NewReader("x"), "payload.exe")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestIngestUploadDetectsDuplicates(t *testing.T) {
	p, st, cfg := newPipeline(t)
	ctx := context.Background()

	first, err := p.IngestUpload(ctx, defaultBundle(t), "one.zip")
	if err != nil {
		t.Fatalf("first IngestUpload: %v", err)
	}
	second, err := p.IngestUpload(ctx, defaultBundle(t), "two.zip")
	if err != nil {
		t.Fatalf("second IngestUpload: %v", err)
	}

	if !second.IsDuplicate || second.Status != store.StatusDuplicate {
		t.Fatalf("expected duplicate job, got %#v", second)
	}
	if second.ID == first.ID {
		t.Fatal("duplicate should be a distinct job record")
	}

	logs, err := st.JobLogs(ctx, first.ID)
	if err != nil {
		t.Fatalf("JobLogs: %v", err)
	}
	found := false
	for _, entry := range logs {
		if strings.Contains(entry.Message, "Duplicate upload ignored") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected duplicate note on original job")
	}

	entries, err := os.ReadDir(cfg.Paths.UploadsDir)
	if err != nil {
		t.Fatalf("ReadDir uploads: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("duplicate upload should be removed, found %d files", len(entries))
	}
}

func TestAnalyzeFailsJobOnHostileArchive(t *testing.T) {
	p, st, _ := newPipeline(t)
	ctx := context.Background()

	evil := bundleZip(t, map[string]string{"../escape.kicad_sym": symbolText})
	job, err := p.IngestUpload(ctx, evil, "evil.zip")
	if err == nil {
		t.Fatal("expected extraction rejection")
	}
	if job == nil {
		t.Fatal("expected job record for failed bundle")
	}

	fetched, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if fetched.Status != store.StatusFailed {
		t.Fatalf("status = %s, want failed", fetched.Status)
	}
	if !strings.Contains(fetched.ErrorMessage, "Extraction rejected") {
		t.Fatalf("unexpected error message: %q", fetched.ErrorMessage)
	}
}

func TestAnalyzeFailsJobWhenNothingRecognized(t *testing.T) {
	p, st, _ := newPipeline(t)
	ctx := context.Background()

	bundle := bundleZip(t, map[string]string{
		"readme.txt": "nothing useful",
		"notes.md":   "still nothing",
	})
	job, err := p.IngestUpload(ctx, bundle, "noise.zip")
	if err == nil {
		t.Fatal("expected failure for bundle without candidates")
	}

	fetched, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if fetched.Status != store.StatusFailed {
		t.Fatalf("status = %s, want failed", fetched.Status)
	}
	if !strings.Contains(fetched.ErrorMessage, "No candidates detected") {
		t.Fatalf("unexpected message: %q", fetched.ErrorMessage)
	}
	if !strings.Contains(fetched.ErrorMessage, ".txt") {
		t.Fatalf("expected extension summary in message: %q", fetched.ErrorMessage)
	}
}

func TestAnalyzeAppliesAIScores(t *testing.T) {
	scorer := &fakeScorer{}
	p, st, _ := newPipeline(t, intake.WithScorer(scorer))
	ctx := context.Background()

	job, err := p.IngestUpload(ctx, defaultBundle(t), "bundle.zip")
	if err != nil {
		t.Fatalf("IngestUpload: %v", err)
	}
	if !scorer.called {
		t.Fatal("expected scorer to be invoked")
	}
	if job.AIFailed {
		t.Fatal("job should not be flagged ai_failed")
	}

	comps, err := st.ComponentsForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("ComponentsForJob: %v", err)
	}
	for _, cand := range comps[0].Candidates {
		if cand.AIScore != 0.5 || cand.AIReason != "plausible" {
			t.Fatalf("ai score not applied: %#v", cand)
		}
	}
}

func TestAnalyzeToleratesAIFailure(t *testing.T) {
	scorer := &fakeScorer{err: errors.New("model offline")}
	p, st, _ := newPipeline(t, intake.WithScorer(scorer))
	ctx := context.Background()

	job, err := p.IngestUpload(ctx, defaultBundle(t), "bundle.zip")
	if err != nil {
		t.Fatalf("IngestUpload should tolerate AI failure: %v", err)
	}

	fetched, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if fetched.Status != store.StatusWaitingForUser {
		t.Fatalf("status = %s, want waiting_for_user", fetched.Status)
	}
	if !fetched.AIFailed {
		t.Fatal("expected ai_failed flag")
	}
}

func TestSelectCandidateValidatesOwnershipAndKind(t *testing.T) {
	p, st, _ := newPipeline(t)
	ctx := context.Background()

	job, err := p.IngestUpload(ctx, defaultBundle(t), "bundle.zip")
	if err != nil {
		t.Fatalf("IngestUpload: %v", err)
	}
	comps, err := st.ComponentsForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("ComponentsForJob: %v", err)
	}
	comp := comps[0]

	var symbol, footprint *store.Candidate
	for _, cand := range comp.Candidates {
		switch cand.Kind {
		case scan.KindSymbol:
			symbol = cand
		case scan.KindFootprint:
			footprint = cand
		}
	}

	if err := p.SelectCandidate(ctx, job.ID, comp.ID, scan.KindSymbol, &symbol.ID); err != nil {
		t.Fatalf("SelectCandidate: %v", err)
	}
	if err := p.SelectCandidate(ctx, job.ID, comp.ID, scan.KindSymbol, &footprint.ID); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("kind mismatch should be a validation error, got %v", err)
	}
	if err := p.SelectCandidate(ctx, job.ID+1, comp.ID, scan.KindSymbol, &symbol.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("wrong job should be not found, got %v", err)
	}
	bogus := int64(99999)
	if err := p.SelectCandidate(ctx, job.ID, comp.ID, scan.KindSymbol, &bogus); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("unknown candidate should be not found, got %v", err)
	}

	if err := p.SelectCandidate(ctx, job.ID, comp.ID, scan.KindSymbol, nil); err != nil {
		t.Fatalf("clearing selection: %v", err)
	}
	fetched, err := st.GetComponent(ctx, comp.ID)
	if err != nil {
		t.Fatalf("GetComponent: %v", err)
	}
	if fetched.SelectedSymbolID != nil {
		t.Fatal("expected selection cleared")
	}
}

func TestImportEndToEnd(t *testing.T) {
	p, st, cfg := newPipeline(t)
	ctx := context.Background()

	job, err := p.IngestUpload(ctx, defaultBundle(t), "bundle.zip")
	if err != nil {
		t.Fatalf("IngestUpload: %v", err)
	}
	comps, err := st.ComponentsForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("ComponentsForJob: %v", err)
	}
	comp := comps[0]
	for _, cand := range comp.Candidates {
		if err := p.SelectCandidate(ctx, job.ID, comp.ID, cand.Kind, &cand.ID); err != nil {
			t.Fatalf("SelectCandidate(%s): %v", cand.Kind, err)
		}
	}

	result, err := p.Import(ctx, job.ID, "")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.Symbols != 1 || result.Footprints != 1 || result.Models != 1 {
		t.Fatalf("unexpected import counts: %#v", result)
	}

	symLib := filepath.Join(cfg.Paths.SymbolDir, config.DefaultLibraryIdentity+".kicad_sym")
	if _, err := os.Stat(symLib); err != nil {
		t.Fatalf("symbol library missing: %v", err)
	}

	fetched, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if fetched.Status != store.StatusImported {
		t.Fatalf("status = %s, want imported", fetched.Status)
	}
}

func TestImportUnknownJob(t *testing.T) {
	p, _, _ := newPipeline(t)
	if _, err := p.Import(context.Background(), 404, ""); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResetSelectionsClearsEveryPick(t *testing.T) {
	p, st, _ := newPipeline(t)
	ctx := context.Background()

	job, err := p.IngestUpload(ctx, defaultBundle(t), "bundle.zip")
	if err != nil {
		t.Fatalf("IngestUpload: %v", err)
	}
	comps, err := st.ComponentsForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("ComponentsForJob: %v", err)
	}
	comp := comps[0]
	for _, cand := range comp.Candidates {
		if err := p.SelectCandidate(ctx, job.ID, comp.ID, cand.Kind, &cand.ID); err != nil {
			t.Fatalf("SelectCandidate(%s): %v", cand.Kind, err)
		}
	}

	if err := p.ResetSelections(ctx, job.ID); err != nil {
		t.Fatalf("ResetSelections: %v", err)
	}

	fetched, err := st.GetComponent(ctx, comp.ID)
	if err != nil {
		t.Fatalf("GetComponent: %v", err)
	}
	if fetched.SelectedSymbolID != nil || fetched.SelectedFootprintID != nil || fetched.SelectedModelID != nil {
		t.Fatalf("expected all selections cleared, got %#v", fetched)
	}

	logs, err := st.JobLogs(ctx, job.ID)
	if err != nil {
		t.Fatalf("JobLogs: %v", err)
	}
	noted := false
	for _, entry := range logs {
		if strings.Contains(entry.Message, "Selections cleared") {
			noted = true
		}
	}
	if !noted {
		t.Fatal("expected reset note in job log")
	}

	if err := p.ResetSelections(ctx, job.ID+100); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("unknown job should be not found, got %v", err)
	}
}

func TestAnalyzeSeedsFeedbackFromImportHistory(t *testing.T) {
	p, st, _ := newPipeline(t)
	ctx := context.Background()

	first, err := p.IngestUpload(ctx, defaultBundle(t), "first.zip")
	if err != nil {
		t.Fatalf("first IngestUpload: %v", err)
	}
	comps, err := st.ComponentsForJob(ctx, first.ID)
	if err != nil {
		t.Fatalf("ComponentsForJob: %v", err)
	}
	comp := comps[0]
	for _, cand := range comp.Candidates {
		if err := p.SelectCandidate(ctx, first.ID, comp.ID, cand.Kind, &cand.ID); err != nil {
			t.Fatalf("SelectCandidate(%s): %v", cand.Kind, err)
		}
	}
	if _, err := p.Import(ctx, first.ID, ""); err != nil {
		t.Fatalf("Import: %v", err)
	}

	// Same component name, different bundle bytes so it is not a duplicate.
	revised := bundleZip(t, map[string]string{
		"library/NE555.kicad_sym": symbolText,
		"library/NE555.kicad_mod": footprintText,
		"3d/NE555.step":           "solid model data",
		"readme.txt":              "second revision",
	})
	second, err := p.IngestUpload(ctx, revised, "second.zip")
	if err != nil {
		t.Fatalf("second IngestUpload: %v", err)
	}
	if second.IsDuplicate {
		t.Fatal("revised bundle should not be a duplicate")
	}

	comps, err = st.ComponentsForJob(ctx, second.ID)
	if err != nil {
		t.Fatalf("ComponentsForJob: %v", err)
	}
	for _, cand := range comps[0].Candidates {
		if cand.FeedbackScore != 0.02 {
			t.Fatalf("candidate %s %s feedback = %v, want 0.02", cand.Kind, cand.Name, cand.FeedbackScore)
		}
	}
}

func TestIngestFileFromInbox(t *testing.T) {
	p, _, cfg := newPipeline(t)
	ctx := context.Background()

	var buf bytes.Buffer
	if _, err := defaultBundle(t).WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	inboxPath := filepath.Join(cfg.Paths.InboxDir, "drop.zip")
	testsupport.WriteFile(t, inboxPath, buf.String())

	job, err := p.IngestFile(ctx, inboxPath)
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if job.Status != store.StatusWaitingForUser {
		t.Fatalf("status = %s, want waiting_for_user", job.Status)
	}
	if _, err := os.Stat(inboxPath); err != nil {
		t.Fatalf("inbox file should remain for the watcher to remove: %v", err)
	}
}

func TestIngestFileSkipsUploadCopyForDuplicates(t *testing.T) {
	p, st, cfg := newPipeline(t)
	ctx := context.Background()

	first, err := p.IngestUpload(ctx, defaultBundle(t), "first.zip")
	if err != nil {
		t.Fatalf("IngestUpload: %v", err)
	}

	var buf bytes.Buffer
	if _, err := defaultBundle(t).WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	inboxPath := filepath.Join(cfg.Paths.InboxDir, "drop.zip")
	testsupport.WriteFile(t, inboxPath, buf.String())

	dup, err := p.IngestFile(ctx, inboxPath)
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if !dup.IsDuplicate || dup.Status != store.StatusDuplicate {
		t.Fatalf("expected duplicate job, got %#v", dup)
	}
	if !strings.Contains(dup.ErrorMessage, fmt.Sprintf("Duplicate of job %d", first.ID)) {
		t.Fatalf("unexpected duplicate message: %q", dup.ErrorMessage)
	}

	// The duplicate is detected from the inbox file itself, so the uploads
	// directory still holds only the original bundle.
	entries, err := os.ReadDir(cfg.Paths.UploadsDir)
	if err != nil {
		t.Fatalf("ReadDir uploads: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("uploads dir should hold one file, found %d", len(entries))
	}

	logs, err := st.JobLogs(ctx, first.ID)
	if err != nil {
		t.Fatalf("JobLogs: %v", err)
	}
	noted := false
	for _, entry := range logs {
		if strings.Contains(entry.Message, "Duplicate upload ignored") {
			noted = true
		}
	}
	if !noted {
		t.Fatal("expected duplicate note on original job")
	}
}
