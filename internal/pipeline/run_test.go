package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"ingest/internal/docstore"
	"ingest/internal/recipe"
)

// fakeStore implements docstore.Store in memory. failKeys marks records the
// "server" rejects; listErr/putErr simulate connectivity failures.
type fakeStore struct {
	mu   sync.Mutex
	docs map[string]json.RawMessage

	failKeys map[string]bool
	listErr  error
	putErr   error

	listCalls int
	putCalls  int
	batchLens []int
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string]json.RawMessage), failKeys: make(map[string]bool)}
}

func (s *fakeStore) EnsureCollection(context.Context) error { return nil }

func (s *fakeStore) ListIDs(context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	ids := make(map[string]struct{}, len(s.docs))
	for id := range s.docs {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (s *fakeStore) GetBatch(_ context.Context, ids []string) (map[string]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]json.RawMessage)
	for _, id := range ids {
		if doc, ok := s.docs[id]; ok {
			out[id] = doc
		}
	}
	return out, nil
}

func (s *fakeStore) PutBatch(_ context.Context, recs map[string]*recipe.Recipe) (map[string]docstore.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putCalls++
	s.batchLens = append(s.batchLens, len(recs))
	if s.putErr != nil {
		return nil, s.putErr
	}
	out := make(map[string]docstore.Outcome, len(recs))
	for key, rec := range recs {
		if s.failKeys[key] {
			out[key] = docstore.Outcome{Reason: "rejected by store"}
			continue
		}
		b, _ := json.Marshal(rec)
		s.docs[key] = b
		out[key] = docstore.Outcome{OK: true}
	}
	return out, nil
}

func (s *fakeStore) Close() {}

func rawRecords(n int) []recipe.Raw {
	recs := make([]recipe.Raw, n)
	for i := range recs {
		recs[i] = recipe.Raw{
			"id":           fmt.Sprintf("r-%03d", i),
			"title":        fmt.Sprintf("Recipe %d", i),
			"tags":         []string{"t"},
			"instructions": []string{"step"},
			"ingredients":  []string{"thing"},
			"image":        "img.png",
		}
	}
	return recs
}

func baseOptions(st docstore.Store, raw []recipe.Raw) Options {
	return Options{
		Raw:       raw,
		Source:    recipe.SourceFile,
		Store:     st,
		BatchSize: 10,
	}
}

func TestRunUploadsAll(t *testing.T) {
	st := newFakeStore()
	rep, err := Run(context.Background(), baseOptions(st, rawRecords(25)))
	if err != nil {
		t.Fatal(err)
	}
	if rep.Selected != 25 || rep.Valid != 25 || rep.Uploaded != 25 {
		t.Errorf("selected/valid/uploaded = %d/%d/%d", rep.Selected, rep.Valid, rep.Uploaded)
	}
	if len(rep.Failed) != 0 || len(rep.Invalid) != 0 || len(rep.SkippedDuplicate) != 0 {
		t.Errorf("unexpected failures: %+v", rep)
	}
	// 25 records at batch size 10 -> 3 store calls.
	if st.putCalls != 3 {
		t.Errorf("putCalls = %d, want 3", st.putCalls)
	}
}

func TestRunBatchOfOneBehavesLikeBatchOfN(t *testing.T) {
	big := newFakeStore()
	opts := baseOptions(big, rawRecords(7))
	repBig, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}

	small := newFakeStore()
	opts = baseOptions(small, rawRecords(7))
	opts.BatchSize = 1
	repSmall, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}

	if repBig.Uploaded != repSmall.Uploaded {
		t.Errorf("uploaded differs: %d vs %d", repBig.Uploaded, repSmall.Uploaded)
	}
	if small.putCalls != 7 || big.putCalls != 1 {
		t.Errorf("putCalls = %d/%d, want 7/1", small.putCalls, big.putCalls)
	}
	if len(big.docs) != len(small.docs) {
		t.Errorf("store contents differ: %d vs %d docs", len(big.docs), len(small.docs))
	}
}

func TestRunIdempotentSecondRun(t *testing.T) {
	st := newFakeStore()
	raw := rawRecords(12)

	first, err := Run(context.Background(), baseOptions(st, raw))
	if err != nil {
		t.Fatal(err)
	}
	if first.Uploaded != 12 {
		t.Fatalf("first run uploaded %d", first.Uploaded)
	}

	second, err := Run(context.Background(), baseOptions(st, raw))
	if err != nil {
		t.Fatal(err)
	}
	if len(second.SkippedDuplicate) != first.Uploaded {
		t.Errorf("skipped %d, want %d (first run's uploads)", len(second.SkippedDuplicate), first.Uploaded)
	}
	if second.Uploaded != 0 {
		t.Errorf("second run uploaded %d, want 0", second.Uploaded)
	}
}

func TestRunIncludeUploadedBypassesDedup(t *testing.T) {
	st := newFakeStore()
	raw := rawRecords(5)

	if _, err := Run(context.Background(), baseOptions(st, raw)); err != nil {
		t.Fatal(err)
	}

	opts := baseOptions(st, raw)
	opts.IncludeUploaded = true
	rep, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Uploaded != 5 || len(rep.SkippedDuplicate) != 0 {
		t.Errorf("uploaded/skipped = %d/%d, want 5/0", rep.Uploaded, len(rep.SkippedDuplicate))
	}
	// The override needs no remote read at all: one ListIDs from the first
	// run only.
	if st.listCalls != 1 {
		t.Errorf("listCalls = %d, want 1", st.listCalls)
	}
}

func TestRunPartialFailureIsolation(t *testing.T) {
	st := newFakeStore()
	st.failKeys["r-004"] = true

	rep, err := Run(context.Background(), baseOptions(st, rawRecords(10)))
	if err != nil {
		t.Fatal(err)
	}
	if rep.Uploaded != 9 {
		t.Errorf("uploaded = %d, want 9", rep.Uploaded)
	}
	if len(rep.Failed) != 1 || rep.Failed[0].Key != "r-004" {
		t.Errorf("failed = %+v", rep.Failed)
	}
	if rep.Failed[0].Reason != "rejected by store" {
		t.Errorf("reason = %q", rep.Failed[0].Reason)
	}
}

func TestRunDryRunNeverMutates(t *testing.T) {
	st := newFakeStore()
	opts := baseOptions(st, rawRecords(8))
	opts.DryRun = true

	rep, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Valid != 8 {
		t.Errorf("valid = %d", rep.Valid)
	}
	if rep.Uploaded != 0 || st.putCalls != 0 || len(st.docs) != 0 {
		t.Errorf("dry run touched the store: uploaded=%d putCalls=%d docs=%d",
			rep.Uploaded, st.putCalls, len(st.docs))
	}
}

func TestRunInvalidRecordsReported(t *testing.T) {
	raw := rawRecords(3)
	raw[1]["tags"] = "scalar"
	delete(raw[2], "image")

	st := newFakeStore()
	rep, err := Run(context.Background(), baseOptions(st, raw))
	if err != nil {
		t.Fatal(err)
	}
	if rep.Valid != 1 || rep.Uploaded != 1 {
		t.Errorf("valid/uploaded = %d/%d, want 1/1", rep.Valid, rep.Uploaded)
	}
	wantReasons := map[string]string{
		"r-001": "tags_not_a_list",
		"r-002": "missing_image",
	}
	for _, e := range rep.Invalid {
		if want, ok := wantReasons[e.Key]; !ok || e.Reason != want {
			t.Errorf("unexpected invalid entry %+v", e)
		}
	}
	if len(rep.Invalid) != 2 {
		t.Errorf("invalid entries = %d, want 2", len(rep.Invalid))
	}
}

func TestRunListIDsFailureIsFatal(t *testing.T) {
	st := newFakeStore()
	st.listErr = errors.New("connection refused")

	rep, err := Run(context.Background(), baseOptions(st, rawRecords(2)))
	if err == nil {
		t.Fatal("expected run-level error")
	}
	if rep != nil {
		t.Error("no report should be returned on a fatal error")
	}
}

func TestRunPutBatchFailureIsFatal(t *testing.T) {
	st := newFakeStore()
	st.putErr = errors.New("connection reset")

	_, err := Run(context.Background(), baseOptions(st, rawRecords(2)))
	if err == nil {
		t.Fatal("expected run-level error")
	}
}

func TestRunConcurrentBatches(t *testing.T) {
	st := newFakeStore()
	opts := baseOptions(st, rawRecords(40))
	opts.BatchSize = 5
	opts.Workers = 4

	rep, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Uploaded != 40 {
		t.Errorf("uploaded = %d, want 40", rep.Uploaded)
	}
	if st.putCalls != 8 {
		t.Errorf("putCalls = %d, want 8", st.putCalls)
	}
	// ListIDs must be read exactly once, before any batch started.
	if st.listCalls != 1 {
		t.Errorf("listCalls = %d, want 1", st.listCalls)
	}
}

func TestPartitionStableOrder(t *testing.T) {
	cands := []*recipe.Recipe{
		{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"},
	}
	existing := map[string]struct{}{"b": {}, "d": {}}

	fresh, dup := Partition(cands, existing, false)
	if len(fresh) != 2 || fresh[0].ID != "a" || fresh[1].ID != "c" {
		t.Errorf("fresh = %v", ids(fresh))
	}
	if len(dup) != 2 || dup[0].ID != "b" || dup[1].ID != "d" {
		t.Errorf("dup = %v", ids(dup))
	}

	fresh, dup = Partition(cands, existing, true)
	if len(fresh) != 4 || dup != nil {
		t.Errorf("includeUploaded: fresh=%d dup=%d", len(fresh), len(dup))
	}
}

func ids(recs []*recipe.Recipe) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}
