package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/djvutailor/internal/command"
	"github.com/local/djvutailor/internal/encoder"
	"github.com/local/djvutailor/internal/page"
)

// fakeClassifier assigns kinds by name; unlisted names are unsupported.
type fakeClassifier struct {
	kinds map[string]page.Kind
	errs  map[string]error
}

func (f *fakeClassifier) Classify(cand page.Candidate) (page.Kind, error) {
	if err := f.errs[cand.Name]; err != nil {
		return page.Unsupported, err
	}
	return f.kinds[cand.Name], nil
}

func (f *fakeClassifier) Paths(cand page.Candidate, kind page.Kind) []string {
	return []string{"/in/" + cand.Name}
}

// fakeEncoder sleeps a random time to shuffle completion order, tracks the
// number of concurrently running jobs, and fails listed pages.
type fakeEncoder struct {
	mu      sync.Mutex
	inUse   int32
	maxSeen int32
	failing map[string]error
	jitter  time.Duration
}

func (f *fakeEncoder) Encode(_ context.Context, job page.Job) error {
	cur := atomic.AddInt32(&f.inUse, 1)
	defer atomic.AddInt32(&f.inUse, -1)
	f.mu.Lock()
	if cur > f.maxSeen {
		f.maxSeen = cur
	}
	f.mu.Unlock()

	if f.jitter > 0 {
		time.Sleep(time.Duration(rand.Int63n(int64(f.jitter))))
	}
	return f.failing[job.Candidate.Name]
}

func allKinds(enc encoder.PageEncoder) map[page.Kind]encoder.PageEncoder {
	return map[page.Kind]encoder.PageEncoder{
		page.Separated: enc,
		page.Bitonal:   enc,
		page.Photo:     enc,
	}
}

func TestRunCollectsEveryResultRegardlessOfCompletionOrder(t *testing.T) {
	const n = 40
	kinds := make(map[string]page.Kind, n)
	candidates := make([]page.Candidate, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("page%03d.tif", i)
		kinds[name] = page.Bitonal
		candidates[i] = page.Candidate{Name: name, Index: i}
	}

	enc := &fakeEncoder{jitter: 3 * time.Millisecond}
	sched := New(&fakeClassifier{kinds: kinds}, allKinds(enc), Options{Workers: 8, TempDir: t.TempDir()})
	outcome := sched.Run(context.Background(), candidates)

	require.Len(t, outcome.Results, n)
	assert.Empty(t, outcome.Failures())
	assert.Zero(t, outcome.Skipped)

	// every index present exactly once, whatever order workers finished in
	indexes := make([]int, 0, n)
	for _, r := range outcome.Results {
		indexes = append(indexes, r.Candidate.Index)
	}
	sort.Ints(indexes)
	for i, idx := range indexes {
		assert.Equal(t, i, idx)
	}
}

func TestRunHonorsWorkerBound(t *testing.T) {
	kinds := map[string]page.Kind{}
	var candidates []page.Candidate
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("p%d.tif", i)
		kinds[name] = page.Photo
		candidates = append(candidates, page.Candidate{Name: name, Index: i})
	}

	enc := &fakeEncoder{jitter: 2 * time.Millisecond}
	sched := New(&fakeClassifier{kinds: kinds}, allKinds(enc), Options{Workers: 3, TempDir: t.TempDir()})
	sched.Run(context.Background(), candidates)

	assert.LessOrEqual(t, enc.maxSeen, int32(3))
}

func TestRunFailureDoesNotAbortOtherPages(t *testing.T) {
	kinds := map[string]page.Kind{
		"a.tif": page.Bitonal,
		"b.tif": page.Bitonal,
		"c.tif": page.Photo,
		"d.tif": page.Separated,
	}
	candidates := []page.Candidate{
		{Name: "a.tif", Index: 0},
		{Name: "b.tif", Index: 1},
		{Name: "c.tif", Index: 2},
		{Name: "d.tif", Index: 3},
	}
	bErr := &command.Error{Cmd: []string{"cjb2"}, ExitCode: 1, Stderr: "bad page"}

	enc := &fakeEncoder{jitter: 2 * time.Millisecond, failing: map[string]error{"b.tif": bErr}}
	sched := New(&fakeClassifier{kinds: kinds}, allKinds(enc), Options{Workers: 2, TempDir: t.TempDir()})
	outcome := sched.Run(context.Background(), candidates)

	require.Len(t, outcome.Results, 4)
	require.Len(t, outcome.Failures(), 1)
	assert.Equal(t, "b.tif", outcome.Failures()[0].Candidate.Name)
	assert.ErrorIs(t, outcome.Failures()[0].Err, bErr)
	assert.Len(t, outcome.Successes(), 3)
}

func TestRunSkipsUnsupportedCandidates(t *testing.T) {
	kinds := map[string]page.Kind{"good.tif": page.Bitonal}
	candidates := []page.Candidate{
		{Name: "good.tif", Index: 0},
		{Name: "odd.tif", Index: 1}, // unlisted -> unsupported
	}

	enc := &fakeEncoder{}
	sched := New(&fakeClassifier{kinds: kinds}, allKinds(enc), Options{Workers: 2, TempDir: t.TempDir()})
	outcome := sched.Run(context.Background(), candidates)

	require.Len(t, outcome.Results, 1)
	assert.Equal(t, "good.tif", outcome.Results[0].Candidate.Name)
	assert.Equal(t, 1, outcome.Skipped)
}

func TestRunRecordsClassificationErrors(t *testing.T) {
	candidates := []page.Candidate{{Name: "broken.tif", Index: 0}}
	cls := &fakeClassifier{
		kinds: map[string]page.Kind{},
		errs:  map[string]error{"broken.tif": fmt.Errorf("unreadable")},
	}

	sched := New(cls, allKinds(&fakeEncoder{}), Options{Workers: 1, TempDir: t.TempDir()})
	outcome := sched.Run(context.Background(), candidates)

	require.Len(t, outcome.Results, 1)
	assert.Error(t, outcome.Results[0].Err)
}

func TestRunProgressFiresOncePerCandidate(t *testing.T) {
	kinds := map[string]page.Kind{"a.tif": page.Bitonal}
	candidates := []page.Candidate{
		{Name: "a.tif", Index: 0},
		{Name: "skip.tif", Index: 1},
	}

	var ticks atomic.Int64
	sched := New(&fakeClassifier{kinds: kinds}, allKinds(&fakeEncoder{}), Options{
		Workers:    2,
		TempDir:    t.TempDir(),
		OnProgress: func() { ticks.Add(1) },
	})
	sched.Run(context.Background(), candidates)

	assert.Equal(t, int64(2), ticks.Load())
}

func TestOutputPathDerivedFromStem(t *testing.T) {
	var seen string
	enc := encodeFunc(func(_ context.Context, job page.Job) error {
		seen = job.OutputPath
		return nil
	})

	tempDir := t.TempDir()
	sched := New(&fakeClassifier{kinds: map[string]page.Kind{"scan01.tif": page.Bitonal}},
		map[page.Kind]encoder.PageEncoder{page.Bitonal: enc},
		Options{Workers: 1, TempDir: tempDir})
	sched.Run(context.Background(), []page.Candidate{{Name: "scan01.tif", Index: 0}})

	assert.Equal(t, tempDir+"/scan01.djvu", seen)
}

type encodeFunc func(ctx context.Context, job page.Job) error

func (f encodeFunc) Encode(ctx context.Context, job page.Job) error { return f(ctx, job) }
