package assembler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/djvutailor/internal/command"
	"github.com/local/djvutailor/internal/page"
)

type fakeRunner struct {
	calls [][]string
	err   error
}

func (f *fakeRunner) Run(_ context.Context, stdin []byte, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return nil, nil, f.err
}

func TestAssembleRestoresInputOrder(t *testing.T) {
	out := filepath.Join(t.TempDir(), "book.djvu")
	runner := &fakeRunner{}

	// completion order scrambled on purpose; one failed page mixed in
	results := []page.Result{
		{Candidate: page.Candidate{Name: "p3.tif", Index: 2}, OutputPath: "/tmp/p3.djvu"},
		{Candidate: page.Candidate{Name: "p1.tif", Index: 0}, OutputPath: "/tmp/p1.djvu"},
		{Candidate: page.Candidate{Name: "p4.tif", Index: 3}, Err: errors.New("encode failed")},
		{Candidate: page.Candidate{Name: "p2.tif", Index: 1}, OutputPath: "/tmp/p2.djvu"},
	}

	require.NoError(t, New(runner).Assemble(context.Background(), out, results))

	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"djvm", "-c", out, "/tmp/p1.djvu", "/tmp/p2.djvu", "/tmp/p3.djvu"}, runner.calls[0])
}

func TestAssembleRemovesPreExistingOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "book.djvu")
	require.NoError(t, os.WriteFile(out, []byte("old document"), 0o644))

	runner := &fakeRunner{}
	results := []page.Result{{Candidate: page.Candidate{Name: "p1.tif", Index: 0}, OutputPath: "/tmp/p1.djvu"}}
	require.NoError(t, New(runner).Assemble(context.Background(), out, results))

	// removed before the combiner ran; the fake combiner writes nothing back
	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))
	require.Len(t, runner.calls, 1)
}

func TestAssembleNoPages(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "book.djvu")
	require.NoError(t, os.WriteFile(out, []byte("old document"), 0o644))

	runner := &fakeRunner{}
	err := New(runner).Assemble(context.Background(), out, nil)
	assert.ErrorIs(t, err, ErrNoPages)

	// zero pages: combiner never invoked, pre-existing file untouched
	assert.Empty(t, runner.calls)
	data, readErr := os.ReadFile(out)
	require.NoError(t, readErr)
	assert.Equal(t, "old document", string(data))
}

func TestAssembleAllPagesFailed(t *testing.T) {
	runner := &fakeRunner{}
	results := []page.Result{
		{Candidate: page.Candidate{Name: "p1.tif", Index: 0}, Err: errors.New("boom")},
	}
	err := New(runner).Assemble(context.Background(), filepath.Join(t.TempDir(), "book.djvu"), results)
	assert.ErrorIs(t, err, ErrNoPages)
	assert.Empty(t, runner.calls)
}

func TestAssemblePropagatesCombinerError(t *testing.T) {
	want := &command.Error{Cmd: []string{"djvm"}, ExitCode: 10, Stderr: "corrupt page"}
	runner := &fakeRunner{err: want}
	results := []page.Result{{Candidate: page.Candidate{Name: "p1.tif", Index: 0}, OutputPath: "/tmp/p1.djvu"}}

	err := New(runner).Assemble(context.Background(), filepath.Join(t.TempDir(), "book.djvu"), results)

	var cmdErr *command.Error
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 10, cmdErr.ExitCode)
}
