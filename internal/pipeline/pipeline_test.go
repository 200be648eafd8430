package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-fmcg/rfp-cli/internal/catalog"
	"github.com/meridian-fmcg/rfp-cli/internal/keypool"
	"github.com/meridian-fmcg/rfp-cli/internal/store"
	"github.com/meridian-fmcg/rfp-cli/pkg/genai"
)

// backendFunc adapts a function to the generation backend interface.
type backendFunc func(req genai.Request) (string, error)

func (f backendFunc) Complete(_ context.Context, _ string, req genai.Request) (string, error) {
	return f(req)
}

// testGen builds a generation client around a scripted backend, with no
// retry delays and an in-memory cache.
func testGen(t *testing.T, fn func(req genai.Request) (string, error)) *genai.Client {
	t.Helper()
	pool, err := keypool.New([]string{"test-key"})
	require.NoError(t, err)
	return genai.New(backendFunc(fn), pool, store.NewMemory(), "test-model",
		genai.WithBackoffs(0, 0))
}

// fakeSearcher returns a fixed candidate list for every query.
type fakeSearcher struct {
	cands []catalog.Candidate
	err   error
}

func (f fakeSearcher) Search(context.Context, string, int, string) ([]catalog.Candidate, error) {
	return f.cands, f.err
}
