package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/judge-sync/internal/domain"
)

func TestCatalogEchoesIncrementingIDs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := New()

	root, err := c.ResolveRootFolder(ctx, "bot")
	require.NoError(t, err)
	again, err := c.ResolveRootFolder(ctx, "bot")
	require.NoError(t, err)
	require.Equal(t, root, again)

	folder, err := c.CreateFolder(ctx, root, "Round 1")
	require.NoError(t, err)
	require.Equal(t, domain.FolderID("2"), folder)

	problem, err := c.CreateProblem(ctx, "bot", domain.Problem{Name: "A"})
	require.NoError(t, err)
	require.Equal(t, domain.ProblemID("3"), problem)

	require.NoError(t, c.LinkProblemToFolder(ctx, folder, problem))
	require.Equal(t, []Folder{{ID: "2", Parent: root, Name: "Round 1"}}, c.Folders())
	require.Len(t, c.Problems(), 1)
	require.Equal(t, []Link{{Folder: folder, Problem: problem}}, c.LinksTo(folder))
	require.Empty(t, c.LinksTo(root))
}

func TestCatalogInjectedFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := New()
	boom := errors.New("boom")
	c.FailWith(FailOn(OpCreateFolder, "broken", boom))

	_, err := c.CreateFolder(ctx, "root", "broken")
	require.ErrorIs(t, err, boom)
	_, err = c.CreateFolder(ctx, "root", "fine")
	require.NoError(t, err)

	c.FailWith(FailOn(OpLinkProblem, "7", nil))
	err = c.LinkProblemToFolder(ctx, "root", "7")
	var remote *domain.RemoteError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, 500, remote.Code)

	c.FailWith(nil)
	require.NoError(t, c.LinkProblemToFolder(ctx, "root", "7"))
	require.Len(t, c.Folders(), 1)
}

func TestCatalogConcurrentCreates(t *testing.T) {
	t.Parallel()

	c := New()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.CreateProblem(context.Background(), "bot", domain.Problem{Name: "p"})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	seen := make(map[domain.ProblemID]bool)
	for _, p := range c.Problems() {
		require.False(t, seen[p.ID])
		seen[p.ID] = true
	}
	require.Len(t, seen, 50)
}
