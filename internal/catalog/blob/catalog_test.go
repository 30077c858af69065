package blob

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/judge-sync/internal/clock/system"
	"github.com/JakeFAU/judge-sync/internal/domain"
	"github.com/JakeFAU/judge-sync/internal/storage/memory"
)

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NewID() (string, error) {
	return "id" + strconv.FormatInt(s.n.Add(1), 10), nil
}

type failingStore struct{}

func (failingStore) PutObject(context.Context, string, string, []byte) (string, error) {
	return "", errors.New("bucket gone")
}

func TestCatalogWritesLayout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewBlobStore()
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	c, err := New(store, &seqIDs{}, system.Fixed(at))
	require.NoError(t, err)

	root, err := c.ResolveRootFolder(ctx, "bot")
	require.NoError(t, err)
	require.Equal(t, domain.FolderID("bot"), root)

	folder, err := c.CreateFolder(ctx, root, "Round 1")
	require.NoError(t, err)
	require.Equal(t, domain.FolderID("bot/folders/id1"), folder)

	problem, err := c.CreateProblem(ctx, "bot", domain.Problem{Name: "Sum", Contest: "Round 1"})
	require.NoError(t, err)
	require.Equal(t, domain.ProblemID("id2"), problem)

	require.NoError(t, c.LinkProblemToFolder(ctx, folder, problem))
	require.NoError(t, c.LinkProblemToFolder(ctx, root, problem))

	require.Equal(t, []string{
		"bot/folder.json",
		"bot/folders/id1/folder.json",
		"bot/folders/id1/links/id2.json",
		"bot/links/id2.json",
		"bot/problems/id2.json",
	}, store.Paths())

	raw, ok := store.Object("bot/problems/id2.json")
	require.True(t, ok)
	var doc problemDoc
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Equal(t, "Sum", doc.Problem.Name)
	require.Empty(t, doc.Problem.Contest)
	require.Equal(t, at, doc.CreatedAt)
}

func TestCatalogErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, err := New(failingStore{}, &seqIDs{}, system.New())
	require.NoError(t, err)

	_, err = c.CreateProblem(ctx, "bot", domain.Problem{Name: "x"})
	require.ErrorIs(t, err, domain.ErrIO)

	var remote *domain.RemoteError
	_, err = c.ResolveRootFolder(ctx, "../etc")
	require.ErrorAs(t, err, &remote)
	_, err = c.CreateFolder(ctx, "bot", " ")
	require.ErrorAs(t, err, &remote)

	_, err = New(nil, &seqIDs{}, system.New())
	require.Error(t, err)
}
