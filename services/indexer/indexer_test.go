package indexer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chardila/mybgg/lib/ratelimit"
	"github.com/chardila/mybgg/lib/scrapers/bgg"
	"github.com/chardila/mybgg/lib/testutil"
	"github.com/chardila/mybgg/services/indexer/db"

	"github.com/stretchr/testify/require"
)

func collectionBody(ids ...int) string {
	var items strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&items, `
	<item objecttype="thing" objectid="%d" subtype="boardgame">
		<name sortindex="1">Game %d</name>
		<status own="1" prevowned="0" fortrade="0"/>
		<numplays>2</numplays>
		<stats><rating value="8"/></stats>
	</item>`, id, id)
	}
	return `<?xml version="1.0" encoding="utf-8"?><items>` + items.String() + `</items>`
}

func thingBody(id int) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<items>
	<item type="boardgame" id="%d">
		<image>https://example.com/%d.jpg</image>
		<name type="primary" sortindex="1" value="Game %d"/>
		<yearpublished value="2020"/>
		<minplayers value="2"/>
		<maxplayers value="4"/>
		<playingtime value="45"/>
	</item>
</items>`, id, id, id)
}

type fakeUpstream struct {
	collection func() string
	thing      func(id string) (string, bool)
}

func newPipeline(t *testing.T, up *fakeUpstream) Service {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/xmlapi2/collection":
			w.Write([]byte(up.collection()))
		case "/xmlapi2/thing":
			body, ok := up.thing(r.URL.Query().Get("id"))
			if !ok {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte(body))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/indexer",
		DbSchema: db.Schema,
		DbPath:   filepath.Join(t.TempDir(), "test.db"),
	})
	t.Cleanup(cleanup)
	t.Cleanup(func() { setup.DB.Close() })

	client, err := bgg.NewClient(nil, ratelimit.NewLimiter(0, nil), nil, bgg.ClientOptions{
		BaseUrl:     server.URL,
		ChunkSize:   1,
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond * 2,
	})
	require.NoError(t, err)
	return NewService(client, setup.DB, Options{Username: "someone"})
}

func TestSyncSkipsUnfetchableItemsAndPersistsTheRest(t *testing.T) {
	up := &fakeUpstream{
		collection: func() string { return collectionBody(1, 2) },
		thing: func(id string) (string, bool) {
			if id == "2" {
				return "", false
			}
			return thingBody(1), true
		},
	}
	service := newPipeline(t, up)

	stats, err := service.Sync(context.Background())
	require.NoError(t, err)
	require.Equal(t, Stats{Owned: 2, Skipped: 1, Persisted: 1}, stats)

	games, err := db.ListGames(context.Background(), service.db, 0)
	require.NoError(t, err)
	require.Len(t, games, 1)
	require.Equal(t, "Game 1", games[0].Name)
	require.Equal(t, BucketHalfHour, games[0].PlaytimeBucket)
	require.Equal(t, `[{"count":"2","source":"official"},{"count":"3","source":"official"},{"count":"4","source":"official"}]`, games[0].Players)
}

func TestSyncCollapsesDuplicateCollectionRows(t *testing.T) {
	// owning two copies of a game lists its id twice in the collection
	up := &fakeUpstream{
		collection: func() string { return collectionBody(1, 1) },
		thing:      func(id string) (string, bool) { return thingBody(1), true },
	}
	service := newPipeline(t, up)

	stats, err := service.Sync(context.Background())
	require.NoError(t, err)
	require.Equal(t, Stats{Owned: 1, Skipped: 0, Persisted: 1}, stats)

	games, err := db.ListGames(context.Background(), service.db, 0)
	require.NoError(t, err)
	require.Len(t, games, 1)
	require.EqualValues(t, 1, games[0].ID)
}

func TestSyncRebuildsFromScratch(t *testing.T) {
	up := &fakeUpstream{
		collection: func() string { return collectionBody(1, 2) },
		thing: func(id string) (string, bool) {
			n := 1
			if id == "2" {
				n = 2
			}
			return thingBody(n), true
		},
	}
	service := newPipeline(t, up)

	_, err := service.Sync(context.Background())
	require.NoError(t, err)
	games, err := db.ListGames(context.Background(), service.db, 0)
	require.NoError(t, err)
	require.Len(t, games, 2)

	// one game leaves the collection, the next run must not leave a stale row
	up.collection = func() string { return collectionBody(1) }
	_, err = service.Sync(context.Background())
	require.NoError(t, err)

	games, err = db.ListGames(context.Background(), service.db, 0)
	require.NoError(t, err)
	require.Len(t, games, 1)
	require.EqualValues(t, 1, games[0].ID)
}

func TestSyncAbortsOnAuthFailureLeavingTheArtifactAlone(t *testing.T) {
	up := &fakeUpstream{
		collection: func() string { return collectionBody(1) },
		thing:      func(id string) (string, bool) { return thingBody(1), true },
	}
	service := newPipeline(t, up)

	_, err := service.Sync(context.Background())
	require.NoError(t, err)

	authServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer authServer.Close()

	client, err := bgg.NewClient(nil, ratelimit.NewLimiter(0, nil), nil, bgg.ClientOptions{
		BaseUrl: authServer.URL,
	})
	require.NoError(t, err)
	broken := NewService(client, service.db, Options{Username: "someone"})

	_, err = broken.Sync(context.Background())
	var authErr *bgg.AuthError
	require.True(t, errors.As(err, &authErr))
	require.Contains(t, err.Error(), "collection stage")

	games, err := db.ListGames(context.Background(), service.db, 0)
	require.NoError(t, err)
	require.Len(t, games, 1, "previous artifact contents must survive an aborted run")
}
