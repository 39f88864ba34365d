package bgg

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chardila/mybgg/lib/httpcache"
	"github.com/chardila/mybgg/lib/ratelimit"
	"github.com/chardila/mybgg/lib/restyutil"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/bgg")

const (
	collectionEndpoint = "/xmlapi2/collection"
	thingEndpoint      = "/xmlapi2/thing"
)

type Client struct {
	http    *resty.Client
	cache   *httpcache.Store
	limiter *ratelimit.Limiter
	clock   ratelimit.Clock

	token       string
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	chunkSize   int
}

type ClientOptions struct {
	BaseUrl string
	// bearer credential sent on every request, never logged beyond a
	// masked prefix
	Token string
	// attempt ceiling before a request fails fatally
	MaxAttempts int
	// first retry delay, doubled per attempt up to MaxDelay
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// identifiers per detail request, bounded by the upstream URI ceiling
	ChunkSize int
	// optional sink for full request/response dumps while debugging
	InstrumentOutput restyutil.InstrumentOutput
}

// NewClient wires the catalog client to its collaborators. `cache` may be
// nil (live fetches only), `limiter` and `clock` may be nil for defaults.
func NewClient(cache *httpcache.Store, limiter *ratelimit.Limiter, clock ratelimit.Clock, opts ClientOptions) (*Client, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = "https://boardgamegeek.com"
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 10
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second * 2
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = time.Minute
	}
	if opts.ChunkSize <= 0 || opts.ChunkSize > maxChunkSize {
		opts.ChunkSize = maxChunkSize
	}
	if clock == nil {
		clock = ratelimit.SystemClock()
	}
	if limiter == nil {
		limiter = ratelimit.NewLimiter(0, clock)
	}

	httpc := resty.New()
	httpc.SetBaseURL(opts.BaseUrl)
	httpc.SetTimeout(time.Second * 30)
	httpc.SetHeader("user-agent", "mybgg-sync/1.0")
	if opts.Token != "" {
		httpc.SetHeader("Authorization", "Bearer "+opts.Token)
	}
	restyutil.InstrumentClient(httpc, tracer, opts.InstrumentOutput)

	slog.Info(
		"catalog client ready",
		"base_url", opts.BaseUrl,
		"token", MaskSecret(opts.Token),
		"cache", cache != nil,
	)

	return &Client{
		http:        httpc,
		cache:       cache,
		limiter:     limiter,
		clock:       clock,
		token:       opts.Token,
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		maxDelay:    opts.MaxDelay,
		chunkSize:   opts.ChunkSize,
	}, nil
}

// MaskSecret renders a credential safe for diagnostics: a short prefix and
// nothing else.
func MaskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}

// Collection returns the user's owned collection items. Owned expansions are
// excluded at the source, they only ever surface folded into base items.
func (c *Client) Collection(ctx context.Context, username string) ([]CollectionItem, error) {
	ctx, span := tracer.Start(ctx, "client:Collection")
	defer span.End()
	span.SetAttributes(attribute.String("username", username))

	params := url.Values{}
	params.Set("username", username)
	params.Set("own", "1")
	params.Set("stats", "1")
	params.Set("excludesubtype", "boardgameexpansion")

	body, err := c.fetch(ctx, collectionEndpoint, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch collection")
		return nil, err
	}

	items, err := parseCollection(body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse collection")
		return nil, fmt.Errorf("collection response for %q: %w", username, err)
	}

	span.SetAttributes(attribute.Int("items", len(items)))
	return items, nil
}

// Things batch-fetches catalog entries for the given identifiers. A chunk
// that fails fatally is retried id by id so only the offending items are
// lost; only an authentication rejection aborts the run.
func (c *Client) Things(ctx context.Context, ids []int) ([]CatalogEntry, error) {
	ctx, span := tracer.Start(ctx, "client:Things")
	defer span.End()
	span.SetAttributes(attribute.Int("ids", len(ids)))

	var out []CatalogEntry
	for _, chunk := range chunkIDs(dedupeIDs(ids), c.chunkSize) {
		entries, err := c.fetchThings(ctx, chunk)
		if err == nil {
			out = append(out, entries...)
			continue
		}
		if isRunFatal(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "aborting detail fetch")
			return nil, err
		}
		if len(chunk) == 1 {
			slog.WarnContext(ctx, "skipping unfetchable item", "id", joinIDs(chunk), "err", err)
			continue
		}

		// one poisoned id must not cost its whole chunk, retry the rest
		// one by one
		slog.WarnContext(ctx, "detail chunk failed, retrying ids individually", "ids", joinIDs(chunk), "err", err)
		for _, id := range chunk {
			entries, err := c.fetchThings(ctx, []int{id})
			if err != nil {
				if isRunFatal(err) {
					span.RecordError(err)
					span.SetStatus(codes.Error, "aborting detail fetch")
					return nil, err
				}
				slog.WarnContext(ctx, "skipping unfetchable item", "id", id, "err", err)
				continue
			}
			out = append(out, entries...)
		}
	}
	return out, nil
}

func (c *Client) fetchThings(ctx context.Context, ids []int) ([]CatalogEntry, error) {
	params := url.Values{}
	params.Set("id", joinIDs(ids))
	params.Set("stats", "1")

	body, err := c.fetch(ctx, thingEndpoint, params)
	if err != nil {
		return nil, err
	}
	return parseThings(body)
}

// Details resolves the full metadata set for the given base items: their
// catalog entries plus, in a second batched pass, every referenced expansion
// not already among them. Expansions are returned as links keyed by owning
// item so the transformer can fold them in.
func (c *Client) Details(ctx context.Context, ids []int) (map[int]CatalogEntry, map[int][]ExpansionLink, error) {
	ctx, span := tracer.Start(ctx, "client:Details")
	defer span.End()

	entries, err := c.Things(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	base := map[int]CatalogEntry{}
	for _, e := range entries {
		base[e.ID] = e
	}

	var missing []int
	seen := map[int]bool{}
	for _, e := range entries {
		for _, xid := range e.ExpansionIDs {
			if _, ok := base[xid]; ok || seen[xid] {
				continue
			}
			seen[xid] = true
			missing = append(missing, xid)
		}
	}

	expansions := map[int]CatalogEntry{}
	if len(missing) > 0 {
		fetched, err := c.Things(ctx, missing)
		if err != nil {
			return nil, nil, err
		}
		for _, e := range fetched {
			expansions[e.ID] = e
		}
	}

	links := map[int][]ExpansionLink{}
	for _, e := range entries {
		for _, xid := range e.ExpansionIDs {
			x, ok := expansions[xid]
			if !ok {
				x, ok = base[xid]
			}
			if !ok {
				continue
			}
			links[e.ID] = append(links[e.ID], ExpansionLink{
				ID:             x.ID,
				Name:           x.Name,
				SuggestedVotes: x.SuggestedVotes,
			})
		}
	}

	span.SetAttributes(
		attribute.Int("entries", len(base)),
		attribute.Int("expansions", len(expansions)),
	)
	return base, links, nil
}

// the upstream rejects request URIs past roughly this many bytes, chunk
// sizes are chosen so the id parameter can never get close
const (
	maxChunkSize  = 20
	maxQueryBytes = 2000
)

func dedupeIDs(ids []int) []int {
	seen := map[int]bool{}
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func chunkIDs(ids []int, size int) [][]int {
	var chunks [][]int
	for len(ids) > 0 {
		n := size
		if n > len(ids) {
			n = len(ids)
		}
		chunks = append(chunks, ids[:n])
		ids = ids[n:]
	}
	return chunks
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
