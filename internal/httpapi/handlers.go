package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edirooss/capdir/internal/core"
	"github.com/edirooss/capdir/internal/core/apierr"
	"github.com/edirooss/capdir/internal/model"
)

// Handlers wires the request surface (core.Core) to Gin routes.
type Handlers struct {
	core   *core.Core
	pollMS int64
}

// NewHandlers constructs Handlers over an already-bootstrapped Core.
func NewHandlers(c *core.Core, pollMS int64) *Handlers {
	return &Handlers{core: c, pollMS: pollMS}
}

// Register mounts every route under r (spec.md §6).
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/core/health", h.health)
	r.GET("/core/stats", h.stats)
	r.GET("/core/search", h.search)
	r.GET("/core/entries/:id", h.read)
	r.POST("/core/batchGet", h.batchGet)
}

func (h *Handlers) health(c *gin.Context) {
	s := h.core.Stats()
	c.JSON(http.StatusOK, gin.H{"ok": true, "docs": s.Docs, "last_seq": s.LastSeq})
}

func (h *Handlers) stats(c *gin.Context) {
	s := h.core.Stats()
	c.JSON(http.StatusOK, gin.H{
		"docs":                 s.Docs,
		"eq_tokens":            s.EqTokens,
		"presence_tokens":      s.PresenceTokens,
		"postings_cardinality": s.PostingsCardinality,
		"memory_approx":        s.MemoryApproxBytes,
		"build_ms":             s.BuildMS,
		"last_seq":             s.LastSeq,
		"poll_ms":              h.pollMS,
	})
}

// view is the response projection requested via ?view=.
type view string

const (
	viewCard view = "card"
	viewFull view = "full"
	viewIDs  view = "ids"
)

func (h *Handlers) search(c *gin.Context) {
	limit := 20
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 200 {
			writeError(c, apierr.New(apierr.InvalidRequest, "limit must be an integer in [1, 200]"))
			return
		}
		limit = n
	}

	sortParam := c.DefaultQuery("sort", "updated_at_desc")
	if sortParam != "updated_at_desc" && sortParam != "none" {
		writeError(c, apierr.New(apierr.InvalidRequest, "sort must be updated_at_desc or none"))
		return
	}
	cursor := c.Query("cursor")
	if cursor != "" && sortParam != "updated_at_desc" {
		writeError(c, apierr.New(apierr.InvalidRequest, "cursor requires sort=updated_at_desc"))
		return
	}

	v := view(c.DefaultQuery("view", "card"))
	if v != viewCard && v != viewFull && v != viewIDs {
		writeError(c, apierr.New(apierr.InvalidRequest, "view must be card, full, or ids"))
		return
	}

	res, err := h.core.Search(core.SearchOptions{
		Filter: c.Query("filter"),
		Limit:  limit,
		Cursor: cursor,
		Q:      c.Query("q"),
	}, getRequester(c))
	if err != nil {
		writeError(c, err)
		return
	}

	if v == viewIDs {
		ids := make([]string, len(res.Items))
		for i, hit := range res.Items {
			ids[i] = hit.Entry.ID
		}
		c.JSON(http.StatusOK, gin.H{"ids": ids, "next_cursor": nullableCursor(res.NextCursor)})
		return
	}

	items := make([]any, len(res.Items))
	for i, hit := range res.Items {
		items[i] = projectHit(hit, v)
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "next_cursor": nullableCursor(res.NextCursor)})
}

func nullableCursor(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// projectHit applies the card/full response projection spec.md §6 defines:
// full is the entry as stored, card the restricted, allow-listed view.
func projectHit(hit model.Hit, v view) any {
	if v == viewFull {
		return hit.Entry
	}
	return hit.Card
}

// parseCardOrFullView reads and validates a view param that must be card or
// full (search additionally allows ids, so it validates inline).
func parseCardOrFullView(raw string) (view, error) {
	v := view(raw)
	if v == "" {
		v = viewCard
	}
	if v != viewCard && v != viewFull {
		return "", apierr.New(apierr.InvalidRequest, "view must be card or full")
	}
	return v, nil
}

func (h *Handlers) read(c *gin.Context) {
	v, err := parseCardOrFullView(c.Query("view"))
	if err != nil {
		writeError(c, err)
		return
	}

	id := c.Param("id")
	hit, err := h.core.Read(id, getRequester(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": projectHit(hit, v)})
}

type batchGetRequest struct {
	IDs  []string `json:"ids"`
	View string   `json:"view"`
}

func (h *Handlers) batchGet(c *gin.Context) {
	var req batchGetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apierr.Wrap(apierr.InvalidRequest, "malformed request body", err))
		return
	}

	if len(req.IDs) < 1 || len(req.IDs) > 200 {
		writeError(c, apierr.New(apierr.InvalidRequest, "ids must contain between 1 and 200 entries"))
		return
	}

	v, err := parseCardOrFullView(req.View)
	if err != nil {
		writeError(c, err)
		return
	}

	res := h.core.BatchGet(req.IDs, getRequester(c))
	items := make([]any, len(res.Items))
	for i, hit := range res.Items {
		items[i] = projectHit(hit, v)
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "omitted": res.Omitted})
}
