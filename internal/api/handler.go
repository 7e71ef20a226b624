package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"RatioScope/internal/calculator"
	"RatioScope/internal/collector"
	"RatioScope/internal/model"
	"RatioScope/internal/pipeline"
	"RatioScope/internal/render"
)

// Handler serves pair snapshots and drives refreshes over HTTP.
type Handler struct {
	Manager *pipeline.Manager
	// View is used for refreshes of pairs that have never been Ready.
	View pipeline.View
}

func NewHandler(mgr *pipeline.Manager, view pipeline.View) *Handler {
	return &Handler{Manager: mgr, View: view}
}

type pairSummary struct {
	Name      string         `json:"name"`
	Slug      string         `json:"slug"`
	Stage     pipeline.Stage `json:"stage"`
	ErrorKind string         `json:"error_kind,omitempty"`
	View      *pipeline.View `json:"view,omitempty"`
	FetchedAt *time.Time     `json:"fetched_at,omitempty"`
}

// ListPairs returns every configured pair with its pipeline stage.
func (h *Handler) ListPairs(c *gin.Context) {
	pipes := h.Manager.Pipelines()
	out := make([]pairSummary, 0, len(pipes))
	for _, p := range pipes {
		s := pairSummary{
			Name:      p.Pair().Name,
			Slug:      p.Pair().Slug(),
			Stage:     p.Stage(),
			ErrorKind: collector.KindOf(p.LastError()),
		}
		if snap, ok := p.Snapshot(); ok {
			s.View = &snap.View
			s.FetchedAt = &snap.FetchedAt
		}
		out = append(out, s)
	}
	c.JSON(http.StatusOK, gin.H{"pairs": out})
}

type chartResponse struct {
	Pair       model.Pair                 `json:"pair"`
	Slug       string                     `json:"slug"`
	View       pipeline.View              `json:"view"`
	Stage      pipeline.Stage             `json:"stage"`
	Optional   pipeline.LegResult         `json:"optional"`
	Indicators []calculator.IndicatorSpec `json:"indicators"`
	FetchedAt  time.Time                  `json:"fetched_at"`
	DerivedAt  time.Time                  `json:"derived_at"`
	Primary    render.ChartData           `json:"primary"`
	Secondary  *render.ChartData          `json:"secondary,omitempty"`
}

func newChartResponse(snap *pipeline.Snapshot, mode render.Mode) chartResponse {
	resp := chartResponse{
		Pair:       snap.Pair,
		Slug:       snap.Pair.Slug(),
		View:       snap.View,
		Stage:      snap.Stage,
		Optional:   snap.Optional,
		Indicators: snap.Indicators,
		FetchedAt:  snap.FetchedAt,
		DerivedAt:  snap.DerivedAt,
		Primary:    render.Chart(snap.Primary, mode),
	}
	if snap.Pair.Optional != nil {
		secondary := render.Chart(snap.Secondary, mode)
		resp.Secondary = &secondary
	}
	return resp
}

// GetPair returns the chart payload of the latest Ready snapshot.
func (h *Handler) GetPair(c *gin.Context) {
	mode, err := render.ParseMode(c.Query("mode"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newChartResponse(snap, mode))
}

// GetVolume returns the volume histogram of the primary or secondary series.
func (h *Handler) GetVolume(c *gin.Context) {
	snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	ds := snap.Primary
	switch c.DefaultQuery("series", "primary") {
	case "primary":
	case "secondary":
		ds = snap.Secondary
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "series must be primary or secondary"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": ds.Name, "volume": render.Volume(ds.Bars)})
}

type refreshRequest struct {
	Lookback string `json:"lookback"`
	Interval string `json:"interval"`
	Mode     string `json:"mode"`
}

// Refresh fetches the pair for the requested view. Missing fields keep
// the current view.
func (h *Handler) Refresh(c *gin.Context) {
	p, err := h.Manager.Get(c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode, err := render.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view := h.View
	if snap, ok := p.Snapshot(); ok {
		view = snap.View
	}
	if req.Lookback != "" {
		lb, err := model.ParseLookback(req.Lookback)
		if err != nil || !lb.IsOption() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "lookback must be one of 7, 30, 90, 180, 365, max"})
			return
		}
		view.Lookback = lb
	}
	if req.Interval != "" {
		iv, err := model.ParseInterval(req.Interval)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		view.Interval = iv
	}

	snap, err := p.Run(c.Request.Context(), view)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newChartResponse(snap, mode))
}

// SetIndicators replaces the overlay configuration without fetching.
func (h *Handler) SetIndicators(c *gin.Context) {
	p, err := h.Manager.Get(c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	var req struct {
		Indicators []calculator.IndicatorSpec `json:"indicators"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := p.SetIndicators(req.Indicators)
	switch {
	case errors.Is(err, pipeline.ErrNotReady):
		// stored; applied on the next successful run
		c.JSON(http.StatusAccepted, gin.H{"indicators": p.Indicators()})
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, newChartResponse(snap, render.ModeArea))
	}
}

// SetInterval re-buckets the cached legs when no refetch is needed.
func (h *Handler) SetInterval(c *gin.Context) {
	p, err := h.Manager.Get(c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	var req struct {
		Interval string `json:"interval" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	iv, err := model.ParseInterval(req.Interval)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := p.SetInterval(iv)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newChartResponse(snap, render.ModeArea))
}

// snapshot resolves the :name pipeline and its Ready snapshot, writing
// the error response itself when either is missing.
func (h *Handler) snapshot(c *gin.Context) (*pipeline.Snapshot, bool) {
	p, err := h.Manager.Get(c.Param("name"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	snap, ok := p.Snapshot()
	if !ok {
		body := gin.H{"error": pipeline.ErrNotReady.Error(), "stage": p.Stage()}
		if err := p.LastError(); err != nil {
			body["kind"] = collector.KindOf(err)
			body["last_error"] = err.Error()
		}
		c.JSON(http.StatusServiceUnavailable, body)
		return nil, false
	}
	return snap, true
}

func writeError(c *gin.Context, err error) {
	kind := collector.KindOf(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, pipeline.ErrUnknownPair):
		status = http.StatusNotFound
	case errors.Is(err, pipeline.ErrNotReady):
		status = http.StatusServiceUnavailable
	case errors.Is(err, pipeline.ErrRefetchRequired):
		status = http.StatusConflict
	case kind == collector.KindRateLimited:
		status = http.StatusTooManyRequests
	case kind == collector.KindFetchFailed, kind == collector.KindProviderError:
		status = http.StatusBadGateway
	}
	body := gin.H{"error": err.Error()}
	if kind != collector.KindUnknown {
		body["kind"] = kind
	}
	c.JSON(status, body)
}
