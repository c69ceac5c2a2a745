package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"phishSentinel/business/detector"
	"phishSentinel/business/ensemble"
	"phishSentinel/business/signals"
	"phishSentinel/domain"
	"phishSentinel/pkg/logger"
	"phishSentinel/pkg/metrics"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// ResponseError represent the response error struct
type ResponseError struct {
	Message string `json:"message"`
}

type (
	DetectorHandler struct {
		validate  *validator.Validate
		pipeline  EventDispatcher
		sessions  VerdictReader
		history   HistoryReader
		hub       VerdictSubscriber
		heartbeat time.Duration
	}

	EventDispatcher interface {
		Dispatch(ctx context.Context, ev detector.Event) (detector.Result, error)
	}

	VerdictReader interface {
		GetTabVerdict(ctx context.Context, tabID int) (*domain.TabVerdict, error)
	}

	HistoryReader interface {
		FindByTab(ctx context.Context, tabID, limit int) ([]domain.VerdictRecord, error)
	}

	VerdictSubscriber interface {
		Subscribe(tabID int) (<-chan domain.TabVerdict, func())
	}

	HistoryQuery struct {
		Limit int `query:"limit" validate:"omitempty,min=1,max=500"`
	}
)

// NewDetectorHandler wires the event and tab routes. sessions may be nil
// when no session store is configured; the latest history row is used then.
func NewDetectorHandler(pipeline EventDispatcher, sessions VerdictReader, history HistoryReader, hub VerdictSubscriber) *DetectorHandler {
	return &DetectorHandler{
		validate:  validator.New(),
		pipeline:  pipeline,
		sessions:  sessions,
		history:   history,
		hub:       hub,
		heartbeat: 15 * time.Second,
	}
}

func (h *DetectorHandler) Navigation(c echo.Context) error {
	var req domain.NavigationEventRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	return h.dispatch(c, detector.Navigation{
		TabID:   signals.TabID(req.TabID),
		FrameID: req.FrameID,
		URL:     req.URL,
	})
}

func (h *DetectorHandler) Content(c echo.Context) error {
	var req domain.ContentEventRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if req.Features == nil && req.HTML == "" {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "either features or html is required"})
	}

	return h.dispatch(c, detector.ContentReport{
		TabID:    signals.TabID(req.TabID),
		FrameID:  req.FrameID,
		Epoch:    signals.Epoch(req.Epoch),
		Features: req.Features,
		HTML:     req.HTML,
	})
}

func (h *DetectorHandler) Ready(c echo.Context) error {
	var req domain.ReadyEventRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	return h.dispatch(c, detector.ContentReady{
		TabID: signals.TabID(req.TabID),
		Epoch: signals.Epoch(req.Epoch),
	})
}

func (h *DetectorHandler) CloseTab(c echo.Context) error {
	tabID, err := tabParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	return h.dispatch(c, detector.TabClosed{TabID: signals.TabID(tabID)})
}

func (h *DetectorHandler) GetVerdict(c echo.Context) error {
	tabID, err := tabParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	v, err := h.latestVerdict(c.Request().Context(), tabID)
	if errors.Is(err, domain.ErrVerdictNotFound) {
		return c.JSON(http.StatusNotFound, ResponseError{Message: "no verdict for tab yet"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(v))
}

func (h *DetectorHandler) History(c echo.Context) error {
	tabID, err := tabParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	var q HistoryQuery
	if err := h.bindAndValidate(c, &q); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if q.Limit == 0 {
		q.Limit = 50
	}

	rows, err := h.history.FindByTab(c.Request().Context(), tabID, q.Limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(rows))
}

// StreamVerdicts pushes every verdict for the tab as a server-sent event
// until the client goes away.
func (h *DetectorHandler) StreamVerdicts(c echo.Context) error {
	tabID, err := tabParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ch, cancel := h.hub.Subscribe(tabID)
	defer cancel()

	metrics.VerdictStreamClients.Inc()
	defer metrics.VerdictStreamClients.Dec()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx := c.Request().Context()
	if v, err := h.latestVerdict(ctx, tabID); err == nil {
		if err := writeEvent(w, v); err != nil {
			return nil
		}
	}
	w.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case v, ok := <-ch:
			if !ok {
				return nil
			}
			if err := writeEvent(w, &v); err != nil {
				logger.Debug("verdict stream closed", "tab_id", tabID, "error", err)
				return nil
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

func writeEvent(w *echo.Response, v *domain.TabVerdict) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: verdict\ndata: %s\n\n", data); err != nil {
		return err
	}
	w.Flush()
	return nil
}

func (h *DetectorHandler) latestVerdict(ctx context.Context, tabID int) (*domain.TabVerdict, error) {
	if h.sessions != nil {
		return h.sessions.GetTabVerdict(ctx, tabID)
	}
	if h.history == nil {
		return nil, domain.ErrVerdictNotFound
	}

	rows, err := h.history.FindByTab(ctx, tabID, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrVerdictNotFound
	}
	return &domain.TabVerdict{
		Score:    rows[0].Score,
		Decision: rows[0].Decision,
		URL:      rows[0].URL,
		Epoch:    rows[0].Epoch,
	}, nil
}

func (h *DetectorHandler) dispatch(c echo.Context, ev detector.Event) error {
	res, err := h.pipeline.Dispatch(c.Request().Context(), ev)
	if err != nil {
		return c.JSON(statusFor(err), ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(toEventResponse(res)))
}

func (h *DetectorHandler) bindAndValidate(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

func toEventResponse(res detector.Result) domain.EventResponse {
	out := domain.EventResponse{
		Epoch:   uint64(res.Epoch),
		Score:   res.Score,
		Skipped: res.Skipped,
		Reason:  res.Reason,
	}
	if res.Verdict != nil {
		tv := detector.TabVerdictOf(*res.Verdict)
		out.Verdict = &tv
	}
	return out
}

func tabParam(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("tab_id"))
	if err != nil || id < 0 {
		return 0, errors.New("invalid tab id")
	}
	return id, nil
}

func statusFor(err error) int {
	var corrupt *ensemble.ModelCorruptionError
	switch {
	case errors.Is(err, ensemble.ErrNotReady),
		errors.Is(err, detector.ErrStopped),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.As(err, &corrupt):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
