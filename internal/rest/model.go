package rest

import (
	"net/http"

	"phishSentinel/business/ensemble"
	"phishSentinel/domain"
	"phishSentinel/pkg/config"
	"phishSentinel/pkg/logger"

	"github.com/AMFarhan21/fres"
	"github.com/labstack/echo/v4"
)

type ModelHandler struct {
	scorers      []*ensemble.Scorer
	loadManifest func() (*config.Manifest, error)
}

func NewModelHandler(loadManifest func() (*config.Manifest, error), scorers ...*ensemble.Scorer) *ModelHandler {
	return &ModelHandler{
		scorers:      scorers,
		loadManifest: loadManifest,
	}
}

func (h *ModelHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, fres.Response.StatusOK(h.statuses()))
}

// Reload re-reads the manifest and every model it names. A model that fails
// to load keeps serving its previous version.
func (h *ModelHandler) Reload(c echo.Context) error {
	manifest, err := h.loadManifest()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	failed := false
	for _, s := range h.scorers {
		paths, ok := manifest.Models[s.Name()]
		if !ok {
			continue
		}
		if err := s.LoadFiles(paths.Model, paths.FeatureIndex); err != nil {
			failed = true
			logger.Error("model reload failed", "model", s.Name(), "error", err)
			continue
		}
		logger.Info("model reloaded", "model", s.Name(), "path", paths.Model)
	}

	if failed {
		return c.JSON(http.StatusUnprocessableEntity, fres.Response.StatusOK(h.statuses()))
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(h.statuses()))
}

func (h *ModelHandler) statuses() []domain.ModelStatus {
	out := make([]domain.ModelStatus, 0, len(h.scorers))
	for _, s := range h.scorers {
		st := domain.ModelStatus{Name: s.Name(), Ready: s.Ready()}
		if m := s.Model(); m != nil {
			st.Trees = m.NumTrees()
			st.Features = m.NumFeatures()
			st.BaseScore = m.BaseScore()
		}
		if err := s.LoadErr(); err != nil {
			st.LoadError = err.Error()
		}
		out = append(out, st)
	}
	return out
}
