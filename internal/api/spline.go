package api

import (
	"fmt"
	"net/http"
	"strconv"

	"pathplanner/pkg/core"
	"pathplanner/pkg/model"
	"pathplanner/pkg/pathstore"
	"pathplanner/pkg/spline"
)

// SplineHandler serves the sampled trajectory of the active path.
type SplineHandler struct {
	store  *pathstore.Store
	engine *core.Engine
}

// NewSplineHandler creates a new SplineHandler.
func NewSplineHandler(st *pathstore.Store, engine *core.Engine) *SplineHandler {
	return &SplineHandler{store: st, engine: engine}
}

// SplineResponse is a sampled trajectory.
type SplineResponse struct {
	Path      string           `json:"path"`
	Algorithm spline.Algorithm `json:"algorithm"`
	Steps     int              `json:"steps"`
	Waypoints int              `json:"waypoints"`
	Length    float64          `json:"length"`
	Samples   []model.Waypoint `json:"samples"`
}

// HandleSpline returns the sample the clock is playing. With algorithm or
// steps query parameters the active path is resampled on the fly instead;
// the playing sample is left alone.
func (h *SplineHandler) HandleSpline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	algParam, stepsParam := q.Get("algorithm"), q.Get("steps")

	if algParam == "" && stepsParam == "" {
		name, gen, samples := h.engine.Sample()
		p, err := h.store.Path(name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newSplineResponse(name, gen, len(p.Waypoints), samples))
		return
	}

	gen := h.engine.Generator(r.Context())
	if algParam != "" {
		alg, err := spline.ParseAlgorithm(algParam)
		if err != nil {
			writeError(w, fmt.Errorf("%w: %v", pathstore.ErrInvalidInput, err))
			return
		}
		if alg != gen.Algorithm {
			gen = spline.NewGenerator(alg, 0)
		}
	}
	if stepsParam != "" {
		steps, err := strconv.Atoi(stepsParam)
		if err != nil || steps < 1 {
			writeError(w, fmt.Errorf("steps %q: %w", stepsParam, pathstore.ErrInvalidInput))
			return
		}
		gen.Steps = steps
	}

	p := h.store.ActivePath()
	writeJSON(w, http.StatusOK, newSplineResponse(p.Name, gen, len(p.Waypoints), gen.Sample(p.Waypoints)))
}

func newSplineResponse(name string, gen spline.Generator, waypoints int, samples []model.Waypoint) SplineResponse {
	return SplineResponse{
		Path:      name,
		Algorithm: gen.Algorithm,
		Steps:     gen.Steps,
		Waypoints: waypoints,
		Length:    spline.Length(samples),
		Samples:   samples,
	}
}
