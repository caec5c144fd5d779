package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"pathplanner/pkg/config"
	"pathplanner/pkg/core"
	"pathplanner/pkg/logging"
	"pathplanner/pkg/pathstore"
)

// SettingsHandler reads and overrides runtime settings. Overrides are kept
// in the state store and win over the config file.
type SettingsHandler struct {
	prov   *config.UnifiedProvider
	engine *core.Engine
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(prov *config.UnifiedProvider, engine *core.Engine) *SettingsHandler {
	return &SettingsHandler{prov: prov, engine: engine}
}

// SettingsResponse represents the settings API response.
type SettingsResponse struct {
	SplineAlgorithm string  `json:"spline_algorithm"`
	BezierSteps     int     `json:"spline_bezier_steps"`
	CatmullSteps    int     `json:"spline_catmull_steps"`
	Autoplay        bool    `json:"sim_autoplay"`
	MockHomeLat     float64 `json:"mock_home_lat"`
	MockHomeLon     float64 `json:"mock_home_lon"`
	MockHomeAlt     float64 `json:"mock_home_alt"`
	Trace           bool    `json:"log_trace"`
	LinkProvider    string  `json:"link_provider"`
	StepDuration    string  `json:"sim_step_duration"`
}

// SettingsRequest represents an update. Pointers distinguish false/zero
// from absent.
type SettingsRequest struct {
	SplineAlgorithm *string  `json:"spline_algorithm,omitempty"`
	BezierSteps     *int     `json:"spline_bezier_steps,omitempty"`
	CatmullSteps    *int     `json:"spline_catmull_steps,omitempty"`
	Autoplay        *bool    `json:"sim_autoplay,omitempty"`
	MockHomeLat     *float64 `json:"mock_home_lat,omitempty"`
	MockHomeLon     *float64 `json:"mock_home_lon,omitempty"`
	MockHomeAlt     *float64 `json:"mock_home_alt,omitempty"`
	Trace           *bool    `json:"log_trace,omitempty"`
}

// values flattens the request into key/value pairs in registry order.
func (req *SettingsRequest) values() [][2]string {
	var kv [][2]string
	add := func(key, val string) {
		kv = append(kv, [2]string{key, val})
	}
	if req.SplineAlgorithm != nil {
		add(config.KeySplineAlgorithm, *req.SplineAlgorithm)
	}
	if req.BezierSteps != nil {
		add(config.KeyBezierSteps, strconv.Itoa(*req.BezierSteps))
	}
	if req.CatmullSteps != nil {
		add(config.KeyCatmullSteps, strconv.Itoa(*req.CatmullSteps))
	}
	if req.Autoplay != nil {
		add(config.KeyAutoplay, strconv.FormatBool(*req.Autoplay))
	}
	if req.MockHomeLat != nil {
		add(config.KeyMockHomeLat, strconv.FormatFloat(*req.MockHomeLat, 'f', -1, 64))
	}
	if req.MockHomeLon != nil {
		add(config.KeyMockHomeLon, strconv.FormatFloat(*req.MockHomeLon, 'f', -1, 64))
	}
	if req.MockHomeAlt != nil {
		add(config.KeyMockHomeAlt, strconv.FormatFloat(*req.MockHomeAlt, 'f', -1, 64))
	}
	if req.Trace != nil {
		add(config.KeyTrace, strconv.FormatBool(*req.Trace))
	}
	return kv
}

// HandleGet returns the effective settings.
func (h *SettingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settingsResponse(r.Context()))
}

func (h *SettingsHandler) settingsResponse(ctx context.Context) SettingsResponse {
	appCfg := h.prov.AppConfig()
	return SettingsResponse{
		SplineAlgorithm: h.prov.SplineAlgorithm(ctx),
		BezierSteps:     h.prov.BezierSteps(ctx),
		CatmullSteps:    h.prov.CatmullSteps(ctx),
		Autoplay:        h.prov.Autoplay(ctx),
		MockHomeLat:     h.prov.MockHomeLat(ctx),
		MockHomeLon:     h.prov.MockHomeLon(ctx),
		MockHomeAlt:     h.prov.MockHomeAlt(ctx),
		Trace:           h.prov.Trace(ctx),
		LinkProvider:    appCfg.Link.Provider,
		StepDuration:    appCfg.Sim.StepDuration.Std().String(),
	}
}

// HandleSet applies the settings present in the body. Values are applied in
// order and the first invalid one stops the update with 400; settings
// before it stay applied.
func (h *SettingsHandler) HandleSet(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ctx := r.Context()

	var changed []string
	for _, kv := range req.values() {
		if err := h.prov.Set(ctx, kv[0], kv[1]); err != nil {
			h.applyEffects(ctx, changed)
			writeError(w, fmt.Errorf("%w: %v", pathstore.ErrInvalidInput, err))
			return
		}
		slog.Info("API: setting changed", "key", kv[0], "value", kv[1])
		changed = append(changed, kv[0])
	}
	h.applyEffects(ctx, changed)
	h.HandleGet(w, r)
}

// HandleReset drops an override so the config file value applies again.
func (h *SettingsHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if !slices.Contains(config.SettingKeys, key) {
		writeError(w, fmt.Errorf("unknown setting %q: %w", key, pathstore.ErrInvalidInput))
		return
	}
	ctx := r.Context()
	if err := h.prov.Reset(ctx, key); err != nil {
		writeError(w, err)
		return
	}
	slog.Info("API: setting reset", "key", key)
	h.applyEffects(ctx, []string{key})
	h.HandleGet(w, r)
}

// applyEffects pushes changed settings into running components. Mock home
// changes take effect the next time the mock vehicle starts.
func (h *SettingsHandler) applyEffects(ctx context.Context, keys []string) {
	resample := false
	for _, key := range keys {
		switch key {
		case config.KeySplineAlgorithm, config.KeyBezierSteps, config.KeyCatmullSteps:
			resample = true
		case config.KeyTrace:
			logging.SetTrace(h.prov.Trace(ctx))
		}
	}
	if resample && h.engine != nil {
		h.engine.Recompute(context.WithoutCancel(ctx))
	}
}
