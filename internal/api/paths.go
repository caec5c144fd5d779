package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"pathplanner/pkg/logging"
	"pathplanner/pkg/model"
	"pathplanner/pkg/pathstore"
)

// PathsHandler exposes the path store to the visualization adapter.
type PathsHandler struct {
	store *pathstore.Store
}

// NewPathsHandler creates a new PathsHandler.
func NewPathsHandler(st *pathstore.Store) *PathsHandler {
	return &PathsHandler{store: st}
}

// PathSummary is one entry of the path list.
type PathSummary struct {
	Name      string `json:"name"`
	Waypoints int    `json:"waypoints"`
	Active    bool   `json:"active"`
}

// PathsResponse lists all paths in store order.
type PathsResponse struct {
	Active string        `json:"active"`
	Paths  []PathSummary `json:"paths"`
}

// PathResponse is a single path with its waypoints.
type PathResponse struct {
	Name      string           `json:"name"`
	Active    bool             `json:"active"`
	Waypoints []model.Waypoint `json:"waypoints"`
}

type nameRequest struct {
	Name string `json:"name"`
}

// waypointRequest carries coordinates and, for inserts, a target index.
// All three coordinates are required.
type waypointRequest struct {
	X     *float64 `json:"x"`
	Y     *float64 `json:"y"`
	Z     *float64 `json:"z"`
	Index *int     `json:"index,omitempty"`
}

func (req waypointRequest) waypoint() (model.Waypoint, error) {
	if req.X == nil || req.Y == nil || req.Z == nil {
		return model.Waypoint{}, fmt.Errorf("x, y and z are required: %w", pathstore.ErrInvalidInput)
	}
	return model.Waypoint{X: *req.X, Y: *req.Y, Z: *req.Z}, nil
}

type moveRequest struct {
	Direction string `json:"direction"`
}

// CSVImportResponse reports the outcome of a CSV upload.
type CSVImportResponse struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

func (h *PathsHandler) pathResponse(p pathstore.Path) PathResponse {
	return PathResponse{
		Name:      p.Name,
		Active:    p.Name == h.store.ActiveName(),
		Waypoints: p.Waypoints,
	}
}

// HandleList returns every path name with its waypoint count.
func (h *PathsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	active := h.store.ActiveName()
	resp := PathsResponse{Active: active, Paths: []PathSummary{}}
	for _, name := range h.store.Names() {
		p, err := h.store.Path(name)
		if err != nil {
			// Deleted between Names and Path.
			continue
		}
		resp.Paths = append(resp.Paths, PathSummary{Name: name, Waypoints: len(p.Waypoints), Active: name == active})
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleCreate creates a path and makes it active. An empty name is
// generated by the store.
func (h *PathsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, err)
		return
	}
	name, err := h.store.CreatePath(req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	slog.Info("API: path created", "name", name)
	logging.LogEvent(logging.Event{Type: logging.EventPath, Title: "Created " + name})
	p, _ := h.store.Path(name)
	writeJSON(w, http.StatusCreated, h.pathResponse(p))
}

// HandleActive returns the active path.
func (h *PathsHandler) HandleActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.pathResponse(h.store.ActivePath()))
}

// HandleGet returns one path by name.
func (h *PathsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.Path(r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.pathResponse(p))
}

// HandleSelect makes the named path active.
func (h *PathsHandler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.store.SelectPath(name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.pathResponse(h.store.ActivePath()))
}

// HandleRename renames a path. A blank new name leaves it unchanged.
func (h *PathsHandler) HandleRename(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	old := r.PathValue("name")
	if err := h.store.RenamePath(old, req.Name); err != nil {
		writeError(w, err)
		return
	}
	h.HandleList(w, r)
}

// HandleDelete removes a path. The last remaining path cannot be deleted.
func (h *PathsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.store.DeletePath(name); err != nil {
		writeError(w, err)
		return
	}
	slog.Info("API: path deleted", "name", name, "active", h.store.ActiveName())
	logging.LogEvent(logging.Event{Type: logging.EventPath, Title: "Deleted " + name})
	h.HandleList(w, r)
}

// HandleAddWaypoint appends a waypoint, or inserts it before "index" when
// the body carries one.
func (h *PathsHandler) HandleAddWaypoint(w http.ResponseWriter, r *http.Request) {
	var req waypointRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	wp, err := req.waypoint()
	if err != nil {
		writeError(w, err)
		return
	}
	name := r.PathValue("name")
	if req.Index != nil {
		err = h.store.InsertWaypoint(name, *req.Index, wp)
	} else {
		err = h.store.AddWaypoint(name, wp)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	h.writePath(w, name, http.StatusCreated)
}

// HandleUpdateWaypoint replaces the coordinates at an index.
func (h *PathsHandler) HandleUpdateWaypoint(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req waypointRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	wp, err := req.waypoint()
	if err != nil {
		writeError(w, err)
		return
	}
	name := r.PathValue("name")
	if err := h.store.UpdateWaypoint(name, index, wp); err != nil {
		writeError(w, err)
		return
	}
	h.writePath(w, name, http.StatusOK)
}

// HandleRemoveWaypoint deletes the waypoint at an index.
func (h *PathsHandler) HandleRemoveWaypoint(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		writeError(w, err)
		return
	}
	name := r.PathValue("name")
	if err := h.store.RemoveWaypoint(name, index); err != nil {
		writeError(w, err)
		return
	}
	h.writePath(w, name, http.StatusOK)
}

// HandleMoveWaypoint swaps a waypoint with its neighbour. Moving past either
// end is accepted and changes nothing.
func (h *PathsHandler) HandleMoveWaypoint(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req moveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	dir, err := pathstore.ParseDirection(req.Direction)
	if err != nil {
		writeError(w, err)
		return
	}
	name := r.PathValue("name")
	if err := h.store.MoveWaypoint(name, index, dir); err != nil {
		writeError(w, err)
		return
	}
	h.writePath(w, name, http.StatusOK)
}

// HandleClearWaypoints empties a path.
func (h *PathsHandler) HandleClearWaypoints(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.store.ClearWaypoints(name); err != nil {
		writeError(w, err)
		return
	}
	h.writePath(w, name, http.StatusOK)
}

// HandleExportCSV writes the path as x,y,z rows.
func (h *PathsHandler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.Path(r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := pathstore.WriteCSV(&buf, p.Waypoints); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", p.Name+".csv"))
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("Failed to write CSV response", "error", err)
	}
}

// HandleImportCSV replaces a path's waypoints with the uploaded rows. Bad
// rows are skipped and counted. An upload without a single valid row is
// rejected and leaves the path untouched.
func (h *PathsHandler) HandleImportCSV(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()
	wps, skipped, err := pathstore.ReadCSV(r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(wps) == 0 {
		writeError(w, fmt.Errorf("no valid rows (%d skipped): %w", skipped, pathstore.ErrInvalidInput))
		return
	}
	name := r.PathValue("name")
	if err := h.store.ReplaceWaypoints(name, wps); err != nil {
		writeError(w, err)
		return
	}
	slog.Info("API: CSV imported", "path", name, "imported", len(wps), "skipped", skipped)
	logging.LogEvent(logging.Event{
		Type:    logging.EventPath,
		Title:   "Imported " + name,
		Summary: fmt.Sprintf("%d waypoints, %d rows skipped", len(wps), skipped),
	})
	writeJSON(w, http.StatusOK, CSVImportResponse{Imported: len(wps), Skipped: skipped})
}

func (h *PathsHandler) writePath(w http.ResponseWriter, name string, status int) {
	p, err := h.store.Path(name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, h.pathResponse(p))
}

func pathIndex(r *http.Request) (int, error) {
	raw := r.PathValue("index")
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("index %q: %w", raw, pathstore.ErrInvalidInput)
	}
	return i, nil
}
