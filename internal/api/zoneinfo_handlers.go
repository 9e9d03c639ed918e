package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/zoneinfo/server/internal/auth"
	"github.com/zoneinfo/server/internal/compression"
	"github.com/zoneinfo/server/internal/performance"
	"github.com/zoneinfo/server/internal/snapshot"
	"github.com/zoneinfo/server/internal/streaming"
	"github.com/zoneinfo/server/internal/world"
)

// Controller is the part of the scan loop the API drives.
type Controller interface {
	RequestFullRecount() bool
	RequestStop()
	World() world.Context
}

// ZoneInfoHandlers serves published snapshots and scan controls.
type ZoneInfoHandlers struct {
	reader   *snapshot.Reader
	control  Controller
	defaults snapshot.Options
	profiler *performance.Profiler
	logger   *slog.Logger
}

// NewZoneInfoHandlers creates the snapshot handlers. defaults fills query
// parameters a client leaves out.
func NewZoneInfoHandlers(reader *snapshot.Reader, control Controller, defaults snapshot.Options, profiler *performance.Profiler, logger *slog.Logger) *ZoneInfoHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &ZoneInfoHandlers{
		reader:   reader,
		control:  control,
		defaults: defaults,
		profiler: profiler,
		logger:   logger.With("component", "api"),
	}
}

type zoneInfoResponse struct {
	snapshot.View
	DistrictName string `json:"district_name"`
	RuleSet      string `json:"rule_set"`
}

// GetZoneInfo handles GET /api/zoneinfo?district=&percent=&include_unzoned=
func (h *ZoneInfoHandlers) GetZoneInfo(w http.ResponseWriter, r *http.Request) {
	opts, err := h.parseOptions(r)
	if err != nil {
		auth.SendError(w, http.StatusBadRequest, "InvalidQuery", err.Error())
		return
	}

	view := h.reader.View(opts)
	writeJSON(w, http.StatusOK, zoneInfoResponse{
		View:         view,
		DistrictName: snapshot.DistrictName(h.control.World().Districts, view.District),
		RuleSet:      h.reader.Rules().Name(),
	})
}

func (h *ZoneInfoHandlers) parseOptions(r *http.Request) (snapshot.Options, error) {
	q := r.URL.Query()
	var req streaming.SubscriptionRequest

	if v := q.Get("district"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil {
			return h.defaults, errInvalidParam("district", v)
		}
		req.District = &d
	}
	if v := q.Get("percent"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return h.defaults, errInvalidParam("percent", v)
		}
		req.Percent = &b
	}
	if v := q.Get("include_unzoned"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return h.defaults, errInvalidParam("include_unzoned", v)
		}
		req.IncludeUnzoned = &b
	}
	return streaming.Resolve(h.defaults, req)
}

type categoriesResponse struct {
	RuleSet        string                  `json:"rule_set"`
	IncludeUnzoned bool                    `json:"include_unzoned_toggle"`
	Pass           uint64                  `json:"pass"`
	Categories     []snapshot.CategoryInfo `json:"categories"`
}

// GetCategories handles GET /api/zoneinfo/categories
func (h *ZoneInfoHandlers) GetCategories(w http.ResponseWriter, r *http.Request) {
	rules := h.reader.Rules()
	writeJSON(w, http.StatusOK, categoriesResponse{
		RuleSet:        rules.Name(),
		IncludeUnzoned: rules.HasIncludeUnzoned(),
		Pass:           h.reader.Buffer().Pass,
		Categories:     h.reader.Categories(),
	})
}

// GetDistricts handles GET /api/districts
func (h *ZoneInfoHandlers) GetDistricts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"districts": snapshot.Districts(h.control.World().Districts),
	})
}

// ExportSnapshot handles GET /api/zoneinfo/export and returns the published
// buffer as a zstd-compressed binary blob.
func (h *ZoneInfoHandlers) ExportSnapshot(w http.ResponseWriter, r *http.Request) {
	out, err := compression.FormatSnapshot(h.reader.Buffer())
	if err != nil {
		h.logger.Error("snapshot export failed", "error", err)
		auth.SendError(w, http.StatusInternalServerError, "ExportFailed", "Failed to encode snapshot")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Recount handles POST /api/zoneinfo/recount
func (h *ZoneInfoHandlers) Recount(w http.ResponseWriter, r *http.Request) {
	subject, _ := auth.GetSubject(r)
	if !h.control.RequestFullRecount() {
		auth.SendError(w, http.StatusTooManyRequests, "RecountThrottled", "A recount was requested too recently")
		return
	}
	h.logger.Info("full recount requested", "subject", subject)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recount_requested"})
}

// Stop handles POST /api/zoneinfo/stop
func (h *ZoneInfoHandlers) Stop(w http.ResponseWriter, r *http.Request) {
	h.control.RequestStop()
	if claims, ok := auth.GetClaims(r); ok {
		h.logger.Warn("scan stop requested", "subject", claims.Subject, "token_id", claims.ID)
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
}

// Health handles GET /health
func (h *ZoneInfoHandlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"service":     "zoneinfo-server",
		"world_ready": h.control.World().Ready(),
		"pass":        h.reader.Buffer().Pass,
	})
}

// Profile handles GET /api/debug/profile
func (h *ZoneInfoHandlers) Profile(w http.ResponseWriter, r *http.Request) {
	report, err := h.profiler.JSONReport()
	if err != nil {
		auth.SendError(w, http.StatusInternalServerError, "ProfileFailed", "Failed to build profile report")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(report)
}

type invalidParamError struct {
	name, value string
}

func (e invalidParamError) Error() string {
	return "invalid " + e.name + " value " + strconv.Quote(e.value)
}

func errInvalidParam(name, value string) error {
	return invalidParamError{name: name, value: value}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}
