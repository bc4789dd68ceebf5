package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/fleetguard/fleetguard/pkg/audit"
	"github.com/fleetguard/fleetguard/pkg/identity"
	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/server"
	"github.com/fleetguard/fleetguard/pkg/store"
)

// Audit stats window bounds, in days
const (
	DefaultStatsDays = 30
	MaxStatsDays     = 365
)

const auditLogResource = "audit_log"

// AuditListResponse is a page of audit entries
type AuditListResponse struct {
	Entries []model.AuditLogEntry `json:"entries"`
	Total   int64                 `json:"total"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
}

// AuditStatsResponse summarizes a window of the audit log
type AuditStatsResponse struct {
	Days  int       `json:"days"`
	Since time.Time `json:"since"`
	Until time.Time `json:"until"`
	store.RiskSummary
}

// RegisterAuditEndpoints registers the audit log endpoints
func RegisterAuditEndpoints(s *server.Server) {
	// POST /audit is called by the dispatch layer for completed actions
	s.Router.Handle("/audit", s.Identity.Peer(handleAppendAudit(s))).Methods("POST")

	auditRouter := s.Router.PathPrefix("/audit").Subrouter()
	auditRouter.Use(s.Identity.Middleware)

	// Fixed paths first, {id} would match them otherwise
	auditRouter.HandleFunc("", handleListAudit(s)).Methods("GET")
	auditRouter.HandleFunc("/stats", handleAuditStats(s)).Methods("GET")
	auditRouter.HandleFunc("/export", handleExportAudit(s)).Methods("GET")
	auditRouter.HandleFunc("/purge", handlePurgeAudit(s)).Methods("POST")
	auditRouter.HandleFunc("/{id}", handleGetAudit(s)).Methods("GET")
}

func handleAppendAudit(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Unknown fields such as a client timestamp are ignored
		var in audit.Intent
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&in); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if id, ok := identity.Get(r.Context()); ok {
			if in.ActorID == "" {
				in.ActorID = id.ActorID
				in.ActorEmail = id.Email
			}
			if in.IPAddress == "" {
				in.IPAddress = id.IP()
			}
			if in.RequestID == "" {
				in.RequestID = id.RequestID
			}
		}
		if err := enrichIntent(s, r, &in); err != nil {
			respondWithServiceError(w, err)
			return
		}

		entry, err := s.Ledger.Append(r.Context(), in)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		respondWithJSON(w, http.StatusCreated, entry)
	}
}

// enrichIntent fills the role snapshot and risk level the dispatch layer
// left out
func enrichIntent(s *server.Server, r *http.Request, in *audit.Intent) error {
	if in.ActorID != "" && in.ActorRole == "" {
		role, err := s.Roles.ActorRoleSnapshot(r.Context(), in.ActorID)
		if err != nil {
			return err
		}
		in.ActorRole = role
	}
	if in.PermissionKey != "" && in.RiskLevel == 0 {
		perm, err := s.Catalog.Lookup(r.Context(), in.PermissionKey)
		switch {
		case err == nil:
			in.RiskLevel = perm.RiskLevel
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
	}
	return nil
}

// parseAuditFilter reads the filter query parameters shared by list and
// export
func parseAuditFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	f := audit.Filter{
		Actor:        q.Get("actor"),
		Action:       q.Get("action"),
		ResourceType: q.Get("resource_type"),
		Search:       q.Get("search"),
	}
	if f.Action != "" && !audit.Action(f.Action).Valid() {
		return f, fmt.Errorf("invalid action %q", f.Action)
	}

	for name, dst := range map[string]*time.Time{"since": &f.Since, "until": &f.Until} {
		if v := q.Get(name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return f, fmt.Errorf("%s must be an RFC 3339 timestamp", name)
			}
			*dst = t.UTC()
		}
	}

	var err error
	if f.MinRiskScore, err = queryInt(r, "min_risk", 0); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(r, "limit", audit.DefaultQueryLimit); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(r, "offset", 0); err != nil {
		return f, err
	}
	return f, nil
}

func handleListAudit(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := parseAuditFilter(r)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		if f.Limit > s.Config.APIListLimitMax {
			f.Limit = s.Config.APIListLimitMax
		}

		intent, ok := guard(s, w, r, "audit.view", target{Type: auditLogResource})
		if !ok {
			return
		}
		entries, total, err := s.Ledger.Query(r.Context(), f)
		if !record(s, w, r, intent, err) {
			return
		}
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		if entries == nil {
			entries = []model.AuditLogEntry{}
		}
		respondWithJSON(w, http.StatusOK, AuditListResponse{
			Entries: entries,
			Total:   total,
			Limit:   f.Limit,
			Offset:  f.Offset,
		})
	}
}

func handleGetAudit(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := pathVar(r, "id")

		intent, ok := guard(s, w, r, "audit.view", target{Type: auditLogResource, ID: id})
		if !ok {
			return
		}
		entry, err := s.Ledger.Get(r.Context(), id)
		if !record(s, w, r, intent, err) {
			return
		}
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, entry)
	}
}

func handleAuditStats(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, err := queryInt(r, "days", DefaultStatsDays)
		if err != nil || days < 1 || days > MaxStatsDays {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("days must be between 1 and %d", MaxStatsDays))
			return
		}

		intent, ok := guard(s, w, r, "audit.view", target{Type: auditLogResource, Name: "risk summary"})
		if !ok {
			return
		}
		until := time.Now().UTC()
		since := until.AddDate(0, 0, -days)
		summary, err := s.Ledger.RiskSummary(r.Context(), since, until)
		if !record(s, w, r, intent, err) {
			return
		}
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, AuditStatsResponse{
			Days:        days,
			Since:       since,
			Until:       until,
			RiskSummary: summary,
		})
	}
}

func handleExportAudit(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := parseAuditFilter(r)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		intent, ok := guard(s, w, r, "audit.export", target{Type: auditLogResource, Name: "csv export"})
		if !ok {
			return
		}
		// The export is recorded before the first row leaves
		if !record(s, w, r, intent, nil) {
			return
		}

		filename := fmt.Sprintf("audit_log_%s.csv", time.Now().UTC().Format("20060102_150405"))
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		if _, err := s.Ledger.Export(r.Context(), f, s.Config.AuditExportLimit, w); err != nil {
			log.Printf("audit: export failed: %v", err)
		}
	}
}

func handlePurgeAudit(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		intent, ok := guard(s, w, r, "audit.delete", target{Type: auditLogResource, Name: "retention purge"})
		if !ok {
			return
		}
		result, err := audit.NewPurger(s.Ledger, s.Policy.RetentionSource()).RunOnce(r.Context())
		if !record(s, w, r, intent, err) {
			return
		}
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, result)
	}
}
