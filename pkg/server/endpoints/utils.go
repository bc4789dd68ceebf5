package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/fleetguard/fleetguard/pkg/approval"
	"github.com/fleetguard/fleetguard/pkg/audit"
	"github.com/fleetguard/fleetguard/pkg/authz"
	"github.com/fleetguard/fleetguard/pkg/catalog"
	"github.com/fleetguard/fleetguard/pkg/org"
	"github.com/fleetguard/fleetguard/pkg/rbac"
	"github.com/fleetguard/fleetguard/pkg/store"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 1 << 20

func respondWithError(w http.ResponseWriter, code int, payload interface{}) {
	respondWithJSON(w, code, map[string]interface{}{"error": payload})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// respondForbidden is the only answer a denied caller gets
func respondForbidden(w http.ResponseWriter) {
	respondWithError(w, http.StatusForbidden, authz.ForbiddenMessage)
}

// respondWithServiceError maps err onto a status code. Faults are logged
// and answered without detail.
func respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Not found")
	case isDenial(err):
		respondForbidden(w)
	case errors.Is(err, rbac.ErrInvalidInput),
		errors.Is(err, rbac.ErrUnknownPermission),
		errors.Is(err, catalog.ErrInvalidPermission),
		errors.Is(err, org.ErrInvalidPolicy),
		errors.Is(err, audit.ErrInvalidAction),
		errors.Is(err, audit.ErrInvalidOutcome),
		errors.Is(err, audit.ErrInvalidRiskLevel),
		errors.Is(err, approval.ErrInvalidRequest):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrAlreadyExists),
		errors.Is(err, rbac.ErrDuplicateName),
		errors.Is(err, catalog.ErrDuplicateKey),
		errors.Is(err, rbac.ErrBuiltinRole),
		errors.Is(err, store.ErrRoleInUse),
		errors.Is(err, store.ErrRoleInactive),
		errors.Is(err, store.ErrStateConflict),
		errors.Is(err, approval.ErrNotPending),
		errors.Is(err, approval.ErrExpired):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrImmutableRecord):
		respondWithError(w, http.StatusMethodNotAllowed, err.Error())
	default:
		log.Printf("endpoints: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// isDenial reports whether err refuses the caller rather than the request
func isDenial(err error) bool {
	return errors.Is(err, approval.ErrSelfApproval) ||
		errors.Is(err, approval.ErrNotHolder) ||
		errors.Is(err, approval.ErrNotRequestor)
}

// decodeJSON reads a JSON body into v, rejecting unknown fields
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// pathVar returns the unescaped route variable name
func pathVar(r *http.Request, name string) string {
	v := mux.Vars(r)[name]
	if unescaped, err := url.PathUnescape(v); err == nil {
		return unescaped
	}
	return v
}

// queryInt parses an optional integer query parameter
func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}
