package permissions

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/bcgov/sbc-auth-sub003/pkg/httputil"
	"github.com/bcgov/sbc-auth-sub003/pkg/identity"
	"github.com/bcgov/sbc-auth-sub003/pkg/observability"
)

// Handlers provides the HTTP surface over the resolver and cache.
type Handlers struct {
	cache    *Cache
	notifier *Notifier // nil when Redis is not configured
}

// NewHandlers creates permission handlers.
func NewHandlers(cache *Cache, notifier *Notifier) *Handlers {
	return &Handlers{cache: cache, notifier: notifier}
}

// RegisterRoutes registers the permission routes on the given router.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/permissions/{orgStatus}/{membershipType}", h.GetPermissions).Methods("GET")
	router.HandleFunc("/permissions/cache/rebuild", h.RebuildCache).Methods("POST")
}

// GetPermissions resolves the action set for an (org status, membership type)
// pairing. Query parameters: case=upper|lower transforms the output for
// display; includeAllPermissions=true widens the set with the caller's own
// identity-level roles.
func (h *Handlers) GetPermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	orgStatus := vars["orgStatus"]
	membershipType := vars["membershipType"]

	letterCase := strings.ToLower(r.URL.Query().Get("case"))
	if letterCase != "" && letterCase != "upper" && letterCase != "lower" {
		httputil.WriteBadRequest(w, "case must be 'upper' or 'lower'")
		return
	}

	includeAll := httputil.ParseQueryBool(r, "includeAllPermissions", false)
	var user *identity.User
	if includeAll {
		user = identity.FromContext(ctx)
	}

	actions, err := h.cache.GetOrResolve(ctx, orgStatus, membershipType, user, includeAll)
	if err != nil {
		observability.FromContext(ctx).WithError(err).Error("permission resolution failed")
		httputil.WriteInternalError(w, err)
		return
	}

	if letterCase == "upper" {
		upper := make([]string, len(actions))
		for i, action := range actions {
			upper[i] = strings.ToUpper(action)
		}
		actions = upper
	}

	httputil.WriteSuccess(w, actions)
}

// RebuildCache rebuilds the resolution cache wholesale and, when a notifier
// is wired, fans the trigger out to the other replicas.
func (h *Handlers) RebuildCache(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.FromContext(ctx)

	if err := h.cache.BuildAll(ctx); err != nil {
		logger.WithError(err).Error("cache rebuild failed")
		httputil.WriteInternalError(w, err)
		return
	}

	if h.notifier != nil {
		if err := h.notifier.PublishRebuild(ctx); err != nil {
			// Local rebuild succeeded; the other replicas catch up on the
			// next trigger.
			logger.WithError(err).Warn("failed to publish rebuild notification")
		}
	}

	logger.WithField("entries", h.cache.Len()).Info("permission cache rebuilt")
	httputil.WriteAccepted(w, map[string]interface{}{
		"rebuilt": true,
		"entries": h.cache.Len(),
	})
}
