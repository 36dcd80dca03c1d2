package authz

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/bcgov/sbc-auth-sub003/pkg/httputil"
	"github.com/bcgov/sbc-auth-sub003/pkg/observability"
)

// Handlers provides the HTTP surface over the authorization view.
type Handlers struct {
	searcher Searcher
}

// NewHandlers creates authorization handlers over the given searcher,
// typically a CachedProjector.
func NewHandlers(searcher Searcher) *Handlers {
	return &Handlers{searcher: searcher}
}

// RegisterRoutes registers the authorization routes on the given router.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/authorizations", h.SearchAuthorizations).Methods("GET")
}

// SearchAuthorizations lists authorization records filtered by the userId,
// orgId, and productCode query parameters. No filter returns the full view.
func (h *Handlers) SearchAuthorizations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := httputil.ParseQueryInt64(r, "userId")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	orgID, err := httputil.ParseQueryInt64(r, "orgId")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	filter := Filter{
		UserID:      userID,
		OrgID:       orgID,
		ProductCode: strings.TrimSpace(r.URL.Query().Get("productCode")),
	}

	records, err := h.searcher.Search(ctx, filter)
	if err != nil {
		observability.FromContext(ctx).WithError(err).WithField("filter", filter.String()).Error("authorization search failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, records)
}
