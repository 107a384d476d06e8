package debugsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/AdguardTeam/golibs/timeutil"
)

// RefreshAll is the refresher ID that means every registered refresher.
const RefreshAll = "*"

// Refreshers maps the IDs used in the refresh API to the refreshers.
type Refreshers map[string]service.Refresher

// Refresh statuses.
const (
	refreshStatusOK    = "ok"
	refreshStatusError = "error"
)

// refreshHandler triggers out-of-schedule refreshes, for example an extra
// announcement.
type refreshHandler struct {
	refrs Refreshers
}

// refreshRequest is the body of a refresh request.
type refreshRequest struct {
	IDs []string `json:"ids"`
}

// refreshResult is the outcome of a single refresh.
type refreshResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// refreshResponse is the body of a refresh response.
type refreshResponse struct {
	Results map[string]*refreshResult `json:"results"`
}

// type check
var _ http.Handler = (*refreshHandler)(nil)

// ServeHTTP implements the [http.Handler] interface for *refreshHandler.
func (h *refreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := slogutil.MustLoggerFromContext(ctx)

	req := &refreshRequest{}
	err := json.NewDecoder(r.Body).Decode(req)
	if err == nil {
		req.IDs, err = h.resolve(req.IDs)
	}

	if err != nil {
		l.DebugContext(ctx, "bad refresh request", slogutil.KeyError, err)
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	resp := &refreshResponse{
		Results: make(map[string]*refreshResult, len(req.IDs)),
	}

	for _, id := range req.IDs {
		resp.Results[id] = h.refresh(ctx, l, id)
	}

	w.Header().Set(httphdr.ContentType, "application/json")
	err = json.NewEncoder(w).Encode(resp)
	if err != nil {
		l.DebugContext(ctx, "writing refresh response", slogutil.KeyError, err)
	}
}

// resolve expands [RefreshAll] and checks that every ID in ids is registered.
func (h *refreshHandler) resolve(ids []string) (resolved []string, err error) {
	if len(ids) == 0 {
		return nil, errors.Error("ids: empty value")
	}

	if slices.Contains(ids, RefreshAll) {
		if len(ids) > 1 {
			return nil, fmt.Errorf("ids: %q must be the only id", RefreshAll)
		}

		return slices.Sorted(maps.Keys(h.refrs)), nil
	}

	var errs []error
	for i, id := range ids {
		if _, ok := h.refrs[id]; !ok {
			errs = append(errs, fmt.Errorf("ids: at index %d: unknown id %q", i, id))
		}
	}

	return ids, errors.Join(errs...)
}

// refresh runs the refresher with the given ID, which must be registered.
func (h *refreshHandler) refresh(
	ctx context.Context,
	l *slog.Logger,
	id string,
) (res *refreshResult) {
	start := time.Now()
	err := h.refrs[id].Refresh(ctx)
	dur := timeutil.Duration(time.Since(start))
	if err != nil {
		l.WarnContext(ctx, "refreshing", "id", id, "dur", dur, slogutil.KeyError, err)

		return &refreshResult{
			Status: refreshStatusError,
			Error:  err.Error(),
		}
	}

	l.InfoContext(ctx, "refreshed", "id", id, "dur", dur)

	return &refreshResult{
		Status: refreshStatusOK,
	}
}
