package traffichttp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/odyssey-erp/traffic-dashboard/internal/platform/httpx"
	"github.com/odyssey-erp/traffic-dashboard/internal/shared"
	"github.com/odyssey-erp/traffic-dashboard/internal/traffic"
)

type apiResponse struct {
	traffic.Dashboard
	IndicatorLines []string `json:"indicator_lines"`
}

func (h *Handler) handleAPI(w http.ResponseWriter, r *http.Request) {
	_, query, err := h.parseFilters(r)
	if err != nil {
		var vErr validationError
		if errors.As(err, &vErr) {
			err = fmt.Errorf("%w: %s", httpx.ErrValidation, vErr.Error())
		}
		h.logError("parse filters", err)
		httpx.RespondError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	dash, err := h.service.Dashboard(ctx, shared.SessionID(ctx), query)
	if err != nil {
		h.logError("build dashboard", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, apiResponse{Dashboard: dash, IndicatorLines: dash.Indicators.Lines()})
}
