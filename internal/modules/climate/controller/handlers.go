package controller

import (
	"log/slog"
	"net/http"

	"climate-api/internal/utils"
)

const homeText = "Welcome to the Hawaii Climate API!<br/>" +
	"Available Routes:<br/>" +
	"/api/v1.0/precipitation<br/>" +
	"/api/v1.0/stations<br/>" +
	"/api/v1.0/tobs<br/>" +
	"/api/v1.0/<start_date> (enter start_date in YYYY-MM-DD format)<br/>" +
	"/api/v1.0/<start_date>/<end_date> (enter start_date and end_date in YYYY-MM-DD format)"

const storeErrorMessage = "failed to query observation store"

func (c *climateControllerImpl) handleHome(w http.ResponseWriter, r *http.Request) {
	utils.WriteHTML(w, http.StatusOK, homeText)
}

func (c *climateControllerImpl) handlePrecipitation(w http.ResponseWriter, r *http.Request) {
	rows, err := c.repository.GetPrecipitationSince(r.Context(), precipitationCutoff)
	if err != nil {
		storeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, rows)
}

func (c *climateControllerImpl) handleStations(w http.ResponseWriter, r *http.Request) {
	ids, err := c.repository.GetStationIDs(r.Context())
	if err != nil {
		storeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, ids)
}

func (c *climateControllerImpl) handleTobs(w http.ResponseWriter, r *http.Request) {
	rows, err := c.repository.GetTemperatureObservationsSince(r.Context(), precipitationCutoff)
	if err != nil {
		storeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, rows)
}

// handleStatsFrom passes the raw path segment to the store; a malformed date
// simply matches nothing.
func (c *climateControllerImpl) handleStatsFrom(w http.ResponseWriter, r *http.Request) {
	stats, err := c.repository.GetTemperatureStats(r.Context(), r.PathValue("start"))
	if err != nil {
		storeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, stats)
}

func (c *climateControllerImpl) handleStatsBetween(w http.ResponseWriter, r *http.Request) {
	stats, err := c.repository.GetTemperatureStatsBetween(r.Context(), r.PathValue("start"), r.PathValue("end"))
	if err != nil {
		storeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, stats)
}

func storeError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("climate query failed", "route", r.Pattern, "path", r.URL.Path, "error", err)
	utils.WriteError(w, http.StatusInternalServerError, storeErrorMessage)
}
