// Package handlers contains the HTTP handler implementations for the
// GardenWatch API: alert lookups, current weather, push subscription
// management, and the notification inbox.
package handlers

import (
	"net/http"
	"strconv"

	"gardenwatch/internal/types"
)

// parseCoordinates extracts and validates the latitude/longitude query
// parameters shared by the alert and weather endpoints.
func parseCoordinates(r *http.Request) (types.Coordinate, error) {
	q := r.URL.Query()

	latStr := q.Get("latitude")
	lonStr := q.Get("longitude")
	if latStr == "" || lonStr == "" {
		return types.Coordinate{}, types.NewAppError(
			types.ErrCodeValidationMissingCoords,
			"latitude and longitude query parameters are required",
			nil,
		)
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return types.Coordinate{}, types.NewAppError(
			types.ErrCodeValidationInvalidLat,
			"latitude must be a valid number",
			nil,
		)
	}

	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return types.Coordinate{}, types.NewAppError(
			types.ErrCodeValidationInvalidLon,
			"longitude must be a valid number",
			nil,
		)
	}

	coord := types.Coordinate{Latitude: lat, Longitude: lon}
	if err := coord.Validate(); err != nil {
		return types.Coordinate{}, err
	}
	return coord, nil
}

// requireUser extracts the authenticated user ID set by the auth middleware.
// Handlers behind AuthMiddleware should never see a missing ID; the error
// guards against mis-mounted routes.
func requireUser(r *http.Request) (int64, error) {
	userID, ok := types.GetUserID(r.Context())
	if !ok {
		return 0, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil)
	}
	return userID, nil
}
