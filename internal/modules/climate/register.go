package climate

import (
	"database/sql"
	"net/http"

	sq "github.com/Masterminds/squirrel"

	"climate-api/internal/modules/climate/controller"
	"climate-api/internal/modules/climate/repository"
)

func RegisterFeature(mux *http.ServeMux, db *sql.DB, placeholder sq.PlaceholderFormat) {
	climateRepository := repository.NewRepository(db, placeholder)
	climateController := controller.NewClimateController(climateRepository)
	climateController.RegisterRoutes(mux)
}
