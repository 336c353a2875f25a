package dispatch

import (
	"bookflow/internal/config_handler"
	"bookflow/internal/logger"
	"bookflow/pkg/models"
)

type Handler = config_handler.Handler

func NewHandler(guard *Guard, log logger.Logger) *Handler {
	return config_handler.NewHandlerWithUpdater(
		models.EventTypeDispatchConfigUpdated,
		models.ServiceTypeDispatch,
		guard,
		log,
	)
}
