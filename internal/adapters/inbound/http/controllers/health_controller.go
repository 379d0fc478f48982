package controllers

import (
	"log"
	"net/http"

	"invoicewallet/internal/application/dto"
	portsin "invoicewallet/internal/application/ports/in"
	valueobjects "invoicewallet/internal/domain/value_objects"
)

type HealthController struct {
	useCase portsin.GetHealthUseCase
	logger  *log.Logger
}

func NewHealthController(useCase portsin.GetHealthUseCase, logger *log.Logger) *HealthController {
	return &HealthController{
		useCase: useCase,
		logger:  logger,
	}
}

// GetHealth answers 503 while the database probe fails so orchestrators stop routing to the worker.
func (c *HealthController) GetHealth(w http.ResponseWriter, r *http.Request) {
	output, appErr := c.useCase.Execute(r.Context(), dto.GetHealthCommand{})
	if appErr != nil {
		c.logf("request error path=/healthz method=%s code=%s message=%s", r.Method, appErr.Code, appErr.Message)
		writeAppError(w, appErr)
		return
	}

	status := http.StatusOK
	if output.Status == valueobjects.HealthStatusDegraded.String() {
		c.logf("health degraded database=%s", output.Database)
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, output)
}

func (c *HealthController) logf(format string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Printf(format, args...)
}
