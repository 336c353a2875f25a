package management

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bookflow/internal/constants"
	"bookflow/internal/decisionlog"
	"bookflow/internal/logger"
	"bookflow/pkg/errors"
)

type BaseHandler struct {
	Service Service
	Logger  logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	status := errors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	} else {
		h.Logger.WarnwCtx(c.Request.Context(), "Request rejected", "error", err, "path", c.Request.URL.Path, "status", status)
	}

	c.JSON(status, errors.ToErrorResponse(err))
}

func (h *BaseHandler) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err).WithMessage(err.Error())))
		return false
	}
	return true
}

type Handler struct {
	BaseHandler
}

func NewHandler(service Service, log logger.Logger) *Handler {
	return &Handler{
		BaseHandler: BaseHandler{
			Service: service,
			Logger:  log,
		},
	}
}

// RegisterRoutes mounts every management endpoint under the given /api/v1 group.
func (h *Handler) RegisterRoutes(v1 *gin.RouterGroup) {
	workflows := v1.Group("/workflows")
	{
		workflows.GET("", h.ListWorkflows)
		workflows.POST("", h.CreateWorkflow)
		workflows.GET("/:id", h.GetWorkflow)
		workflows.PUT("/:id", h.UpdateWorkflow)
		workflows.DELETE("/:id", h.DeleteWorkflow)
		workflows.PATCH("/:id/active", h.SetWorkflowActive)
		workflows.GET("/:id/versions", h.GetWorkflowVersions)
		workflows.GET("/:id/audit", h.GetWorkflowAuditLogs)
		workflows.GET("/:id/decisions", h.ListWorkflowDecisions)
	}

	v1.GET("/bookings/:id/decisions", h.ListBookingDecisions)

	audit := v1.Group("/audit")
	{
		audit.GET("/logs", h.GetAuditLogs)
	}

	conds := v1.Group("/conditions")
	{
		conds.POST("/validate", h.ValidateConditions)
		conds.POST("/evaluate", h.EvaluateConditions)
		conds.GET("/catalog", h.ConditionCatalog)
	}

	config := v1.Group("/config/dispatch")
	{
		config.GET("", h.GetDispatchConfig)
		config.PUT("", h.UpdateDispatchConfig)
	}
}

// ListWorkflows godoc
// @Summary      List workflows
// @Description  List workflows with optional trigger, active and name filters
// @Tags         workflows
// @Accept       json
// @Produce      json
// @Param        trigger  query     string  false  "Filter by trigger"
// @Param        active   query     bool    false  "Filter by active flag"
// @Param        q        query     string  false  "Case-insensitive name search"
// @Param        limit    query     int     false  "Page size (1-1000)" default(100)
// @Param        offset   query     int     false  "Page offset" default(0)
// @Success      200      {object}  WorkflowList
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      500      {object}  errors.ErrorResponse
// @Router       /workflows [get]
func (h *Handler) ListWorkflows(c *gin.Context) {
	q := ListWorkflowsQuery{
		Trigger: c.Query("trigger"),
		Search:  c.Query("q"),
		Limit:   parseLimit(c.Query("limit")),
		Offset:  parseOffset(c.Query("offset")),
	}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			h.HandleError(c, errors.Validation("active must be true or false").
				WithDetail("fields", map[string]string{"active": "must be true or false"}))
			return
		}
		q.Active = &active
	}

	list, err := h.Service.ListWorkflows(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// CreateWorkflow godoc
// @Summary      Create a workflow
// @Description  Create a workflow with its actions and condition trees
// @Tags         workflows
// @Accept       json
// @Produce      json
// @Param        workflow  body      CreateWorkflowRequest  true  "Workflow definition"
// @Success      201       {object}  workflow.Workflow
// @Failure      400       {object}  errors.ErrorResponse
// @Failure      409       {object}  errors.ErrorResponse
// @Failure      500       {object}  errors.ErrorResponse
// @Router       /workflows [post]
func (h *Handler) CreateWorkflow(c *gin.Context) {
	var req CreateWorkflowRequest
	if !h.bindJSON(c, &req) {
		return
	}

	wf, err := h.Service.CreateWorkflow(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, wf)
}

// GetWorkflow godoc
// @Summary      Get a workflow
// @Tags         workflows
// @Produce      json
// @Param        id   path      string  true  "Workflow ID"
// @Success      200  {object}  workflow.Workflow
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /workflows/{id} [get]
func (h *Handler) GetWorkflow(c *gin.Context) {
	wf, err := h.Service.GetWorkflow(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, wf)
}

// UpdateWorkflow godoc
// @Summary      Update a workflow
// @Description  Replace the fields present in the body
// @Tags         workflows
// @Accept       json
// @Produce      json
// @Param        id        path      string                 true  "Workflow ID"
// @Param        workflow  body      UpdateWorkflowRequest  true  "Fields to change"
// @Success      200       {object}  workflow.Workflow
// @Failure      400       {object}  errors.ErrorResponse
// @Failure      404       {object}  errors.ErrorResponse
// @Failure      409       {object}  errors.ErrorResponse
// @Failure      500       {object}  errors.ErrorResponse
// @Router       /workflows/{id} [put]
func (h *Handler) UpdateWorkflow(c *gin.Context) {
	var req UpdateWorkflowRequest
	if !h.bindJSON(c, &req) {
		return
	}

	wf, err := h.Service.UpdateWorkflow(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, wf)
}

// SetWorkflowActive godoc
// @Summary      Activate or deactivate a workflow
// @Tags         workflows
// @Accept       json
// @Produce      json
// @Param        id      path      string            true  "Workflow ID"
// @Param        active  body      SetActiveRequest  true  "Active flag"
// @Success      200     {object}  workflow.Workflow
// @Failure      400     {object}  errors.ErrorResponse
// @Failure      404     {object}  errors.ErrorResponse
// @Router       /workflows/{id}/active [patch]
func (h *Handler) SetWorkflowActive(c *gin.Context) {
	var req SetActiveRequest
	if !h.bindJSON(c, &req) {
		return
	}

	wf, err := h.Service.SetWorkflowActive(c.Request.Context(), c.Param("id"), *req.Active)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, wf)
}

// DeleteWorkflow godoc
// @Summary      Delete a workflow
// @Tags         workflows
// @Param        id   path  string  true  "Workflow ID"
// @Success      204
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /workflows/{id} [delete]
func (h *Handler) DeleteWorkflow(c *gin.Context) {
	if err := h.Service.DeleteWorkflow(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetWorkflowVersions godoc
// @Summary      List stored versions of a workflow
// @Tags         workflows
// @Produce      json
// @Param        id   path      string  true  "Workflow ID"
// @Success      200  {array}   WorkflowVersion
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /workflows/{id}/versions [get]
func (h *Handler) GetWorkflowVersions(c *gin.Context) {
	versions, err := h.Service.GetWorkflowVersions(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

// GetWorkflowAuditLogs godoc
// @Summary      Get audit logs for a workflow
// @Tags         workflows
// @Produce      json
// @Param        id     path      string  true   "Workflow ID"
// @Param        limit  query     int     false  "Maximum number of logs to return (1-1000)" default(100)
// @Success      200    {array}   AuditLog
// @Failure      500    {object}  errors.ErrorResponse
// @Router       /workflows/{id}/audit [get]
func (h *Handler) GetWorkflowAuditLogs(c *gin.Context) {
	logs, err := h.Service.GetAuditLogs(c.Request.Context(), AuditQuery{
		WorkflowID: c.Param("id"),
		EntityType: EntityWorkflow,
		Limit:      parseLimit(c.Query("limit")),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// GetAuditLogs godoc
// @Summary      Get audit logs
// @Description  Audit logs filtered by workflow, entity type and action
// @Tags         audit
// @Produce      json
// @Param        workflow_id  query     string  false  "Filter by workflow ID"
// @Param        entity_type  query     string  false  "Filter by entity type (workflow, dispatch_config)"
// @Param        action       query     string  false  "Filter by action (create, update, delete, toggle)"
// @Param        limit        query     int     false  "Maximum number of logs to return (1-1000)" default(100)
// @Success      200          {array}   AuditLog
// @Failure      500          {object}  errors.ErrorResponse
// @Router       /audit/logs [get]
func (h *Handler) GetAuditLogs(c *gin.Context) {
	logs, err := h.Service.GetAuditLogs(c.Request.Context(), AuditQuery{
		WorkflowID: c.Query("workflow_id"),
		EntityType: c.Query("entity_type"),
		Action:     c.Query("action"),
		Limit:      parseLimit(c.Query("limit")),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// ListWorkflowDecisions godoc
// @Summary      List decisions taken for a workflow
// @Tags         decisions
// @Produce      json
// @Param        id       path      string  true   "Workflow ID"
// @Param        outcome  query     string  false  "Filter by outcome"
// @Param        limit    query     int     false  "Page size (1-1000)" default(100)
// @Param        offset   query     int     false  "Page offset" default(0)
// @Success      200      {array}   workflow.Decision
// @Failure      500      {object}  errors.ErrorResponse
// @Failure      503      {object}  errors.ErrorResponse
// @Router       /workflows/{id}/decisions [get]
func (h *Handler) ListWorkflowDecisions(c *gin.Context) {
	decisions, err := h.Service.ListWorkflowDecisions(c.Request.Context(), c.Param("id"), decisionQuery(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, decisions)
}

// ListBookingDecisions godoc
// @Summary      List decisions taken for a booking
// @Tags         decisions
// @Produce      json
// @Param        id       path      string  true   "Booking ID"
// @Param        outcome  query     string  false  "Filter by outcome"
// @Param        limit    query     int     false  "Page size (1-1000)" default(100)
// @Param        offset   query     int     false  "Page offset" default(0)
// @Success      200      {array}   workflow.Decision
// @Failure      500      {object}  errors.ErrorResponse
// @Failure      503      {object}  errors.ErrorResponse
// @Router       /bookings/{id}/decisions [get]
func (h *Handler) ListBookingDecisions(c *gin.Context) {
	decisions, err := h.Service.ListBookingDecisions(c.Request.Context(), c.Param("id"), decisionQuery(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, decisions)
}

// ValidateConditions godoc
// @Summary      Validate a condition tree
// @Description  Returns per-field errors keyed by path, e.g. conditions[0].rules[1].value
// @Tags         conditions
// @Accept       json
// @Produce      json
// @Param        request  body      ValidateConditionsRequest  true  "Condition groups"
// @Success      200      {object}  ValidationResult
// @Failure      400      {object}  errors.ErrorResponse
// @Router       /conditions/validate [post]
func (h *Handler) ValidateConditions(c *gin.Context) {
	var req ValidateConditionsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.Service.ValidateConditions(c.Request.Context(), req.Conditions))
}

// EvaluateConditions godoc
// @Summary      Evaluate a condition tree against a sample booking
// @Description  Validates the tree first and returns the per-group breakdown
// @Tags         conditions
// @Accept       json
// @Produce      json
// @Param        request  body      EvaluateConditionsRequest  true  "Condition groups and booking"
// @Success      200      {object}  conditions.Explanation
// @Failure      400      {object}  errors.ErrorResponse
// @Router       /conditions/evaluate [post]
func (h *Handler) EvaluateConditions(c *gin.Context) {
	var req EvaluateConditionsRequest
	if !h.bindJSON(c, &req) {
		return
	}

	explanation, err := h.Service.EvaluateConditions(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, explanation)
}

// ConditionCatalog godoc
// @Summary      List condition fields and operators
// @Tags         conditions
// @Produce      json
// @Success      200  {object}  ConditionCatalog
// @Router       /conditions/catalog [get]
func (h *Handler) ConditionCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, h.Service.ConditionCatalog())
}

// GetDispatchConfig godoc
// @Summary      Get dispatch idempotency configuration
// @Tags         dispatch
// @Produce      json
// @Success      200  {object}  DispatchConfig
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /config/dispatch [get]
func (h *Handler) GetDispatchConfig(c *gin.Context) {
	cfg, err := h.Service.GetDispatchConfig(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// UpdateDispatchConfig godoc
// @Summary      Update dispatch idempotency configuration
// @Description  Changes are pushed to workflow-service as a dispatch_config_updated event
// @Tags         dispatch
// @Accept       json
// @Produce      json
// @Param        config  body      UpdateDispatchConfigRequest  true  "Fields to change"
// @Success      200     {object}  DispatchConfig
// @Failure      400     {object}  errors.ErrorResponse
// @Failure      500     {object}  errors.ErrorResponse
// @Router       /config/dispatch [put]
func (h *Handler) UpdateDispatchConfig(c *gin.Context) {
	var req UpdateDispatchConfigRequest
	if !h.bindJSON(c, &req) {
		return
	}

	cfg, err := h.Service.UpdateDispatchConfig(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func decisionQuery(c *gin.Context) decisionlog.Query {
	return decisionlog.Query{
		Outcome: c.Query("outcome"),
		Limit:   parseLimit(c.Query("limit")),
		Offset:  parseOffset(c.Query("offset")),
	}
}

func parseLimit(limitStr string) int {
	if limitStr == "" {
		return constants.DefaultLimit
	}
	parsed, err := strconv.Atoi(limitStr)
	if err != nil || parsed <= 0 || parsed > constants.MaxLimit {
		return constants.DefaultLimit
	}
	return parsed
}

func parseOffset(offsetStr string) int {
	parsed, err := strconv.Atoi(offsetStr)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}
