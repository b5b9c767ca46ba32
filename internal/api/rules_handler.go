package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/mediciweb/consentd/internal/logger"
	"github.com/mediciweb/consentd/internal/store"
)

// handleCreateRuleGroup processes POST /api/v1/rule-groups.
func (a *API) handleCreateRuleGroup(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req RuleGroupRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("invalid json payload", slog.String("error", err.Error()))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_JSON",
			Message: "Invalid JSON payload: " + err.Error(),
		})
		return
	}

	req.Sanitize()
	if errResp := req.Validate(); errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	group := req.ToRuleGroup()
	if err := a.rules.CreateGroup(r.Context(), group); err != nil {
		log.Error("failed to create rule group", "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INTERNAL",
			Message: "Failed to create rule group",
		})
		return
	}

	log.Info("rule group created",
		slog.String("name", group.Name),
		slog.Int64("group_id", group.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, group)
}

// handleListRuleGroups processes GET /api/v1/rule-groups. Returns every
// group, inactive ones included, in priority order.
func (a *API) handleListRuleGroups(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	groups, err := a.rules.ListGroups(r.Context())
	if err != nil {
		log.Error("failed to list rule groups", "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INTERNAL",
			Message: "Failed to list rule groups",
		})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, groups)
}

// handleGetRuleGroup processes GET /api/v1/rule-groups/{id}.
func (a *API) handleGetRuleGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := a.groupID(w, r)
	if !ok {
		return
	}

	group, err := a.rules.GetGroup(r.Context(), id)
	if err != nil {
		a.renderGroupError(w, r, err, "load")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, group)
}

// handleUpdateRuleGroup processes PUT /api/v1/rule-groups/{id}. The group
// and its rule set are replaced whole.
func (a *API) handleUpdateRuleGroup(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	id, ok := a.groupID(w, r)
	if !ok {
		return
	}

	var req RuleGroupRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("invalid json payload", slog.String("error", err.Error()))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_JSON",
			Message: "Invalid JSON payload: " + err.Error(),
		})
		return
	}

	req.Sanitize()
	if errResp := req.Validate(); errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	group := req.ToRuleGroup()
	group.ID = id
	if err := a.rules.UpdateGroup(r.Context(), group); err != nil {
		a.renderGroupError(w, r, err, "update")
		return
	}

	log.Info("rule group updated", slog.Int64("group_id", id))
	render.Status(r, http.StatusOK)
	render.JSON(w, r, group)
}

// handleDeleteRuleGroup processes DELETE /api/v1/rule-groups/{id}. Rules
// cascade with the group.
func (a *API) handleDeleteRuleGroup(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	id, ok := a.groupID(w, r)
	if !ok {
		return
	}

	if err := a.rules.DeleteGroup(r.Context(), id); err != nil {
		a.renderGroupError(w, r, err, "delete")
		return
	}

	log.Info("rule group deleted", slog.Int64("group_id", id))
	render.Status(r, http.StatusNoContent)
	render.NoContent(w, r)
}

// groupID parses the {id} route parameter, rendering a 400 on garbage.
func (a *API) groupID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "Rule group id must be a positive integer",
		})
		return 0, false
	}
	return id, true
}

// renderGroupError maps repository errors onto API responses.
func (a *API) renderGroupError(w http.ResponseWriter, r *http.Request, err error, verb string) {
	if errors.Is(err, store.ErrNotFound) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_NOT_FOUND",
			Message: "Rule group not found",
		})
		return
	}

	logger.FromContext(r.Context()).Error("failed to "+verb+" rule group", "error", err)
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, ErrorResponse{
		Code:    "ERR_INTERNAL",
		Message: "Failed to " + verb + " rule group",
	})
}
