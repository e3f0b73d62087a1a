package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projectflow/internal/apperr"
)

// OrganizationService 由 *organization.Service 实现
type OrganizationService interface {
	RemoveMemberFromOrganization(ctx context.Context, ownerID, memberID int64) (apperr.Result[string], error)
}

type OrganizationHandler struct {
	orgs   OrganizationService
	logger *zap.Logger
}

func NewOrganizationHandler(orgs OrganizationService, logger *zap.Logger) *OrganizationHandler {
	return &OrganizationHandler{orgs: orgs, logger: logger}
}

// RemoveMember handles DELETE /organization/members/:id
// 调用者即组织 owner
func (h *OrganizationHandler) RemoveMember(c *gin.Context) {
	ownerID, ok := userID(c)
	if !ok {
		return
	}
	memberID, ok := pathID(c)
	if !ok {
		return
	}

	res, err := h.orgs.RemoveMemberFromOrganization(c.Request.Context(), ownerID, memberID)
	writeResult(c, h.logger, http.StatusOK, res, err)
}
