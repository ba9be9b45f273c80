package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog creates an audit middleware that logs successful write operations.
// Handlers name the affected wallet through CtxResourceID.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Request.Method == http.MethodOptions {
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		var actorID *string
		if uid := c.GetString(CtxUserID); uid != "" {
			actorID = &uid
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"request_id": c.GetString(CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			ActorID:      actorID,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.GetString(CtxResourceID),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now(),
		})
	}
}

func mapRouteToAction(route, method string) (domain.AuditAction, string) {
	switch {
	case route == "/api/wallets/create" && method == http.MethodPost:
		return domain.AuditActionCreateWallet, "wallet"
	case route == "/api/wallets/update" && method == http.MethodPost:
		return domain.AuditActionAdjustBalance, "wallet"
	case route == "/api/wallets/updateStatus" && method == http.MethodPatch:
		return domain.AuditActionUpdateStatus, "wallet"
	case route == "/api/wallets/add-contact" && method == http.MethodPatch:
		return domain.AuditActionAddContact, "wallet"
	case route == "/api/wallets/remove-contact" && method == http.MethodPatch:
		return domain.AuditActionRemoveContact, "wallet"
	}
	return "", ""
}
