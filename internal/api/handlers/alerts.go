package handlers

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/erp-backend-go/internal/core/alerting"
	"github.com/frostdev-ops/erp-backend-go/internal/core/cache"
	"github.com/frostdev-ops/erp-backend-go/pkg/utils"
)

const (
	defaultStatsHours = 24
	maxStatsHours     = 24 * 90
)

// AlertsHandler exposes the alert lifecycle over HTTP
type AlertsHandler struct {
	manager         *alerting.Manager
	statsCache      *cache.MemoryCache
	defaultCooldown time.Duration
	logger          *logrus.Logger
}

// NewAlertsHandler creates an alerts handler. statsCache may be nil; when set
// it is cleared on every lifecycle event.
func NewAlertsHandler(manager *alerting.Manager, statsCache *cache.MemoryCache, defaultCooldown time.Duration, logger *logrus.Logger) *AlertsHandler {
	if statsCache != nil {
		manager.Subscribe(func(alerting.Event) {
			statsCache.Clear()
		})
	}
	return &AlertsHandler{
		manager:         manager,
		statsCache:      statsCache,
		defaultCooldown: defaultCooldown,
		logger:          logger,
	}
}

// RegisterRoutes registers alert routes
func (h *AlertsHandler) RegisterRoutes(router *gin.RouterGroup) {
	alerts := router.Group("/alerts")
	{
		alerts.POST("", h.CreateAlert)
		alerts.GET("", h.GetAlerts)
		alerts.GET("/active", h.GetActiveAlerts)
		alerts.GET("/stats", h.GetAlertStats)
		alerts.GET("/rules", h.GetRules)
		alerts.POST("/rules", h.CreateRule)
		alerts.GET("/channels", h.GetChannels)
		alerts.GET("/:id", h.GetAlert)
		alerts.POST("/:id/acknowledge", h.AcknowledgeAlert)
		alerts.POST("/:id/resolve", h.ResolveAlert)
		alerts.POST("/:id/suppress", h.SuppressAlert)
	}
}

// CreateAlert raises an alert. Duplicates inside the cooldown answer 200 with
// created=false and the alert that absorbed them.
func (h *AlertsHandler) CreateAlert(c *gin.Context) {
	var req alerting.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendBadRequest(c, err.Error())
		return
	}

	alert, created, err := h.manager.CreateAlert(c.Request.Context(), req)
	if err != nil {
		sendFailure(c, err)
		return
	}

	body := gin.H{"alert": alert, "created": created}
	if created {
		utils.SendCreated(c, body)
		return
	}
	utils.SendSuccess(c, body)
}

// GetAlerts returns a filtered page of alerts
func (h *AlertsHandler) GetAlerts(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		sendFailure(c, err)
		return
	}

	page := h.manager.GetAlerts(filter)
	utils.SendSuccessWithMeta(c, page.Alerts, gin.H{
		"total":    page.Total,
		"has_more": page.HasMore,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

func parseFilter(c *gin.Context) (alerting.AlertFilter, error) {
	var filter alerting.AlertFilter
	var err error

	if raw := c.Query("severity"); raw != "" {
		if filter.Severity, err = alerting.ParseSeverity(raw); err != nil {
			return filter, err
		}
	}
	if raw := c.Query("category"); raw != "" {
		if filter.Category, err = alerting.ParseCategory(raw); err != nil {
			return filter, err
		}
	}
	if raw := c.Query("status"); raw != "" {
		if filter.Status, err = alerting.ParseStatus(raw); err != nil {
			return filter, err
		}
	}
	filter.Source = c.Query("source")

	if filter.Limit, err = queryInt(c, "limit", 0); err != nil {
		return filter, fmt.Errorf("%w: %v", alerting.ErrInvalidRequest, err)
	}
	if filter.Offset, err = queryInt(c, "offset", 0); err != nil {
		return filter, fmt.Errorf("%w: %v", alerting.ErrInvalidRequest, err)
	}
	return filter, nil
}

// GetActiveAlerts returns every alert that is not resolved
func (h *AlertsHandler) GetActiveAlerts(c *gin.Context) {
	alerts := h.manager.GetActiveAlerts()
	utils.SendSuccessWithMeta(c, alerts, gin.H{"count": len(alerts)})
}

// GetAlert returns a single alert
func (h *AlertsHandler) GetAlert(c *gin.Context) {
	id := c.Param("id")
	alert := h.manager.GetAlert(id)
	if alert == nil {
		sendNotFound(c, "alert "+id+" not found")
		return
	}
	utils.SendSuccess(c, alert)
}

type lifecycleRequest struct {
	By    string `json:"by"`
	Notes string `json:"notes"`
}

// bindOptional accepts an empty body as the zero request
func bindOptional(c *gin.Context, req interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		sendBadRequest(c, err.Error())
		return false
	}
	return true
}

// AcknowledgeAlert marks an alert as seen by an operator
func (h *AlertsHandler) AcknowledgeAlert(c *gin.Context) {
	var req lifecycleRequest
	if !bindOptional(c, &req) {
		return
	}

	id := c.Param("id")
	alert, err := h.manager.AcknowledgeAlert(c.Request.Context(), id, operator(c, req.By), req.Notes)
	h.respondLifecycle(c, id, "acknowledge", alert, err)
}

// ResolveAlert closes an alert
func (h *AlertsHandler) ResolveAlert(c *gin.Context) {
	var req lifecycleRequest
	if !bindOptional(c, &req) {
		return
	}

	id := c.Param("id")
	alert, err := h.manager.ResolveAlert(c.Request.Context(), id, operator(c, req.By), req.Notes)
	h.respondLifecycle(c, id, "resolve", alert, err)
}

type suppressRequest struct {
	Minutes int    `json:"minutes"`
	Reason  string `json:"reason"`
}

// SuppressAlert silences an alert for a number of minutes
func (h *AlertsHandler) SuppressAlert(c *gin.Context) {
	var req suppressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendBadRequest(c, err.Error())
		return
	}

	id := c.Param("id")
	alert, err := h.manager.SuppressAlert(c.Request.Context(), id, req.Minutes, req.Reason)
	h.respondLifecycle(c, id, "suppress", alert, err)
}

// respondLifecycle answers 404 for missing or resolved targets
func (h *AlertsHandler) respondLifecycle(c *gin.Context, id, action string, alert *alerting.Alert, err error) {
	if err != nil {
		sendFailure(c, err)
		return
	}
	if alert == nil {
		sendNotFound(c, "alert "+id+" not found or already resolved")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"alert_id": alert.ID,
		"action":   action,
		"status":   alert.Status,
		"operator": operator(c, ""),
	}).Info("Alert updated via API")
	utils.SendSuccess(c, alert)
}

// GetAlertStats summarizes alerts raised in the last `hours` hours
func (h *AlertsHandler) GetAlertStats(c *gin.Context) {
	hours, err := queryInt(c, "hours", defaultStatsHours)
	if err != nil || hours == 0 || hours > maxStatsHours {
		sendBadRequest(c, "hours must be between 1 and "+strconv.Itoa(maxStatsHours))
		return
	}

	key := "stats:" + strconv.Itoa(hours)
	if h.statsCache != nil {
		if cached, ok := h.statsCache.Get(key); ok {
			utils.SendSuccess(c, cached)
			return
		}
	}

	stats := h.manager.GetAlertStatistics(hours)
	if h.statsCache != nil {
		h.statsCache.Set(key, stats)
	}
	utils.SendSuccess(c, stats)
}

// GetRules returns the evaluation rules in order
func (h *AlertsHandler) GetRules(c *gin.Context) {
	rules := h.manager.Rules()
	utils.SendSuccessWithMeta(c, rules, gin.H{"count": len(rules)})
}

// CreateRule adds a rule or replaces the rule with the same name
func (h *AlertsHandler) CreateRule(c *gin.Context) {
	var ruleSpec alerting.RuleSpec
	if err := c.ShouldBindJSON(&ruleSpec); err != nil {
		sendBadRequest(c, err.Error())
		return
	}

	rule, err := ruleSpec.Rule(h.defaultCooldown)
	if err != nil {
		sendFailure(c, err)
		return
	}
	if err := h.manager.AddRule(rule); err != nil {
		sendFailure(c, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"rule":     rule.Name,
		"metric":   rule.Metric,
		"severity": rule.Severity,
	}).Info("Alert rule registered via API")
	utils.SendCreated(c, rule)
}

// GetChannels lists the configured notification channels
func (h *AlertsHandler) GetChannels(c *gin.Context) {
	utils.SendSuccess(c, h.manager.Channels())
}
