package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jahboukie/ndarite/internal/db/models"
	"github.com/jahboukie/ndarite/pkg/metrics"
)

type AdminHandler struct {
	db      *gorm.DB
	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewAdminHandler(db *gorm.DB, collector *metrics.Collector, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		db:      db,
		metrics: collector,
		logger:  logger.With(zap.String("handler", "admin")),
	}
}

// Overview reports platform-wide counts for the admin dashboard.
func (h *AdminHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()

	var users, documents, signed, subscriptions int64
	if err := h.db.WithContext(ctx).Model(&models.User{}).Count(&users).Error; err != nil {
		respondError(c, err)
		return
	}
	h.db.WithContext(ctx).Model(&models.Document{}).Count(&documents)
	h.db.WithContext(ctx).Model(&models.Document{}).
		Where("status = ?", models.StatusCompleted).Count(&signed)
	h.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("status IN ?", []models.SubscriptionStatus{models.SubscriptionActive, models.SubscriptionTrialing}).
		Count(&subscriptions)

	tierCounts := map[string]int64{}
	rows := []struct {
		Tier  models.Tier
		Count int64
	}{}
	if err := h.db.WithContext(ctx).Model(&models.User{}).
		Select("tier, count(*) as count").Group("tier").Scan(&rows).Error; err == nil {
		for _, r := range rows {
			tierCounts[string(r.Tier)] = r.Count
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"users":                users,
		"documents":            documents,
		"documents_completed":  signed,
		"active_subscriptions": subscriptions,
		"users_by_tier":        tierCounts,
	})
}

// AuditLogs lists audit entries, newest first, with optional action and
// user filters.
func (h *AdminHandler) AuditLogs(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Model(&models.AuditLog{})
	if action := c.Query("action"); action != "" {
		query = query.Where("action = ?", action)
	}
	if userID := c.Query("user_id"); userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}

	var logs []models.AuditLog
	if err := query.Scopes(Paginate(c)).Order("created_at DESC").Find(&logs).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewPaginatedResponse(c, logs, total))
}

// Metrics exposes the in-process counters and latency averages.
func (h *AdminHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"counters":  h.metrics.Counters(),
		"latencies": h.metrics.Latencies(),
	})
}

// UsageReport exports per-user usage rows for a period as a spreadsheet.
func (h *AdminHandler) UsageReport(c *gin.Context) {
	since := time.Now().UTC().AddDate(0, -1, 0)
	if from := c.Query("from"); from != "" {
		parsed, err := time.Parse("2006-01-02", from)
		if err != nil {
			respondBadRequest(c, err)
			return
		}
		since = parsed
	}

	type usageRow struct {
		Email     string
		Tier      models.Tier
		Action    string
		Count     int64
		LastEvent time.Time
	}
	var rowsData []usageRow
	err := h.db.WithContext(c.Request.Context()).Model(&models.UsageRecord{}).
		Select("users.email, users.tier, usage_records.action, count(*) as count, max(usage_records.created_at) as last_event").
		Joins("JOIN users ON users.id = usage_records.user_id").
		Where("usage_records.created_at >= ?", since).
		Group("users.email, users.tier, usage_records.action").
		Order("users.email, usage_records.action").
		Scan(&rowsData).Error
	if err != nil {
		respondError(c, err)
		return
	}

	f := excelize.NewFile()
	sheetName := "Usage"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		respondError(c, err)
		return
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"Email", "Tier", "Action", "Count", "Last Event"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}

	for i, row := range rowsData {
		r := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", r), row.Email)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", r), string(row.Tier))
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", r), row.Action)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", r), row.Count)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", r), row.LastEvent.Format("2006-01-02 15:04"))
	}

	fileName := fmt.Sprintf("usage_report_%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+fileName)
	if err := f.Write(c.Writer); err != nil {
		h.logger.Error("Usage report export failed", zap.Error(err))
	}
}
