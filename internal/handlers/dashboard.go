package handlers

import (
	"net/http"
	"time"

	"github.com/diewo77/arte/internal/auth"
	"github.com/diewo77/arte/internal/httpx"
	"github.com/diewo77/arte/internal/models"
	"github.com/diewo77/arte/internal/policy"
	"github.com/diewo77/arte/internal/validation"
	"gorm.io/gorm"
)

// Dashboard is the counter block shown on the SPA home page. Every count is
// taken through the list scope of the actor, so it matches what the
// corresponding list endpoint returns.
type Dashboard struct {
	Role                models.Role      `json:"role"`
	Applications        map[string]int64 `json:"applications"`
	Stages              map[string]int64 `json:"stages"`
	PendingDocuments    int64            `json:"pending_documents"`
	PresencesToday      int64            `json:"presences_today"`
	UnreadMessages      int64            `json:"unread_messages"`
	UnreadNotifications int64            `json:"unread_notifications"`
}

type DashboardHandler struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{db: db, now: time.Now}
}

type statusCount struct {
	Status string
	Total  int64
}

func (h *DashboardHandler) byStatus(db *gorm.DB, model any, scope func(*gorm.DB, auth.Actor) *gorm.DB, a auth.Actor) (map[string]int64, error) {
	var rows []statusCount
	q := scope(db.Model(model), a).Select("status, COUNT(*) AS total").Group("status")
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}

// Show: GET /api/dashboard
func (h *DashboardHandler) Show(w http.ResponseWriter, r *http.Request) {
	a := actorOf(r)
	db := h.db.WithContext(r.Context())
	d := Dashboard{Role: a.Role}

	var err error
	if d.Applications, err = h.byStatus(db, &models.Application{}, policy.ScopeApplications, a); err != nil {
		httpx.Error(w, r, err)
		return
	}
	if d.Stages, err = h.byStatus(db, &models.Stage{}, policy.ScopeStages, a); err != nil {
		httpx.Error(w, r, err)
		return
	}

	today := h.now().Format(validation.DateLayout)
	counts := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&d.PendingDocuments, policy.ScopeDocuments(db.Model(&models.Document{}), a).Where("status = ?", models.DocumentStatusPending)},
		{&d.PresencesToday, policy.ScopePresences(db.Model(&models.Presence{}), a).Where("date = ? AND present = ?", today, true)},
		{&d.UnreadMessages, db.Model(&models.Message{}).Where("receiver_id = ? AND read = ?", a.ID, false)},
		{&d.UnreadNotifications, policy.ScopeNotifications(db.Model(&models.Notification{}), a).Where("read = ?", false)},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dst).Error; err != nil {
			httpx.Error(w, r, err)
			return
		}
	}
	httpx.JSON(w, http.StatusOK, d)
}
