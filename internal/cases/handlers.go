package cases

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/casevault/backend/internal/auth"
	"github.com/casevault/backend/internal/courtapi"
	"github.com/casevault/backend/pkg/models"
	"github.com/casevault/backend/pkg/sanitize"
	"github.com/casevault/backend/pkg/utils"
	"github.com/casevault/backend/pkg/validation"
)

// DefaultClientEmail identifies the lazily created fallback client used when
// a case is filed without a client reference.
const DefaultClientEmail = "default@example.com"

/* ================================ DTOs ================================= */

type CreateCaseRequest struct {
	Title        string         `json:"title" validate:"required,max=255"`
	CaseNumber   string         `json:"case_number" validate:"required,max=100"`
	Description  string         `json:"description" validate:"max=2000"`
	ClientID     string         `json:"client_id" validate:"omitempty,uuid4"`
	Status       string         `json:"status" validate:"omitempty,oneof=draft active pending closed"`
	FilingDate   *time.Time     `json:"filing_date"`
	CaseMetadata map[string]any `json:"case_metadata"`
}

// Partial update; only fields present in the payload are applied.
type UpdateCaseRequest struct {
	Title        *string         `json:"title" validate:"omitempty,max=255"`
	Description  *string         `json:"description" validate:"omitempty,max=2000"`
	Status       *string         `json:"status" validate:"omitempty,oneof=draft active pending closed"`
	FilingDate   *time.Time      `json:"filing_date"`
	CaseMetadata *map[string]any `json:"case_metadata"`

	// Court-linked fields, normally filled from a fetch-court-details call.
	CNR                *string         `json:"cnr" validate:"omitempty,max=100"`
	CourtCaseTitle     *string         `json:"court_case_title" validate:"omitempty,max=255"`
	CourtCaseType      *string         `json:"court_case_type" validate:"omitempty,max=100"`
	FilingNumber       *string         `json:"filing_number" validate:"omitempty,max=100"`
	RegistrationNumber *string         `json:"registration_number" validate:"omitempty,max=100"`
	CourtStatus        *map[string]any `json:"court_status"`
	PartiesDetails     *map[string]any `json:"parties_details"`
	ActsSections       *map[string]any `json:"acts_sections"`
	FIRDetails         *map[string]any `json:"fir_details"`
	CourtHistory       *[]any          `json:"court_history"`
}

type CaseListItem struct {
	ID          uuid.UUID         `json:"id"`
	ClientID    uuid.UUID         `json:"client_id"`
	CaseNumber  string            `json:"case_number"`
	Title       string            `json:"title"`
	Status      models.CaseStatus `json:"status"`
	Preview     string            `json:"preview"`
	CNR         string            `json:"cnr,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Documents   int64             `json:"documents"`
}

type PageCases struct {
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
	Total    int64          `json:"total"`
	Pages    int            `json:"pages"`
	Items    []CaseListItem `json:"items"`
}

/* ============================== Handler ================================= */

type Handler struct {
	db    *gorm.DB
	court *courtapi.Client
}

func NewHandler(db *gorm.DB, court *courtapi.Client) *Handler {
	return &Handler{db: db, court: court}
}

func parsePage(c *fiber.Ctx) (page, size int) {
	page, _ = strconv.Atoi(c.Query("page", "1"))
	size, _ = strconv.Atoi(c.Query("pageSize", "20"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	return
}

func jsonOrEmpty(m map[string]any) datatypes.JSON {
	if m == nil {
		m = map[string]any{}
	}
	b, _ := json.Marshal(m)
	return datatypes.JSON(b)
}

/* =============================== Create ================================= */

// ResolveDefaultClient returns the id of the shared fallback client, creating
// it on first use. Concurrent first-requests are settled by the unique email
// index: the loser of the race re-reads the winner's row.
func ResolveDefaultClient(db *gorm.DB) (uuid.UUID, error) {
	var cl models.Client
	err := db.Where("email = ?", DefaultClientEmail).First(&cl).Error
	if err == nil {
		return cl.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, err
	}

	cl = models.Client{
		Email:    DefaultClientEmail,
		FullName: "Default Client",
		Address:  datatypes.JSON([]byte("{}")),
		IsActive: true,
	}
	if err := db.Create(&cl).Error; err != nil {
		// Lost the race: another request created it between lookup and insert.
		var existing models.Client
		if e := db.Where("email = ?", DefaultClientEmail).First(&existing).Error; e == nil {
			return existing.ID, nil
		}
		return uuid.Nil, err
	}
	return cl.ID, nil
}

// @Summary      Create case
// @Description  Creates a case for the authenticated advocate; a missing client reference resolves to a shared default client
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateCaseRequest  true  "Case payload"
// @Success      201  {object}  models.Case
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse  "client not found"
// @Router       /cases [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	adv := auth.MustAdvocate(c)

	var in CreateCaseRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	status := models.CaseDraft
	if in.Status != "" {
		status = models.CaseStatus(in.Status)
	}

	var out models.Case
	err := h.db.Transaction(func(tx *gorm.DB) error {
		var clientID uuid.UUID
		if in.ClientID != "" {
			clientID, _ = uuid.Parse(in.ClientID)
			var cnt int64
			if err := tx.Model(&models.Client{}).Where("id = ?", clientID).Count(&cnt).Error; err != nil {
				return err
			}
			if cnt == 0 {
				return fiber.NewError(fiber.StatusNotFound, "client not found")
			}
		} else {
			var err error
			clientID, err = ResolveDefaultClient(tx)
			if err != nil {
				return err
			}
		}

		out = models.Case{
			AdvocateID:   adv.ID,
			ClientID:     clientID,
			CaseNumber:   strings.TrimSpace(in.CaseNumber),
			Title:        strings.TrimSpace(in.Title),
			Description:  strings.TrimSpace(in.Description),
			Status:       status,
			FilingDate:   in.FilingDate,
			CaseMetadata: jsonOrEmpty(in.CaseMetadata),
		}
		return tx.Create(&out).Error
	})
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return fe
		}
		return fiber.ErrInternalServerError
	}

	utils.LogCaseHistory(c.Context(), h.db, out.ID, adv.ID, "created", "", out.Status, "")
	return c.Status(fiber.StatusCreated).JSON(out)
}

/* ================================ List ================================== */

// @Summary      List my cases
// @Description  Cases owned by the authenticated advocate, optionally filtered by status (paginated)
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Param        page      query int    false "page"
// @Param        pageSize  query int    false "pageSize"
// @Param        status    query string false "draft|active|pending|closed"
// @Success      200  {object}  PageCases
// @Failure      401  {object}  models.ErrorResponse
// @Router       /cases [get]
func (h *Handler) List(c *fiber.Ctx) error {
	adv := auth.MustAdvocate(c)
	page, size := parsePage(c)
	status := strings.TrimSpace(c.Query("status"))
	if status != "" && !models.ValidCaseStatus(status) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid status filter")
	}

	dbq := h.db.Model(&models.Case{}).Where("advocate_id = ?", adv.ID)
	if status != "" {
		dbq = dbq.Where("status = ?", status)
	}

	var total int64
	if err := dbq.Count(&total).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	var list []models.Case
	if err := dbq.Order("created_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&list).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	// Document counts for the visible page only (avoids N+1).
	caseIDs := make([]uuid.UUID, 0, len(list))
	for _, cs := range list {
		caseIDs = append(caseIDs, cs.ID)
	}
	counts := map[uuid.UUID]int64{}
	if len(caseIDs) > 0 {
		var rows []struct {
			CaseID uuid.UUID
			N      int64
		}
		if err := h.db.Model(&models.Document{}).
			Select("case_id, COUNT(*) AS n").
			Where("case_id IN ?", caseIDs).
			Group("case_id").
			Scan(&rows).Error; err != nil {
			return fiber.ErrInternalServerError
		}
		for _, r := range rows {
			counts[r.CaseID] = r.N
		}
	}

	items := make([]CaseListItem, 0, len(list))
	for _, cs := range list {
		items = append(items, CaseListItem{
			ID:         cs.ID,
			ClientID:   cs.ClientID,
			CaseNumber: cs.CaseNumber,
			Title:      cs.Title,
			Status:     cs.Status,
			Preview:    sanitize.Summary(cs.Description, 240),
			CNR:        cs.CNR,
			CreatedAt:  cs.CreatedAt,
			UpdatedAt:  cs.UpdatedAt,
			Documents:  counts[cs.ID],
		})
	}

	return c.JSON(PageCases{
		Page:     page,
		PageSize: size,
		Total:    total,
		Pages:    int(math.Ceil(float64(total) / float64(size))),
		Items:    items,
	})
}

/* ================================= Get ================================== */

// @Summary      Case detail
// @Description  Absent and unowned cases are indistinguishable (404)
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "case id (uuid)"
// @Success      200  {object}  models.Case
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id} [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	adv := auth.MustAdvocate(c)
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid case id")
	}

	var cs models.Case
	err := h.db.
		Where("id = ? AND advocate_id = ?", id, adv.ID).
		Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&cs).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	if cs.Documents == nil {
		cs.Documents = []models.Document{}
	}
	return c.JSON(cs)
}

/* =============================== Update ================================= */

// @Summary      Update case
// @Description  Partial update; absent fields are untouched
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string             true  "case id (uuid)"
// @Param        payload  body  UpdateCaseRequest  true  "Fields to update"
// @Success      200  {object}  models.Case
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id} [put]
func (h *Handler) Update(c *fiber.Ctx) error {
	adv := auth.MustAdvocate(c)
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid case id")
	}

	var cs models.Case
	if err := h.db.Where("id = ? AND advocate_id = ?", id, adv.ID).First(&cs).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	var in UpdateCaseRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	updates := map[string]any{}
	if in.Title != nil {
		updates["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		updates["description"] = strings.TrimSpace(*in.Description)
	}
	if in.Status != nil {
		updates["status"] = models.CaseStatus(*in.Status)
	}
	if in.FilingDate != nil {
		updates["filing_date"] = *in.FilingDate
	}
	if in.CaseMetadata != nil {
		updates["case_metadata"] = jsonOrEmpty(*in.CaseMetadata)
	}
	if in.CNR != nil {
		updates["cnr"] = strings.TrimSpace(*in.CNR)
	}
	if in.CourtCaseTitle != nil {
		updates["court_case_title"] = strings.TrimSpace(*in.CourtCaseTitle)
	}
	if in.CourtCaseType != nil {
		updates["court_case_type"] = strings.TrimSpace(*in.CourtCaseType)
	}
	if in.FilingNumber != nil {
		updates["filing_number"] = strings.TrimSpace(*in.FilingNumber)
	}
	if in.RegistrationNumber != nil {
		updates["registration_number"] = strings.TrimSpace(*in.RegistrationNumber)
	}
	if in.CourtStatus != nil {
		updates["court_status"] = jsonOrEmpty(*in.CourtStatus)
	}
	if in.PartiesDetails != nil {
		updates["parties_details"] = jsonOrEmpty(*in.PartiesDetails)
	}
	if in.ActsSections != nil {
		updates["acts_sections"] = jsonOrEmpty(*in.ActsSections)
	}
	if in.FIRDetails != nil {
		updates["fir_details"] = jsonOrEmpty(*in.FIRDetails)
	}
	if in.CourtHistory != nil {
		b, _ := json.Marshal(*in.CourtHistory)
		updates["court_history"] = datatypes.JSON(b)
	}
	if len(updates) == 0 {
		return c.JSON(cs)
	}

	oldStatus := cs.Status
	if err := h.db.Model(&cs).Updates(updates).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	var out models.Case
	if err := h.db.First(&out, "id = ?", cs.ID).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	if out.Status != oldStatus {
		utils.LogCaseHistory(c.Context(), h.db, out.ID, adv.ID, "updated", oldStatus, out.Status, "")
	}
	return c.JSON(out)
}

/* ========================== Court details proxy ========================= */

type fetchCourtDetailsRequest struct {
	CNR string `json:"cnr" validate:"required,min=10,max=100"`
}

// @Summary      Fetch court details
// @Description  Proxies a CNR to the external court-records API and relays the raw response
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  fetchCourtDetailsRequest  true  "CNR"
// @Success      200  {object}  map[string]any  "upstream response, relayed verbatim"
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      500  {object}  models.ErrorResponse
// @Router       /cases/fetch-court-details [post]
func (h *Handler) FetchCourtDetails(c *fiber.Ctx) error {
	var in fetchCourtDetailsRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	in.CNR = strings.TrimSpace(in.CNR)
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	raw, err := h.court.Lookup(c.Context(), in.CNR)
	if err != nil {
		if errors.Is(err, courtapi.ErrNoAPIKey) {
			return fiber.NewError(fiber.StatusInternalServerError, "court API key not configured")
		}
		var ue *courtapi.UpstreamError
		if errors.As(err, &ue) {
			return fiber.NewError(fiber.StatusInternalServerError, "court records lookup failed")
		}
		return fiber.ErrInternalServerError
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(raw)
}
