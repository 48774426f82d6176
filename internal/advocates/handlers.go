package advocates

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/casevault/backend/internal/auth"
	"github.com/casevault/backend/pkg/models"
	"github.com/casevault/backend/pkg/validation"
)

/* ================================ DTOs ================================= */

// Request body for signup
type CreateAdvocateRequest struct {
	Email        string `json:"email" validate:"required,email,max=120"`
	Password     string `json:"password" validate:"required,min=6,max=72"`
	FullName     string `json:"full_name" validate:"required,min=2,max=120"`
	Phone        string `json:"phone" validate:"omitempty,max=20"`
	BarNumber    string `json:"bar_number" validate:"required,barnum"`
	LicenseState string `json:"license_state" validate:"required,usstate"`
	FirmName     string `json:"firm_name" validate:"omitempty,max=120"`
}

// Request body for profile update; only fields present in the payload are
// applied.
type UpdateAdvocateRequest struct {
	Email        *string `json:"email" validate:"omitempty,email,max=120"`
	FullName     *string `json:"full_name" validate:"omitempty,min=2,max=120"`
	Phone        *string `json:"phone" validate:"omitempty,max=20"`
	LicenseState *string `json:"license_state" validate:"omitempty,usstate"`
	FirmName     *string `json:"firm_name" validate:"omitempty,max=120"`
}

/* ============================== Handler ================================= */

type Handler struct{ db *gorm.DB }

func NewHandler(db *gorm.DB) *Handler { return &Handler{db: db} }

/* =============================== Signup ================================= */

// @Summary      Register advocate
// @Description  Create a new advocate account
// @Tags         advocates
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateAdvocateRequest  true  "Advocate payload"
// @Success      201  {object}  models.Advocate
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      409  {object}  models.ErrorResponse  "email or bar number already registered"
// @Router       /advocates [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreateAdvocateRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.LicenseState = strings.ToUpper(strings.TrimSpace(in.LicenseState))

	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var cnt int64
	if err := h.db.Model(&models.Advocate{}).Where("email = ?", in.Email).Count(&cnt).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if cnt > 0 {
		return fiber.NewError(fiber.StatusConflict, "email already registered")
	}
	if err := h.db.Model(&models.Advocate{}).Where("bar_number = ?", in.BarNumber).Count(&cnt).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if cnt > 0 {
		return fiber.NewError(fiber.StatusConflict, "bar number already registered")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return fiber.ErrInternalServerError
	}

	adv := models.Advocate{
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(in.FullName),
		Phone:        strings.TrimSpace(in.Phone),
		BarNumber:    strings.TrimSpace(in.BarNumber),
		LicenseState: in.LicenseState,
		FirmName:     strings.TrimSpace(in.FirmName),
		IsActive:     true,
	}
	if err := h.db.Create(&adv).Error; err != nil {
		// Unique index beat the precheck (concurrent signup).
		return fiber.NewError(fiber.StatusConflict, "email or bar number already registered")
	}
	return c.Status(fiber.StatusCreated).JSON(adv)
}

/* ================================= Me =================================== */

// @Summary      Current advocate profile
// @Tags         advocates
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  models.Advocate
// @Failure      401  {object}  models.ErrorResponse
// @Router       /advocates/me [get]
func (h *Handler) Me(c *fiber.Ctx) error {
	return c.JSON(auth.MustAdvocate(c))
}

// @Summary      Update current advocate profile
// @Description  Partial update; absent fields are untouched
// @Tags         advocates
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  UpdateAdvocateRequest  true  "Fields to update"
// @Success      200  {object}  models.Advocate
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Router       /advocates/me [put]
func (h *Handler) UpdateMe(c *fiber.Ctx) error {
	adv := auth.MustAdvocate(c)

	var in UpdateAdvocateRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	updates := map[string]any{}
	if in.Email != nil {
		updates["email"] = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if in.FullName != nil {
		updates["full_name"] = strings.TrimSpace(*in.FullName)
	}
	if in.Phone != nil {
		updates["phone"] = strings.TrimSpace(*in.Phone)
	}
	if in.LicenseState != nil {
		updates["license_state"] = strings.ToUpper(strings.TrimSpace(*in.LicenseState))
	}
	if in.FirmName != nil {
		updates["firm_name"] = strings.TrimSpace(*in.FirmName)
	}
	if len(updates) == 0 {
		return c.JSON(adv)
	}

	if err := h.db.Model(adv).Updates(updates).Error; err != nil {
		return fiber.NewError(fiber.StatusConflict, "email already registered")
	}

	var out models.Advocate
	if err := h.db.First(&out, "id = ?", adv.ID).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(out)
}
