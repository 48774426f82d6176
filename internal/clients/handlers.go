package clients

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/casevault/backend/pkg/models"
	"github.com/casevault/backend/pkg/validation"
)

/* ================================ DTOs ================================= */

type CreateClientRequest struct {
	Email       string         `json:"email" validate:"required,email,max=120"`
	FullName    string         `json:"full_name" validate:"required,min=2,max=120"`
	Phone       string         `json:"phone" validate:"omitempty,max=20"`
	Address     map[string]any `json:"address"`
	CompanyName string         `json:"company_name" validate:"omitempty,max=120"`
}

// Partial update; only fields present in the payload are applied.
type UpdateClientRequest struct {
	Email       *string         `json:"email" validate:"omitempty,email,max=120"`
	FullName    *string         `json:"full_name" validate:"omitempty,min=2,max=120"`
	Phone       *string         `json:"phone" validate:"omitempty,max=20"`
	Address     *map[string]any `json:"address"`
	CompanyName *string         `json:"company_name" validate:"omitempty,max=120"`
}

/* ============================== Handler ================================= */

type Handler struct{ db *gorm.DB }

func NewHandler(db *gorm.DB) *Handler { return &Handler{db: db} }

func addressJSON(m map[string]any) datatypes.JSON {
	if m == nil {
		m = map[string]any{}
	}
	b, _ := json.Marshal(m)
	return datatypes.JSON(b)
}

/* =============================== Create ================================= */

// @Summary      Create client
// @Tags         clients
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateClientRequest  true  "Client payload"
// @Success      201  {object}  models.Client
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      409  {object}  models.ErrorResponse  "email already registered"
// @Router       /clients [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreateClientRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	cl := models.Client{
		Email:       in.Email,
		FullName:    strings.TrimSpace(in.FullName),
		Phone:       strings.TrimSpace(in.Phone),
		Address:     addressJSON(in.Address),
		CompanyName: strings.TrimSpace(in.CompanyName),
		IsActive:    true,
	}
	if err := h.db.Create(&cl).Error; err != nil {
		return fiber.NewError(fiber.StatusConflict, "email already registered")
	}
	return c.Status(fiber.StatusCreated).JSON(cl)
}

/* ================================ List ================================== */

// @Summary      List clients
// @Description  Client visibility is global, not scoped per advocate
// @Tags         clients
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  models.Client
// @Failure      401  {object}  models.ErrorResponse
// @Router       /clients [get]
func (h *Handler) List(c *fiber.Ctx) error {
	var list []models.Client
	if err := h.db.Order("created_at DESC").Find(&list).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if list == nil {
		list = []models.Client{}
	}
	return c.JSON(list)
}

/* ================================= Get ================================== */

// @Summary      Get client
// @Tags         clients
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "client id (uuid)"
// @Success      200  {object}  models.Client
// @Failure      404  {object}  models.ErrorResponse
// @Router       /clients/{id} [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid client id")
	}

	var cl models.Client
	if err := h.db.First(&cl, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}
	return c.JSON(cl)
}

/* =============================== Update ================================= */

// @Summary      Update client
// @Description  Partial update; absent fields are untouched
// @Tags         clients
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string               true  "client id (uuid)"
// @Param        payload  body  UpdateClientRequest  true  "Fields to update"
// @Success      200  {object}  models.Client
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /clients/{id} [put]
func (h *Handler) Update(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid client id")
	}

	var cl models.Client
	if err := h.db.First(&cl, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	var in UpdateClientRequest
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
	if in.Address != nil {
		updates["address"] = addressJSON(*in.Address)
	}
	if in.CompanyName != nil {
		updates["company_name"] = strings.TrimSpace(*in.CompanyName)
	}
	if len(updates) == 0 {
		return c.JSON(cl)
	}

	if err := h.db.Model(&cl).Updates(updates).Error; err != nil {
		return fiber.NewError(fiber.StatusConflict, "email already registered")
	}

	var out models.Client
	if err := h.db.First(&out, "id = ?", cl.ID).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(out)
}
