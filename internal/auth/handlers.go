package auth

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/casevault/backend/internal/config"
)

/* ================================ DTOs ================================= */

// Request body for /auth/token (OAuth2 password form)
type TokenRequest struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

// Standard token response
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

/* ============================== Handler ================================= */

type Handler struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewHandler(db *gorm.DB, cfg *config.Config) *Handler {
	return &Handler{db: db, cfg: cfg}
}

/* ================================ Token ================================= */

// @Summary      Obtain access token
// @Description  Exchange email and password (form-encoded) for a bearer token
// @Tags         auth
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Param        username  formData  string  true  "advocate email"
// @Param        password  formData  string  true  "password"
// @Success      200  {object}  TokenResponse
// @Failure      401  {object}  models.ErrorResponse  "incorrect email or password"
// @Router       /auth/token [post]
func (h *Handler) Token(c *fiber.Ctx) error {
	var in TokenRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	if in.Username == "" || in.Password == "" {
		return fiber.NewError(fiber.StatusBadRequest, "username and password are required")
	}

	adv := Authenticate(h.db, in.Username, in.Password)
	if adv == nil {
		return fiber.NewError(fiber.StatusUnauthorized, "incorrect email or password")
	}

	token, err := IssueToken(h.cfg.JWTSecret, adv.ID.String(), h.cfg.TokenExpiry())
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(TokenResponse{AccessToken: token, TokenType: "bearer"})
}
