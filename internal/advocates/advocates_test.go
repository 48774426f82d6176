package advocates

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/casevault/backend/internal/auth"
	"github.com/casevault/backend/pkg/models"
)

/* ============================================================================
   Helpers
   ============================================================================ */

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	_ = godotenv.Load()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Fatal("TEST_DATABASE_URL is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Advocate{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Exec("TRUNCATE TABLE advocates RESTART IDENTITY CASCADE").Error; err != nil {
			t.Logf("truncate failed (ignored): %v", err)
		}
	})

	return db
}

func withTx(t *testing.T, db *gorm.DB, fn func(tx *gorm.DB)) {
	t.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		t.Fatalf("begin tx: %v", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	fn(tx)
	if err := tx.Commit().Error; err != nil {
		t.Fatalf("commit tx: %v", err)
	}
}

func newTestApp(h *Handler, adv *models.Advocate) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler})
	if adv != nil {
		app.Use(func(c *fiber.Ctx) error {
			c.Locals("advocate", adv)
			return c.Next()
		})
	}
	app.Post("/api/advocates", h.Create)
	app.Get("/api/advocates/me", h.Me)
	app.Put("/api/advocates/me", h.UpdateMe)
	return app
}

func postJSON(t *testing.T, app *fiber.App, target, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest("POST", target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

const validSignup = `{
	"email": "JANE@Example.com",
	"password": "hunter22",
	"full_name": "Jane Roe",
	"bar_number": "CA/12345",
	"license_state": "ca"
}`

/* ============================================================================
   Tests — signup validation, uniqueness, profile update
   ============================================================================ */

func Test_Signup_NormalizesAndHashes(t *testing.T) {
	db := openTestDB(t)
	withTx(t, db, func(tx *gorm.DB) {
		app := newTestApp(NewHandler(tx), nil)

		resp := postJSON(t, app, "/api/advocates", validSignup)
		if resp.StatusCode != 201 {
			t.Fatalf("status %d", resp.StatusCode)
		}
		var adv models.Advocate
		_ = json.NewDecoder(resp.Body).Decode(&adv)
		if adv.Email != "jane@example.com" {
			t.Fatalf("email = %q", adv.Email)
		}
		if adv.LicenseState != "CA" {
			t.Fatalf("state = %q", adv.LicenseState)
		}
		if !adv.IsActive {
			t.Fatal("new account not active")
		}

		var row models.Advocate
		if err := tx.First(&row, "id = ?", adv.ID).Error; err != nil {
			t.Fatal(err)
		}
		if row.PasswordHash == "hunter22" || row.PasswordHash == "" {
			t.Fatal("password stored badly")
		}
		if !auth.CheckPassword("hunter22", row.PasswordHash) {
			t.Fatal("stored hash does not match password")
		}
	})
}

func Test_Signup_DuplicateEmailOrBar_Conflict(t *testing.T) {
	db := openTestDB(t)
	withTx(t, db, func(tx *gorm.DB) {
		app := newTestApp(NewHandler(tx), nil)

		if resp := postJSON(t, app, "/api/advocates", validSignup); resp.StatusCode != 201 {
			t.Fatalf("first: status %d", resp.StatusCode)
		}

		// Same email, different bar number
		dup := strings.Replace(validSignup, "CA/12345", "CA/99999", 1)
		if resp := postJSON(t, app, "/api/advocates", dup); resp.StatusCode != 409 {
			t.Fatalf("dup email: status %d, want 409", resp.StatusCode)
		}

		// Same bar number, different email
		dup = strings.Replace(validSignup, "JANE@Example.com", "john@example.com", 1)
		if resp := postJSON(t, app, "/api/advocates", dup); resp.StatusCode != 409 {
			t.Fatalf("dup bar: status %d, want 409", resp.StatusCode)
		}
	})
}

func Test_Signup_Validation(t *testing.T) {
	db := openTestDB(t)
	withTx(t, db, func(tx *gorm.DB) {
		app := newTestApp(NewHandler(tx), nil)

		bad := []string{
			`{"email":"not-an-email","password":"hunter22","full_name":"J R","bar_number":"CA/1","license_state":"CA"}`,
			`{"email":"a@b.com","password":"short","full_name":"J R","bar_number":"CA/12345","license_state":"CA"}`,
			`{"email":"a@b.com","password":"hunter22","full_name":"J R","bar_number":"!!","license_state":"CA"}`,
			`{"email":"a@b.com","password":"hunter22","full_name":"J R","bar_number":"CA/12345","license_state":"California"}`,
		}
		for _, body := range bad {
			resp := postJSON(t, app, "/api/advocates", body)
			if resp.StatusCode != 400 {
				t.Fatalf("%s: status %d, want 400", body, resp.StatusCode)
			}
			var ver models.ValidationErrorResponse
			_ = json.NewDecoder(resp.Body).Decode(&ver)
			if len(ver.Errors) == 0 {
				t.Fatalf("%s: no field errors", body)
			}
		}
	})
}

func Test_UpdateMe_Partial(t *testing.T) {
	db := openTestDB(t)
	withTx(t, db, func(tx *gorm.DB) {
		h := NewHandler(tx)
		signupApp := newTestApp(h, nil)
		resp := postJSON(t, signupApp, "/api/advocates", validSignup)
		var adv models.Advocate
		_ = json.NewDecoder(resp.Body).Decode(&adv)

		app := newTestApp(h, &adv)
		req := httptest.NewRequest("PUT", "/api/advocates/me", strings.NewReader(`{"firm_name":"Roe & Partners"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ = app.Test(req)
		if resp.StatusCode != 200 {
			t.Fatalf("status %d", resp.StatusCode)
		}
		var out models.Advocate
		_ = json.NewDecoder(resp.Body).Decode(&out)
		if out.FirmName != "Roe & Partners" {
			t.Fatalf("firm = %q", out.FirmName)
		}
		if out.FullName != "Jane Roe" || out.Email != "jane@example.com" {
			t.Fatal("untouched fields changed")
		}
	})
}
