package documents

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/casevault/backend/internal/auth"
	"github.com/casevault/backend/pkg/models"
)

/* ============================================================================
   Fake storage
   ============================================================================ */

// fakeStore records calls instead of talking to Supabase.
type fakeStore struct {
	uploads    map[string][]byte
	deletes    []string
	failUpload bool
	failDelete bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploads: map[string][]byte{}}
}

func (f *fakeStore) MakeObjectKey(caseID, filename string) string {
	return path.Join("cases", caseID, "documents", "fixed-"+filename)
}

func (f *fakeStore) Upload(key string, r io.Reader, contentType string, size int64) error {
	if f.failUpload {
		return errors.New("upload refused")
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.uploads[key] = b
	return nil
}

func (f *fakeStore) Download(key string) (io.ReadCloser, error) {
	b, ok := f.uploads[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeStore) SignedURL(key string, expiresInSeconds int) (string, error) {
	return "https://signed.example/" + key, nil
}

func (f *fakeStore) Delete(key string) error {
	f.deletes = append(f.deletes, key)
	if f.failDelete {
		return errors.New("delete refused")
	}
	delete(f.uploads, key)
	return nil
}

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
	if err := db.AutoMigrate(
		&models.Advocate{}, &models.Client{}, &models.Case{},
		&models.Document{}, &models.CaseHistory{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		sql := `
TRUNCATE TABLE
	case_histories,
	documents,
	cases,
	clients,
	advocates
RESTART IDENTITY CASCADE`
		if err := db.Exec(sql).Error; err != nil {
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

func injectAuth(adv *models.Advocate) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("advocate", adv)
		return c.Next()
	}
}

func newTestApp(h *Handler, adv *models.Advocate) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler})
	app.Use(injectAuth(adv))

	app.Post("/api/documents/upload", h.Upload)
	app.Get("/api/documents/case/:caseID", h.ListByCase)
	app.Get("/api/documents/:id/download", h.Download)
	app.Get("/api/documents/:id/content", h.Content)
	app.Get("/api/documents/:id", h.Get)
	app.Delete("/api/documents/:id", h.Delete)

	return app
}

type seedResult struct {
	Advocate models.Advocate
	CaseID   uuid.UUID
}

func seedCase(t *testing.T, tx *gorm.DB) seedResult {
	t.Helper()
	id := uuid.New()
	adv := models.Advocate{
		Email:        "adv_" + id.String()[:8] + "@x.com",
		PasswordHash: "x",
		FullName:     "Adv",
		BarNumber:    "BAR " + id.String()[:8],
		LicenseState: "NY",
		IsActive:     true,
	}
	if err := tx.Create(&adv).Error; err != nil {
		t.Fatal(err)
	}
	cl := models.Client{
		Email:    "client_" + id.String()[:8] + "@x.com",
		FullName: "Client",
		IsActive: true,
	}
	if err := tx.Create(&cl).Error; err != nil {
		t.Fatal(err)
	}
	cs := models.Case{
		AdvocateID: adv.ID,
		ClientID:   cl.ID,
		CaseNumber: "CN-1",
		Title:      "Case",
		Status:     models.CaseActive,
	}
	if err := tx.Create(&cs).Error; err != nil {
		t.Fatal(err)
	}
	return seedResult{Advocate: adv, CaseID: cs.ID}
}

// multipartUpload builds a multipart request for the upload endpoint.
func multipartUpload(t *testing.T, caseID, docType, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("case_id", caseID)
	_ = w.WriteField("document_type", docType)
	_ = w.WriteField("description", "test upload")
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte(content))
	_ = w.Close()

	req := httptest.NewRequest("POST", "/api/documents/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

/* ============================================================================
   Tests — upload, compensation, access control, delete
   ============================================================================ */

func Test_Upload_StoresObjectAndRow(t *testing.T) {
	db := openTestDB(t)
	withTx(t, db, func(tx *gorm.DB) {
		seed := seedCase(t, tx)
		store := newFakeStore()
		app := newTestApp(NewHandler(tx, store), &seed.Advocate)

		resp, err := app.Test(multipartUpload(t, seed.CaseID.String(), "evidence", "exhibit-a.pdf", "PDFDATA"))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != 201 {
			t.Fatalf("status %d", resp.StatusCode)
		}

		var doc models.Document
		_ = json.NewDecoder(resp.Body).Decode(&doc)
		if doc.Status != models.DocStatusProcessed {
			t.Fatalf("status = %q", doc.Status)
		}
		if doc.OriginalFilename != "exhibit-a.pdf" || doc.FileSize != int64(len("PDFDATA")) {
			t.Fatalf("metadata wrong: %+v", doc)
		}
		if _, ok := store.uploads[doc.StoragePath]; !ok {
			t.Fatalf("object missing in storage: %q", doc.StoragePath)
		}

		var n int64
		tx.Model(&models.Document{}).Where("case_id = ?", seed.CaseID).Count(&n)
		if n != 1 {
			t.Fatalf("row count = %d", n)
		}

		// Upload lands in the audit trail
		var hist models.CaseHistory
		if err := tx.Where("case_id = ? AND action = ?", seed.CaseID, "document_uploaded").First(&hist).Error; err != nil {
			t.Fatalf("no audit row: %v", err)
		}
	})
}

func Test_Upload_BadInputs(t *testing.T) {
	db := openTestDB(t)
	withTx(t, db, func(tx *gorm.DB) {
		seed := seedCase(t, tx)
		app := newTestApp(NewHandler(tx, newFakeStore()), &seed.Advocate)

		// Unknown case → 404 before any storage write
		resp, _ := app.Test(multipartUpload(t, uuid.NewString(), "evidence", "a.pdf", "x"))
		if resp.StatusCode != 404 {
			t.Fatalf("unknown case: status %d", resp.StatusCode)
		}

		// Bad document type
		resp, _ = app.Test(multipartUpload(t, seed.CaseID.String(), "recipe", "a.pdf", "x"))
		if resp.StatusCode != 400 {
			t.Fatalf("bad type: status %d", resp.StatusCode)
		}

		// Bad case id
		resp, _ = app.Test(multipartUpload(t, "not-a-uuid", "evidence", "a.pdf", "x"))
		if resp.StatusCode != 400 {
			t.Fatalf("bad id: status %d", resp.StatusCode)
		}
	})
}

func Test_Upload_StorageFailure_NoRow(t *testing.T) {
	db := openTestDB(t)
	withTx(t, db, func(tx *gorm.DB) {
		seed := seedCase(t, tx)
		store := newFakeStore()
		store.failUpload = true
		app := newTestApp(NewHandler(tx, store), &seed.Advocate)

		resp, _ := app.Test(multipartUpload(t, seed.CaseID.String(), "evidence", "a.pdf", "x"))
		if resp.StatusCode != 500 {
			t.Fatalf("status %d", resp.StatusCode)
		}
		var n int64
		tx.Model(&models.Document{}).Where("case_id = ?", seed.CaseID).Count(&n)
		if n != 0 {
			t.Fatalf("orphan row after failed storage write: %d", n)
		}
	})
}

// When the row insert fails after a successful object write, the handler must
// delete the object again so storage holds no orphans.
func Test_Upload_InsertFailure_CompensatingDelete(t *testing.T) {
	db := openTestDB(t)

	tx := db.Begin()
	if tx.Error != nil {
		t.Fatalf("begin tx: %v", tx.Error)
	}
	defer func() { _ = tx.Rollback().Error }()

	seed := seedCase(t, tx)
	store := newFakeStore()
	app := newTestApp(NewHandler(tx, store), &seed.Advocate)

	// Dropping the table inside the transaction makes the insert fail while
	// the case lookup and the storage write still succeed. Rolled back after.
	if err := tx.Exec("DROP TABLE documents").Error; err != nil {
		t.Fatalf("drop: %v", err)
	}

	resp, err := app.Test(multipartUpload(t, seed.CaseID.String(), "evidence", "a.pdf", "x"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 500 {
		t.Fatalf("status %d, want 500", resp.StatusCode)
	}

	if len(store.deletes) != 1 {
		t.Fatalf("compensating delete count = %d, want 1", len(store.deletes))
	}
	if !strings.HasPrefix(store.deletes[0], "cases/"+seed.CaseID.String()+"/") {
		t.Fatalf("deleted wrong key: %q", store.deletes[0])
	}
	if len(store.uploads) != 0 {
		t.Fatal("orphan object left in storage")
	}
}

func Test_Access_OtherAdvocate_NotFound(t *testing.T) {
	db := openTestDB(t)
	withTx(t, db, func(tx *gorm.DB) {
		owner := seedCase(t, tx)
		intruder := seedCase(t, tx) // second advocate with their own case
		store := newFakeStore()

		h := NewHandler(tx, store)
		ownerApp := newTestApp(h, &owner.Advocate)

		resp, _ := ownerApp.Test(multipartUpload(t, owner.CaseID.String(), "contract", "c.pdf", "x"))
		if resp.StatusCode != 201 {
			t.Fatalf("upload: status %d", resp.StatusCode)
		}
		var doc models.Document
		_ = json.NewDecoder(resp.Body).Decode(&doc)

		intruderApp := newTestApp(h, &intruder.Advocate)
		for _, target := range []string{
			"/api/documents/" + doc.ID.String(),
			"/api/documents/" + doc.ID.String() + "/download",
			"/api/documents/" + doc.ID.String() + "/content",
			"/api/documents/case/" + owner.CaseID.String(),
		} {
			resp, _ := intruderApp.Test(httptest.NewRequest("GET", target, nil))
			if resp.StatusCode != 404 {
				t.Fatalf("%s: status %d, want 404", target, resp.StatusCode)
			}
		}

		resp, _ = intruderApp.Test(httptest.NewRequest("DELETE", "/api/documents/"+doc.ID.String(), nil))
		if resp.StatusCode != 404 {
			t.Fatalf("delete: status %d, want 404", resp.StatusCode)
		}
	})
}

func Test_Download_And_Content(t *testing.T) {
	db := openTestDB(t)
	withTx(t, db, func(tx *gorm.DB) {
		seed := seedCase(t, tx)
		store := newFakeStore()
		app := newTestApp(NewHandler(tx, store), &seed.Advocate)

		resp, _ := app.Test(multipartUpload(t, seed.CaseID.String(), "pleading", "brief.txt", "the brief"))
		var doc models.Document
		_ = json.NewDecoder(resp.Body).Decode(&doc)

		// Signed URL
		resp, _ = app.Test(httptest.NewRequest("GET", "/api/documents/"+doc.ID.String()+"/download", nil))
		if resp.StatusCode != 200 {
			t.Fatalf("download: status %d", resp.StatusCode)
		}
		var body struct {
			URL       string `json:"url"`
			ExpiresIn int    `json:"expires_in"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if !strings.Contains(body.URL, doc.StoragePath) {
			t.Fatalf("url = %q", body.URL)
		}
		if body.ExpiresIn != 900 {
			t.Fatalf("expires_in = %d", body.ExpiresIn)
		}

		// Raw content
		resp, _ = app.Test(httptest.NewRequest("GET", "/api/documents/"+doc.ID.String()+"/content", nil))
		if resp.StatusCode != 200 {
			t.Fatalf("content: status %d", resp.StatusCode)
		}
		got, _ := io.ReadAll(resp.Body)
		if string(got) != "the brief" {
			t.Fatalf("content = %q", got)
		}
	})
}

func Test_Delete_RemovesRow_RepeatNotFound(t *testing.T) {
	db := openTestDB(t)
	withTx(t, db, func(tx *gorm.DB) {
		seed := seedCase(t, tx)
		store := newFakeStore()
		app := newTestApp(NewHandler(tx, store), &seed.Advocate)

		resp, _ := app.Test(multipartUpload(t, seed.CaseID.String(), "other", "junk.bin", "zzz"))
		var doc models.Document
		_ = json.NewDecoder(resp.Body).Decode(&doc)

		resp, _ = app.Test(httptest.NewRequest("DELETE", "/api/documents/"+doc.ID.String(), nil))
		if resp.StatusCode != 200 {
			t.Fatalf("delete: status %d", resp.StatusCode)
		}
		if len(store.deletes) != 1 || store.deletes[0] != doc.StoragePath {
			t.Fatalf("storage delete not recorded: %v", store.deletes)
		}

		var n int64
		tx.Model(&models.Document{}).Where("id = ?", doc.ID).Count(&n)
		if n != 0 {
			t.Fatal("row survived delete")
		}

		// Second delete is a 404
		resp, _ = app.Test(httptest.NewRequest("DELETE", "/api/documents/"+doc.ID.String(), nil))
		if resp.StatusCode != 404 {
			t.Fatalf("repeat delete: status %d, want 404", resp.StatusCode)
		}

		// A failed storage delete still removes the row
		resp, _ = app.Test(multipartUpload(t, seed.CaseID.String(), "other", "junk2.bin", "zzz"))
		_ = json.NewDecoder(resp.Body).Decode(&doc)
		store.failDelete = true
		resp, _ = app.Test(httptest.NewRequest("DELETE", "/api/documents/"+doc.ID.String(), nil))
		if resp.StatusCode != 200 {
			t.Fatalf("delete with storage failure: status %d", resp.StatusCode)
		}
		tx.Model(&models.Document{}).Where("id = ?", doc.ID).Count(&n)
		if n != 0 {
			t.Fatal("row survived delete after storage failure")
		}
	})
}
