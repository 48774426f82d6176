package documents

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/casevault/backend/internal/auth"
	"github.com/casevault/backend/internal/storage"
	"github.com/casevault/backend/pkg/models"
	"github.com/casevault/backend/pkg/utils"
)

const (
	maxUploadBytes     = 25 * 1024 * 1024
	signedURLExpirySec = 15 * 60
)

type Handler struct {
	db    *gorm.DB
	store storage.Store
}

func NewHandler(db *gorm.DB, store storage.Store) *Handler {
	return &Handler{db: db, store: store}
}

/* ============================ Authorization ============================= */

// ownedCase loads a case only when the caller owns it. Absent and unowned are
// indistinguishable so callers cannot probe for other advocates' cases.
func (h *Handler) ownedCase(advocateID uuid.UUID, caseID string) (*models.Case, error) {
	var cs models.Case
	if err := h.db.Where("id = ? AND advocate_id = ?", caseID, advocateID).First(&cs).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.ErrNotFound
		}
		return nil, fiber.ErrInternalServerError
	}
	return &cs, nil
}

// ownedDocument resolves a document through its owning case.
func (h *Handler) ownedDocument(advocateID uuid.UUID, docID string) (*models.Document, error) {
	var doc models.Document
	if err := h.db.First(&doc, "id = ?", docID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.ErrNotFound
		}
		return nil, fiber.ErrInternalServerError
	}
	if _, err := h.ownedCase(advocateID, doc.CaseID.String()); err != nil {
		return nil, err
	}
	return &doc, nil
}

/* =============================== Upload ================================= */

// @Summary      Upload document
// @Description  Multipart upload (file, case_id, document_type, description); object write then row insert, with a compensating object delete when the insert fails
// @Tags         documents
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        file           formData  file    true   "document content"
// @Param        case_id        formData  string  true   "case id (uuid)"
// @Param        document_type  formData  string  true   "pleading|contract|evidence|correspondence|other"
// @Param        description    formData  string  false  "description"
// @Success      201  {object}  models.Document
// @Failure      400  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Failure      500  {object}  models.ErrorResponse
// @Router       /documents/upload [post]
func (h *Handler) Upload(c *fiber.Ctx) error {
	adv := auth.MustAdvocate(c)

	caseID := c.FormValue("case_id")
	if _, err := uuid.Parse(caseID); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid case_id")
	}
	docType := c.FormValue("document_type")
	if !models.ValidDocumentType(docType) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid document_type")
	}
	description := c.FormValue("description")

	cs, err := h.ownedCase(adv.ID, caseID)
	if err != nil {
		return err
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}
	if fh.Size <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "empty file")
	}
	if fh.Size > maxUploadBytes {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "file exceeds 25MB limit")
	}

	ct := fh.Header.Get("Content-Type")
	if ct == "" {
		ct = mime.TypeByExtension(filepath.Ext(fh.Filename))
	}
	if ct == "" {
		ct = "application/octet-stream"
	}

	src, err := fh.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "open failed")
	}
	defer src.Close()

	// Stage to a temp file so the storage client gets a re-readable stream
	// with a known size.
	tmp, err := os.CreateTemp("", "casevault-upload-*")
	if err != nil {
		return fiber.ErrInternalServerError
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()
	size, err := io.Copy(tmp, src)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fiber.ErrInternalServerError
	}

	key := h.store.MakeObjectKey(cs.ID.String(), fh.Filename)
	if err := h.store.Upload(key, tmp, ct, size); err != nil {
		slog.Error("document upload to storage failed", "case_id", cs.ID, "key", key, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "storage upload failed")
	}

	doc := models.Document{
		CaseID:           cs.ID,
		Title:            fh.Filename,
		DocumentType:     models.DocumentType(docType),
		Description:      description,
		StoragePath:      key,
		OriginalFilename: fh.Filename,
		FileSize:         size,
		MimeType:         ct,
		Status:           models.DocStatusProcessed,
		Metadata:         datatypes.JSON([]byte("{}")),
	}
	if err := h.db.Create(&doc).Error; err != nil {
		// Compensate: the object is already in storage, remove it so no
		// orphan remains. A failed delete is logged, never propagated; the
		// database error stays the one the caller sees.
		if delErr := h.store.Delete(key); delErr != nil {
			slog.Error("compensating delete failed, orphaned object remains",
				"key", key, "error", delErr)
		}
		slog.Error("document record insert failed", "case_id", cs.ID, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "database error")
	}

	utils.LogCaseHistory(c.Context(), h.db, cs.ID, adv.ID, "document_uploaded", cs.Status, cs.Status, doc.OriginalFilename)
	return c.Status(fiber.StatusCreated).JSON(doc)
}

/* ============================== Retrieval =============================== */

// @Summary      Document metadata
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "document id (uuid)"
// @Success      200  {object}  models.Document
// @Failure      404  {object}  models.ErrorResponse
// @Router       /documents/{id} [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	adv := auth.MustAdvocate(c)
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid document id")
	}

	doc, err := h.ownedDocument(adv.ID, id)
	if err != nil {
		return err
	}
	return c.JSON(doc)
}

// @Summary      List case documents
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        caseID  path  string  true  "case id (uuid)"
// @Success      200  {array}  models.Document
// @Failure      404  {object}  models.ErrorResponse
// @Router       /documents/case/{caseID} [get]
func (h *Handler) ListByCase(c *fiber.Ctx) error {
	adv := auth.MustAdvocate(c)
	caseID := c.Params("caseID")
	if _, err := uuid.Parse(caseID); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid case id")
	}

	if _, err := h.ownedCase(adv.ID, caseID); err != nil {
		return err
	}

	var docs []models.Document
	if err := h.db.Where("case_id = ?", caseID).Order("created_at ASC").Find(&docs).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if docs == nil {
		docs = []models.Document{}
	}
	return c.JSON(docs)
}

// @Summary      Signed download URL
// @Description  Returns a short-lived signed URL for the stored object
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "document id (uuid)"
// @Success      200  {object}  map[string]any  "url, expires_in, now"
// @Failure      404  {object}  models.ErrorResponse
// @Failure      500  {object}  models.ErrorResponse
// @Router       /documents/{id}/download [get]
func (h *Handler) Download(c *fiber.Ctx) error {
	adv := auth.MustAdvocate(c)
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid document id")
	}

	doc, err := h.ownedDocument(adv.ID, id)
	if err != nil {
		return err
	}

	url, err := h.store.SignedURL(doc.StoragePath, signedURLExpirySec)
	if err != nil {
		slog.Error("signed URL failed", "key", doc.StoragePath, "error", err)
		return fiber.ErrInternalServerError
	}
	return c.JSON(fiber.Map{"url": url, "expires_in": signedURLExpirySec, "now": time.Now().UTC()})
}

// @Summary      Document content
// @Description  Streams the stored bytes with the recorded MIME type
// @Tags         documents
// @Security     BearerAuth
// @Produce      octet-stream
// @Param        id  path  string  true  "document id (uuid)"
// @Success      200  {file}  binary
// @Failure      404  {object}  models.ErrorResponse
// @Failure      500  {object}  models.ErrorResponse
// @Router       /documents/{id}/content [get]
func (h *Handler) Content(c *fiber.Ctx) error {
	adv := auth.MustAdvocate(c)
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid document id")
	}

	doc, err := h.ownedDocument(adv.ID, id)
	if err != nil {
		return err
	}

	rc, err := h.store.Download(doc.StoragePath)
	if err != nil {
		slog.Error("content download failed", "key", doc.StoragePath, "error", err)
		return fiber.ErrInternalServerError
	}

	ct := doc.MimeType
	if ct == "" {
		ct = "application/octet-stream"
	}
	c.Set(fiber.HeaderContentType, ct)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+doc.OriginalFilename+`"`)
	return c.SendStream(rc)
}

/* ================================ Delete ================================ */

// @Summary      Delete document
// @Description  Removes the stored object (best-effort) and the database row; a repeated delete returns 404
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "document id (uuid)"
// @Success      200  {object}  map[string]any  "deleted"
// @Failure      404  {object}  models.ErrorResponse
// @Router       /documents/{id} [delete]
func (h *Handler) Delete(c *fiber.Ctx) error {
	adv := auth.MustAdvocate(c)
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid document id")
	}

	doc, err := h.ownedDocument(adv.ID, id)
	if err != nil {
		return err
	}

	// Storage first, best-effort: the row is authoritative, a stale object
	// is only logged.
	if err := h.store.Delete(doc.StoragePath); err != nil {
		slog.Warn("storage delete failed, object may remain", "key", doc.StoragePath, "error", err)
	}

	if err := h.db.Delete(&models.Document{}, "id = ?", doc.ID).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	utils.LogCaseHistory(c.Context(), h.db, doc.CaseID, adv.ID, "document_deleted", "", "", doc.OriginalFilename)
	return c.JSON(fiber.Map{"deleted": true, "id": doc.ID})
}
