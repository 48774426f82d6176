package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

/* =============================== Enums ================================== */

// CaseStatus defines lifecycle states for a case.
type CaseStatus string

const (
	CaseDraft   CaseStatus = "draft"
	CaseActive  CaseStatus = "active"
	CasePending CaseStatus = "pending"
	CaseClosed  CaseStatus = "closed"
)

// ValidCaseStatus reports whether s is a known case status.
func ValidCaseStatus(s string) bool {
	switch CaseStatus(s) {
	case CaseDraft, CaseActive, CasePending, CaseClosed:
		return true
	}
	return false
}

// DocumentType classifies an uploaded document.
type DocumentType string

const (
	DocPleading       DocumentType = "pleading"
	DocContract       DocumentType = "contract"
	DocEvidence       DocumentType = "evidence"
	DocCorrespondence DocumentType = "correspondence"
	DocOther          DocumentType = "other"
)

// ValidDocumentType reports whether s is a known document type.
func ValidDocumentType(s string) bool {
	switch DocumentType(s) {
	case DocPleading, DocContract, DocEvidence, DocCorrespondence, DocOther:
		return true
	}
	return false
}

// DocumentStatus defines lifecycle states for a document. The write path is
// synchronous, so a successful upload lands directly on "processed".
type DocumentStatus string

const (
	DocStatusPending   DocumentStatus = "pending"
	DocStatusProcessed DocumentStatus = "processed"
	DocStatusError     DocumentStatus = "error"
)

/* =============================== Entities =============================== */

// Advocate is an authenticated legal practitioner. Email and bar number are
// globally unique; inactive advocates cannot authenticate.
type Advocate struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	FullName     string    `gorm:"not null" json:"full_name"`
	Phone        string    `json:"phone,omitempty"`
	BarNumber    string    `gorm:"uniqueIndex;not null" json:"bar_number"`
	LicenseState string    `gorm:"type:varchar(2);not null" json:"license_state"`
	FirmName     string    `json:"firm_name,omitempty"`
	IsActive     bool      `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Cases []Case `json:"-"`
}

// Client is a represented party. Visibility is intentionally global (not
// scoped per advocate); only cases carry ownership.
type Client struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email       string         `gorm:"uniqueIndex;not null" json:"email"`
	FullName    string         `gorm:"not null" json:"full_name"`
	Phone       string         `json:"phone,omitempty"`
	Address     datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"address"`
	CompanyName string         `json:"company_name,omitempty"`
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`

	Cases []Case `json:"-"`
}

// Case belongs to one advocate and one client. A case is visible and
// modifiable only by its owning advocate.
type Case struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	AdvocateID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"advocate_id"`
	ClientID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"client_id"`
	CaseNumber  string     `gorm:"not null" json:"case_number"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `json:"description,omitempty"`
	Status      CaseStatus `gorm:"type:varchar(20);default:'draft'" json:"status"`
	FilingDate  *time.Time `json:"filing_date,omitempty"`

	// Court-linked fields, populated from the external court-records API.
	CNR                string         `gorm:"column:cnr;type:varchar(100)" json:"cnr,omitempty"`
	CourtCaseTitle     string         `gorm:"type:varchar(255)" json:"court_case_title,omitempty"`
	CourtCaseType      string         `gorm:"type:varchar(100)" json:"court_case_type,omitempty"`
	FilingNumber       string         `gorm:"type:varchar(100)" json:"filing_number,omitempty"`
	RegistrationNumber string         `gorm:"type:varchar(100)" json:"registration_number,omitempty"`
	CourtStatus        datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"court_status"`
	PartiesDetails     datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"parties_details"`
	ActsSections       datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"acts_sections"`
	FIRDetails         datatypes.JSON `gorm:"column:fir_details;type:jsonb;default:'{}'" json:"fir_details"`
	CourtHistory       datatypes.JSON `gorm:"type:jsonb;default:'[]'" json:"court_history"`
	CaseMetadata       datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"case_metadata"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Documents []Document `json:"documents,omitempty"`
}

// Document is a stored file under a case. The storage object and the row are
// kept consistent: a failed storage write never leaves an orphan row, and a
// failed insert triggers a compensating object delete.
type Document struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CaseID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"case_id"`
	Title            string         `gorm:"not null" json:"title"`
	DocumentType     DocumentType   `gorm:"type:varchar(20);not null" json:"document_type"`
	Description      string         `json:"description,omitempty"`
	StoragePath      string         `gorm:"not null" json:"storage_path"`
	OriginalFilename string         `gorm:"not null" json:"original_filename"`
	FileSize         int64          `json:"file_size"`
	MimeType         string         `json:"mime_type,omitempty"`
	Status           DocumentStatus `gorm:"type:varchar(20);default:'pending'" json:"status"`
	Metadata         datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"metadata"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`

	Case Case `gorm:"foreignKey:CaseID;references:ID" json:"-"`
}

// CaseHistory is an audit log entry for important case changes.
type CaseHistory struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CaseID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"case_id"`
	ActorID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"actor_id"`
	Action    string     `gorm:"type:varchar(50);not null" json:"action"` // e.g. created, updated, document_uploaded, document_deleted
	OldStatus CaseStatus `gorm:"type:varchar(20)" json:"old_status,omitempty"`
	NewStatus CaseStatus `gorm:"type:varchar(20)" json:"new_status,omitempty"`
	Detail    string     `gorm:"type:text" json:"detail,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
