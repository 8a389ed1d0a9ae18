package ports

import (
	"context"
	"io"

	"github.com/medsync/medsync-server/internal/core/domain"
)

// IncomingFile is one uploaded blob as received at the HTTP boundary.
type IncomingFile struct {
	Filename    string
	ContentType string
	Size        int64
	Data        io.Reader
}

// ReviewDraft is the pre-filled editable form returned by the review flow.
type ReviewDraft struct {
	Fields      domain.ExtractionResult `json:"fields"`
	DocumentURL string                  `json:"document_url"`
}

// CaptureFlow drives the screen-level pipeline: step transitions, the
// multi-shot queue, and handoff into the review and batch flows.
type CaptureFlow interface {
	StartSession(ctx context.Context, sess domain.Session) (*domain.CaptureSession, error)
	GetSession(ctx context.Context, sess domain.Session, sessionID string) (*domain.CaptureSession, error)
	RequestUpload(ctx context.Context, sess domain.Session, sessionID string) (*domain.CaptureSession, error)
	ChooseCamera(ctx context.Context, sess domain.Session, sessionID string) (*domain.CaptureSession, error)
	CameraCaptured(ctx context.Context, sess domain.Session, sessionID string, file IncomingFile) (*domain.CaptureSession, error)
	GallerySelected(ctx context.Context, sess domain.Session, sessionID string, files []IncomingFile) (*domain.CaptureSession, error)
	Retake(ctx context.Context, sess domain.Session, sessionID string) (*domain.CaptureSession, error)
	AddAnother(ctx context.Context, sess domain.Session, sessionID string) (*domain.CaptureSession, error)
	ContinueToPreview(ctx context.Context, sess domain.Session, sessionID string) (*ReviewDraft, *domain.CaptureSession, error)
	SaveDocument(ctx context.Context, sess domain.Session, sessionID string, draft ReviewDraft) (*domain.DocumentRecord, *domain.CaptureSession, error)
	UploadAll(ctx context.Context, sess domain.Session, sessionID string) (*domain.Batch, *domain.CaptureSession, error)
	ScanAnother(ctx context.Context, sess domain.Session, sessionID string) (*domain.CaptureSession, error)
	Cancel(ctx context.Context, sess domain.Session, sessionID string) (*domain.CaptureSession, error)
}

// BatchReader exposes incremental batch progress.
type BatchReader interface {
	Progress(ctx context.Context, sess domain.Session, batchID string) (*domain.Batch, []domain.BatchItem, error)
}

// BatchRunner processes one submitted batch; driven by the worker.
type BatchRunner interface {
	Run(ctx context.Context, batchID string) error
}

// RecordService is the records browser: list, folder grouping, detail edit.
type RecordService interface {
	List(ctx context.Context, sess domain.Session, sortSpec string) ([]domain.DocumentRecord, error)
	Folders(ctx context.Context, sess domain.Session) (map[domain.DocumentType][]domain.DocumentRecord, error)
	Get(ctx context.Context, sess domain.Session, id string) (*domain.DocumentRecord, error)
	Update(ctx context.Context, sess domain.Session, id string, patch domain.RecordUpdate) (*domain.DocumentRecord, error)
}

// SearchService answers free-text queries over the user's records.
type SearchService interface {
	Search(ctx context.Context, sess domain.Session, query string) ([]domain.DocumentRecord, error)
}

// AccountService covers session context, consent, and sign-out.
type AccountService interface {
	Authenticate(ctx context.Context, token string) (domain.Session, error)
	Me(ctx context.Context, sess domain.Session) (*domain.User, error)
	SetConsent(ctx context.Context, sess domain.Session, granted bool) (*domain.User, error)
	Logout(ctx context.Context, sess domain.Session) error
}

// RecordExporter renders the user's records as a spreadsheet download.
type RecordExporter interface {
	ExportXLSX(ctx context.Context, sess domain.Session) ([]byte, error)
}
