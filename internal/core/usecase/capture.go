package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sync"

	"github.com/google/uuid"

	"github.com/medsync/medsync-server/internal/core/domain"
	"github.com/medsync/medsync-server/internal/core/ports"
)

// CaptureFlowUseCase owns the in-memory capture sessions and drives the step
// state machine: staging incoming images, the multi-shot queue, and handoff
// into the review and batch flows. Sessions are ephemeral; cancellation
// purges every staged blob.
type CaptureFlowUseCase struct {
	storage ports.ObjectStorage
	review  *ReviewUseCase
	batch   *BatchUseCase

	mu       sync.Mutex
	sessions map[string]*domain.CaptureSession

	newID func() string
}

func NewCaptureFlowUseCase(
	storage ports.ObjectStorage,
	review *ReviewUseCase,
	batch *BatchUseCase,
) *CaptureFlowUseCase {
	return &CaptureFlowUseCase{
		storage:  storage,
		review:   review,
		batch:    batch,
		sessions: make(map[string]*domain.CaptureSession),
		newID:    uuid.NewString,
	}
}

func (uc *CaptureFlowUseCase) StartSession(_ context.Context, sess domain.Session) (*domain.CaptureSession, error) {
	capture := domain.NewCaptureSession(uc.newID(), sess.User.ID)
	uc.mu.Lock()
	uc.sessions[capture.ID] = capture
	uc.mu.Unlock()
	return snapshot(capture), nil
}

func (uc *CaptureFlowUseCase) GetSession(_ context.Context, sess domain.Session, sessionID string) (*domain.CaptureSession, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	capture, err := uc.lookup(sess, sessionID)
	if err != nil {
		return nil, err
	}
	return snapshot(capture), nil
}

func (uc *CaptureFlowUseCase) RequestUpload(_ context.Context, sess domain.Session, sessionID string) (*domain.CaptureSession, error) {
	return uc.transition(sess, sessionID, func(c *domain.CaptureSession) error {
		return c.RequestUpload()
	})
}

func (uc *CaptureFlowUseCase) ChooseCamera(_ context.Context, sess domain.Session, sessionID string) (*domain.CaptureSession, error) {
	return uc.transition(sess, sessionID, func(c *domain.CaptureSession) error {
		return c.ChooseCamera()
	})
}

// CameraCaptured stages exactly one camera shot and moves to confirmation.
func (uc *CaptureFlowUseCase) CameraCaptured(ctx context.Context, sess domain.Session, sessionID string, file ports.IncomingFile) (*domain.CaptureSession, error) {
	img, err := uc.stage(ctx, file)
	if err != nil {
		return nil, err
	}
	return uc.transition(sess, sessionID, func(c *domain.CaptureSession) error {
		return c.CameraCaptured(img)
	})
}

// GallerySelected normalizes a multi-select: non-image entries are dropped
// silently, an empty filtered selection is a no-op, one image enters the
// confirm flow, and several go straight to batch processing.
func (uc *CaptureFlowUseCase) GallerySelected(ctx context.Context, sess domain.Session, sessionID string, files []ports.IncomingFile) (*domain.CaptureSession, error) {
	imageFiles := make([]ports.IncomingFile, 0, len(files))
	for _, f := range files {
		if domain.IsImageContentType(f.ContentType) {
			imageFiles = append(imageFiles, f)
		}
	}

	switch len(imageFiles) {
	case 0:
		// Nothing qualifying selected: no state transition.
		return uc.GetSession(ctx, sess, sessionID)
	case 1:
		img, err := uc.stage(ctx, imageFiles[0])
		if err != nil {
			return nil, err
		}
		return uc.transition(sess, sessionID, func(c *domain.CaptureSession) error {
			return c.GallerySingle(img)
		})
	default:
		images := make([]domain.SourceImage, 0, len(imageFiles))
		for _, f := range imageFiles {
			img, err := uc.stage(ctx, f)
			if err != nil {
				uc.discardAll(ctx, images)
				return nil, err
			}
			images = append(images, img)
		}
		batch, err := uc.batch.Submit(ctx, sess.User.ID, images)
		if err != nil {
			uc.discardAll(ctx, images)
			return nil, err
		}
		return uc.transition(sess, sessionID, func(c *domain.CaptureSession) error {
			return c.BeginBatch(batch.ID)
		})
	}
}

func (uc *CaptureFlowUseCase) Retake(ctx context.Context, sess domain.Session, sessionID string) (*domain.CaptureSession, error) {
	var stagingKey string
	capture, err := uc.transition(sess, sessionID, func(c *domain.CaptureSession) error {
		key, err := c.Retake()
		stagingKey = key
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.discardKey(ctx, stagingKey)
	return capture, nil
}

func (uc *CaptureFlowUseCase) AddAnother(_ context.Context, sess domain.Session, sessionID string) (*domain.CaptureSession, error) {
	return uc.transition(sess, sessionID, func(c *domain.CaptureSession) error {
		return c.AddAnother()
	})
}

// ContinueToPreview advances to the review form and returns the pre-filled
// draft from the upload/extraction attempt.
func (uc *CaptureFlowUseCase) ContinueToPreview(ctx context.Context, sess domain.Session, sessionID string) (*ports.ReviewDraft, *domain.CaptureSession, error) {
	var img domain.SourceImage
	capture, err := uc.transition(sess, sessionID, func(c *domain.CaptureSession) error {
		current, err := c.ContinueToPreview()
		img = current
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	draft, err := uc.review.Start(ctx, sess, img)
	if err != nil {
		// The form cannot open without an uploaded document; fall back to
		// the confirm screen so the user can retry or retake.
		if _, backErr := uc.transition(sess, sessionID, func(c *domain.CaptureSession) error {
			return c.BackToConfirm()
		}); backErr != nil {
			slog.Warn("review_rollback_failed", "session_id", sessionID, "error", backErr)
		}
		return nil, nil, err
	}
	return draft, capture, nil
}

// SaveDocument persists the edited draft, settles the session, and purges the
// staged source image.
func (uc *CaptureFlowUseCase) SaveDocument(ctx context.Context, sess domain.Session, sessionID string, draft ports.ReviewDraft) (*domain.DocumentRecord, *domain.CaptureSession, error) {
	rec, err := uc.review.Confirm(ctx, sess, draft)
	if err != nil {
		return nil, nil, err
	}

	var stagingKey string
	capture, err := uc.transition(sess, sessionID, func(c *domain.CaptureSession) error {
		if c.Current != nil {
			stagingKey = c.Current.StagingKey
		}
		_, err := c.Saved()
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	uc.discardKey(ctx, stagingKey)
	return rec, capture, nil
}

// UploadAll drains the multi-shot queue into a batch submission.
func (uc *CaptureFlowUseCase) UploadAll(ctx context.Context, sess domain.Session, sessionID string) (*domain.Batch, *domain.CaptureSession, error) {
	uc.mu.Lock()
	capture, err := uc.lookup(sess, sessionID)
	if err != nil {
		uc.mu.Unlock()
		return nil, nil, err
	}
	images, err := capture.DrainForBatch()
	uc.mu.Unlock()
	if err != nil {
		return nil, nil, err
	}

	batch, err := uc.batch.Submit(ctx, sess.User.ID, images)
	if err != nil {
		return nil, nil, err
	}

	capture2, err := uc.transition(sess, sessionID, func(c *domain.CaptureSession) error {
		return c.BeginBatch(batch.ID)
	})
	if err != nil {
		return nil, nil, err
	}
	return batch, capture2, nil
}

func (uc *CaptureFlowUseCase) ScanAnother(_ context.Context, sess domain.Session, sessionID string) (*domain.CaptureSession, error) {
	return uc.transition(sess, sessionID, func(c *domain.CaptureSession) error {
		return c.ScanAnother()
	})
}

// Cancel returns the session to home from any step and purges every staged
// blob that belonged to the run.
func (uc *CaptureFlowUseCase) Cancel(ctx context.Context, sess domain.Session, sessionID string) (*domain.CaptureSession, error) {
	uc.mu.Lock()
	capture, err := uc.lookup(sess, sessionID)
	if err != nil {
		uc.mu.Unlock()
		return nil, err
	}
	keys := capture.Cancel()
	out := snapshot(capture)
	uc.mu.Unlock()

	for _, key := range keys {
		uc.discardKey(ctx, key)
	}
	return out, nil
}

func (uc *CaptureFlowUseCase) lookup(sess domain.Session, sessionID string) (*domain.CaptureSession, error) {
	capture, ok := uc.sessions[sessionID]
	if !ok || capture.UserID != sess.User.ID {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "lookup capture session", fmt.Errorf("session %s", sessionID))
	}
	return capture, nil
}

func (uc *CaptureFlowUseCase) transition(sess domain.Session, sessionID string, apply func(*domain.CaptureSession) error) (*domain.CaptureSession, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	capture, err := uc.lookup(sess, sessionID)
	if err != nil {
		return nil, err
	}
	if err := apply(capture); err != nil {
		return nil, err
	}
	return snapshot(capture), nil
}

func (uc *CaptureFlowUseCase) stage(ctx context.Context, file ports.IncomingFile) (domain.SourceImage, error) {
	id := uc.newID()
	key := path.Join("staging", id+"_"+path.Base(file.Filename))
	if err := uc.storage.Stage(ctx, key, file.ContentType, file.Data, file.Size); err != nil {
		return domain.SourceImage{}, domain.WrapError(domain.ErrUploadFailed, "stage capture", err)
	}
	return domain.SourceImage{
		ID:          id,
		Filename:    file.Filename,
		ContentType: file.ContentType,
		Size:        file.Size,
		StagingKey:  key,
	}, nil
}

func (uc *CaptureFlowUseCase) discardKey(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := uc.storage.Discard(ctx, key); err != nil {
		slog.Warn("staging_discard_failed", "key", key, "error", err)
	}
}

func (uc *CaptureFlowUseCase) discardAll(ctx context.Context, images []domain.SourceImage) {
	for _, img := range images {
		uc.discardKey(ctx, img.StagingKey)
	}
}

func snapshot(capture *domain.CaptureSession) *domain.CaptureSession {
	out := *capture
	if capture.Current != nil {
		current := *capture.Current
		out.Current = &current
	}
	out.Queue = append([]domain.SourceImage(nil), capture.Queue...)
	return &out
}
