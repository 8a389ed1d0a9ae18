package domain

import (
	"fmt"
	"strings"
)

// CaptureStep is the screen-level pipeline state. Exactly one step is active
// per capture session.
type CaptureStep string

const (
	StepHome    CaptureStep = "home"
	StepOptions CaptureStep = "options"
	StepCamera  CaptureStep = "camera"
	StepConfirm CaptureStep = "confirm"
	StepPreview CaptureStep = "preview"
	StepBatch   CaptureStep = "batch"
	StepSearch  CaptureStep = "search"
	StepSaved   CaptureStep = "saved"
)

// SourceImage is one staged capture: the raw bytes already live under
// StagingKey in object storage, owned exclusively by the active session.
type SourceImage struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	StagingKey  string `json:"-"`
}

// IsImageContentType filters gallery selections: anything that is not an
// image is dropped silently.
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

// FilterImages keeps image-typed entries only, preserving order.
func FilterImages(images []SourceImage) []SourceImage {
	kept := make([]SourceImage, 0, len(images))
	for _, img := range images {
		if IsImageContentType(img.ContentType) {
			kept = append(kept, img)
		}
	}
	return kept
}

// CaptureSession is the server-side counterpart of one user's capture
// pipeline run: the active step, the image under review, and the FIFO
// multi-shot queue. It is ephemeral and never outlives a cancellation.
type CaptureSession struct {
	ID         string        `json:"id"`
	UserID     string        `json:"user_id"`
	Step       CaptureStep   `json:"step"`
	Current    *SourceImage  `json:"current,omitempty"`
	Queue      []SourceImage `json:"queue,omitempty"`
	FromCamera bool          `json:"from_camera"`
	BatchID    string        `json:"batch_id,omitempty"`
}

func NewCaptureSession(id, userID string) *CaptureSession {
	return &CaptureSession{ID: id, UserID: userID, Step: StepHome}
}

func (s *CaptureSession) transitionError(to CaptureStep) error {
	return WrapError(ErrInvalidTransition, "capture step",
		fmt.Errorf("%s -> %s", s.Step, to))
}

// RequestUpload opens the upload options sheet.
func (s *CaptureSession) RequestUpload() error {
	if s.Step != StepHome {
		return s.transitionError(StepOptions)
	}
	s.Step = StepOptions
	return nil
}

// ChooseCamera starts the camera surface from the options sheet.
func (s *CaptureSession) ChooseCamera() error {
	if s.Step != StepOptions {
		return s.transitionError(StepCamera)
	}
	s.Step = StepCamera
	return nil
}

// CameraCaptured records exactly one camera shot and moves to confirmation.
func (s *CaptureSession) CameraCaptured(img SourceImage) error {
	if s.Step != StepCamera {
		return s.transitionError(StepConfirm)
	}
	s.Current = &img
	s.FromCamera = true
	s.Step = StepConfirm
	return nil
}

// GallerySingle enters the single-document confirm flow for one gallery pick.
// The native picker has no step of its own; selection lands straight here.
func (s *CaptureSession) GallerySingle(img SourceImage) error {
	if s.Step != StepOptions {
		return s.transitionError(StepConfirm)
	}
	s.Current = &img
	s.FromCamera = false
	s.Step = StepConfirm
	return nil
}

// BeginBatch moves a multi-image gallery selection straight to batch
// processing, bypassing per-item confirmation.
func (s *CaptureSession) BeginBatch(batchID string) error {
	if s.Step != StepOptions && s.Step != StepConfirm {
		return s.transitionError(StepBatch)
	}
	s.Current = nil
	s.Queue = nil
	s.BatchID = batchID
	s.Step = StepBatch
	return nil
}

// Retake discards the image under confirmation and returns to the camera.
// The caller purges the returned staging key.
func (s *CaptureSession) Retake() (string, error) {
	if s.Step != StepConfirm || s.Current == nil {
		return "", s.transitionError(StepCamera)
	}
	key := s.Current.StagingKey
	s.Current = nil
	s.Step = StepCamera
	return key, nil
}

// AddAnother appends the confirmed shot to the FIFO queue and re-triggers the
// camera instead of proceeding.
func (s *CaptureSession) AddAnother() error {
	if s.Step != StepConfirm || s.Current == nil {
		return s.transitionError(StepCamera)
	}
	s.Queue = append(s.Queue, *s.Current)
	s.Current = nil
	s.Step = StepCamera
	return nil
}

// ContinueToPreview advances a single confirmed image to the review form.
func (s *CaptureSession) ContinueToPreview() (SourceImage, error) {
	if s.Step != StepConfirm || s.Current == nil {
		return SourceImage{}, s.transitionError(StepPreview)
	}
	img := *s.Current
	s.Step = StepPreview
	return img, nil
}

// BackToConfirm returns from the review form to the confirmation screen.
func (s *CaptureSession) BackToConfirm() error {
	if s.Step != StepPreview || s.Current == nil {
		return s.transitionError(StepConfirm)
	}
	s.Step = StepConfirm
	return nil
}

// DrainForBatch empties the multi-shot queue (plus the image still under
// confirmation, if any) for batch submission, in FIFO order.
func (s *CaptureSession) DrainForBatch() ([]SourceImage, error) {
	if s.Step != StepConfirm {
		return nil, s.transitionError(StepBatch)
	}
	images := s.Queue
	if s.Current != nil {
		images = append(images, *s.Current)
	}
	if len(images) == 0 {
		return nil, WrapError(ErrInvalidInput, "drain batch queue", fmt.Errorf("no queued images"))
	}
	s.Queue = nil
	s.Current = nil
	return images, nil
}

// Saved settles the review flow after persistence. Camera-sourced entries get
// the "scan another" surface; gallery-sourced entries go straight home.
func (s *CaptureSession) Saved() (CaptureStep, error) {
	if s.Step != StepPreview {
		return s.Step, s.transitionError(StepSaved)
	}
	s.Current = nil
	if s.FromCamera {
		s.Step = StepSaved
	} else {
		s.reset()
	}
	return s.Step, nil
}

// ScanAnother loops from the saved surface back to the camera.
func (s *CaptureSession) ScanAnother() error {
	if s.Step != StepSaved {
		return s.transitionError(StepCamera)
	}
	s.Step = StepCamera
	return nil
}

// OpenSearch shows the search overlay.
func (s *CaptureSession) OpenSearch() error {
	if s.Step != StepHome {
		return s.transitionError(StepSearch)
	}
	s.Step = StepSearch
	return nil
}

// Cancel is valid from any step: it returns to home and hands back every
// staged key so the caller can purge the blobs. A later capture never sees
// stale state from a cancelled run.
func (s *CaptureSession) Cancel() []string {
	keys := make([]string, 0, len(s.Queue)+1)
	for _, img := range s.Queue {
		keys = append(keys, img.StagingKey)
	}
	if s.Current != nil {
		keys = append(keys, s.Current.StagingKey)
	}
	s.reset()
	return keys
}

func (s *CaptureSession) reset() {
	s.Step = StepHome
	s.Current = nil
	s.Queue = nil
	s.FromCamera = false
	s.BatchID = ""
}
