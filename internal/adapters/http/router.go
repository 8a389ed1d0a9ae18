package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/medsync/medsync-server/internal/core/domain"
	"github.com/medsync/medsync-server/internal/core/ports"
	"github.com/medsync/medsync-server/internal/observability/metrics"
)

const maxUploadBytes = 32 << 20

type Router struct {
	capture  ports.CaptureFlow
	batches  ports.BatchReader
	records  ports.RecordService
	search   ports.SearchService
	account  ports.AccountService
	exporter ports.RecordExporter

	httpMetrics *metrics.HTTPServerMetrics
	serviceName string

	rateLimitRPS   float64
	rateLimitBurst int
	maxConcurrent  int

	filesDir string
}

type RouterOptions struct {
	Metrics        *metrics.HTTPServerMetrics
	ServiceName    string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxConcurrent  int
	// FilesDir, when set, serves promoted documents under /files/ straight
	// from the local storage backend.
	FilesDir string
}

func NewRouter(
	capture ports.CaptureFlow,
	batches ports.BatchReader,
	records ports.RecordService,
	search ports.SearchService,
	account ports.AccountService,
	exporter ports.RecordExporter,
	options RouterOptions,
) *Router {
	serviceName := options.ServiceName
	if serviceName == "" {
		serviceName = "medsync-api"
	}
	return &Router{
		capture:        capture,
		batches:        batches,
		records:        records,
		search:         search,
		account:        account,
		exporter:       exporter,
		httpMetrics:    options.Metrics,
		serviceName:    serviceName,
		rateLimitRPS:   options.RateLimitRPS,
		rateLimitBurst: options.RateLimitBurst,
		maxConcurrent:  options.MaxConcurrent,
		filesDir:       options.FilesDir,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	if rt.httpMetrics != nil {
		mux.Handle("/metrics", rt.httpMetrics.Handler())
	}
	if rt.filesDir != "" {
		mux.Handle("/files/", http.StripPrefix("/files/", http.FileServer(http.Dir(rt.filesDir))))
	}

	mux.HandleFunc("/v1/me", rt.withAuth(rt.me))
	mux.HandleFunc("/v1/me/consent", rt.withAuth(rt.setConsent))
	mux.HandleFunc("/v1/logout", rt.withAuth(rt.logout))
	mux.HandleFunc("/v1/capture/sessions", rt.withAuth(rt.startCaptureSession))
	mux.HandleFunc("/v1/capture/sessions/", rt.withAuth(rt.captureSessionByID))
	mux.HandleFunc("/v1/batches/", rt.withAuth(rt.batchProgress))
	mux.HandleFunc("/v1/records", rt.withAuth(rt.listRecords))
	mux.HandleFunc("/v1/records/folders", rt.withAuth(rt.recordFolders))
	mux.HandleFunc("/v1/records/export", rt.withAuth(rt.exportRecords))
	mux.HandleFunc("/v1/records/", rt.withAuth(rt.recordByID))
	mux.HandleFunc("/v1/search", rt.withAuth(rt.searchRecords))

	var handler http.Handler = mux
	if rt.httpMetrics != nil {
		handler = rt.httpMetrics.Middleware(rt.serviceName, handler)
	}
	handler = backpressureMiddleware(handler, rt.maxConcurrent, 2*time.Second)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type authedHandler func(w http.ResponseWriter, r *http.Request, sess domain.Session)

// withAuth resolves the bearer token into an explicit session passed to the
// handler; no handler runs unauthenticated.
func (rt *Router) withAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		sess, err := rt.account.Authenticate(r.Context(), token)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		next(w, r, sess)
	}
}

func (rt *Router) me(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user, err := rt.account.Me(r.Context(), sess)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (rt *Router) setConsent(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		Granted bool `json:"granted"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	user, err := rt.account.SetConsent(r.Context(), sess, req.Granted)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (rt *Router) logout(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := rt.account.Logout(r.Context(), sess); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (rt *Router) startCaptureSession(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := sess.RequireConsent(); err != nil {
		writeDomainError(w, err)
		return
	}
	capture, err := rt.capture.StartSession(r.Context(), sess)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, capture)
}

// captureSessionByID handles GET /v1/capture/sessions/{id} and
// POST /v1/capture/sessions/{id}/{action}.
func (rt *Router) captureSessionByID(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/capture/sessions/")
	sessionID, action, _ := strings.Cut(rest, "/")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session id is required")
		return
	}

	if action == "" {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		capture, err := rt.capture.GetSession(r.Context(), sess, sessionID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, capture)
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := sess.RequireConsent(); err != nil {
		writeDomainError(w, err)
		return
	}
	rt.captureAction(w, r, sess, sessionID, action)
}

func (rt *Router) captureAction(w http.ResponseWriter, r *http.Request, sess domain.Session, sessionID, action string) {
	ctx := r.Context()
	switch action {
	case "request-upload":
		capture, err := rt.capture.RequestUpload(ctx, sess, sessionID)
		respondSession(w, capture, err)
	case "choose-camera":
		capture, err := rt.capture.ChooseCamera(ctx, sess, sessionID)
		respondSession(w, capture, err)
	case "capture":
		file, ok := rt.singleUpload(w, r)
		if !ok {
			return
		}
		capture, err := rt.capture.CameraCaptured(ctx, sess, sessionID, file)
		respondSession(w, capture, err)
	case "gallery":
		files, ok := rt.multiUpload(w, r)
		if !ok {
			return
		}
		capture, err := rt.capture.GallerySelected(ctx, sess, sessionID, files)
		respondSession(w, capture, err)
	case "retake":
		capture, err := rt.capture.Retake(ctx, sess, sessionID)
		respondSession(w, capture, err)
	case "add-another":
		capture, err := rt.capture.AddAnother(ctx, sess, sessionID)
		respondSession(w, capture, err)
	case "continue":
		draft, capture, err := rt.capture.ContinueToPreview(ctx, sess, sessionID)
		if rt.httpMetrics != nil {
			rt.httpMetrics.RecordExtraction(rt.serviceName, err)
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"draft": draft, "session": capture})
	case "save":
		var draft ports.ReviewDraft
		if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		record, capture, err := rt.capture.SaveDocument(ctx, sess, sessionID, draft)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"record": record, "session": capture})
	case "upload-all":
		batch, capture, err := rt.capture.UploadAll(ctx, sess, sessionID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"batch": batch, "session": capture})
	case "scan-another":
		capture, err := rt.capture.ScanAnother(ctx, sess, sessionID)
		respondSession(w, capture, err)
	case "cancel":
		capture, err := rt.capture.Cancel(ctx, sess, sessionID)
		respondSession(w, capture, err)
	default:
		writeError(w, http.StatusNotFound, "unknown capture action")
	}
}

func (rt *Router) singleUpload(w http.ResponseWriter, r *http.Request) (ports.IncomingFile, bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return ports.IncomingFile{}, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return ports.IncomingFile{}, false
	}
	if rt.httpMetrics != nil {
		rt.httpMetrics.RecordUploadBytes(rt.serviceName, header.Size)
	}
	// The handler consumes the reader before returning, so no explicit close
	// is needed beyond the request body lifecycle.
	return ports.IncomingFile{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Data:        file,
	}, true
}

func (rt *Router) multiUpload(w http.ResponseWriter, r *http.Request) ([]ports.IncomingFile, bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return nil, false
	}
	if r.MultipartForm == nil {
		writeError(w, http.StatusBadRequest, "multipart field 'files' is required")
		return nil, false
	}

	headers := r.MultipartForm.File["files"]
	files := make([]ports.IncomingFile, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable multipart file")
			return nil, false
		}
		if rt.httpMetrics != nil {
			rt.httpMetrics.RecordUploadBytes(rt.serviceName, header.Size)
		}
		files = append(files, ports.IncomingFile{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Data:        f,
		})
	}
	return files, true
}

func (rt *Router) batchProgress(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	batchID := strings.TrimPrefix(r.URL.Path, "/v1/batches/")
	if batchID == "" || strings.Contains(batchID, "/") {
		writeError(w, http.StatusBadRequest, "batch id is required")
		return
	}
	batch, items, err := rt.batches.Progress(r.Context(), sess, batchID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"batch": batch, "items": items})
}

func (rt *Router) listRecords(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	records, err := rt.records.List(r.Context(), sess, r.URL.Query().Get("sort"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (rt *Router) recordFolders(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	folders, err := rt.records.Folders(r.Context(), sess)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"folders": folders})
}

func (rt *Router) exportRecords(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	payload, err := rt.exporter.ExportXLSX(r.Context(), sess)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="medical-records.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (rt *Router) recordByID(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/records/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "record id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		record, err := rt.records.Get(r.Context(), sess, id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
	case http.MethodPatch, http.MethodPut:
		var patch domain.RecordUpdate
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		record, err := rt.records.Update(r.Context(), sess, id, patch)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (rt *Router) searchRecords(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	start := time.Now()
	records, err := rt.search.Search(r.Context(), sess, req.Query)
	if rt.httpMetrics != nil {
		rt.httpMetrics.RecordSearch(rt.serviceName, len(records), time.Since(start), err)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func respondSession(w http.ResponseWriter, capture *domain.CaptureSession, err error) {
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, capture)
}

func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, mapErrorToHTTPStatus(err), err.Error())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
