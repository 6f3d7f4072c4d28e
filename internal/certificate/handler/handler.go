// Package handler exposes the certificate service as a JSON API for the
// browser client. It translates requests and results and holds no state.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"eduverify/internal/certificate/models"
	"eduverify/pkg/domain"
	dErrors "eduverify/pkg/domain-errors"
	"eduverify/pkg/platform/httputil"
	"eduverify/pkg/requestcontext"
)

const defaultMaxUploadBytes = 10 << 20

// Service defines the certificate operations the handler exposes.
type Service interface {
	List(ctx context.Context, student domain.Address) ([]models.Certificate, error)
	Issue(ctx context.Context, student domain.Address, doc models.Document) (*models.IssueResult, error)
	Revoke(ctx context.Context, student domain.Address, cert models.Certificate) (*models.RevokeResult, error)
	RevokeAt(ctx context.Context, student domain.Address, index int) (*models.RevokeResult, error)
	Verify(ctx context.Context, q models.VerificationQuery) (models.VerificationResult, error)
}

// Handler handles certificate endpoints.
type Handler struct {
	service        Service
	logger         *slog.Logger
	maxUploadBytes int64
}

type Option func(*Handler)

// WithMaxUploadBytes bounds the multipart body accepted by the issue route.
func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &Handler{service: service, logger: logger, maxUploadBytes: defaultMaxUploadBytes}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the certificate routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/certificates", func(r chi.Router) {
		r.Post("/issue", h.handleIssue)
		r.Post("/revoke", h.handleRevoke)
		r.Get("/verify/{student}/{index}/{hash}", h.handleVerify)
		r.Get("/{student}", h.handleList)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	student, err := domain.ParseAddress(chi.URLParam(r, "student"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	certs, err := h.service.List(ctx, student)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list certificates",
			"request_id", requestID,
			"student", student,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCertificates(certs))
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, err := parseIssueRequest(w, r, h.maxUploadBytes)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid issue request",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.Issue(ctx, req.student, req.document)
	if err != nil {
		h.logWriteFailure(ctx, "issue", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toIssueResponse(res))
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RevokeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	var (
		res *models.RevokeResult
		err error
	)
	if req.Index != nil {
		res, err = h.service.RevokeAt(ctx, req.student, *req.Index)
	} else {
		res, err = h.service.Revoke(ctx, req.student, req.certificate())
	}
	if err != nil {
		h.logWriteFailure(ctx, "revoke", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRevokeResponse(res))
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, err := parseVerifyParams(chi.URLParam(r, "student"), chi.URLParam(r, "index"), chi.URLParam(r, "hash"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.Verify(ctx, q)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if res.Outcome == models.OutcomeCheckFailed {
		h.logger.WarnContext(ctx, "verification check failed",
			"request_id", requestcontext.RequestID(ctx),
			"student", q.Student,
			"index", q.Index,
			"error", res.Err,
		)
	}
	httputil.WriteJSON(w, http.StatusOK, toVerifyResponse(res))
}

// logWriteFailure logs client mistakes at warn and everything else at error.
func (h *Handler) logWriteFailure(ctx context.Context, op string, err error) {
	level := slog.LevelError
	var de *dErrors.Error
	if errors.As(err, &de) && httputil.StatusFor(de.Code) < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	h.logger.Log(ctx, level, "certificate "+op+" failed",
		"request_id", requestcontext.RequestID(ctx),
		"code", dErrors.CodeOf(err),
		"error", err,
	)
}
