package httpadapter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"schoolboard/internal/core/domain"
	"schoolboard/internal/core/service/resource"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Options struct {
	// PublicPath is the URL prefix uploads are served under, PublicDir the directory behind it
	PublicPath string
	PublicDir  string

	MaxUploadSize  int64
	AllowOrigins   []string
	TrustProxy     bool
	RequestTimeout time.Duration
}

type Handler struct {
	services []resource.Service
	opts     Options
}

func NewHandler(services []resource.Service, opts Options) *Handler {
	if opts.PublicPath == "" {
		opts.PublicPath = "/public"
	}
	opts.PublicPath = "/" + strings.Trim(opts.PublicPath, "/")

	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = resource.DefaultMaxUploadSize
	}

	return &Handler{
		services: services,
		opts:     opts,
	}
}

func (h *Handler) handleError(w http.ResponseWriter, spec domain.ResourceSpec, err error) {
	var maxBytesError *http.MaxBytesError
	var httpStatusCode int
	var msg string

	switch {

	// Not Found Errors
	case errors.Is(err, resource.ErrRecordNotFound):
		httpStatusCode, msg = http.StatusNotFound, spec.Messages.NotFound

	// Bad Request Errors
	case errors.Is(err, resource.ErrInvalidFileType):
		httpStatusCode, msg = http.StatusBadRequest, "Only image files are allowed!"
	case errors.Is(err, resource.ErrFileTooLarge):
		httpStatusCode, msg = http.StatusBadRequest, fmt.Sprintf("File too large, the limit is %d bytes", h.opts.MaxUploadSize)
	case errors.Is(err, resource.ErrInvalidUpload), errors.Is(err, resource.ErrInvalidForm):
		httpStatusCode, msg = http.StatusBadRequest, err.Error()

	case errors.As(err, &maxBytesError):
		httpStatusCode, msg = http.StatusRequestEntityTooLarge, "Request body too large"

	case errors.Is(err, context.DeadlineExceeded):
		httpStatusCode, msg = http.StatusGatewayTimeout, "Request timed out"

	// Server Errors with a fixed message, the cause stays in the log
	case errors.Is(err, resource.ErrUpload):
		httpStatusCode, msg = http.StatusInternalServerError, "Image upload failed."
	case errors.Is(err, resource.ErrStorageRead):
		httpStatusCode, msg = http.StatusInternalServerError, "Error reading database file."
	case errors.Is(err, resource.ErrMalformedData):
		httpStatusCode, msg = http.StatusInternalServerError, "Error parsing JSON data."
	case errors.Is(err, resource.ErrStorageWrite):
		httpStatusCode, msg = http.StatusInternalServerError, "Error saving data."

	// Default to Server Error
	default:
		httpStatusCode, msg = http.StatusInternalServerError, "Internal server error"
	}

	if httpStatusCode >= http.StatusInternalServerError {
		log.Printf("ERROR: Unhandled error from %s service: %v", spec.Name, err)
	}

	writeError(w, httpStatusCode, msg)
}

func (h *Handler) SetupRoutes() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	if h.opts.TrustProxy {
		router.Use(middleware.RealIP)
	}
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.opts.AllowOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		MaxAge:         300,
	}))
	router.Use(SafeHeaders)
	if h.opts.RequestTimeout > 0 {
		router.Use(middleware.Timeout(h.opts.RequestTimeout))
	}

	// set before mounting so every sub-router inherits them
	router.NotFound(h.HandleUnknownRoute)
	router.MethodNotAllowed(h.HandleUnknownRoute)

	static := h.staticHandler()
	router.Get(h.opts.PublicPath+"/*", static)
	router.Head(h.opts.PublicPath+"/*", static)

	for _, svc := range h.services {
		router.Route("/"+svc.Spec().Name, func(r chi.Router) {
			r.Get("/", h.HandleListRecords(svc))

			// write operations will have size limits
			r.With(RequestSizeLimit(h.opts.MaxUploadSize+multipartOverhead)).Post("/", h.HandleCreateRecord(svc))

			r.Delete("/{id}", h.HandleDeleteRecord(svc))
		})
	}

	return router
}

func (h *Handler) HandleListRecords(svc resource.Service) http.HandlerFunc {
	spec := svc.Spec()

	return func(w http.ResponseWriter, r *http.Request) {
		// call the core service
		records, err := svc.ListRecords(r.Context())
		if err != nil {
			h.handleError(w, spec, err)
			return
		}

		writeJSON(w, http.StatusOK, h.presentAll(r, spec, records))
	}
}

func (h *Handler) HandleCreateRecord(svc resource.Service) http.HandlerFunc {
	spec := svc.Spec()

	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		req, err := decodeCreateRequest(r, spec)
		if err != nil {
			log.Printf("WARN: Failed to decode request for '%s': %v", spec.Name, err)
			h.handleError(w, spec, err)
			return
		}
		defer req.Close()

		record, err := svc.CreateRecord(r.Context(), req.fields, req.upload)
		if err != nil {
			h.handleError(w, spec, err)
			return
		}

		writeJSON(w, http.StatusCreated, createdResponse{
			Message:  spec.Messages.Created,
			NewEntry: h.present(r, spec, record),
		})
	}
}

func (h *Handler) HandleDeleteRecord(svc resource.Service) http.HandlerFunc {
	spec := svc.Spec()

	return func(w http.ResponseWriter, r *http.Request) {
		// an id that can never match is just a record that does not exist
		id, err := domain.ParseIDParam(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, spec.Messages.NotFound)
			return
		}

		deleted, err := svc.DeleteRecord(r.Context(), id)
		if err != nil {
			h.handleError(w, spec, err)
			return
		}

		writeJSON(w, http.StatusOK, deletedResponse{
			Message:      spec.Messages.Deleted,
			DeletedEntry: h.present(r, spec, deleted),
		})
	}
}

func (h *Handler) HandleUnknownRoute(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprintf(w, "Unknown route: %s", r.URL.RequestURI())
}
