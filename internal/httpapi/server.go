package httpapi

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"imagequery/internal/hosting"
	"imagequery/internal/imagequery"
	"imagequery/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Process(ctx context.Context, req imagequery.Request) (string, error)
	Ready() bool
}

// Form field names accepted by POST /process-image.
const (
	fieldImage = "image"
	fieldQuery = "query"
)

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5, "application/json", "text/plain"))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Post("/process-image", processImageHandler(svc))

	if mediaDir != "" {
		r.Get(hosting.MediaPrefix+"*", http.StripPrefix(hosting.MediaPrefix, http.FileServer(mediaFS{http.Dir(mediaDir)})).ServeHTTP)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// processImageHandler godoc
// @Summary      Ask a question about an image
// @Description  Hosts the uploaded image at a public URL and asks a vision model the query about it.
// @Tags         process
// @Accept       multipart/form-data
// @Produce      json
// @Param        image  formData  file    true  "Image file"
// @Param        query  formData  string  true  "Question about the image"
// @Success      200  {object}  types.ProcessImageResponse
// @Failure      400  {object}  types.ErrorResponse
// @Failure      500  {object}  types.ErrorResponse
// @Router       /process-image [post]
func processImageHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lvl := requestLogLevel(r)

		req, err := readProcessForm(w, r)
		if err != nil {
			writeJSONError(w, statusFor(err), err.Error())
			logEnd(r, lvl, statusFor(err), start, err)
			return
		}
		if req.Image != nil {
			logStart(r, lvl, req.Image.Name, len(req.Image.Data))
		}

		// Join server base context with request context so shutdown cancels work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		ctx = hosting.WithBaseURL(ctx, requestBaseURL(r))

		text, err := svc.Process(ctx, req)
		if err != nil {
			// Client went away; nobody is left to read the answer.
			if r.Context().Err() != nil {
				logEnd(r, lvl, 499, start, err)
				return
			}
			status := statusFor(err)
			writeJSONError(w, status, err.Error())
			logEnd(r, lvl, status, start, err)
			return
		}
		writeJSON(w, http.StatusOK, types.ProcessImageResponse{Response: text})
		logEnd(r, lvl, http.StatusOK, start, nil)
	}
}

// readProcessForm parses the multipart body into a Request. A body that is not
// a readable multipart form, or exceeds maxBodyBytes, is treated as carrying
// neither field.
func readProcessForm(w http.ResponseWriter, r *http.Request) (imagequery.Request, error) {
	var req imagequery.Request
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
		return req, &imagequery.ValidationError{Msg: imagequery.MsgBothRequired, Err: err}
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	if vals, ok := r.MultipartForm.Value[fieldQuery]; ok && len(vals) > 0 {
		req.Query = vals[0]
		req.QueryPresent = true
	}

	file, header, err := r.FormFile(fieldImage)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return req, nil
	case err != nil:
		return req, &imagequery.ValidationError{Msg: imagequery.MsgBothRequired, Err: err}
	}
	defer file.Close()

	up, err := readUpload(file, header)
	if err != nil {
		return req, &imagequery.ValidationError{Msg: imagequery.MsgBothRequired, Err: err}
	}
	uploadBytes.Observe(float64(len(up.Data)))
	req.Image = up
	return req, nil
}

func readUpload(f multipart.File, h *multipart.FileHeader) (*imagequery.Upload, error) {
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &imagequery.Upload{
		Name:        h.Filename,
		ContentType: h.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// mediaFS hides directory listings of the media tree.
type mediaFS struct{ fs http.FileSystem }

func (m mediaFS) Open(name string) (http.File, error) {
	f, err := m.fs.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}
