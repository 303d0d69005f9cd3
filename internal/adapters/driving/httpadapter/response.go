package httpadapter

import (
	"fmt"
	"log"
	"maps"
	"net/http"
	"net/url"
	"schoolboard/internal/core/domain"
	"strings"

	"github.com/goccy/go-json"
)

type createdResponse struct {
	Message  string        `json:"message"`
	NewEntry domain.Record `json:"newEntry"`
}

type deletedResponse struct {
	Message      string        `json:"message"`
	DeletedEntry domain.Record `json:"deletedEntry"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(body); err != nil {
		log.Printf("ERROR: Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// present returns a copy of the record with the stored image filename swapped for an absolute URL.
// Only the top-level image key is rewritten, so a shallow copy keeps the stored record untouched.
func (h *Handler) present(r *http.Request, spec domain.ResourceSpec, record domain.Record) domain.Record {
	out := maps.Clone(record)
	if out == nil {
		out = domain.Record{}
	}

	if filename := record.ImageFilename(); filename != "" {
		out[domain.KeyImage] = h.imageURL(r, spec, filename)
	} else {
		out[domain.KeyImage] = nil
	}

	return out
}

func (h *Handler) presentAll(r *http.Request, spec domain.ResourceSpec, records []domain.Record) []domain.Record {
	out := make([]domain.Record, 0, len(records))
	for _, record := range records {
		out = append(out, h.present(r, spec, record))
	}
	return out
}

// imageURL builds {scheme}://{host}{publicPath}/{resource}/{filename} from the request that asked for it
func (h *Handler) imageURL(r *http.Request, spec domain.ResourceSpec, filename string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	host := r.Host
	if h.opts.TrustProxy {
		if proto := firstHeaderValue(r, "X-Forwarded-Proto"); proto == "http" || proto == "https" {
			scheme = proto
		}
		if fwdHost := firstHeaderValue(r, "X-Forwarded-Host"); fwdHost != "" {
			host = fwdHost
		}
	}

	return fmt.Sprintf("%s://%s%s/%s/%s", scheme, host, h.opts.PublicPath, spec.Name, url.PathEscape(filename))
}

func firstHeaderValue(r *http.Request, key string) string {
	value, _, _ := strings.Cut(r.Header.Get(key), ",")
	return strings.ToLower(strings.TrimSpace(value))
}
