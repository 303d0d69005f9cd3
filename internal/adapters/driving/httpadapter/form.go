package httpadapter

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"schoolboard/internal/core/domain"
	"schoolboard/internal/core/service/resource"
	"strings"

	"github.com/goccy/go-json"
)

// ImageField is the multipart part carrying the optional image.
const ImageField = "image"

// multipartMemory is how much of a multipart body is kept in memory, the rest spills to temp files
const multipartMemory = 1 << 20

// createRequest is a decoded create request. Close must be called once the upload has been consumed.
type createRequest struct {
	fields map[string]any
	upload *resource.Upload
	close  func()
}

func (c *createRequest) Close() {
	if c.close != nil {
		c.close()
	}
}

// decodeCreateRequest reads the fields the resource declares, and the optional image, from a
// multipart, urlencoded or JSON body. Anything else in the body is ignored.
func decodeCreateRequest(r *http.Request, spec domain.ResourceSpec) (*createRequest, error) {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return &createRequest{fields: pickFormFields(spec, nil)}, nil
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: bad content type %q", resource.ErrInvalidForm, contentType)
	}

	switch mediaType {
	case "multipart/form-data":
		return decodeMultipart(r, spec)

	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, formError(err)
		}
		return &createRequest{fields: pickFormFields(spec, r.PostForm)}, nil

	case "application/json":
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, formError(err)
		}

		body := make(map[string]any)
		if len(bytes.TrimSpace(data)) > 0 {
			dec := json.NewDecoder(bytes.NewReader(data))
			dec.UseNumber()
			if err := dec.Decode(&body); err != nil {
				return nil, formError(err)
			}
		}
		return &createRequest{fields: pickJSONFields(spec, body)}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported content type %q", resource.ErrInvalidForm, mediaType)
	}
}

func decodeMultipart(r *http.Request, spec domain.ResourceSpec) (*createRequest, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		// only the file can push a form past the cap, so this is the upload being too large
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			return nil, fmt.Errorf("%w: request body over %d bytes", resource.ErrFileTooLarge, maxBytesError.Limit)
		}
		return nil, formError(err)
	}
	form := r.MultipartForm

	req := &createRequest{
		fields: pickFormFields(spec, form.Value),
		close: func() {
			form.RemoveAll()
		},
	}

	for name, files := range form.File {
		if name != ImageField && len(files) > 0 {
			req.Close()
			return nil, fmt.Errorf("%w: unexpected file field %q", resource.ErrInvalidUpload, name)
		}
	}

	files := form.File[ImageField]
	switch {
	case len(files) == 0:
		return req, nil
	case len(files) > 1:
		req.Close()
		return nil, fmt.Errorf("%w: only one %q file may be attached", resource.ErrInvalidUpload, ImageField)
	}

	upload, file, err := openUpload(files[0])
	if err != nil {
		req.Close()
		return nil, err
	}

	req.upload = upload
	req.close = func() {
		file.Close()
		form.RemoveAll()
	}
	return req, nil
}

func openUpload(header *multipart.FileHeader) (*resource.Upload, multipart.File, error) {
	file, err := header.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: cannot open file: %w", resource.ErrUpload, err)
	}

	return &resource.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     file,
	}, file, nil
}

// formError keeps *http.MaxBytesError reachable so an oversized non-form body can become a 413
func formError(err error) error {
	var maxBytesError *http.MaxBytesError
	if errors.As(err, &maxBytesError) {
		return err
	}
	return fmt.Errorf("%w: %v", resource.ErrInvalidForm, err)
}

// pickFormFields copies the declared fields. Single fields take the first value and are left out when
// absent, list fields keep every non-empty value and are always present.
func pickFormFields(spec domain.ResourceSpec, values map[string][]string) map[string]any {
	fields := make(map[string]any, len(spec.Fields))

	for _, field := range spec.Fields {
		if field.List {
			list := []string{}
			for _, key := range []string{field.Name, field.Name + "[]"} {
				for _, v := range values[key] {
					if strings.TrimSpace(v) != "" {
						list = append(list, v)
					}
				}
			}
			fields[field.Name] = list
			continue
		}

		if v, ok := values[field.Name]; ok && len(v) > 0 {
			fields[field.Name] = v[0]
		}
	}

	return fields
}

func pickJSONFields(spec domain.ResourceSpec, body map[string]any) map[string]any {
	fields := make(map[string]any, len(spec.Fields))

	for _, field := range spec.Fields {
		v, ok := body[field.Name]

		if field.List {
			switch {
			case !ok || v == nil || v == "" || v == false:
				fields[field.Name] = []any{}
			default:
				if list, isList := v.([]any); isList {
					fields[field.Name] = list
				} else {
					fields[field.Name] = []any{v}
				}
			}
			continue
		}

		if ok {
			fields[field.Name] = v
		}
	}

	return fields
}
