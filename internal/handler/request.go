package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
)

const (
	maxBodyBytes   = 1 << 20  // 1MB for JSON and form bodies
	maxUploadBytes = 6 << 20  // image plus form fields
	maxMemoryBytes = 10 << 20 // multipart parts beyond this spill to disk
)

// fields is a request body decoded from JSON, urlencoded or multipart form.
type fields map[string]any

func parseFields(w http.ResponseWriter, r *http.Request) (fields, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/json":
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()

		f := fields{}
		err := dec.Decode(&f)
		if errors.Is(err, io.EOF) {
			return f, nil
		}
		if err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		return f, nil

	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		err := r.ParseMultipartForm(maxMemoryBytes)
		if err != nil {
			return nil, fmt.Errorf("invalid multipart body: %w", err)
		}
		return formFields(r.MultipartForm.Value), nil

	default:
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		err := r.ParseForm()
		if err != nil {
			return nil, fmt.Errorf("invalid form body: %w", err)
		}
		return formFields(r.PostForm), nil
	}
}

func formFields(values map[string][]string) fields {
	f := fields{}
	for k, v := range values {
		if len(v) > 0 {
			f[k] = v[0]
		}
	}
	return f
}

// str returns the trimmed text of a field. Numbers are rendered as written.
func (f fields) str(key string) string {
	switch v := f[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// number returns a numeric field, accepting JSON numbers and numeric strings.
// ok is false when the field is absent, empty or not a number.
func (f fields) number(key string) (n float64, ok bool) {
	switch v := f[key].(type) {
	case json.Number:
		n, err := v.Float64()
		return n, err == nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return n, err == nil
	default:
		return 0, false
	}
}
