package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/spf13/cast"
)

const maxBodyBytes = 1 << 20

var errInvalidBody = errors.New("invalid request body")

// decodeFields reads the request body into a flat field map. JSON,
// urlencoded and multipart bodies are accepted on every method, DELETE
// included. A key is present in the result only if the client sent it.
func decodeFields(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	switch mediaType {
	case "application/json":
		return decodeJSONFields(r.Body)
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return nil, fmt.Errorf("%w: %w", errInvalidBody, err)
		}
		return firstValues(r.MultipartForm.Value), nil
	default:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errInvalidBody, err)
		}
		values, err := url.ParseQuery(string(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errInvalidBody, err)
		}
		return firstValues(values), nil
	}
}

// decodeJSONFields accepts a JSON object of scalars. Numbers and booleans
// are converted to their string form; null means the key was not sent.
func decodeJSONFields(body io.Reader) (map[string]string, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("%w: %w", errInvalidBody, err)
	}

	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %w", errInvalidBody, k, err)
		}
		fields[k] = s
	}
	return fields, nil
}

// queryFields flattens query parameters, keeping the first value of each.
func queryFields(r *http.Request) map[string]string {
	return firstValues(r.URL.Query())
}

func firstValues(values map[string][]string) map[string]string {
	fields := make(map[string]string, len(values))
	for k, vs := range values {
		if len(vs) > 0 {
			fields[k] = vs[0]
		}
	}
	return fields
}
