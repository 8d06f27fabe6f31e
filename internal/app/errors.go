package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrWong99/gaussvad/pkg/audio"
	"github.com/MrWong99/gaussvad/pkg/dsp"
)

// Error kinds reported in responses and on the gaussvad.detect.errors metric.
const (
	kindConfiguration     = "configuration"
	kindInsufficientData  = "insufficient_data"
	kindInputSizeMismatch = "input_size_mismatch"
	kindDecode            = "decode"
	kindTooLarge          = "too_large"
	kindCanceled          = "canceled"
	kindInternal          = "internal"
)

// errorBody is the JSON body of every error response.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// classify maps err to an error kind and HTTP status.
func classify(err error) (kind string, status int) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return kindTooLarge, http.StatusRequestEntityTooLarge
	case errors.Is(err, audio.ErrDecode):
		return kindDecode, http.StatusBadRequest
	case errors.Is(err, dsp.ErrConfiguration):
		return kindConfiguration, http.StatusBadRequest
	case errors.Is(err, dsp.ErrInsufficientData):
		return kindInsufficientData, http.StatusUnprocessableEntity
	case errors.Is(err, dsp.ErrInputSizeMismatch):
		return kindInputSizeMismatch, http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return kindCanceled, http.StatusServiceUnavailable
	default:
		return kindInternal, http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
