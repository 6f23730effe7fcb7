package classification

import (
	"errors"
	"net/http"

	"LettuceClassifier/pkg/response"
)

const (
	ErrorPrefix = "Classification error: "

	CodeDecodeError    = "DECODE_ERROR"
	CodeInferenceError = "INFERENCE_ERROR"
)

var (
	ErrBadRequest = response.NewError(http.StatusBadRequest, "bad request")

	ErrModelNotLoaded = errors.New("model not loaded")
)

// DecodeError means the payload never became a raster image.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// InferenceError means the image was fine but the detector could not answer.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return e.Err.Error()
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}
