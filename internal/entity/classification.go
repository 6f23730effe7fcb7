package entity

import "time"

type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Detection is a single box as reported by the detector, in the order it was returned.
type Detection struct {
	Label      string      `json:"label"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"box"`
}

type ClassificationResult struct {
	Detected       bool
	Classification string
	Confidence     float64
}

// ImageInput carries either raw bytes or a base64 string. Data wins when both are set.
type ImageInput struct {
	Data     []byte
	Base64   string
	Filename string
}

type HistoryEntry struct {
	Timestamp      time.Time `json:"timestamp"`
	ImageName      string    `json:"image_name"`
	Detected       bool      `json:"detected"`
	Classification string    `json:"classification"`
	Confidence     float64   `json:"confidence"`
}

type ModelStatus struct {
	Loaded    bool
	Backend   string
	ModelPath string
}
