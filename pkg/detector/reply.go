package detector

import (
	"errors"
	"strings"

	"LettuceClassifier/internal/entity"
	jsoniter "github.com/json-iterator/go"
)

// reply is the wire shape shared by the sidecar and the vision-model prompts.
type reply struct {
	Detections []replyDetection `json:"detections"`
	Error      string           `json:"error,omitempty"`
}

type replyDetection struct {
	Label      string    `json:"label"`
	Class      string    `json:"class"`
	Confidence float64   `json:"confidence"`
	Box        []float64 `json:"box"`
}

var errNoJSON = errors.New("cannot find valid JSON in response")

func (r reply) toDetections() []entity.Detection {
	out := make([]entity.Detection, 0, len(r.Detections))
	for _, d := range r.Detections {
		label := d.Label
		if label == "" {
			label = d.Class
		}

		det := entity.Detection{Label: label, Confidence: d.Confidence}
		if len(d.Box) == 4 {
			det.Box = entity.BoundingBox{X1: d.Box[0], Y1: d.Box[1], X2: d.Box[2], Y2: d.Box[3]}
		}
		out = append(out, det)
	}
	return out
}

func parseReply(raw []byte) (reply, error) {
	var r reply
	if err := jsoniter.Unmarshal(raw, &r); err != nil {
		return reply{}, err
	}
	if r.Error != "" {
		return reply{}, errors.New(r.Error)
	}
	return r, nil
}

// parseModelText pulls the JSON object out of free-form model output, which
// may be wrapped in prose or code fences.
func parseModelText(text string) (reply, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return reply{}, errNoJSON
	}
	return parseReply([]byte(text[start : end+1]))
}
