package detector

import "fmt"

const detectionPrompt = `You are an object detector for lettuce crop images.

Return JSON only:
{
  "detections": [
    {"label": "string", "confidence": 0.0, "box": [x1, y1, x2, y2]}
  ]
}

RULES
- label is the lettuce class or condition you see (for example "healthy", "bacterial", "fungal").
- confidence is in [0,1]; omit anything below %.2f.
- box coordinates are normalized to [0,1].
- List detections in the order you are most sure of them first.
- If nothing qualifies, return {"detections": []}.
- JSON only. No markdown, no code fences, no comments.`

func buildPrompt(threshold float64) string {
	return fmt.Sprintf(detectionPrompt, threshold)
}
