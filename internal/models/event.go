package models

// Event is a single developer-recorded analytics fact. Optional fields
// are pointers so the wire encoding can drop them entirely: the
// collector distinguishes an absent field from an empty one.
type Event struct {
	Key          string            `json:"key"`
	Count        int               `json:"count"`
	Sum          *float64          `json:"sum,omitempty"`
	Duration     *float64          `json:"dur,omitempty"`
	Timestamp    int64             `json:"timestamp"`
	Hour         int               `json:"hour"`
	Dow          int               `json:"dow"`
	Segmentation map[string]string `json:"segmentation,omitempty"`
}

func NewEvent(key string, count int, sum, duration *float64, segmentation map[string]string, at TimeInstant) Event {
	return Event{
		Key:          key,
		Count:        count,
		Sum:          sum,
		Duration:     duration,
		Timestamp:    at.Timestamp,
		Hour:         at.Hour,
		Dow:          at.Dow,
		Segmentation: segmentation,
	}
}
