package history

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// The wire types below define the persisted document. Field names and the
// integer outcome codes must stay stable so previously written records load.

type projectWire struct {
	ProjectName   string       `json:"projectName"`
	RetentionDays int          `json:"retentionDays"`
	LastUpdatedAt time.Time    `json:"lastUpdatedAt"`
	CreatedAt     time.Time    `json:"createdAt"`
	Buckets       []bucketWire `json:"buckets"`
}

type bucketWire struct {
	Date   time.Time   `json:"date"`
	Events []eventWire `json:"events"`
}

// maxDurationMillis is the longest duration, in milliseconds, that fits in a
// time.Duration.
const maxDurationMillis = float64(math.MaxInt64 / int64(time.Millisecond))

type eventWire struct {
	Timestamp time.Time `json:"timestamp"`
	Outcome   int       `json:"outcome"`
	// Duration is in milliseconds; omitted for untimed events.
	Duration *float64 `json:"duration,omitempty"`
}

// Marshal encodes a project history into its persisted JSON form.
func Marshal(p *Project) ([]byte, error) {
	w := projectWire{
		ProjectName:   p.Name,
		RetentionDays: p.RetentionDays,
		LastUpdatedAt: p.LastUpdatedAt,
		CreatedAt:     p.CreatedAt,
		Buckets:       make([]bucketWire, 0, len(p.Buckets)),
	}
	for _, b := range p.Buckets {
		bw := bucketWire{Date: b.Date, Events: make([]eventWire, 0, len(b.Events))}
		for _, e := range b.Events {
			ew := eventWire{Timestamp: e.Timestamp, Outcome: int(e.Outcome)}
			if e.Timed {
				ms := float64(e.Duration) / float64(time.Millisecond)
				ew.Duration = &ms
			}
			bw.Events = append(bw.Events, ew)
		}
		w.Buckets = append(w.Buckets, bw)
	}

	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a persisted JSON document. Bucket dates are normalised to
// local midnight and buckets sharing a date are merged in file order.
func Unmarshal(data []byte) (*Project, error) {
	var w projectWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}

	p := &Project{
		Name:          w.ProjectName,
		RetentionDays: w.RetentionDays,
		LastUpdatedAt: w.LastUpdatedAt,
		CreatedAt:     w.CreatedAt,
		Buckets:       make([]*Bucket, 0, len(w.Buckets)),
	}

	for i, bw := range w.Buckets {
		day := DayOf(bw.Date.Local())
		b := p.Bucket(day)
		if b == nil {
			b = &Bucket{Date: day, Events: make([]Event, 0, len(bw.Events))}
			p.Buckets = append(p.Buckets, b)
		}
		for j, ew := range bw.Events {
			e := Event{Timestamp: ew.Timestamp, Outcome: Outcome(ew.Outcome)}
			// Unknown is never persisted.
			if !e.Outcome.Valid() {
				return nil, fmt.Errorf("bucket %d event %d: invalid outcome code %d", i, j, ew.Outcome)
			}
			if ew.Duration != nil {
				if *ew.Duration < 0 || *ew.Duration > maxDurationMillis || math.IsNaN(*ew.Duration) {
					return nil, fmt.Errorf("bucket %d event %d: invalid duration %v", i, j, *ew.Duration)
				}
				e.Duration = time.Duration(math.Round(*ew.Duration * float64(time.Millisecond)))
				e.Timed = true
			}
			b.Events = append(b.Events, e)
		}
	}

	return p, nil
}
