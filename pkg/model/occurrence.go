package model

// Occurrence is one concrete, dated materialization of a recurring event.
// It is ephemeral: produced by expansion, never persisted unless promoted to
// an exception instance. Index is the 1-based position of the occurrence
// within its series.
type Occurrence struct {
	SeriesID      string     `json:"series_id"`
	ParentEventID string     `json:"parent_event_id"`
	Title         string     `json:"title"`
	Window        TimeWindow `json:"window"`
	Index         int        `json:"index"`
}
