package recorder

// RunRecord is one finished pipeline run for a pair.
type RunRecord struct {
	Pair            string
	Lookback        string
	Interval        string
	Outcome         string // "ready" or "failed"
	ErrorKind       string
	Error           string
	OptionalStatus  string // "none", "ok" or "degraded"
	PrimaryPoints   int
	SecondaryPoints int
	DurationMs      int64
	Timestamp       int64
}

// RatioRecord is the latest value and summary of one derived series.
type RatioRecord struct {
	Pair      string
	Series    string
	Time      int64 // bar time of the latest point
	Value     float64
	Change    float64
	High      float64
	Low       float64
	Position  float64
	RSI       float64
	Timestamp int64
}

// Recorder persists pipeline history for analysis.
type Recorder interface {
	RecordRun(run *RunRecord) error
	RecordRatio(rec *RatioRecord) error
	LatestRatio(pair, series string) (*RatioRecord, error)
	RecentRuns(limit int) ([]RunRecord, error)
	Close() error
}
