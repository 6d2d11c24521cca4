package analysis

// Block kinds of the gas challenge protocol.
const (
	KindBaseline = "baseline"
	KindOn       = "on"
	KindOff      = "off"
)

// BlockStats holds the statistics of the calibrated curve over one protocol block.
type BlockStats struct {
	Name       string // e.g. "Baseline", "ON 1", "OFF 2"
	Kind       string
	StartVol   int // first volume, inclusive
	EndVol     int // last volume, exclusive
	NumVolumes int
	Mean       float64 // mmHg
	StdDev     float64 // mmHg, population
	Range      float64 // mmHg, max - min
	Response   float64 // Mean - normocapnia, mmHg
	IsWeak     bool    // ON block whose response is below the configured minimum
}

// RankedBlockInfo is used for ranking blocks by variability.
type RankedBlockInfo struct {
	Name  string
	Value float64
}

// AnalysisResults holds the quality summary of one calibration.
type AnalysisResults struct {
	Blocks           []BlockStats
	RankedByStdDev   []RankedBlockInfo // descending
	TriggerJitter    float64           // s, std of trigger intervals
	BreathsPerMin    float64
	BreathInterval   float64 // s, mean spacing of detected end-tidal peaks
	BreathIntervalSD float64
	AnalysisErrors   []string
}

func NewAnalysisResults() *AnalysisResults {
	return &AnalysisResults{
		Blocks:         make([]BlockStats, 0),
		RankedByStdDev: make([]RankedBlockInfo, 0),
		AnalysisErrors: make([]string, 0),
	}
}
