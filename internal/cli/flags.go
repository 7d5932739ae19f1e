package cli

// Flags holds all command-line flag values
type Flags struct {
	// General flags
	CfgFile   string
	LogLevel  string
	LogFormat string

	// Provider flags
	Provider        string
	Keys            string
	Models          []string
	BaseURL         string
	RotateEveryCall bool
	RPS             float64

	// Translation flags
	Language       string
	Single         bool
	Limit          int
	PercentAsCount bool
	Resume         bool
	Style          string
	BatchSize      int
	MaxAttempts    int
	Output         string
	QueueFile      string

	// State and notification flags
	StateDB     string
	NoState     bool
	NotifyEmail string

	// Preview and models flags
	PreviewLimit int
	Remote       bool
}

// NewFlags creates a new Flags instance with default values
func NewFlags() *Flags {
	return &Flags{
		LogLevel:     "info",
		LogFormat:    "console",
		Provider:     "openai",
		RPS:          2,
		Language:     "zh-hans",
		BatchSize:    10,
		MaxAttempts:  5,
		PreviewLimit: 2000,
	}
}
