package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Auth      AuthConfig      `yaml:"auth"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// AnalysisConfig carries the windowing cadence, the confidence thresholds,
// and the clinical override constants. All values are empirical
// configuration; zero values take the reference defaults.
type AnalysisConfig struct {
	WindowSize              int     `yaml:"window_size"`
	Step                    int     `yaml:"step"`
	MinReadyFrames          int     `yaml:"min_ready_frames"`
	ConfidenceGate          float64 `yaml:"confidence_gate"`
	VoteThreshold           float64 `yaml:"vote_threshold"`
	SmoothingCapacity       int     `yaml:"smoothing_capacity"`
	FeedbackDebounceSeconds float64 `yaml:"feedback_debounce_seconds"`

	// Deep-squat override rule constants.
	DeepKneeSoft      float64 `yaml:"deep_knee_soft"`
	DeepKneeHard      float64 `yaml:"deep_knee_hard"`
	HipTravelRange    float64 `yaml:"hip_travel_range"`
	AnkleSymmetryGate float64 `yaml:"ankle_symmetry_gate"`

	// Deep-squat evaluation constants.
	SquatDepthAngle float64 `yaml:"squat_depth_angle"`
	KneeWidthRatio  float64 `yaml:"knee_width_ratio"`
	LeanMeanLimit   float64 `yaml:"lean_mean_limit"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides. Env vars use the prefix MOTIONSCORE_ and underscore-separated
// paths:
//
//	MOTIONSCORE_SERVER_HOST, MOTIONSCORE_SERVER_PORT,
//	MOTIONSCORE_TS_ENABLED, MOTIONSCORE_TS_HOSTNAME, MOTIONSCORE_TS_STATE_DIR,
//	MOTIONSCORE_AUTH_API_KEY
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.Analysis.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Default returns a config with the reference analysis constants and no
// server surface configured. Used by the offline CLI, which needs no
// listener or API key.
func Default() *Config {
	cfg := &Config{}
	cfg.Analysis.applyDefaults()
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MOTIONSCORE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("MOTIONSCORE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MOTIONSCORE_TS_ENABLED"); v != "" {
		cfg.Tailscale.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("MOTIONSCORE_TS_HOSTNAME"); v != "" {
		cfg.Tailscale.Hostname = v
	}
	if v := os.Getenv("MOTIONSCORE_TS_STATE_DIR"); v != "" {
		cfg.Tailscale.StateDir = v
	}
	if v := os.Getenv("MOTIONSCORE_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
}

// applyDefaults fills zero values with the reference constants.
func (a *AnalysisConfig) applyDefaults() {
	if a.WindowSize == 0 {
		a.WindowSize = 60
	}
	if a.Step == 0 {
		a.Step = 15
	}
	if a.MinReadyFrames == 0 {
		a.MinReadyFrames = 30
	}
	if a.ConfidenceGate == 0 {
		a.ConfidenceGate = 0.60
	}
	if a.VoteThreshold == 0 {
		a.VoteThreshold = 0.50
	}
	if a.SmoothingCapacity == 0 {
		a.SmoothingCapacity = 10
	}
	if a.FeedbackDebounceSeconds == 0 {
		a.FeedbackDebounceSeconds = 4.0
	}
	if a.DeepKneeSoft == 0 {
		a.DeepKneeSoft = 135
	}
	if a.DeepKneeHard == 0 {
		a.DeepKneeHard = 110
	}
	if a.HipTravelRange == 0 {
		a.HipTravelRange = 0.10
	}
	if a.AnkleSymmetryGate == 0 {
		a.AnkleSymmetryGate = 0.20
	}
	if a.SquatDepthAngle == 0 {
		a.SquatDepthAngle = 100
	}
	if a.KneeWidthRatio == 0 {
		a.KneeWidthRatio = 0.75
	}
	if a.LeanMeanLimit == 0 {
		a.LeanMeanLimit = 0.70
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required when tailscale is disabled")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if c.Analysis.Step > c.Analysis.WindowSize {
		return fmt.Errorf("analysis.step must not exceed analysis.window_size")
	}
	if c.Analysis.MinReadyFrames > c.Analysis.WindowSize {
		return fmt.Errorf("analysis.min_ready_frames must not exceed analysis.window_size")
	}
	return nil
}
