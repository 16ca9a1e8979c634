package config

import (
	"fmt"
	"os"
	"time"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// profileSchemaConstraint pins the profile schema versions this build
// understands.
const profileSchemaConstraint = "^1.0.0"

// Duration wraps time.Duration with yaml decoding from strings like
// "45s" or "1m30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// GovernanceProfile holds the governance thresholds and agent rosters a
// deployment runs with.
type GovernanceProfile struct {
	SchemaVersion string `yaml:"schema_version" json:"schema_version"`
	Name          string `yaml:"name" json:"name"`

	// ACKLatencyThresholdMS is the settlement-evaluation ceiling on the
	// maximum observed ACK latency.
	ACKLatencyThresholdMS int64 `yaml:"ack_latency_threshold_ms" json:"ack_latency_threshold_ms"`

	// ACKDeadline is how long an agent has to acknowledge a dispatch.
	ACKDeadline Duration `yaml:"ack_deadline" json:"ack_deadline"`

	// Lanes maps agent ID to its authorized execution lane.
	Lanes map[string]string `yaml:"lanes" json:"lanes"`
}

// DefaultProfile returns the profile used when none is configured.
func DefaultProfile() *GovernanceProfile {
	return &GovernanceProfile{
		SchemaVersion:         "1.0.0",
		Name:                  "default",
		ACKLatencyThresholdMS: 2000,
		ACKDeadline:           Duration(30 * time.Second),
		Lanes:                 map[string]string{},
	}
}

// LoadProfile reads and validates a governance profile from a yaml file.
func LoadProfile(path string) (*GovernanceProfile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read profile %s: %w", path, err)
	}
	return ParseProfile(raw)
}

// ParseProfile decodes and validates profile yaml.
func ParseProfile(raw []byte) (*GovernanceProfile, error) {
	var profile GovernanceProfile
	if err := yaml.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("config: parse profile: %w", err)
	}

	if profile.SchemaVersion == "" {
		return nil, fmt.Errorf("config: profile missing schema_version")
	}
	version, err := semver.NewVersion(profile.SchemaVersion)
	if err != nil {
		return nil, fmt.Errorf("config: invalid schema_version %q: %w", profile.SchemaVersion, err)
	}
	constraint, err := semver.NewConstraint(profileSchemaConstraint)
	if err != nil {
		return nil, fmt.Errorf("config: bad schema constraint: %w", err)
	}
	if !constraint.Check(version) {
		return nil, fmt.Errorf("config: profile schema_version %s outside supported range %s",
			profile.SchemaVersion, profileSchemaConstraint)
	}

	if profile.ACKLatencyThresholdMS <= 0 {
		profile.ACKLatencyThresholdMS = DefaultProfile().ACKLatencyThresholdMS
	}
	if profile.ACKDeadline <= 0 {
		profile.ACKDeadline = DefaultProfile().ACKDeadline
	}
	if profile.Lanes == nil {
		profile.Lanes = map[string]string{}
	}
	return &profile, nil
}
