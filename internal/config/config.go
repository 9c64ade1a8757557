// Package config loads the YAML-tagged writer configuration described
// in spec.md §6, following the teacher's load-file-then-env-overlay-
// then-validate pattern (pkg/config/config.go's LoadConfig).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ehsaniara/shiplog/queue"
)

// Writer is the common WriterConfig from spec.md §3/§6, shared by
// every destination-specific config below.
type Writer struct {
	BatchDelay               time.Duration `yaml:"batchDelay"`
	DiscardThreshold         int           `yaml:"discardThreshold"`
	DiscardAction            string        `yaml:"discardAction"` // none|oldest|newest
	TruncateOversizeMessages bool          `yaml:"truncateOversizeMessages"`
	Synchronous              bool          `yaml:"synchronous"`
	UseShutdownHook          bool          `yaml:"useShutdownHook"`
	InitializationTimeout    time.Duration `yaml:"initializationTimeout"`
	EnableBatchLogging       bool          `yaml:"enableBatchLogging"`
	Client                   Client        `yaml:"client"`
}

// Client carries the remote-client configuration keys from spec.md §6.
type Client struct {
	AssumedRole string `yaml:"assumedRole"`
	Factory     string `yaml:"clientFactory"`
	Region      string `yaml:"clientRegion"`
	Endpoint    string `yaml:"clientEndpoint"`
	ProxyURL    string `yaml:"proxyUrl"`
}

// CloudWatch is config.Writer plus CloudWatch's destination-specific
// keys (spec.md §6).
type CloudWatch struct {
	Writer          `yaml:",inline"`
	LogGroup        string `yaml:"logGroup"`
	LogStream       string `yaml:"logStream"`
	RetentionDays   int    `yaml:"retentionPeriod"`
	DedicatedWriter bool   `yaml:"dedicatedWriter"`
}

// Kinesis is config.Writer plus Kinesis's destination-specific keys.
type Kinesis struct {
	Writer         `yaml:",inline"`
	StreamName     string `yaml:"streamName"`
	PartitionKey   string `yaml:"partitionKey"`
	ShardCount     int    `yaml:"shardCount"`
	RetentionHours int    `yaml:"retentionPeriod"`
	AutoCreate     bool   `yaml:"autoCreate"`
}

// SNS is config.Writer plus SNS's destination-specific keys.
type SNS struct {
	Writer     `yaml:",inline"`
	TopicName  string `yaml:"topicName"`
	TopicARN   string `yaml:"topicArn"`
	Subject    string `yaml:"subject"`
	AutoCreate bool   `yaml:"autoCreate"`
}

// Root is the top-level YAML document: one or more destinations
// configured under one writer each (Validate rejects a document with
// none).
type Root struct {
	CloudWatch *CloudWatch `yaml:"cloudwatch,omitempty"`
	Kinesis    *Kinesis    `yaml:"kinesis,omitempty"`
	SNS        *SNS        `yaml:"sns,omitempty"`
	Logging    Logging     `yaml:"logging"`
}

// Logging configures internal/logging's output, mirroring the
// teacher's LoggingConfig section (pkg/config/config.go).
type Logging struct {
	Level string `yaml:"level"`
}

// DefaultWriter returns the common WriterConfig defaults spec.md §6
// implies when a key is omitted.
func DefaultWriter() Writer {
	return Writer{
		BatchDelay:            250 * time.Millisecond,
		DiscardThreshold:      10000,
		DiscardAction:         "oldest",
		InitializationTimeout: 30 * time.Second,
	}
}

// ParseDiscardAction converts the YAML discardAction string into
// queue.DiscardAction, defaulting to DiscardNone on an unrecognized
// value so a misconfiguration never silently discards messages.
func ParseDiscardAction(s string) (queue.DiscardAction, error) {
	switch s {
	case "", "none":
		return queue.DiscardNone, nil
	case "oldest":
		return queue.DiscardOldest, nil
	case "newest":
		return queue.DiscardNewest, nil
	default:
		return queue.DiscardNone, fmt.Errorf("config: unknown discardAction %q", s)
	}
}

// Load reads and parses the YAML file at path, applying environment
// variable overrides and validating the result, following the
// teacher's LoadConfig file-then-env-then-validate sequence.
func Load(path string) (*Root, error) {
	root := &Root{}
	root.Logging.Level = "info"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, root); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(root)
	applyWriterDefaults(root)

	if err := root.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return root, nil
}

// applyEnvOverrides mirrors the teacher's JOBLET_* env override block,
// here as SHIPLOG_* keys for the cross-cutting settings that commonly
// vary between environments without a redeploy.
func applyEnvOverrides(root *Root) {
	if v := os.Getenv("SHIPLOG_LOG_LEVEL"); v != "" {
		root.Logging.Level = v
	}
	if v := os.Getenv("SHIPLOG_CLIENT_REGION"); v != "" {
		if root.CloudWatch != nil {
			root.CloudWatch.Client.Region = v
		}
		if root.Kinesis != nil {
			root.Kinesis.Client.Region = v
		}
		if root.SNS != nil {
			root.SNS.Client.Region = v
		}
	}
}

// applyWriterDefaults fills in DefaultWriter's values for whichever
// common Writer fields were left zero by the YAML document, for each
// destination present in root. yaml.Unmarshal only sets fields that
// have a corresponding key in the document, so a field omitted from
// the file would otherwise reach the writer as Go's zero value instead
// of spec.md §6's documented default.
func applyWriterDefaults(root *Root) {
	def := DefaultWriter()
	fill := func(w *Writer) {
		if w.BatchDelay == 0 {
			w.BatchDelay = def.BatchDelay
		}
		if w.DiscardThreshold == 0 {
			w.DiscardThreshold = def.DiscardThreshold
		}
		if w.DiscardAction == "" {
			w.DiscardAction = def.DiscardAction
		}
		if w.InitializationTimeout == 0 {
			w.InitializationTimeout = def.InitializationTimeout
		}
	}
	if root.CloudWatch != nil {
		fill(&root.CloudWatch.Writer)
	}
	if root.Kinesis != nil {
		fill(&root.Kinesis.Writer)
	}
	if root.SNS != nil {
		fill(&root.SNS.Writer)
	}
}

// Validate checks the structural invariants Load requires before a
// writer can safely be constructed from this config.
func (r *Root) Validate() error {
	if r.CloudWatch == nil && r.Kinesis == nil && r.SNS == nil {
		return fmt.Errorf("no destination configured")
	}
	if r.CloudWatch != nil {
		if r.CloudWatch.LogGroup == "" || r.CloudWatch.LogStream == "" {
			return fmt.Errorf("cloudwatch: logGroup and logStream are required")
		}
		if _, err := ParseDiscardAction(r.CloudWatch.DiscardAction); err != nil {
			return err
		}
	}
	if r.Kinesis != nil {
		if r.Kinesis.StreamName == "" {
			return fmt.Errorf("kinesis: streamName is required")
		}
		if _, err := ParseDiscardAction(r.Kinesis.DiscardAction); err != nil {
			return err
		}
	}
	if r.SNS != nil {
		if r.SNS.TopicName == "" && r.SNS.TopicARN == "" {
			return fmt.Errorf("sns: topicName or topicArn is required")
		}
		if _, err := ParseDiscardAction(r.SNS.DiscardAction); err != nil {
			return err
		}
	}
	return nil
}
