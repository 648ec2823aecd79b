package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/visionlock/internal/flagx"
	"github.com/dmitrijs2005/visionlock/internal/timex"
)

// JsonConfig is the on-disk form of Config. Durations use timex.Duration
// so both "250ms" and integer nanoseconds are accepted. Fields left out of
// the file keep their current value.
type JsonConfig struct {
	EndpointAddrHTTP      string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC      string         `json:"endpoint_addr_grpc"`
	DatabaseDriver        string         `json:"database_driver"`
	DatabaseDSN           string         `json:"database_dsn"`
	LogLevel              string         `json:"log_level"`
	SecretKey             string         `json:"secret_key"`
	TokenValidityDuration timex.Duration `json:"token_validity_duration"`

	InferenceURL         string         `json:"inference_url"`
	InferenceTimeout     timex.Duration `json:"inference_timeout"`
	InferenceConcurrency int64          `json:"inference_concurrency"`
	FrameQueueSize       int            `json:"frame_queue_size"`

	DotMax       timex.Duration `json:"dot_max"`
	DashMax      timex.Duration `json:"dash_max"`
	SymbolGapMax timex.Duration `json:"symbol_gap_max"`
	CharGapMax   timex.Duration `json:"char_gap_max"`

	MinPinLength              int     `json:"min_pin_length"`
	LockoutThreshold          int     `json:"lockout_threshold"`
	IdentifyMaxDistance       float64 `json:"identify_max_distance"`
	AuthenticateMinSimilarity float64 `json:"authenticate_min_similarity"`

	AlertTimeout   timex.Duration `json:"alert_timeout"`
	S3AccessKey    string         `json:"s3_access_key"`
	S3SecretKey    string         `json:"s3_secret_key"`
	S3Bucket       string         `json:"s3_bucket"`
	S3Region       string         `json:"s3_region"`
	S3BaseEndpoint string         `json:"s3_base_endpoint"`
	S3PresignTTL   timex.Duration `json:"s3_presign_ttl"`
	SnapshotDir    string         `json:"snapshot_dir"`

	KafkaBrokers    []string `json:"kafka_brokers"`
	KafkaAlertTopic string   `json:"kafka_alert_topic"`

	SMTPAddr     string   `json:"smtp_addr"`
	SMTPUser     string   `json:"smtp_user"`
	SMTPPassword string   `json:"smtp_password"`
	SMTPFrom     string   `json:"smtp_from"`
	SMTPTo       []string `json:"smtp_to"`

	OpenAIKey     string `json:"openai_api_key"`
	OpenAIBaseURL string `json:"openai_base_url"`
	OpenAIModel   string `json:"openai_model"`
}

func set[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}

func setSlice(dst *[]string, v []string) {
	if len(v) > 0 {
		*dst = v
	}
}

// parseJson overlays the file named by -c/-config (or VISIONLOCK_CONFIG).
// No file named means nothing to do.
func parseJson(config *Config) error {
	path := flagx.ConfigFile()
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	set(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	set(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	set(&config.DatabaseDriver, c.DatabaseDriver)
	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.LogLevel, c.LogLevel)
	set(&config.SecretKey, c.SecretKey)
	set(&config.TokenValidityDuration, c.TokenValidityDuration.Duration)

	set(&config.InferenceURL, c.InferenceURL)
	set(&config.InferenceTimeout, c.InferenceTimeout.Duration)
	set(&config.InferenceConcurrency, c.InferenceConcurrency)
	set(&config.FrameQueueSize, c.FrameQueueSize)

	set(&config.DotMax, c.DotMax.Duration)
	set(&config.DashMax, c.DashMax.Duration)
	set(&config.SymbolGapMax, c.SymbolGapMax.Duration)
	set(&config.CharGapMax, c.CharGapMax.Duration)

	set(&config.MinPinLength, c.MinPinLength)
	set(&config.LockoutThreshold, c.LockoutThreshold)
	set(&config.IdentifyMaxDistance, c.IdentifyMaxDistance)
	set(&config.AuthenticateMinSimilarity, c.AuthenticateMinSimilarity)

	set(&config.AlertTimeout, c.AlertTimeout.Duration)
	set(&config.S3AccessKey, c.S3AccessKey)
	set(&config.S3SecretKey, c.S3SecretKey)
	set(&config.S3Bucket, c.S3Bucket)
	set(&config.S3Region, c.S3Region)
	set(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	set(&config.S3PresignTTL, c.S3PresignTTL.Duration)
	set(&config.SnapshotDir, c.SnapshotDir)

	setSlice(&config.KafkaBrokers, c.KafkaBrokers)
	set(&config.KafkaAlertTopic, c.KafkaAlertTopic)

	set(&config.SMTPAddr, c.SMTPAddr)
	set(&config.SMTPUser, c.SMTPUser)
	set(&config.SMTPPassword, c.SMTPPassword)
	set(&config.SMTPFrom, c.SMTPFrom)
	setSlice(&config.SMTPTo, c.SMTPTo)

	set(&config.OpenAIKey, c.OpenAIKey)
	set(&config.OpenAIBaseURL, c.OpenAIBaseURL)
	set(&config.OpenAIModel, c.OpenAIModel)
	return nil
}
