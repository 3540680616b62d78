package models

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	DataDir   string `mapstructure:"data_dir"`
	OutputDir string `mapstructure:"output_dir"`

	MATSim    MATSimConfig    `mapstructure:"matsim"`
	SUMO      SUMOConfig      `mapstructure:"sumo"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Server    ServerConfig    `mapstructure:"server"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cloud     CloudConfig     `mapstructure:"cloud"`
	Export    ExportConfig    `mapstructure:"export"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Calibrate CalibrateConfig `mapstructure:"calibrate"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
}

// MATSimConfig describes how the mesoscopic Java engine is invoked.
type MATSimConfig struct {
	Jar        string `mapstructure:"jar"`
	JavaBin    string `mapstructure:"java_bin"`
	HeapMin    string `mapstructure:"heap_min"`
	HeapMax    string `mapstructure:"heap_max"`
	Iterations int    `mapstructure:"iterations"`
	Network    string `mapstructure:"network"`
	Plans      string `mapstructure:"plans"`
}

// SUMOConfig describes how the microscopic engine is invoked per hotspot.
type SUMOConfig struct {
	Binary     string  `mapstructure:"binary"`
	Seed       int64   `mapstructure:"seed"`
	GUI        bool    `mapstructure:"gui"`
	StepLength float64 `mapstructure:"step_length"`
	BBoxPadKm  float64 `mapstructure:"bbox_pad_km"`
}

type PipelineConfig struct {
	HotspotTopN int `mapstructure:"hotspot_top_n"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type KafkaConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	BrokerList string `mapstructure:"broker_list"`
	Topic      string `mapstructure:"topic"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type CloudConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Provider   string `mapstructure:"provider"`
	Region     string `mapstructure:"region"`
	BucketName string `mapstructure:"bucket_name"`
}

type ExportConfig struct {
	LinkStatsParquet bool `mapstructure:"link_stats_parquet"`
}

type IngestConfig struct {
	OverpassURL     string `mapstructure:"overpass_url"`
	DetectorBaseURL string `mapstructure:"detector_base_url"`
	DetectorAPIKey  string `mapstructure:"detector_api_key"`
	GTFSBaseURL     string `mapstructure:"gtfs_base_url"`
	CacheDir        string `mapstructure:"cache_dir"`
}

type CalibrateConfig struct {
	Tolerance float64 `mapstructure:"tolerance"`
}

type AnalyticsConfig struct {
	HourlyValueEUR    float64 `mapstructure:"hourly_value_eur"`
	LatenessThreshold float64 `mapstructure:"lateness_threshold_min"`
}

// LoadConfig initializes and reads the configuration using Viper
func LoadConfig(cfgFile string) (*Config, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Default config location
		viper.AddConfigPath("config")
		viper.SetConfigName("pipeline")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv() // Read in environment variables that match

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	decoderConfigOption := viper.DecoderConfigOption(func(config *mapstructure.DecoderConfig) {
		config.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			config.DecodeHook,
			mapstructure.StringToTimeDurationHookFunc(),
		)
	})
	if err := viper.Unmarshal(&config, decoderConfigOption); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("data_dir", "data")
	viper.SetDefault("output_dir", "output")
	viper.SetDefault("matsim.jar", "third_party/matsim/matsim.jar")
	viper.SetDefault("matsim.java_bin", "java")
	viper.SetDefault("matsim.heap_min", "2g")
	viper.SetDefault("matsim.heap_max", "6g")
	viper.SetDefault("matsim.iterations", 100)
	viper.SetDefault("sumo.binary", "sumo")
	viper.SetDefault("sumo.seed", 42)
	viper.SetDefault("sumo.bbox_pad_km", 0.5)
	viper.SetDefault("pipeline.hotspot_top_n", 10)
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.shutdown_timeout", "10s")
	viper.SetDefault("kafka.topic", "hybridsim_runs")
	viper.SetDefault("ingest.overpass_url", "https://overpass-api.de/api/interpreter")
	viper.SetDefault("calibrate.tolerance", 0.05)
	viper.SetDefault("analytics.hourly_value_eur", 25.0)
	viper.SetDefault("analytics.lateness_threshold_min", 5.0)
}
