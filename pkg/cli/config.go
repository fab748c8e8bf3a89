package cli

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/engram/pkg/adapter"
	"github.com/m-mizutani/engram/pkg/interfaces"
	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/engram/pkg/repository"
	"github.com/m-mizutani/engram/pkg/usecase/knowledge"
	"github.com/m-mizutani/engram/pkg/usecase/memory"
	"github.com/m-mizutani/engram/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// config holds configuration values
type config struct {
	// Store
	baseDir string
	owner   string

	// Logging
	logLevel  string
	logFormat string

	// Config file
	configPath string

	// Gemini
	geminiProject    string
	geminiLocation   string
	generativeModel  string
	embeddingModel   string
	embeddingCacheMB int64

	// Graph service
	graphURL     string
	graphAPIKey  string
	graphTimeout time.Duration
	graphTopK    int64

	// Memory
	semanticThreshold float64
	maxContentChars   int64
	embeddingDim      int64
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "base-dir",
			Aliases:     []string{"d"},
			Usage:       "Directory holding the local memory store (default: ~/.engram)",
			Sources:     cli.EnvVars("ENGRAM_BASE_DIR"),
			Destination: &cfg.baseDir,
		},
		&cli.StringFlag{
			Name:        "owner",
			Aliases:     []string{"o"},
			Usage:       "Owner ID whose memories this command operates on",
			Value:       "default",
			Sources:     cli.EnvVars("ENGRAM_OWNER"),
			Destination: &cfg.owner,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("ENGRAM_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       "console",
			Sources:     cli.EnvVars("ENGRAM_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "Path to YAML config file (flags and env vars take precedence)",
			Sources:     cli.EnvVars("ENGRAM_CONFIG"),
			Destination: &cfg.configPath,
		},
	}
}

// geminiFlags returns flags for the Gemini model gateway with destination config
func geminiFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "generative-model",
			Usage:       "Model used for topic classification",
			Value:       adapter.DefaultGenerativeModel,
			Sources:     cli.EnvVars("ENGRAM_GENERATIVE_MODEL"),
			Destination: &cfg.generativeModel,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Model used for text embedding",
			Value:       adapter.DefaultEmbeddingModel,
			Sources:     cli.EnvVars("ENGRAM_EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
		&cli.IntFlag{
			Name:        "embedding-cache-mb",
			Usage:       "In-memory embedding cache size in MiB (0 disables)",
			Value:       64,
			Sources:     cli.EnvVars("ENGRAM_EMBEDDING_CACHE_MB"),
			Destination: &cfg.embeddingCacheMB,
		},
	}
}

// graphFlags returns flags for the graph knowledge service with destination config
func graphFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "graph-url",
			Usage:       "Base URL of the graph knowledge service (empty runs local-only)",
			Sources:     cli.EnvVars("ENGRAM_GRAPH_URL"),
			Destination: &cfg.graphURL,
		},
		&cli.StringFlag{
			Name:        "graph-api-key",
			Usage:       "API key for the graph knowledge service",
			Sources:     cli.EnvVars("ENGRAM_GRAPH_API_KEY"),
			Destination: &cfg.graphAPIKey,
		},
		&cli.DurationFlag{
			Name:        "graph-timeout",
			Usage:       "Timeout for each graph service call",
			Value:       30 * time.Second,
			Sources:     cli.EnvVars("ENGRAM_GRAPH_TIMEOUT"),
			Destination: &cfg.graphTimeout,
		},
		&cli.IntFlag{
			Name:        "graph-top-k",
			Usage:       "Number of graph entries retrieved per query",
			Value:       knowledge.DefaultGraphTopK,
			Sources:     cli.EnvVars("ENGRAM_GRAPH_TOP_K"),
			Destination: &cfg.graphTopK,
		},
	}
}

// memoryFlags returns flags for memory store behavior with destination config
func memoryFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.FloatFlag{
			Name:        "semantic-threshold",
			Usage:       "Similarity above which a new memory is rejected as a duplicate",
			Value:       memory.DefaultSemanticThreshold,
			Sources:     cli.EnvVars("ENGRAM_SEMANTIC_THRESHOLD"),
			Destination: &cfg.semanticThreshold,
		},
		&cli.IntFlag{
			Name:        "max-content-chars",
			Usage:       "Maximum length of a memory statement in characters",
			Value:       memory.DefaultMaxContentChars,
			Sources:     cli.EnvVars("ENGRAM_MAX_CONTENT_CHARS"),
			Destination: &cfg.maxContentChars,
		},
		&cli.IntFlag{
			Name:        "embedding-dim",
			Usage:       "Embedding dimension (must match existing records)",
			Value:       adapter.DefaultEmbeddingDim,
			Sources:     cli.EnvVars("ENGRAM_EMBEDDING_DIM"),
			Destination: &cfg.embeddingDim,
		},
	}
}

// fileConfig mirrors the flag set for the YAML config file
type fileConfig struct {
	BaseDir   string `yaml:"base_dir"`
	Owner     string `yaml:"owner"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Gemini struct {
		Project         string `yaml:"project"`
		Location        string `yaml:"location"`
		GenerativeModel string `yaml:"generative_model"`
		EmbeddingModel  string `yaml:"embedding_model"`
		CacheMB         int64  `yaml:"cache_mb"`
	} `yaml:"gemini"`

	Graph struct {
		URL     string `yaml:"url"`
		APIKey  string `yaml:"api_key"`
		Timeout string `yaml:"timeout"`
		TopK    int64  `yaml:"top_k"`
	} `yaml:"graph"`

	Memory struct {
		SemanticThreshold float64 `yaml:"semantic_threshold"`
		MaxContentChars   int64   `yaml:"max_content_chars"`
		EmbeddingDim      int64   `yaml:"embedding_dim"`
	} `yaml:"memory"`
}

// setup applies the config file overlay and installs the default logger. It is
// called at the top of every command action, after flag parsing.
func (cfg *config) setup(c *cli.Command) error {
	if err := cfg.loadFile(c.IsSet); err != nil {
		return err
	}

	if cfg.logFormat == "json" {
		logging.SetDefault(logging.NewJSON(cfg.logLevel, os.Stderr))
	} else {
		logging.SetDefault(logging.New(cfg.logLevel, os.Stderr))
	}

	return nil
}

// loadFile merges values from the YAML config file into cfg. A value from the
// file applies only when the corresponding flag was not set on the command
// line or through an environment variable, so explicit settings always win.
func (cfg *config) loadFile(isSet func(string) bool) error {
	if cfg.configPath == "" {
		return nil
	}

	data, err := os.ReadFile(cfg.configPath)
	if err != nil {
		return goerr.Wrap(err, "failed to read config file", goerr.V("path", cfg.configPath))
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return goerr.Wrap(err, "failed to parse config file", goerr.V("path", cfg.configPath))
	}

	setString := func(flag string, dst *string, v string) {
		if v != "" && !isSet(flag) {
			*dst = v
		}
	}
	setInt := func(flag string, dst *int64, v int64) {
		if v != 0 && !isSet(flag) {
			*dst = v
		}
	}

	setString("base-dir", &cfg.baseDir, fc.BaseDir)
	setString("owner", &cfg.owner, fc.Owner)
	setString("log-level", &cfg.logLevel, fc.LogLevel)
	setString("log-format", &cfg.logFormat, fc.LogFormat)

	setString("gemini-project", &cfg.geminiProject, fc.Gemini.Project)
	setString("gemini-location", &cfg.geminiLocation, fc.Gemini.Location)
	setString("generative-model", &cfg.generativeModel, fc.Gemini.GenerativeModel)
	setString("embedding-model", &cfg.embeddingModel, fc.Gemini.EmbeddingModel)
	setInt("embedding-cache-mb", &cfg.embeddingCacheMB, fc.Gemini.CacheMB)

	setString("graph-url", &cfg.graphURL, fc.Graph.URL)
	setString("graph-api-key", &cfg.graphAPIKey, fc.Graph.APIKey)
	setInt("graph-top-k", &cfg.graphTopK, fc.Graph.TopK)
	if fc.Graph.Timeout != "" && !isSet("graph-timeout") {
		d, err := time.ParseDuration(fc.Graph.Timeout)
		if err != nil {
			return goerr.Wrap(err, "invalid graph.timeout in config file", goerr.V("value", fc.Graph.Timeout))
		}
		cfg.graphTimeout = d
	}

	if fc.Memory.SemanticThreshold != 0 && !isSet("semantic-threshold") {
		cfg.semanticThreshold = fc.Memory.SemanticThreshold
	}
	setInt("max-content-chars", &cfg.maxContentChars, fc.Memory.MaxContentChars)
	setInt("embedding-dim", &cfg.embeddingDim, fc.Memory.EmbeddingDim)

	return nil
}

// ownerID validates and returns the configured owner
func (cfg *config) ownerID() (model.OwnerID, error) {
	owner := model.OwnerID(cfg.owner)
	if err := owner.Validate(); err != nil {
		return "", err
	}
	return owner, nil
}

// storeDir resolves the base directory, defaulting to ~/.engram
func (cfg *config) storeDir() (string, error) {
	if cfg.baseDir != "" {
		return cfg.baseDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", goerr.Wrap(err, "failed to resolve home directory for base-dir")
	}
	return filepath.Join(home, ".engram"), nil
}

// newRepository creates the local store
func (cfg *config) newRepository() (interfaces.Repository, error) {
	dir, err := cfg.storeDir()
	if err != nil {
		return nil, err
	}

	repo, err := repository.New(dir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open local store", goerr.V("dir", dir))
	}
	return repo, nil
}

// newGemini creates the model gateway, wrapped in the embedding cache
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}

	client, err := adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation,
		adapter.WithGenerativeModel(cfg.generativeModel),
		adapter.WithEmbeddingModel(cfg.embeddingModel),
		adapter.WithEmbeddingDim(int(cfg.embeddingDim)),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create gemini client")
	}

	if cfg.embeddingCacheMB <= 0 {
		return client, nil
	}

	cached, err := adapter.NewEmbeddingCache(client, cfg.embeddingCacheMB<<20)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedding cache")
	}
	return cached, nil
}

// newGraph creates the graph service client, or nil when no URL is configured.
// A nil graph runs the store in local-only mode.
func (cfg *config) newGraph() (adapter.Graph, error) {
	if cfg.graphURL == "" {
		return nil, nil
	}

	client, err := adapter.NewGraph(cfg.graphURL,
		adapter.WithGraphAPIKey(cfg.graphAPIKey),
		adapter.WithGraphTimeout(cfg.graphTimeout),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create graph client")
	}
	return client, nil
}

// newKnowledge assembles the full coordinator: local store, model gateway,
// and graph client when configured
func (cfg *config) newKnowledge(ctx context.Context) (*knowledge.UseCase, error) {
	repo, err := cfg.newRepository()
	if err != nil {
		return nil, err
	}

	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		return nil, err
	}

	graph, err := cfg.newGraph()
	if err != nil {
		return nil, err
	}

	mem := memory.New(repo, gemini,
		memory.WithSemanticThreshold(cfg.semanticThreshold),
		memory.WithMaxContentChars(int(cfg.maxContentChars)),
	)

	return knowledge.New(mem, graph, knowledge.WithGraphTopK(int(cfg.graphTopK))), nil
}
