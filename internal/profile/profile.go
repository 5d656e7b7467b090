package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is configuration to start main server.
type Profile struct {
	// Embedding configuration (OpenAI-compatible protocol).
	// When no API key is configured the deterministic hashing encoder is used
	// on its own and no external calls are made.
	EmbeddingProvider string
	EmbeddingModel    string
	EmbeddingAPIKey   string
	EmbeddingBaseURL  string
	EmbeddingTimeout  time.Duration

	// Other configurations
	Mode        string
	Addr        string
	DSN         string
	Driver      string
	Version     string
	InstanceURL string
	Data        string
	Port        int

	// Vector engine configuration. Dimension is shared by every vector that
	// will ever be compared; it is threaded explicitly through all call sites.
	VectorDimension int
	RecommendTopK   int
	MinSimilarity   float32

	// Clustering / proposal configuration
	ClusterThreshold     float32
	MinClusterSize       int
	MinMembersToActivate int
	ProposalTTL          time.Duration

	// Vector maintenance configuration
	MaintenanceDebounce time.Duration
	MaintenanceWorkers  int

	// NotifyWebhookURL, when set, receives a POST per emitted notification.
	// The inbox row is always written; the webhook is best effort.
	NotifyWebhookURL string

	// ProposalSweepInterval re-clusters the user population on this interval
	// to seed new group proposals. Zero disables the sweep.
	ProposalSweepInterval time.Duration
}

// Provider default configurations for embeddings.
// Used when COHORT_EMBEDDING_BASE_URL is not explicitly set.
var embeddingProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "text-embedding-3-small",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "BAAI/bge-m3",
	},
	"ollama": {
		BaseURL: "http://localhost:11434",
		Model:   "nomic-embed-text",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsEmbeddingEnabled returns true if an embedding API key is configured.
func (p *Profile) IsEmbeddingEnabled() bool {
	return p.EmbeddingAPIKey != ""
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.EmbeddingProvider = getEnvOrDefault("COHORT_EMBEDDING_PROVIDER", "openai")
	p.EmbeddingAPIKey = getEnvOrDefault("COHORT_EMBEDDING_API_KEY", "")
	p.EmbeddingBaseURL = getEnvOrDefault("COHORT_EMBEDDING_BASE_URL", "")
	p.EmbeddingModel = getEnvOrDefault("COHORT_EMBEDDING_MODEL", "")
	p.EmbeddingTimeout = time.Duration(getEnvOrDefaultInt("COHORT_EMBEDDING_TIMEOUT_SECONDS", 10)) * time.Second

	if p.EmbeddingBaseURL == "" || p.EmbeddingModel == "" {
		if defaults, ok := embeddingProviderDefaults[p.EmbeddingProvider]; ok {
			if p.EmbeddingBaseURL == "" {
				p.EmbeddingBaseURL = defaults.BaseURL
			}
			if p.EmbeddingModel == "" {
				p.EmbeddingModel = defaults.Model
			}
		}
	}

	p.VectorDimension = getEnvOrDefaultInt("COHORT_VECTOR_DIMENSION", 384)
	p.RecommendTopK = getEnvOrDefaultInt("COHORT_RECOMMEND_TOP_K", 10)
	p.MinSimilarity = getEnvFloat32("COHORT_MIN_SIMILARITY", 0.3)

	p.ClusterThreshold = getEnvFloat32("COHORT_CLUSTER_THRESHOLD", 0.6)
	p.MinClusterSize = getEnvOrDefaultInt("COHORT_MIN_CLUSTER_SIZE", 3)
	p.MinMembersToActivate = getEnvOrDefaultInt("COHORT_MIN_MEMBERS_TO_ACTIVATE", 3)
	p.ProposalTTL = time.Duration(getEnvOrDefaultInt("COHORT_PROPOSAL_TTL_HOURS", 168)) * time.Hour

	p.MaintenanceDebounce = time.Duration(getEnvOrDefaultInt("COHORT_MAINTENANCE_DEBOUNCE_MS", 500)) * time.Millisecond
	p.MaintenanceWorkers = getEnvOrDefaultInt("COHORT_MAINTENANCE_WORKERS", 4)

	p.NotifyWebhookURL = getEnvOrDefault("COHORT_NOTIFY_WEBHOOK_URL", "")
	p.ProposalSweepInterval = time.Duration(getEnvOrDefaultInt("COHORT_PROPOSAL_SWEEP_MINUTES", 0)) * time.Minute
}

func getEnvFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(f)
		}
	}
	return defaultValue
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "cohort")
		} else {
			p.Data = "/var/opt/cohort"
		}
	}

	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported database driver: %s", p.Driver)
	}

	if p.Driver == "sqlite" && p.DSN == "" {
		if p.Data != "" {
			dataDir, err := checkDataDir(p.Data)
			if err != nil {
				return err
			}
			p.Data = dataDir
		}
		dbFile := fmt.Sprintf("cohort_%s.db", p.Mode)
		p.DSN = filepath.Join(p.Data, dbFile)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn is required for postgres driver")
	}

	if p.VectorDimension <= 0 {
		return errors.Errorf("vector dimension must be positive: %d", p.VectorDimension)
	}
	if p.MinSimilarity < -1 || p.MinSimilarity > 1 {
		return errors.Errorf("min similarity must be within [-1, 1]: %f", p.MinSimilarity)
	}
	if p.ClusterThreshold <= 0 || p.ClusterThreshold > 1 {
		return errors.Errorf("cluster threshold must be within (0, 1]: %f", p.ClusterThreshold)
	}
	if p.MinClusterSize < 2 {
		return errors.Errorf("min cluster size must be at least 2: %d", p.MinClusterSize)
	}
	if p.MinMembersToActivate < 1 {
		return errors.Errorf("min members to activate must be at least 1: %d", p.MinMembersToActivate)
	}
	if p.MaintenanceWorkers < 1 {
		p.MaintenanceWorkers = 1
	}

	return nil
}
