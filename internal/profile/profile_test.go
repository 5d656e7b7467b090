package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validProfile() *Profile {
	return &Profile{
		Mode:                 "dev",
		Driver:               "sqlite",
		DSN:                  "/tmp/cohort_test.db",
		VectorDimension:      384,
		RecommendTopK:        10,
		MinSimilarity:        0.3,
		ClusterThreshold:     0.6,
		MinClusterSize:       3,
		MinMembersToActivate: 3,
		MaintenanceWorkers:   4,
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	p := validProfile()
	require.NoError(t, p.Validate())
}

func TestValidateUnknownModeFallsBackToDemo(t *testing.T) {
	p := validProfile()
	p.Mode = "staging"
	require.NoError(t, p.Validate())
	assert.Equal(t, "demo", p.Mode)
}

func TestValidateRejectsUnsupportedDriver(t *testing.T) {
	p := validProfile()
	p.Driver = "mysql"
	assert.Error(t, p.Validate())
}

func TestValidateRequiresPostgresDSN(t *testing.T) {
	p := validProfile()
	p.Driver = "postgres"
	p.DSN = ""
	assert.Error(t, p.Validate())
}

func TestValidateRejectsBadVectorDimension(t *testing.T) {
	p := validProfile()
	p.VectorDimension = 0
	assert.Error(t, p.Validate())
}

func TestValidateRejectsOutOfRangeSimilarity(t *testing.T) {
	p := validProfile()
	p.MinSimilarity = 1.5
	assert.Error(t, p.Validate())
}

func TestValidateRejectsBadClusterThreshold(t *testing.T) {
	p := validProfile()
	p.ClusterThreshold = 0
	assert.Error(t, p.Validate())

	p = validProfile()
	p.ClusterThreshold = 1.2
	assert.Error(t, p.Validate())
}

func TestValidateRejectsTinyClusterSize(t *testing.T) {
	p := validProfile()
	p.MinClusterSize = 1
	assert.Error(t, p.Validate())
}

func TestValidateRejectsZeroActivationQuorum(t *testing.T) {
	p := validProfile()
	p.MinMembersToActivate = 0
	assert.Error(t, p.Validate())
}

func TestValidateClampsWorkerCount(t *testing.T) {
	p := validProfile()
	p.MaintenanceWorkers = 0
	require.NoError(t, p.Validate())
	assert.Equal(t, 1, p.MaintenanceWorkers)
}

func TestIsEmbeddingEnabled(t *testing.T) {
	p := validProfile()
	assert.False(t, p.IsEmbeddingEnabled())
	p.EmbeddingAPIKey = "sk-test"
	assert.True(t, p.IsEmbeddingEnabled())
}

func TestFromEnvDefaults(t *testing.T) {
	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, 384, p.VectorDimension)
	assert.Equal(t, 10, p.RecommendTopK)
	assert.InDelta(t, 0.3, p.MinSimilarity, 1e-6)
	assert.InDelta(t, 0.6, p.ClusterThreshold, 1e-6)
	assert.Equal(t, 3, p.MinClusterSize)
	assert.Equal(t, 3, p.MinMembersToActivate)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("COHORT_VECTOR_DIMENSION", "512")
	t.Setenv("COHORT_MIN_MEMBERS_TO_ACTIVATE", "5")
	t.Setenv("COHORT_MIN_SIMILARITY", "0.45")

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, 512, p.VectorDimension)
	assert.Equal(t, 5, p.MinMembersToActivate)
	assert.InDelta(t, 0.45, p.MinSimilarity, 1e-6)
}
