package dvfs_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/cpufreqctl/internal/dvfs"
	"codeberg.org/mutker/cpufreqctl/internal/errors"
)

func testPolicy() dvfs.Policy {
	return dvfs.Policy{
		MinFrequencyMHz:   1000,
		MaxFrequencyMHz:   4000,
		TargetTemperature: 75,
	}
}

func TestDecideIdleAtTargetTemperature(t *testing.T) {
	target, err := dvfs.Decide(0, 75, testPolicy())
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), target)
}

func TestDecideFullLoadCool(t *testing.T) {
	target, err := dvfs.Decide(100, 50, testPolicy())
	require.NoError(t, err)
	assert.Equal(t, uint64(4000), target)
}

func TestDecideHotterDeratesMore(t *testing.T) {
	warm, err := dvfs.Decide(50, 80, testPolicy())
	require.NoError(t, err)
	hot, err := dvfs.Decide(50, 95, testPolicy())
	require.NoError(t, err)

	cool, err := dvfs.Decide(50, 60, testPolicy())
	require.NoError(t, err)

	assert.Less(t, hot, warm)
	assert.Less(t, warm, cool)
}

func TestDecideLoadClamped(t *testing.T) {
	policy := testPolicy()

	atZero, err := dvfs.Decide(0, 50, policy)
	require.NoError(t, err)
	belowZero, err := dvfs.Decide(-10, 50, policy)
	require.NoError(t, err)
	assert.Equal(t, atZero, belowZero)

	atFull, err := dvfs.Decide(100, 50, policy)
	require.NoError(t, err)
	aboveFull, err := dvfs.Decide(150, 50, policy)
	require.NoError(t, err)
	assert.Equal(t, atFull, aboveFull)
}

func TestDecideAlwaysWithinPolicyBounds(t *testing.T) {
	policy := testPolicy()

	for load := -20.0; load <= 140; load += 10 {
		for temperature := 20.0; temperature <= 110; temperature += 5 {
			target, err := dvfs.Decide(load, temperature, policy)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, target, policy.MinFrequencyMHz)
			assert.LessOrEqual(t, target, policy.MaxFrequencyMHz)
		}
	}
}

func TestDecideRejectsInvertedRange(t *testing.T) {
	policy := dvfs.Policy{
		MinFrequencyMHz:   4000,
		MaxFrequencyMHz:   1000,
		TargetTemperature: 75,
	}

	_, err := dvfs.Decide(50, 60, policy)
	require.Error(t, err)
	assert.Equal(t, dvfs.ErrInvalidPolicy, errors.CodeOf(err))
}

func TestValidateRejectsZeroMinimum(t *testing.T) {
	policy := testPolicy()
	policy.MinFrequencyMHz = 0

	err := policy.Validate()
	require.Error(t, err)
	assert.Equal(t, dvfs.ErrInvalidPolicy, errors.CodeOf(err))
}

func TestValidateRejectsNonPositiveTargetTemperature(t *testing.T) {
	policy := testPolicy()
	policy.TargetTemperature = 0

	err := policy.Validate()
	require.Error(t, err)
	assert.Equal(t, dvfs.ErrInvalidPolicy, errors.CodeOf(err))
}

func TestDecideConcurrent(t *testing.T) {
	policy := testPolicy()

	expected, err := dvfs.Decide(50, 80, policy)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				target, err := dvfs.Decide(50, 80, policy)
				assert.NoError(t, err)
				assert.Equal(t, expected, target)
			}
		}()
	}
	wg.Wait()
}
