package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCapability(name, description string) Capability {
	return &CapabilityFunc{
		CapName:        name,
		CapDescription: description,
		CapParameters:  map[string]string{"query": "input text"},
		Handler: func(ctx context.Context, params map[string]interface{}) (*CapabilityResult, error) {
			return &CapabilityResult{Output: name}, nil
		},
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewCapabilityRegistry(nil)

	require.NoError(t, r.Register(testCapability("weather", "Reports the weather forecast")))

	cap, err := r.Get("weather")
	require.NoError(t, err)
	assert.Equal(t, "weather", cap.Name())

	_, err = r.Get("missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestRegistryDuplicateOverwrites(t *testing.T) {
	r := NewCapabilityRegistry(nil)

	first := testCapability("echo", "first")
	second := testCapability("echo", "second")
	require.NoError(t, r.Register(first))
	require.NoError(t, r.Register(second))

	cap, err := r.Get("echo")
	require.NoError(t, err)
	assert.Equal(t, "second", cap.Description(), "later registration should win")
	assert.Equal(t, 1, r.Len())
}

func TestRegistryRejectsInvalid(t *testing.T) {
	r := NewCapabilityRegistry(nil)

	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(testCapability("", "anonymous")))
}

func TestRegistryListSorted(t *testing.T) {
	r := NewCapabilityRegistry(nil)
	require.NoError(t, r.Register(testCapability("zeta", "")))
	require.NoError(t, r.Register(testCapability("alpha", "")))
	require.NoError(t, r.Register(testCapability("mid", "")))

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.List())
}

func TestDiscoverIsolatesFailures(t *testing.T) {
	r := NewCapabilityRegistry(nil)

	results := r.Discover(context.Background(),
		&ProviderFunc{ProviderName: "good", Constructor: func() (Capability, error) {
			return testCapability("good", "works"), nil
		}},
		&ProviderFunc{ProviderName: "broken", Constructor: func() (Capability, error) {
			return nil, errors.New("missing dependency")
		}},
		&ProviderFunc{ProviderName: "panicky", Constructor: func() (Capability, error) {
			panic("constructor exploded")
		}},
		&ProviderFunc{ProviderName: "also-good", Constructor: func() (Capability, error) {
			return testCapability("also-good", "works too"), nil
		}},
	)

	require.Len(t, results, 4)

	byProvider := make(map[string]ProviderResult)
	for _, res := range results {
		byProvider[res.Provider] = res
	}

	assert.NoError(t, byProvider["good"].Err)
	assert.NoError(t, byProvider["also-good"].Err)
	assert.Error(t, byProvider["broken"].Err)
	require.Error(t, byProvider["panicky"].Err)
	assert.ErrorIs(t, byProvider["panicky"].Err, ErrProviderFailed)

	// Every well-formed capability is present, the malformed ones absent.
	assert.Equal(t, []string{"also-good", "good"}, r.List())
}

func TestDiscoverNilCapability(t *testing.T) {
	r := NewCapabilityRegistry(nil)

	results := r.Discover(context.Background(),
		&ProviderFunc{ProviderName: "nil-cap", Constructor: func() (Capability, error) {
			return nil, nil
		}},
	)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, ErrProviderFailed)
	assert.Equal(t, 0, r.Len())
}

func TestFindByKeywords(t *testing.T) {
	r := NewCapabilityRegistry(nil)
	require.NoError(t, r.Register(testCapability("weather", "Reports temperature and forecast for a city")))
	require.NoError(t, r.Register(testCapability("calculator", "Evaluates arithmetic expressions")))

	cap, ok := r.FindByKeywords("what is the forecast for tomorrow")
	require.True(t, ok)
	assert.Equal(t, "weather", cap.Name())

	cap, ok = r.FindByKeywords("please calculate this arithmetic problem")
	require.True(t, ok)
	assert.Equal(t, "calculator", cap.Name())

	_, ok = r.FindByKeywords("completely unrelated request")
	assert.False(t, ok)

	_, ok = r.FindByKeywords("")
	assert.False(t, ok)
}
