package common

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type pollerSection struct {
	PollInterval Duration `yaml:"poll_interval" json:"poll_interval" toml:"poll_interval"`
	LeaseTTL     Duration `yaml:"lease_ttl" json:"lease_ttl" toml:"lease_ttl"`
}

func TestDuration_DecodesConfigFormats(t *testing.T) {
	t.Parallel()

	want := pollerSection{
		PollInterval: NewDuration(400 * time.Millisecond),
		LeaseTTL:     NewDuration(90 * time.Second),
	}

	tests := []struct {
		name   string
		decode func(*pollerSection) error
	}{
		{
			name: "yaml",
			decode: func(s *pollerSection) error {
				return yaml.Unmarshal([]byte("poll_interval: 400ms\nlease_ttl: 1m30s\n"), s)
			},
		},
		{
			name: "json",
			decode: func(s *pollerSection) error {
				return json.Unmarshal([]byte(`{"poll_interval":"400ms","lease_ttl":"1m30s"}`), s)
			},
		},
		{
			name: "toml",
			decode: func(s *pollerSection) error {
				_, err := toml.Decode("poll_interval = \"400ms\"\nlease_ttl = \"1m30s\"\n", s)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got pollerSection
			require.NoError(t, tt.decode(&got))
			require.Equal(t, want, got)
		})
	}
}

func TestDuration_RejectsInvalidValues(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "400", "2d", "fast", "1h-"} {
		var d Duration
		err := d.UnmarshalText([]byte(input))
		require.ErrorContains(t, err, "invalid duration", "input %q", input)
		require.Zero(t, d.Duration)
	}

	var s pollerSection
	err := yaml.Unmarshal([]byte("poll_interval: soon\n"), &s)
	require.ErrorContains(t, err, `invalid duration "soon"`)
}

func TestDuration_MarshalRoundTrip(t *testing.T) {
	t.Parallel()

	in := pollerSection{
		PollInterval: NewDuration(250 * time.Millisecond),
		LeaseTTL:     NewDuration(2 * time.Minute),
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	require.JSONEq(t, `{"poll_interval":"250ms","lease_ttl":"2m0s"}`, string(data))

	out, err := yaml.Marshal(in)
	require.NoError(t, err)
	require.Contains(t, string(out), "lease_ttl: 2m0s")

	var back pollerSection
	require.NoError(t, yaml.Unmarshal(out, &back))
	require.Equal(t, in, back)
}

func TestDuration_JSONSchema(t *testing.T) {
	t.Parallel()

	schema := Duration{}.JSONSchema()
	require.Equal(t, "string", schema.Type)
	require.Equal(t, "Duration", schema.Title)

	for _, example := range schema.Examples {
		var d Duration
		require.NoError(t, d.UnmarshalText([]byte(example.(string))))
		require.True(t, d.Duration > 0, "example %v", example)
	}
}
