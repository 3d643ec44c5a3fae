package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	allowed := []string{"-c", "--config"}

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"separate value", []string{"-c", "conf.json", "-a", "localhost"}, []string{"-c", "conf.json"}},
		{"equals form", []string{"--config=alt.json", "-a", ":3200"}, []string{"--config=alt.json"}},
		{"keeps order", []string{"--config=one.json", "-c", "two.json", "-x", "1"}, []string{"--config=one.json", "-c", "two.json"}},
		{"unknown dropped", []string{"-x", "1", "--y=2", "positional"}, []string{}},
		{"trailing flag", []string{"-c"}, []string{"-c"}},
		{"next is a flag", []string{"-c", "-d"}, []string{"-c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, allowed))
		})
	}
}

func TestConfigPath(t *testing.T) {
	assert.Equal(t, "cfg.json", ConfigPath([]string{"-a", ":3200", "-c", "cfg.json"}))
	assert.Equal(t, "other.json", ConfigPath([]string{"-config=other.json"}))
	assert.Equal(t, "", ConfigPath([]string{"-a", ":3200"}))
}

func TestJsonConfigFlags(t *testing.T) {
	old := os.Args
	t.Cleanup(func() { os.Args = old })

	os.Args = []string{"cuesync", "-d", "x.db", "-c", "client.json"}
	assert.Equal(t, "client.json", JsonConfigFlags())
}
