package settings

import (
	"strings"
	"testing"

	"github.com/tetherview/tetherview/internal/client"
)

func TestViewStates(t *testing.T) {
	m := New()
	if v := m.View(80); !strings.Contains(v, "no settings loaded") {
		t.Errorf("empty view = %q", v)
	}

	m.Loading = true
	if v := m.View(80); !strings.Contains(v, "loading") {
		t.Errorf("loading view = %q", v)
	}

	m.Loading = false
	m.Err = "Camera not connected"
	if v := m.View(80); !strings.Contains(v, "Camera not connected") {
		t.Errorf("error view = %q", v)
	}
}

func TestViewTable(t *testing.T) {
	iso := 800
	m := New()
	m.Current = &client.Settings{ISO: &iso, Aperture: "5.6"}
	m.Available = map[string][]string{"iso": {"100", "800"}}

	v := m.View(100)
	for _, want := range []string{"800", "5.6", "Shutter", "100 800"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}
}
