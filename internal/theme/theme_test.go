package theme

import (
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseOverridesDefaults(t *testing.T) {
	src := `# lane 4
Name: lane
Bar: #112233
ButtonActive: crimson
Unknown: #ffffff
`
	th, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if th.Name != "lane" {
		t.Errorf("name = %q", th.Name)
	}
	if th.Bar != (color.RGBA{0x11, 0x22, 0x33, 0xff}) {
		t.Errorf("bar = %v", th.Bar)
	}
	if th.ButtonActive != (color.RGBA{220, 20, 60, 0xff}) {
		t.Errorf("button active = %v", th.ButtonActive)
	}
	if th.Background != Default().Background {
		t.Errorf("unset field should keep the default")
	}
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{"Bar #112233", "Bar: not-a-colour"} {
		if _, err := Parse(strings.NewReader(src)); err == nil {
			t.Errorf("expected error for %q", src)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, name := range Names() {
		want, _ := Builtin(name)
		got, err := Parse(strings.NewReader(want.String()))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if *got != *want {
			t.Errorf("%s did not round trip:\n%+v\n%+v", name, got, want)
		}
	}
}

func TestLoaderOrder(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "club.theme"), []byte("Bar: #010203\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := &Loader{ConfigDir: dir}

	th, err := l.Load("")
	if err != nil || th.Name != "default" {
		t.Fatalf("empty name: %+v %v", th, err)
	}
	if th, err = l.Load("Dark"); err != nil || th.Name != "dark" {
		t.Fatalf("builtin: %+v %v", th, err)
	}
	if th, err = l.Load("club"); err != nil {
		t.Fatalf("config dir: %v", err)
	}
	if th.Name != "club" || th.Bar != (color.RGBA{1, 2, 3, 0xff}) {
		t.Errorf("config theme = %+v", th)
	}
	if th, err = l.Load(filepath.Join(dir, "club.theme")); err != nil || th.Name != "club" {
		t.Fatalf("path: %+v %v", th, err)
	}
	if _, err := l.Load("missing"); err == nil {
		t.Errorf("expected not found")
	}
}
