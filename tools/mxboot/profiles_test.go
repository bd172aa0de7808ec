package main

import (
	"io"
	"mxos/tools/emu"
	"path/filepath"
	"strings"
	"testing"
)

func TestBundledProfiles(t *testing.T) {
	specs := []struct {
		file       string
		expEntered bool
		expSummary string
	}{
		{"qemu-64.toml", true, "kernel entry reached, stack frame 0x200000"},
		{"i686.toml", false, "fault 2: long mode not supported (unsupported CPU)"},
		{"i486.toml", false, "fault 1: CPUID not supported (unsupported CPU)"},
		{"multiboot1.toml", false, "fault 0: bootloader magic mismatch (unsupported boot protocol)"},
		{"null-info.toml", false, "fault 4: null multiboot information pointer (unsupported boot protocol)"},
	}

	for specIndex, spec := range specs {
		p, err := emu.LoadProfile(filepath.Join("profiles", spec.file))
		if err != nil {
			t.Errorf("[spec %d] unexpected error loading %s: %v", specIndex, spec.file, err)
			continue
		}

		if exp := strings.TrimSuffix(spec.file, ".toml"); p.Name != exp {
			t.Errorf("[spec %d] expected profile name %q; got %q", specIndex, exp, p.Name)
		}

		res, err := bootProfile(p, quietLog())
		if err != nil {
			t.Errorf("[spec %d] unexpected error: %v", specIndex, err)
			continue
		}
		res.machine.Close()

		if res.entered != spec.expEntered {
			t.Errorf("[spec %d] expected entered to be %t", specIndex, spec.expEntered)
		}

		if got := res.Summary(); got != spec.expSummary {
			t.Errorf("[spec %d] expected summary %q; got %q", specIndex, spec.expSummary, got)
		}
	}
}

func TestBootCommandWithLoaderDetails(t *testing.T) {
	var out strings.Builder
	if status := execute(t, &Boot{out: &out}, "-profile", filepath.Join("profiles", "qemu-64.toml")); status != 0 {
		t.Fatalf("expected success; got %v", status)
	}

	for _, exp := range []string{"profile: qemu-64", "loader: GRUB 2.06", "cmdline: console=ega"} {
		if !strings.Contains(out.String(), exp) {
			t.Errorf("expected output to contain %q; got:\n%s", exp, out.String())
		}
	}

	if status := execute(t, &Boot{out: io.Discard}, "-profile", filepath.Join("profiles", "i486.toml")); status == 0 {
		t.Fatal("expected the i486 profile to fail")
	}
}
