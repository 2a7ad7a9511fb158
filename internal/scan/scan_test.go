package scan_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"kicomport/internal/scan"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", path, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}

func byName(candidates []scan.Candidate, name string, kind scan.Kind) *scan.Candidate {
	for i := range candidates {
		if candidates[i].Name == name && candidates[i].Kind == kind {
			return &candidates[i]
		}
	}
	return nil
}

const symbolText = `(kicad_symbol_lib
  (symbol "LM358" (description "Dual op-amp package SOIC")
    (pin passive) (pin passive) (pin passive)))`

const footprintText = `(footprint "SOIC-8"
  (descr "SOIC footprint")
  (pad 1 smd rect) (pad 2 smd rect))`

func TestScanClassifiesByExtensionAndContainer(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"LM358.kicad_sym":             symbolText,
		"Foo.pretty/SOIC-8.kicad_mod": footprintText,
		"Models.3dshapes/LM358.step":  "solid",
		"Models.3dshapes/readme.txt":  "ignored",
		"notes/README.md":             "ignored",
		"loose_model.wrl":             "mesh",
	})

	candidates, err := scan.Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(candidates) != 4 {
		t.Fatalf("expected 4 candidates, got %d: %+v", len(candidates), candidates)
	}

	sym := byName(candidates, "LM358", scan.KindSymbol)
	if sym == nil {
		t.Fatal("missing symbol candidate")
	}
	if sym.PinCount != 3 {
		t.Fatalf("expected pin count 3, got %d", sym.PinCount)
	}
	if sym.Description != "Dual op-amp package SOIC" {
		t.Fatalf("unexpected description: %q", sym.Description)
	}
	if sym.RelPath != "LM358.kicad_sym" {
		t.Fatalf("unexpected rel path: %q", sym.RelPath)
	}

	fp := byName(candidates, "SOIC-8", scan.KindFootprint)
	if fp == nil {
		t.Fatal("missing footprint candidate")
	}
	if fp.PadCount != 2 {
		t.Fatalf("expected pad count 2, got %d", fp.PadCount)
	}

	model := byName(candidates, "LM358", scan.KindModel)
	if model == nil {
		t.Fatal("missing model candidate")
	}
	if model.SizeBytes == 0 {
		t.Fatal("expected nonzero model size")
	}
	if byName(candidates, "loose_model", scan.KindModel) == nil {
		t.Fatal("missing loose model candidate")
	}
}

func TestScanNoDuplicateForContainedFootprint(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"Foo.pretty/one.kicad_mod": footprintText,
	})

	candidates, err := scan.Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("footprint inside .pretty counted %d times", len(candidates))
	}
}

func TestScanPinCountIsTokenCount(t *testing.T) {
	root := t.TempDir()
	// "pin" matches case-insensitively and as a substring ("pin_names", "Pin").
	writeTree(t, root, map[string]string{
		"x.kicad_sym": `(symbol "x" (pin_names) (Pin a) (pin b))`,
	})
	candidates, err := scan.Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if candidates[0].PinCount != 3 {
		t.Fatalf("expected 3 pin tokens, got %d", candidates[0].PinCount)
	}
	// No description present costs 0.1 against the 0.4 baseline.
	want := 0.4 + math.Min(0.2, 3.0/200) - 0.1
	if math.Abs(candidates[0].Heuristic-want) > 1e-9 {
		t.Fatalf("heuristic = %v, want %v", candidates[0].Heuristic, want)
	}
}

func TestScanPadCountWholeWordOnly(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"y.kicad_mod": `(footprint "y" (pad 1) (padstack ignored) (PAD 2))`,
	})
	candidates, err := scan.Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if candidates[0].PadCount != 2 {
		t.Fatalf("expected 2 whole-word pad tokens, got %d", candidates[0].PadCount)
	}
}

func TestHeuristicScoreBounds(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		// Everything stacked: part-number name, package token, description
		// keyword, many pins, high-trust path segment.
		"vendor/AD8232-soic.kicad_sym": `(symbol "x" (description "connector package")` +
			repeat("(pin)", 500) + `)`,
		"tmp/empty.kicad_mod": `(footprint)`,
	})
	candidates, err := scan.Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	for _, c := range candidates {
		if c.Heuristic < 0 || c.Heuristic > 1 {
			t.Fatalf("heuristic %v out of bounds for %s", c.Heuristic, c.Name)
		}
	}
}

func TestModelScorePrefersStep(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.step": "solid",
		"b.wrl":  "mesh",
		"c.obj":  "mesh",
	})
	candidates, err := scan.Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	step := byName(candidates, "a", scan.KindModel)
	wrl := byName(candidates, "b", scan.KindModel)
	obj := byName(candidates, "c", scan.KindModel)
	if step.Heuristic != 0.5 {
		t.Fatalf("step score = %v, want 0.5", step.Heuristic)
	}
	if wrl.Heuristic != 0.35 {
		t.Fatalf("wrl score = %v, want 0.35", wrl.Heuristic)
	}
	if obj.Heuristic != 0.3 {
		t.Fatalf("obj score = %v, want 0.3", obj.Heuristic)
	}
}

func TestPathTrustBonus(t *testing.T) {
	cases := map[string]float64{
		filepath.Join("vendor", "x.kicad_sym"):        0.05,
		filepath.Join("tmp", "x.kicad_sym"):           -0.05,
		filepath.Join("vendor", "tmp", "x.kicad_sym"): 0,
		"x.kicad_sym": 0,
	}
	for rel, want := range cases {
		if got := scan.PathTrustBonus(rel); math.Abs(got-want) > 1e-9 {
			t.Errorf("PathTrustBonus(%q) = %v, want %v", rel, got, want)
		}
	}
}

func TestLooksLikePartNumber(t *testing.T) {
	yes := []string{"LM358", "AD8232-ACPZ", "ne555", "STM32F103"}
	no := []string{"README", "L1", "123ABC", "toolongprefix99"}
	for _, name := range yes {
		if !scan.LooksLikePartNumber(name) {
			t.Errorf("expected %q to look like a part number", name)
		}
	}
	for _, name := range no {
		if scan.LooksLikePartNumber(name) {
			t.Errorf("did not expect %q to look like a part number", name)
		}
	}
}

func repeat(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for range n {
		out = append(out, s...)
	}
	return string(out)
}
