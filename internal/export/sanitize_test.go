package export

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestSanitizeName_ControlChars(t *testing.T) {
	got := SanitizeName(" A\nB\rC\tD\x00 ", 100)
	if strings.ContainsAny(got, "\n\r\t\x00") {
		t.Fatalf("sanitize output contains control chars: %q", got)
	}
	if got != "A B C D" {
		t.Fatalf("SanitizeName control char behavior mismatch, got %q", got)
	}
}

func TestSanitizeName_MaxLength(t *testing.T) {
	got := SanitizeName("abcdefghijklmnopqrstuvwxyz", 10)
	if len([]rune(got)) != 10 {
		t.Fatalf("expected length 10, got %d (%q)", len([]rune(got)), got)
	}
}

func TestSanitizeName_AllowedChars(t *testing.T) {
	input := "Bench Press (Incline), 3x10 - v.2_b"
	got := SanitizeName(input, 100)
	if got != input {
		t.Fatalf("SanitizeName changed allowed chars: got %q want %q", got, input)
	}
}

func TestSanitizeName_ReplacesDisallowed(t *testing.T) {
	got := SanitizeName("Row <cable>|\"seated", 100)
	if got != "Row _cable___seated" {
		t.Fatalf("SanitizeName disallowed replacement mismatch: got %q", got)
	}
}

func TestSanitizeName_ExerciseNames(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Farmer's Walk", "Farmer's Walk"},
		{"  Push-up   +  Dip ", "Push-up + Dip"},
		{"Clean & Jerk", "Clean & Jerk"},
		{"Squat\n\nJump", "Squat Jump"},
		{"Kettlebell*Swing", "Kettlebell_Swing"},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in, 100); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeName_TruncateTrimsSpace(t *testing.T) {
	if got := SanitizeName("Leg Day Heavy", 8); got != "Leg Day" {
		t.Errorf("SanitizeName() = %q, want %q", got, "Leg Day")
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Leg Day", "Leg_Day.edl"},
		{"Farmer's Walk, Clean & Jerk", "Farmer_s_Walk__Clean___Jerk.edl"},
		{".hidden", "hidden.edl"},
		{"../../etc/passwd", "_.._etc_passwd.edl"},
		{"..", "timeline.edl"},
		{"", "timeline.edl"},
	}
	for _, tt := range tests {
		if got := FileName(tt.in, ".edl"); got != tt.want {
			t.Errorf("FileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateOutputDir_Valid(t *testing.T) {
	dir := t.TempDir()
	if err := ValidateOutputDir(dir); err != nil {
		t.Fatalf("ValidateOutputDir(%q) error = %v, want nil", dir, err)
	}
}

func TestValidateOutputDir_NotExist(t *testing.T) {
	base := t.TempDir()
	missing := filepath.Join(base, "missing")
	if err := ValidateOutputDir(missing); err == nil {
		t.Fatalf("ValidateOutputDir(%q) expected error for non-existent path", missing)
	}
}

func TestValidateOutputDir_PathTraversal(t *testing.T) {
	path := "/tmp/../etc"
	if err := ValidateOutputDir(path); err == nil {
		t.Fatalf("ValidateOutputDir(%q) expected traversal error", path)
	}
}

func TestValidateOutputDir_NotADir(t *testing.T) {
	tmp := t.TempDir()
	filePath := filepath.Join(tmp, "file.txt")
	if err := os.WriteFile(filePath, []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	if err := ValidateOutputDir(filePath); err == nil {
		t.Fatalf("ValidateOutputDir(%q) expected non-directory error", filePath)
	}
}

func TestValidateOutputDir_WrapsSentinel(t *testing.T) {
	for _, dir := range []string{"", "/tmp/../etc", filepath.Join(t.TempDir(), "missing")} {
		if err := ValidateOutputDir(dir); !errors.Is(err, ErrInvalidOutputDir) {
			t.Errorf("ValidateOutputDir(%q) = %v, want ErrInvalidOutputDir", dir, err)
		}
	}
}

func TestValidateOutputDir_ReadOnly(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	dir := t.TempDir()
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(dir, 0o755) })

	if err := ValidateOutputDir(dir); !errors.Is(err, ErrInvalidOutputDir) {
		t.Errorf("ValidateOutputDir() = %v, want not writable", err)
	}
}

func TestValidateOutputDir_LeavesNoFiles(t *testing.T) {
	dir := t.TempDir()
	if err := ValidateOutputDir(dir); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("dir has %d entries after validation", len(entries))
	}
}
