package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// ErrInvalidOutputDir wraps every reason an export directory is refused.
var ErrInvalidOutputDir = errors.New("invalid export dir")

// maxFileNameRunes leaves room for a -NN suffix and the extension.
const maxFileNameRunes = 80

// SanitizeName cleans an exercise or project name for an EDL. Control
// characters are dropped, whitespace runs collapse to one space, anything
// outside the name alphabet becomes _ and the result is cut to maxLen runes.
func SanitizeName(s string, maxLen int) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case unicode.IsControl(r):
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		if nameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	runes := []rune(b.String())
	if maxLen > 0 && len(runes) > maxLen {
		runes = runes[:maxLen]
	}
	return strings.TrimRight(string(runes), " ")
}

// nameRune covers what people type for exercises: "Farmer's Walk",
// "Push-up + Dip", "Bench Press (Incline), 3x10".
func nameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	return strings.ContainsRune(" -_.,()'+&", r)
}

// FileName turns a project name into a file name with ext. It never
// yields a hidden file or an empty base.
func FileName(name, ext string) string {
	base := SanitizeName(name, maxFileNameRunes)
	base = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\'', '&', '+', ',':
			return '_'
		}
		return r
	}, base)
	base = strings.Trim(base, ".")
	if base == "" {
		base = "timeline"
	}
	return base + ext
}

// ValidateOutputDir checks that dir is a clean, existing, writable directory.
func ValidateOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("%w: no directory configured", ErrInvalidOutputDir)
	}
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return fmt.Errorf("%w: %s contains ..", ErrInvalidOutputDir, dir)
		}
	}
	if filepath.Clean(dir) != dir {
		return fmt.Errorf("%w: %s is not a clean path", ErrInvalidOutputDir, dir)
	}

	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("%w: %s does not exist", ErrInvalidOutputDir, dir)
	case err != nil:
		return fmt.Errorf("%w: %v", ErrInvalidOutputDir, err)
	case !info.IsDir():
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidOutputDir, dir)
	}

	tmp, err := os.CreateTemp(dir, ".repcut-*")
	if err != nil {
		return fmt.Errorf("%w: %s is not writable", ErrInvalidOutputDir, dir)
	}
	tmp.Close()
	os.Remove(tmp.Name())
	return nil
}

// createUnique opens a new file for name in dir. An existing export keeps
// its name and the new one gets -2, -3 and so on.
func createUnique(dir, name string) (*os.File, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; i <= 999; i++ {
		candidate := name
		if i > 1 {
			candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
		}
		f, err := os.OpenFile(filepath.Join(dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("too many exports named %s", name)
}
