package utils

import "strings"

// GetFileNameWithoutExt extracts filename without extension from a file path.
func GetFileNameWithoutExt(filepath string) string {
	base := filepath[strings.LastIndex(filepath, "/")+1:]
	if idx := strings.LastIndex(base, "."); idx != -1 {
		base = base[:idx]
	}
	return base
}

// SanitizeFileName replaces characters that are unsafe in stored file names.
func SanitizeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			return r
		}
		return '_'
	}, name)
}
