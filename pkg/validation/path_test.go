package validation

import (
	"errors"
	"testing"
)

func TestValidateAbsolutePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"absolute", "/src/demo/server.go", nil},
		{"root", "/", nil},
		{"relative", "demo/server.go", ErrRelativePath},
		{"dot relative", "./server.go", ErrRelativePath},
		{"empty", "", ErrRelativePath},
		{"traversal", "/src/../etc/passwd", ErrPathTraversal},
		{"embedded traversal", "/src/a..b/../x", ErrPathTraversal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAbsolutePath(tt.path)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateAbsolutePath(%q) = %v, want nil", tt.path, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateAbsolutePath(%q) = %v, want %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestValidateWithinRoots(t *testing.T) {
	roots := []string{"/workspace/", "/srv/code/"}

	if err := ValidateWithinRoots("/workspace/a.go", roots); err != nil {
		t.Errorf("allowed path rejected: %v", err)
	}
	if err := ValidateWithinRoots("/etc/passwd", roots); !errors.Is(err, ErrPathTraversal) {
		t.Errorf("expected ErrPathTraversal, got %v", err)
	}
	// Empty allowlist permits anything absolute.
	if err := ValidateWithinRoots("/anywhere", nil); err != nil {
		t.Errorf("empty allowlist rejected path: %v", err)
	}
}

func TestValidateSchemeName(t *testing.T) {
	tests := []struct {
		name    string
		scheme  string
		wantErr bool
	}{
		{"file", "file", false},
		{"unittest", "unittest", false},
		{"with plus", "git+ssh", false},
		{"with digit", "s3", false},
		{"empty", "", true},
		{"leading digit", "9p", true},
		{"space", "fi le", true},
		{"colon", "file:", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchemeName(tt.scheme)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSchemeName(%q) = %v, wantErr %v", tt.scheme, err, tt.wantErr)
			}
		})
	}
}
