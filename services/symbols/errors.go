// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package symbols

import (
	"errors"

	"github.com/AleutianAI/AleutianIndex/pkg/validation"
)

// Sentinel errors for the symbol index service. Path errors are the
// shared validation sentinels so callers can match either surface.
var (
	// ErrRelativePath indicates a path argument was not absolute.
	ErrRelativePath = validation.ErrRelativePath

	// ErrPathTraversal indicates a path contains .. traversal
	// sequences or escapes the configured roots.
	ErrPathTraversal = validation.ErrPathTraversal

	// ErrTreeTooLarge indicates a tree walk exceeded configured limits.
	ErrTreeTooLarge = errors.New("tree exceeds size limits")

	// ErrInvalidSymbolID indicates a query carried a malformed hex ID.
	ErrInvalidSymbolID = errors.New("invalid symbol ID")

	// ErrInvalidOccurrenceKind indicates an unrecognized kind filter.
	ErrInvalidOccurrenceKind = errors.New("invalid occurrence kind")
)
