// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package pagination_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/facultyeval/pkg/pagination"
)

/*
TestFromRequest verifies defaults and clamping of page/limit parameters.
*/
func TestFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		page   int
		limit  int
		offset int
	}{
		{"defaults", "", 1, 20, 0},
		{"explicit", "?page=3&limit=10", 3, 10, 20},
		{"negative_page", "?page=-2", 1, 20, 0},
		{"garbage", "?page=abc&limit=xyz", 1, 20, 0},
		{"limit_clamped", "?limit=500", 1, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest("GET", "/api/v1/admin/faculty"+tt.query, nil)
			params := pagination.FromRequest(request)

			assert.Equal(t, tt.page, params.Page)
			assert.Equal(t, tt.limit, params.Limit)
			assert.Equal(t, tt.offset, params.Offset())
		})
	}
}

func TestNewMeta(t *testing.T) {
	meta := pagination.NewMeta(2, 20, 41)
	assert.Equal(t, 3, meta.TotalPages)

	assert.Equal(t, 0, pagination.NewMeta(1, 0, 5).TotalPages)
}
