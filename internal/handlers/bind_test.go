package handlers

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWireName(t *testing.T) {
	type sample struct {
		Method   string `json:"method,omitempty"`
		Query    string `form:"q"`
		Feature  int64  `uri:"feature_id"`
		Internal string `json:"-"`
		Plain    string
	}
	typ := reflect.TypeOf(sample{})

	tests := []struct {
		field string
		want  string
	}{
		{"Method", "method"},
		{"Query", "q"},
		{"Feature", "feature_id"},
		{"Internal", ""},
		{"Plain", "Plain"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			f, ok := typ.FieldByName(tt.field)
			assert.True(t, ok)
			assert.Equal(t, tt.want, wireName(f))
		})
	}
}
